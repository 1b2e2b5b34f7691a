package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/al002/psmoveclient/internal/config"
)

type Logger struct {
	*slog.Logger

	level *slog.LevelVar
	file  *os.File
}

func New(cfg *config.LogConfig) (*Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("log config is nil")
	}

	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))

	writer, file, err := getWriter(cfg.Dir)
	if err != nil {
		return nil, err
	}

	logger := &Logger{
		Logger: slog.New(createHandler(writer, level, cfg.Format)),
		level:  level,
		file:   file,
	}

	slog.SetDefault(logger.Logger)

	return logger, nil
}

// Discard returns a logger that drops every record.
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
		level:  new(slog.LevelVar),
	}
}

// NewWithWriter is New without file handling, mostly for tests.
func NewWithWriter(w io.Writer, level string, format string) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(parseLevel(level))

	return &Logger{
		Logger: slog.New(createHandler(w, lv, format)),
		level:  lv,
	}
}

// With returns a child logger sharing the level and output of l.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
		level:  l.level,
	}
}

// SetLevel changes the minimum level of l and every logger derived from it.
func (l *Logger) SetLevel(level string) {
	l.level.Set(parseLevel(level))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getWriter(dir string) (io.Writer, *os.File, error) {
	if dir == "" {
		return os.Stdout, nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(dir, "psmoveclient.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return f, f, nil
}

func createHandler(writer io.Writer, level slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	}

	switch strings.ToLower(format) {
	case "text":
		return slog.NewTextHandler(writer, opts)
	default:
		return slog.NewJSONHandler(writer, opts)
	}
}

func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}

	return nil
}
