package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "PSMOVE"

type Registry struct {
	v        *viper.Viper
	validate *validator.Validate

	mu        sync.Mutex
	listeners []func(*Config)
}

func NewRegistry() *Registry {
	r := &Registry{
		v:        viper.New(),
		validate: validator.New(),
	}
	r.setDefaults()

	r.v.SetEnvPrefix(envPrefix)
	r.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	r.v.AutomaticEnv()

	return r
}

func (r *Registry) setDefaults() {
	d := DefaultConfig

	r.v.SetDefault("client.host", d.Client.Host)
	r.v.SetDefault("client.port", d.Client.Port)
	r.v.SetDefault("client.transport", d.Client.Transport)
	r.v.SetDefault("client.websocket_path", d.Client.WebSocketPath)
	r.v.SetDefault("client.connect_timeout", d.Client.ConnectTimeout)
	r.v.SetDefault("client.connect_retries", d.Client.ConnectRetries)
	r.v.SetDefault("client.dns_timeout", d.Client.DNSTimeout)
	r.v.SetDefault("client.write_timeout", d.Client.WriteTimeout)
	r.v.SetDefault("client.request_timeout", d.Client.RequestTimeout)
	r.v.SetDefault("client.max_frame_size", d.Client.MaxFrameSize)
	r.v.SetDefault("client.strict_invariants", d.Client.StrictInvariants)

	r.v.SetDefault("log.dir", d.Log.Dir)
	r.v.SetDefault("log.level", d.Log.Level)
	r.v.SetDefault("log.format", d.Log.Format)

	r.v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	r.v.SetDefault("metrics.listen", d.Metrics.Listen)

	r.v.SetDefault("console.poll_interval", d.Console.PollInterval)
	r.v.SetDefault("console.fps_report_interval", d.Console.FPSReportInterval)
	r.v.SetDefault("console.controller_id", d.Console.ControllerID)

	r.v.SetDefault("service.listen", d.Service.Listen)
	r.v.SetDefault("service.websocket_listen", d.Service.WebSocketListen)
	r.v.SetDefault("service.controllers", d.Service.Controllers)
	r.v.SetDefault("service.data_frame_interval", d.Service.DataFrameInterval)
}

// LoadConfig reads cfgFile, or config.yaml from $HOME/.psmoveclient when
// cfgFile is empty. A missing default file is not an error: defaults and
// PSMOVE_* environment variables still apply.
func (r *Registry) LoadConfig(cfgFile string) (*Config, error) {
	if cfgFile != "" {
		r.v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}

		r.v.AddConfigPath(filepath.Join(home, ".psmoveclient"))
		r.v.SetConfigName("config")
		r.v.SetConfigType("yaml")
	}

	if err := r.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := r.decode()
	if err != nil {
		return nil, err
	}

	if r.v.ConfigFileUsed() != "" {
		r.v.OnConfigChange(r.handleConfigChange)
		r.v.WatchConfig()
	}

	return cfg, nil
}

// OnChange registers f to be called with the re-validated configuration
// every time the config file changes on disk. Invalid edits are ignored.
func (r *Registry) OnChange(f func(*Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, f)
}

func (r *Registry) handleConfigChange(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}

	cfg, err := r.decode()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ignoring config change in %s: %v\n", e.Name, err)
		return
	}

	r.mu.Lock()
	listeners := append([]func(*Config){}, r.listeners...)
	r.mu.Unlock()

	for _, f := range listeners {
		f(cfg)
	}
}

func (r *Registry) decode() (*Config, error) {
	var cfg Config

	if err := r.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := r.Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (r *Registry) Validate(cfg *Config) error {
	if err := r.validate.Struct(cfg); err != nil {
		return fmt.Errorf("error on validating config: %w", err)
	}
	return nil
}

func (r *Registry) ConfigFile() string {
	return r.v.ConfigFileUsed()
}
