package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/al002/psmoveclient/internal/config"
	"github.com/al002/psmoveclient/internal/log"
	"github.com/al002/psmoveclient/internal/version"
)

var (
	cfgFile     string
	cfgRegistry *config.Registry
	cfg         *config.Config
	logger      *log.Logger

	rootCmd = &cobra.Command{
		Use:     "psmoveclient",
		Short:   "Client for a PSMove tracking service",
		Version: version.Version,
	}
)

func Execute() error {
	defer func() {
		if logger != nil {
			if err := logger.Close(); err != nil {
				fmt.Printf("Failed to close logger: %v\n", err)
			}
		}
	}()
	return rootCmd.Execute()
}

func init() {
	cfgRegistry = config.NewRegistry()
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.psmoveclient/config.yaml)")

	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}

func initConfig() {
	var err error
	cfg, err = cfgRegistry.LoadConfig(cfgFile)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err = log.New(&cfg.Log)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	logger.Debug("Configuration loaded successfully",
		"config_file", cfgRegistry.ConfigFile(),
		"host", cfg.Client.Host,
		"port", cfg.Client.Port,
		"transport", cfg.Client.Transport,
		"request_timeout", cfg.Client.RequestTimeout,
		"metrics_enabled", cfg.Metrics.Enabled,
	)

	cfgRegistry.OnChange(func(c *config.Config) {
		logger.SetLevel(c.Log.Level)
		logger.Info("Configuration reloaded", "log_level", c.Log.Level)
	})
}
