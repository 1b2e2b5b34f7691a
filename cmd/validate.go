package cmd

import (
	"context"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/al002/psmoveclient/internal/resolver"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Run: func(cmd *cobra.Command, args []string) {
		logger.Info("Starting validation...")

		// Configuration itself was validated while loading
		address := net.JoinHostPort(cfg.Client.Host, strconv.Itoa(cfg.Client.Port))
		ip, port, err := resolver.Resolve(context.Background(), address, cfg.Client.DNSTimeout)
		if err != nil {
			logger.Error("Service address does not resolve", "address", address, "error", err)
			os.Exit(1)
		}
		logger.Info("Service address resolves", "address", address, "ip", ip.String(), "port", port)

		if cfg.Metrics.Enabled {
			listener, err := net.Listen("tcp", cfg.Metrics.Listen)
			if err != nil {
				logger.Error("Metrics listen address is not available", "listen", cfg.Metrics.Listen, "error", err)
				os.Exit(1)
			}
			listener.Close()
			logger.Info("Metrics listen address is available", "listen", cfg.Metrics.Listen)
		}

		logger.Info("Validation completed successfully")
	},
}
