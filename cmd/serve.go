package cmd

import (
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/al002/psmoveclient/internal/mockservice"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a mock tracking service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s := mockservice.New(logger, mockservice.Options{
			Controllers:       cfg.Service.Controllers,
			DataFrameInterval: cfg.Service.DataFrameInterval,
			MaxFrameSize:      cfg.Client.MaxFrameSize,
		})
		defer s.Close()

		lis, err := net.Listen("tcp", cfg.Service.Listen)
		if err != nil {
			return err
		}
		if err := s.ServeTCP(lis); err != nil {
			lis.Close()
			return err
		}

		if cfg.Service.WebSocketListen != "" {
			wsLis, err := net.Listen("tcp", cfg.Service.WebSocketListen)
			if err != nil {
				return err
			}
			if err := s.ServeWebSocket(wsLis, cfg.Client.WebSocketPath); err != nil {
				wsLis.Close()
				return err
			}
		}

		logger.Info("Mock service running",
			"listen", cfg.Service.Listen,
			"websocket_listen", cfg.Service.WebSocketListen,
			"controllers", cfg.Service.Controllers,
		)

		<-ctx.Done()
		logger.Info("Mock service stopping")
		return nil
	},
}
