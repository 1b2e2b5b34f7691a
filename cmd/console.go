package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/al002/psmoveclient/internal/client"
	"github.com/al002/psmoveclient/internal/config"
	"github.com/al002/psmoveclient/internal/controller"
	"github.com/al002/psmoveclient/internal/log"
	"github.com/al002/psmoveclient/internal/metrics"
	"github.com/al002/psmoveclient/internal/protocol"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Stream a controller from the service and print its state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var opts []client.Option
		if cfg.Metrics.Enabled {
			m := metrics.New()
			opts = append(opts, client.WithMetrics(m))

			go func() {
				if err := m.Serve(ctx, cfg.Metrics.Listen, logger); err != nil {
					logger.Error("Metrics server failed", "error", err)
				}
			}()
		}

		c, err := client.New(&cfg.Client, logger, opts...)
		if err != nil {
			return err
		}

		app := newConsoleApp(c, &cfg.Console, cmd.OutOrStdout(), logger)
		return app.run(ctx)
	},
}

type consoleApp struct {
	client *client.Client
	cfg    *config.ConsoleConfig
	out    io.Writer

	keepRunning bool
	view        *controller.View
	lastReport  time.Time

	log *log.Logger
}

func newConsoleApp(c *client.Client, cfg *config.ConsoleConfig, out io.Writer, l *log.Logger) *consoleApp {
	return &consoleApp{
		client:      c,
		cfg:         cfg,
		out:         out,
		keepRunning: true,
		log:         l.With("component", "console"),
	}
}

// run polls the client until the service goes away or ctx is done, then
// shuts the client down.
func (a *consoleApp) run(ctx context.Context) error {
	err := a.client.Startup(ctx, a.handleEvent)
	if err != nil {
		fmt.Fprintln(a.out, "Failed to startup the PSMove client")
	} else {
		a.lastReport = time.Now()
		a.loop(ctx)
	}

	if a.view != nil {
		if ferr := a.client.FreeControllerView(a.view); ferr != nil {
			a.log.Warn("Failed to free controller view", "error", ferr)
		}
		a.view = nil
	}

	if serr := a.client.Shutdown(); serr != nil {
		a.log.Warn("Shutdown failed", "error", serr)
	}

	return err
}

func (a *consoleApp) loop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.PollInterval)
	defer ticker.Stop()

	for a.keepRunning {
		a.update()

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (a *consoleApp) update() {
	a.client.Update()

	if a.view == nil {
		return
	}

	now := time.Now()
	if now.Sub(a.lastReport) > a.cfg.FPSReportInterval && a.view.DataFrameFPS() > 0 {
		fmt.Fprintf(a.out, "DataFrame Update FPS: %.1f FPS\n", a.view.DataFrameFPS())
		if a.view.IsTracking() {
			a.printPosition()
		}
		a.lastReport = now
	}
}

func (a *consoleApp) handleEvent(ev client.Event) {
	switch ev.Type {
	case client.ConnectedToService:
		fmt.Fprintln(a.out, "Connected to service")

		// Once allocated, data frames are pushed into the view
		a.view = a.client.AllocateControllerView(a.cfg.ControllerID)
		if _, err := a.client.StartControllerDataStream(a.view, a.handleAcquireController); err != nil {
			a.log.Error("Failed to request controller stream", "error", err)
			a.keepRunning = false
		}
	case client.FailedToConnectToService:
		fmt.Fprintln(a.out, "Failed to connect to service")
		a.keepRunning = false
	case client.DisconnectedFromService:
		fmt.Fprintln(a.out, "Disconnected from service")
		a.keepRunning = false
	case client.ControllerListUpdated:
		fmt.Fprintln(a.out, "Controller list updated")
	case client.OpaqueServiceEvent:
		fmt.Fprintf(a.out, "Opaque service event(%d)\n", ev.ServiceEvent.Type)
		a.keepRunning = false
	}
}

func (a *consoleApp) handleAcquireController(result protocol.ResultCode, _ protocol.RequestID, _ *protocol.Response) {
	if result != protocol.ResultOK {
		fmt.Fprintf(a.out, "Failed to acquire controller (%s)\n", result)
		a.keepRunning = false
		return
	}

	fmt.Fprintf(a.out, "Acquired controller %d\n", a.view.ControllerID())

	if a.view.HasData() && a.view.Type() == protocol.ControllerPSMove && a.view.IsTracking() {
		a.printPosition()
	}
}

func (a *consoleApp) printPosition() {
	p := a.view.Position()
	fmt.Fprintf(a.out, "Controller State:\n  Position (%.2f, %.2f, %.2f)\n", p.X, p.Y, p.Z)
}
