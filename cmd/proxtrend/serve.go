package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/proxtrend/internal/config"
	"github.com/sweeney/proxtrend/internal/dashboard"
	"github.com/sweeney/proxtrend/internal/logging"
	"github.com/sweeney/proxtrend/internal/metrics"
	"github.com/sweeney/proxtrend/internal/render"
	"github.com/sweeney/proxtrend/internal/source"
	"github.com/sweeney/proxtrend/internal/status"
	"github.com/sweeney/proxtrend/internal/web"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(v *viper.Viper, flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the trend dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, flags)
			if err != nil {
				return err
			}
			logger, closer, err := logging.New(cfg.Logging())
			if err != nil {
				return err
			}
			defer closer.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}

	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().Duration("interval", 0, "sampling interval (e.g. 1ms)")
	cmd.Flags().Duration("window", 0, "visible trend window (e.g. 1s)")
	cmd.Flags().Duration("debounce", 0, "edge counter debounce")
	cmd.Flags().String("bed", "", "bed to select at startup")
	cmd.Flags().String("readme", "", "path to the reference PDF")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	bindFlag(v, cmd, "http.addr", "addr")
	bindFlag(v, cmd, "sampling.interval", "interval")
	bindFlag(v, cmd, "sampling.window", "window")
	bindFlag(v, cmd, "sampling.debounce", "debounce")
	bindFlag(v, cmd, "sampling.initial_bed", "bed")
	bindFlag(v, cmd, "http.readme", "readme")
	bindFlag(v, cmd, "log.level", "log-level")
	return cmd
}

// app is the wired dashboard.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	tracker *status.Tracker
	chart   *render.Chart
	hub     *web.Hub
	shell   *dashboard.Shell
	server  *web.Server
}

// newApp wires every component for cfg. opener replaces the real controller
// dialer when non-nil.
func newApp(cfg config.Config, logger *slog.Logger, opener source.Opener) (*app, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	if opener == nil {
		opener = source.Dialer{MQTT: cfg.MQTTOptions(), Logger: logger}
	}

	a := &app{cfg: cfg, logger: logger}
	a.tracker = status.NewTracker(time.Now(), cfg.Status())
	a.chart = render.NewChart(cfg.HTTP.ChartWidth, cfg.HTTP.ChartHeight)
	a.hub = web.NewHub(a.tracker, logger)

	table := cfg.Plant()
	a.shell = dashboard.New(dashboard.Options{
		Engine:   cfg.Engine(),
		Redraw:   cfg.Sampling.Redraw,
		Debounce: cfg.Sampling.Debounce,
		Plant:    table,
		Opener:   opener,
		Renderer: a.chart,
		Tracker:  a.tracker,
		Notifier: a.hub,
		Logger:   logger,
	})

	a.server = web.New(web.Options{
		Addr:     cfg.HTTP.Addr,
		Tracker:  a.tracker,
		Controls: a.shell,
		Chart:    a.chart,
		Hub:      a.hub,
		Plant:    table,
		Readme:   cfg.HTTP.Readme,
		Gatherer: reg,
		Logger:   logger,
	})
	return a, nil
}

// selectInitial activates the configured startup bed, if any. A failed
// connection is a notice, not an error.
func (a *app) selectInitial(ctx context.Context) error {
	bed := a.cfg.Sampling.InitialBed
	if bed == "" {
		return nil
	}
	c, err := a.cfg.Plant().FindBed(bed)
	if err != nil {
		return err
	}
	return a.shell.SelectBed(ctx, c.Address, bed)
}

func runServe(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.shell.Close()

	go a.hub.Run(ctx)

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTP.Addr, err)
	}
	return a.serve(ctx, ln)
}

// serve runs the HTTP server on ln until ctx is done.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	a.logger.Info("dashboard listening",
		"addr", ln.Addr().String(),
		"interval", a.cfg.Sampling.Interval,
		"window", a.cfg.Sampling.Window,
		"controllers", len(a.cfg.Controllers))

	if err := a.selectInitial(ctx); err != nil {
		a.logger.Warn("initial bed not selected", "bed", a.cfg.Sampling.InitialBed, "error", err)
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
