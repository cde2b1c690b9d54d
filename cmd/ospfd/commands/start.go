package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ospfd/ospfd/internal/logger"
	"github.com/ospfd/ospfd/internal/monitor"
	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/internal/telemetry"
	"github.com/ospfd/ospfd/pkg/config"
	"github.com/ospfd/ospfd/pkg/engine"
	"github.com/ospfd/ospfd/pkg/metrics"
	"github.com/ospfd/ospfd/pkg/platform/noop"

	// Import prometheus metrics to register init() functions
	_ "github.com/ospfd/ospfd/pkg/metrics/prometheus"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the OSPF daemon",
	Long: `Start the OSPF daemon in the foreground.

Examples:
  # Start with the default configuration
  ospfd start

  # Start with a custom config file
  ospfd start --config /etc/ospfd/ospfd.yaml

  # Start with environment variable overrides
  OSPFD_LOGGING_LEVEL=DEBUG ospfd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:        true,
			ServiceName:    "ospfd",
			ServiceVersion: Version,
			Endpoint:       cfg.Telemetry.Endpoint,
			Insecure:       cfg.Telemetry.Insecure,
			SampleRate:     cfg.Telemetry.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			_ = shutdown(shutdownCtx)
		}()
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		go serveMetrics(cfg.Metrics.Listen)
	}

	routerID := ospf.RouterIDFromIP(net.ParseIP(cfg.Engine.RouterID))
	if routerID == 0 {
		return fmt.Errorf("engine.router_id %q is not a valid dotted-quad", cfg.Engine.RouterID)
	}

	platform := noop.New()
	r := engine.NewRouter(routerID, platform, logger.With("component", "engine", "router_id", routerID.String()))
	r.SetMetrics(metrics.NewEngineMetrics())
	if cfg.Engine.ASExternalLimit > 0 {
		r.SetASExternalLimit(cfg.Engine.ASExternalLimit, engine.Seconds(cfg.Engine.ExitOverflowSeconds))
	}

	// All engine access is serialized through this channel: monitor
	// queries are closures executed between timer firings, preserving the
	// single-threaded cooperative model.
	jobs := make(chan func(), 16)
	serialize := func(fn func()) {
		done := make(chan struct{})
		wrapped := func() {
			fn()
			close(done)
		}
		select {
		case jobs <- wrapped:
		case <-ctx.Done():
			return
		}
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	var mon *monitor.Server
	if cfg.Monitor.Enabled {
		mon = monitor.NewServer(r, serialize, logger.With("component", "monitor"))
		if err := mon.Start(cfg.Monitor.Listen); err != nil {
			return err
		}
		defer mon.Shutdown()
		logger.Info("monitor listening", "addr", mon.Addr().String())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("ospfd started", "router_id", routerID.String(), "version", Version)

	for {
		wait := time.Second
		if ms, ok := r.TimeoutMs(); ok {
			wait = time.Duration(ms) * time.Millisecond
		}
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-sigCh:
			timer.Stop()
			logger.Info("shutting down")
			r.Shutdown(0)
			cancel()
			return nil
		case job := <-jobs:
			timer.Stop()
			job()
		case <-timer.C:
			sec, _ := platform.SysElapsedTime()
			r.Tick(engine.Seconds(sec))
		}
	}
}

func serveMetrics(addr string) {
	handler := metrics.Handler()
	if handler == nil {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server failed", "error", err)
	}
}
