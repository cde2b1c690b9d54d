// Package commands implements the ospfsim command tree: a headless
// front-end over the simulation controller, running every simulated router
// in-process.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ospfd/ospfd/internal/logger"
	"github.com/ospfd/ospfd/internal/protocol/ospf"
	"github.com/ospfd/ospfd/pkg/config"
	"github.com/ospfd/ospfd/pkg/sim/controller"
	"github.com/ospfd/ospfd/pkg/sim/router"
	"github.com/ospfd/ospfd/pkg/sim/simproto"
)

var (
	configFile   string
	topologyFile string
)

var rootCmd = &cobra.Command{
	Use:   "ospfsim",
	Short: "OSPF network simulator",
	Long: `ospfsim drives a population of simulated OSPF routers in lock-step
virtual time: a central controller advances the clock in ticks, delivers the
global address map, and recolors each router's synchronization state from
its database fingerprint.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.AddCommand(runCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation from a topology file",
	Long: `Run a simulation: start the controller, spawn one simulated router per
topology entry, and print synchronization color changes until interrupted.

Example:
  ospfsim run --topology three-routers.yaml`,
	RunE: runSim,
}

func init() {
	runCmd.Flags().StringVarP(&topologyFile, "topology", "t", "", "Topology YAML file (required)")
	_ = runCmd.MarkFlagRequired("topology")
}

func runSim(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return err
	}

	topology, err := controller.LoadTopology(topologyFile)
	if err != nil {
		return err
	}

	ctrl := controller.New(topology, logger.With("component", "controller"))
	ctrl.OnColor = func(routerID uint32, color controller.Color) {
		fmt.Printf("tick %6d  router %-15s -> %s\n", ctrl.Tick(), ospf.RouterID(routerID), color)
	}
	ctrl.OnLog = func(routerID uint32, msg string) {
		logger.Debug("router log", "router_id", ospf.RouterID(routerID).String(), "msg", msg)
	}
	ctrl.OnTrace = func(routerID uint32, kind uint16, rep *simproto.TraceReport) {
		fmt.Printf("trace  router %s kind=%d responder=%s ttl=%d code=%d %dms\n",
			ospf.RouterID(routerID), kind, ospf.RouterID(rep.Responder), rep.TTL, rep.Code, rep.VirtualMs)
	}

	if err := ctrl.Start(cfg.Simulator.Listen); err != nil {
		return err
	}
	defer ctrl.Shutdown()
	logger.Info("controller listening", "addr", ctrl.Addr(), "routers", len(topology.Routers))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var wg sync.WaitGroup
	for _, rt := range topology.Routers {
		id := ospf.RouterID(rt.ID)
		dataDir, err := os.MkdirTemp("", fmt.Sprintf("ospfsim-%s-", id))
		if err != nil {
			return err
		}
		defer os.RemoveAll(dataDir)

		h := router.New(id, ctrl.Addr(), dataDir, logger.With("component", "sim-router", "router_id", id.String()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("simulated router exited", "router_id", id.String(), "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down simulation")
	cancel()
	wg.Wait()
	return nil
}
