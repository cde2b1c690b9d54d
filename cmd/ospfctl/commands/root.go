// Package commands implements the ospfctl command tree: a thin client over
// the monitor protocol of a running ospfd or simulated router.
package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ospfd/ospfd/internal/monitor"
)

var monitorAddr string

var rootCmd = &cobra.Command{
	Use:   "ospfctl",
	Short: "Inspect a running OSPF daemon",
	Long: `ospfctl connects to a running ospfd (or a simulated router) over the
read-only monitor protocol and renders protocol state: areas, interfaces,
neighbors, the link-state database, and the routing table.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&monitorAddr, "monitor", "m", "127.0.0.1:2823", "Monitor address of the target daemon")
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(lsaCmd)
	rootCmd.AddCommand(resetStatsCmd)
	rootCmd.AddCommand(logLevelCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// dial opens a monitor connection to the configured daemon.
func dial() (*monitor.Client, error) {
	return monitor.Dial(monitorAddr, 5*time.Second)
}
