// Package commands implements the ospfd command tree.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ospfd/ospfd/internal/logger"
	"github.com/ospfd/ospfd/pkg/config"
)

// Version information, set by main from ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "ospfd",
	Short: "OSPFv2 routing daemon",
	Long: `ospfd is an OSPFv2 (RFC 2328) routing daemon with MOSPF multicast
extensions and RFC 3623 hitless restart support.

Configuration is read from a YAML file, overridable via OSPFD_* environment
variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file")
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ospfd %s (commit %s, built %s)\n", Version, Commit, Date)
	},
}

// initLogger configures the process logger from the loaded configuration.
func initLogger(cfg *config.Config) error {
	return logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}
