package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ospfd/ospfd/internal/monitor"
)

var resetStatsCmd = &cobra.Command{
	Use:   "reset-stats",
	Short: "Zero the daemon's packet counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.ResetStats(); err != nil {
			return err
		}
		fmt.Println("statistics reset")
		return nil
	},
}

var logLevelCmd = &cobra.Command{
	Use:   "log-level {debug|info|warn|error}",
	Short: "Set the daemon's log verbosity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var code uint8
		switch strings.ToLower(args[0]) {
		case "debug":
			code = monitor.LogLevelDebug
		case "info":
			code = monitor.LogLevelInfo
		case "warn":
			code = monitor.LogLevelWarn
		case "error":
			code = monitor.LogLevelError
		default:
			return fmt.Errorf("unknown log level %q", args[0])
		}

		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.SetLogLevel(code); err != nil {
			return err
		}
		fmt.Printf("log level set to %s\n", strings.ToUpper(args[0]))
		return nil
	},
}
