package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ExitCodeError signals a non-zero process exit code without calling
// os.Exit directly from deep inside a command.
type ExitCodeError struct{ Code int }

func (e ExitCodeError) Error() string { return fmt.Sprintf("exit %d", e.Code) }

var debug bool

var rootCmd = &cobra.Command{
	Use:   "cetp-monitor",
	Short: "CETP inlet and per-factory discharge monitoring and attribution pipeline",
	Long: `cetp-monitor ingests CETP inlet readings and per-factory discharge
readings, scores them for anomalies, attributes confirmed inlet shocks back
to the most likely factory, and routes risk-banded alerts — configured
entirely from CETP_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose development logging")
	rootCmd.AddCommand(runCmd, anticheatCmd)
}

// Execute runs the root command and returns its error, wrapping exit-code
// decisions in ExitCodeError so main can translate them without os.Exit
// calls scattered through the command tree.
func Execute() error {
	return rootCmd.Execute()
}
