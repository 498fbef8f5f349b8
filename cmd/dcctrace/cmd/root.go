package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "dcctrace",
	Short: "ARM DCC trace capture over a JTAG debug probe",
	Long: `Capture the Debug Communications Channel of an ARM core through a JTAG
debug probe and print each traced 32-bit word with a microsecond timestamp.

Examples:
  dcctrace capture --cable cmsisdap --baud 1000000 0x81000000
  dcctrace capture --cable sim --baud 100000 --stats --nodups 0x81000000
  dcctrace probes                                   # list connected probes`,
	Version: "0.9.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetOutput(os.Stderr)
		logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML file with flag defaults")
}
