package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/dcctrace/pkg/jtag"
)

var probesCmd = &cobra.Command{
	Use:   "probes",
	Short: "List connected debug probes",
	Long: `Scan the host for known CMSIS-DAP debug probes and print a summary. Use this
to verify connectivity before starting a capture.`,
	RunE: runProbes,
}

func init() {
	rootCmd.AddCommand(probesCmd)
}

func runProbes(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	probes, err := jtag.DiscoverProbes(ctx)
	if err != nil {
		return fmt.Errorf("discover probes: %w", err)
	}

	if len(probes) == 0 {
		fmt.Println("No probes found.")
		return nil
	}

	fmt.Println("Detected debug probes:")
	for _, probe := range probes {
		fmt.Printf("  - %s\n", probe.Label())
	}
	return nil
}
