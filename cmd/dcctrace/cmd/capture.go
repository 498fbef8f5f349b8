package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/dcctrace/pkg/adi"
	"github.com/OpenTraceLab/dcctrace/pkg/dcc"
	"github.com/OpenTraceLab/dcctrace/pkg/idcode"
	"github.com/OpenTraceLab/dcctrace/pkg/jtag"
	"github.com/OpenTraceLab/dcctrace/pkg/taps"
)

var (
	cable     string
	baud      int
	tapIndex  int
	apNum     int
	queueSize int
	nodups    bool
	stats     bool
	bulk      bool
	jsonOut   bool
)

var captureCmd = &cobra.Command{
	Use:   "capture [flags] <debug_base>",
	Short: "Capture the DCC stream of an ARM core",
	Long: `Capture the Debug Communications Channel of the core whose debug register
block lives at <debug_base> (decimal, or hexadecimal with an 0x prefix).

The capture runs until interrupted. Each traced word is printed to stdout as
"<elapsed microseconds>: <hex value>"; warnings and statistics go to stderr.

Examples:
  # Capture through a CMSIS-DAP probe at 1 MHz
  dcctrace capture --cable cmsisdap --baud 1000000 0x81000000

  # Suppress duplicate values and show statistics every 100 samples
  dcctrace capture --cable cmsisdap --baud 1000000 --nodups --stats 0x81000000

  # Bulk multi-read strategy with throughput statistics
  dcctrace capture --cable cmsisdap --baud 1000000 --bulk --stats 0x81000000`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().StringVarP(&cable, "cable", "c", "", "probe identifier (sim, cmsisdap, cmsisdap:<vid>:<pid>)")
	captureCmd.Flags().IntVarP(&baud, "baud", "b", 0, "TCK clock rate in Hz")
	captureCmd.Flags().IntVarP(&tapIndex, "tap-index", "t", 0, "which TAP in the scan chain to select")
	captureCmd.Flags().IntVarP(&apNum, "ap-num", "a", 1, "which access port to bind")
	captureCmd.Flags().IntVarP(&queueSize, "queue-size", "q", 16, "initial number of reads pipelined per batch")
	captureCmd.Flags().BoolVar(&nodups, "nodups", false, "suppress emission of consecutive duplicate values")
	captureCmd.Flags().BoolVar(&stats, "stats", false, "emit periodic and final statistics")
	captureCmd.Flags().BoolVar(&bulk, "bulk", false, "use bulk multi-reads instead of queue/finish pipelining")
	captureCmd.Flags().BoolVar(&jsonOut, "json", false, "emit records as JSON lines")
}

// parseDebugBase accepts a decimal literal, or hexadecimal with an 0x prefix.
func parseDebugBase(s string) (uint32, error) {
	var (
		value uint64
		err   error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		value, err = strconv.ParseUint(s[2:], 16, 32)
	} else {
		value, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid debug base %q: %w", s, err)
	}
	return uint32(value), nil
}

func runCapture(cmd *cobra.Command, args []string) error {
	if err := applyConfigDefaults(cmd); err != nil {
		return err
	}

	// Everything that can fail without hardware is checked before the cable
	// opens.
	base, err := parseDebugBase(args[0])
	if err != nil {
		return err
	}
	if cable == "" {
		return errors.New("--cable is required")
	}
	if baud <= 0 {
		return errors.New("--baud must be a positive integer")
	}
	if queueSize <= 0 {
		return errors.New("--queue-size must be positive")
	}
	if apNum < 0 || apNum > 255 {
		return fmt.Errorf("--ap-num %d out of range", apNum)
	}

	adapter, err := jtag.Open(cable, baud)
	if err != nil {
		return fmt.Errorf("open cable: %w", err)
	}
	if closer, ok := adapter.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	chain := taps.New(adapter)
	ids, err := chain.Detect()
	if err != nil {
		return fmt.Errorf("detect scan chain: %w", err)
	}
	logrus.Debugf("detected %d TAP(s) on chain", len(ids))
	if tapIndex < 0 || tapIndex >= len(ids) {
		return fmt.Errorf("tap index %d out of range, chain has %d device(s)", tapIndex, len(ids))
	}

	if err := chain.Select(tapIndex, []byte{adi.InstrIDCode}); err != nil {
		return fmt.Errorf("select TAP %d: %w", tapIndex, err)
	}
	id, err := chain.ReadDRWord()
	if err != nil {
		return fmt.Errorf("read IDCODE: %w", err)
	}
	if id != adi.IDCodeARMDP {
		logrus.Warnf("unexpected idcode %s", idcode.Parse(id))
	}

	dp := adi.NewDP(chain)
	if err := dp.PowerUp(); err != nil {
		return err
	}
	ap := adi.NewMemAP(dp, uint8(apNum), adapter)

	fmt.Printf("Using debug base 0x%x\n", base)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dcc.Bringup(ctx, ap, base); err != nil {
		return err
	}

	var strategy dcc.ReadStrategy
	if bulk {
		strategy, err = dcc.NewBulkStrategy(ap, base, queueSize)
	} else {
		strategy, err = dcc.NewQueuedStrategy(ap, base, queueSize)
	}
	if err != nil {
		return err
	}

	var emitter dcc.Emitter
	if jsonOut {
		emitter = &dcc.JSONEmitter{Out: os.Stdout}
	} else {
		emitter = &dcc.TextEmitter{Out: os.Stdout, Err: os.Stderr}
	}

	capture := dcc.NewCapture(strategy, emitter, dcc.Config{
		SuppressDups: nodups,
		Stats:        stats,
		Throughput:   bulk,
	})
	return capture.Run(ctx)
}
