package dcc

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrCoreNotPowered reports that EDPRSR shows the core's debug logic without
// power. Capture cannot proceed; nothing else is touched.
var ErrCoreNotPowered = errors.New("dcc: core debug logic is not powered")

// Bringup prepares the core's debug logic for DCC capture: verify power,
// clear the OS lock, and switch the DCC into stall mode so empty reads hold
// instead of returning garbage.
//
// The DSCR read after the lock clear retries until the target responds; a
// core can stay unresponsive for a few accesses there. The retry is unbounded
// by design but observes ctx so an interrupt still wins.
func Bringup(ctx context.Context, port Port, base uint32) error {
	edprsr, err := port.Read(base + regEDPRSR)
	if err != nil {
		return fmt.Errorf("dcc: read EDPRSR: %w", err)
	}
	if edprsr&edprsrPoweredUp == 0 {
		return ErrCoreNotPowered
	}

	if err := port.Write(base+regOSLAR, 0); err != nil {
		return fmt.Errorf("dcc: clear OS lock: %w", err)
	}

	var dscr uint32
	for {
		dscr, err = port.Read(base + regDSCR)
		if err == nil {
			break
		}
		logrus.WithError(err).Debug("DSCR not readable yet, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	if err := port.Write(base+regDSCR, dscr|dscrStallMode); err != nil {
		return fmt.Errorf("dcc: enable stall mode: %w", err)
	}
	return nil
}
