package dcc_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/dcctrace/pkg/adi"
	"github.com/OpenTraceLab/dcctrace/pkg/dcc"
	"github.com/OpenTraceLab/dcctrace/pkg/taps"
)

// cancelEmitter records traced values and stops the capture once enough have
// arrived.
type cancelEmitter struct {
	stop   context.CancelFunc
	after  int
	values []uint32
	snaps  int
}

func (e *cancelEmitter) Record(us int64, value uint32) error {
	e.values = append(e.values, value)
	if len(e.values) >= e.after {
		e.stop()
	}
	return nil
}

func (e *cancelEmitter) Snapshot(dcc.Snapshot) error {
	e.snaps++
	return nil
}

// TestCaptureSessionAgainstSimTarget drives the full stack: TAP detection,
// debug port power-up, DCC bring-up, and a pipelined capture against the
// simulated ARM debug target.
func TestCaptureSessionAgainstSimTarget(t *testing.T) {
	const base = uint32(0x81000000)

	target := adi.NewSimTarget()
	target.FIFOAddr = base + 0x8C
	target.Mem[base+0x314] = 1 // debug logic powered
	target.PushFIFO(0x11, 0x22, 0x22, 0x33)

	chain := taps.New(target.Adapter())
	if _, err := chain.Detect(); err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if err := chain.Select(0, []byte{adi.InstrIDCode}); err != nil {
		t.Fatalf("Select: %v", err)
	}
	id, err := chain.ReadDRWord()
	if err != nil {
		t.Fatalf("ReadDRWord: %v", err)
	}
	if id != adi.IDCodeARMDP {
		t.Fatalf("IDCODE = %#x, want %#x", id, adi.IDCodeARMDP)
	}

	dp := adi.NewDP(chain)
	if err := dp.PowerUp(); err != nil {
		t.Fatalf("PowerUp: %v", err)
	}
	ap := adi.NewMemAP(dp, 1, target.Adapter())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dcc.Bringup(ctx, ap, base); err != nil {
		t.Fatalf("Bringup: %v", err)
	}
	if target.Mem[base+0x88]&(1<<20) == 0 {
		t.Fatalf("stall mode not enabled, DSCR = %#x", target.Mem[base+0x88])
	}

	strategy, err := dcc.NewQueuedStrategy(ap, base, 4)
	if err != nil {
		t.Fatalf("NewQueuedStrategy: %v", err)
	}
	emitter := &cancelEmitter{stop: cancel, after: 4}
	capture := dcc.NewCapture(strategy, emitter, dcc.Config{Stats: true})

	if err := capture.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []uint32{0x11, 0x22, 0x22, 0x33}
	if diff := cmp.Diff(want, emitter.values); diff != "" {
		t.Fatalf("traced values mismatch (-want +got):\n%s", diff)
	}
	st := capture.Stats()
	if st.Total != 4 || st.Duplicates != 1 || st.Empty != 0 {
		t.Fatalf("stats = %+v", st)
	}
	if emitter.snaps != 1 {
		t.Fatalf("snapshots = %d, want the final one only", emitter.snaps)
	}
}
