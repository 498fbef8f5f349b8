package adi

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/dcctrace/pkg/taps"
)

const simBase = 0x81000000

// newSimDP brings a simulated ARM debug TAP to a powered-up debug port.
func newSimDP(t *testing.T) (*SimTarget, *DP) {
	t.Helper()

	target := NewSimTarget()
	target.FIFOAddr = simBase + 0x8C

	chain := taps.New(target.Adapter())
	ids, err := chain.Detect()
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(ids) != 1 || ids[0] != IDCodeARMDP {
		t.Fatalf("chain ids = %#x, want [%#x]", ids, IDCodeARMDP)
	}

	if err := chain.Select(0, []byte{InstrIDCode}); err != nil {
		t.Fatalf("Select: %v", err)
	}
	id, err := chain.ReadDRWord()
	if err != nil {
		t.Fatalf("ReadDRWord: %v", err)
	}
	if id != IDCodeARMDP {
		t.Fatalf("IDCODE = %#x, want %#x", id, IDCodeARMDP)
	}

	dp := NewDP(chain)
	if err := dp.PowerUp(); err != nil {
		t.Fatalf("PowerUp: %v", err)
	}
	return target, dp
}

func TestPowerUpSetsAcknowledgeBits(t *testing.T) {
	_, dp := newSimDP(t)

	stat, err := dp.ReadDP(dpCtrlStat)
	if err != nil {
		t.Fatalf("ReadDP CTRL/STAT: %v", err)
	}
	want := uint32(ctrlCDbgPwrUpReq | ctrlCDbgPwrUpAck | ctrlCSysPwrUpReq | ctrlCSysPwrUpAck)
	if stat&want != want {
		t.Fatalf("CTRL/STAT = %#x, want power bits %#x set", stat, want)
	}
}

func TestMemAPReadWrite(t *testing.T) {
	target, dp := newSimDP(t)
	ap := NewMemAP(dp, 1, target.Adapter())

	if err := ap.Write(simBase+0x100, 0xCAFE0001); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := target.Mem[simBase+0x100]; got != 0xCAFE0001 {
		t.Fatalf("target memory = %#x, want 0xCAFE0001", got)
	}

	got, err := ap.Read(simBase + 0x100)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 0xCAFE0001 {
		t.Fatalf("Read = %#x, want 0xCAFE0001", got)
	}
}

func TestMemAPIDR(t *testing.T) {
	target, dp := newSimDP(t)
	ap := NewMemAP(dp, 1, target.Adapter())

	idr, err := ap.IDR()
	if err != nil {
		t.Fatalf("IDR: %v", err)
	}
	if idr != target.APIDR {
		t.Fatalf("IDR = %#x, want %#x", idr, target.APIDR)
	}
}

func TestQueueFinishOrdering(t *testing.T) {
	target, dp := newSimDP(t)
	ap := NewMemAP(dp, 1, target.Adapter())
	target.PushFIFO(1, 2, 3)

	for i := 0; i < 5; i++ {
		ok, err := ap.QueueRead(simBase + 0x8C)
		if err != nil {
			t.Fatalf("QueueRead %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("QueueRead %d rejected", i)
		}
	}

	// Three pushed words first, then two empty polls, all in issue order.
	for i, want := range []uint32{1, 2, 3} {
		got, err := ap.FinishRead()
		if err != nil {
			t.Fatalf("FinishRead %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("FinishRead %d = %#x, want %#x", i, got, want)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := ap.FinishRead(); !errors.Is(err, ErrNoData) {
			t.Fatalf("empty FinishRead: err = %v, want ErrNoData", err)
		}
	}

	if _, err := ap.FinishRead(); err == nil {
		t.Fatal("FinishRead with nothing queued should fail")
	}
}

func TestQueueReadHonorsBatchCapacity(t *testing.T) {
	target, dp := newSimDP(t)
	target.Adapter().Capacity = 2
	ap := NewMemAP(dp, 1, target.Adapter())
	target.PushFIFO(10, 20, 30)

	for i := 0; i < 2; i++ {
		ok, err := ap.QueueRead(simBase + 0x8C)
		if err != nil || !ok {
			t.Fatalf("QueueRead %d: ok=%v err=%v", i, ok, err)
		}
	}
	ok, err := ap.QueueRead(simBase + 0x8C)
	if err != nil {
		t.Fatalf("QueueRead at capacity: %v", err)
	}
	if ok {
		t.Fatal("QueueRead accepted beyond the transport capacity")
	}

	// Draining frees the slots again.
	if _, err := ap.FinishRead(); err != nil {
		t.Fatalf("FinishRead: %v", err)
	}
	if _, err := ap.FinishRead(); err != nil {
		t.Fatalf("FinishRead: %v", err)
	}
	ok, err = ap.QueueRead(simBase + 0x8C)
	if err != nil || !ok {
		t.Fatalf("QueueRead after drain: ok=%v err=%v", ok, err)
	}
	if _, err := ap.FinishRead(); err != nil {
		t.Fatalf("final FinishRead: %v", err)
	}
}

func TestReadMulti(t *testing.T) {
	target, dp := newSimDP(t)
	ap := NewMemAP(dp, 1, target.Adapter())
	target.PushFIFO(5, 6)

	values, err := ap.ReadMulti(simBase+0x8C, 4)
	if err != nil {
		t.Fatalf("ReadMulti: %v", err)
	}
	if diff := cmp.Diff([]uint32{5, 6}, values); diff != "" {
		t.Fatalf("ReadMulti values mismatch (-want +got):\n%s", diff)
	}
	if target.FIFOLen() != 0 {
		t.Fatalf("FIFO still holds %d words", target.FIFOLen())
	}
}

func TestReadMultiRejectsInflightQueue(t *testing.T) {
	target, dp := newSimDP(t)
	ap := NewMemAP(dp, 1, target.Adapter())
	target.PushFIFO(1)

	if ok, err := ap.QueueRead(simBase + 0x8C); err != nil || !ok {
		t.Fatalf("QueueRead: ok=%v err=%v", ok, err)
	}
	if _, err := ap.ReadMulti(simBase+0x8C, 2); err == nil {
		t.Fatal("ReadMulti with a queued read in flight should fail")
	}
}
