package dcc

import (
	"context"
	"errors"
	"testing"
)

type regWrite struct {
	addr  uint32
	value uint32
}

// regPort is a register-level fake: reads come from a map and can be scripted
// to fail a number of times per address.
type regPort struct {
	regs     map[uint32]uint32
	failures map[uint32]int
	writes   []regWrite
	reads    []uint32
}

func (p *regPort) Read(addr uint32) (uint32, error) {
	p.reads = append(p.reads, addr)
	if n := p.failures[addr]; n > 0 {
		p.failures[addr] = n - 1
		return 0, errors.New("target not ready")
	}
	return p.regs[addr], nil
}

func (p *regPort) Write(addr, value uint32) error {
	p.writes = append(p.writes, regWrite{addr: addr, value: value})
	p.regs[addr] = value
	return nil
}

func (p *regPort) QueueRead(addr uint32) (bool, error) { return false, nil }

func (p *regPort) FinishRead() (uint32, error) {
	return 0, errors.New("nothing queued")
}

func (p *regPort) ReadMulti(addr uint32, count int) ([]uint32, error) {
	return nil, nil
}

const testBase = uint32(0x81000000)

func TestBringupRefusesUnpoweredCore(t *testing.T) {
	port := &regPort{regs: map[uint32]uint32{testBase + regEDPRSR: 0}}

	err := Bringup(context.Background(), port, testBase)
	if !errors.Is(err, ErrCoreNotPowered) {
		t.Fatalf("Bringup = %v, want ErrCoreNotPowered", err)
	}
	if len(port.writes) != 0 {
		t.Fatalf("Bringup touched %d registers on an unpowered core", len(port.writes))
	}
}

func TestBringupSequence(t *testing.T) {
	port := &regPort{regs: map[uint32]uint32{
		testBase + regEDPRSR: edprsrPoweredUp,
		testBase + regDSCR:   0x40,
	}}

	if err := Bringup(context.Background(), port, testBase); err != nil {
		t.Fatalf("Bringup: %v", err)
	}

	if len(port.writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(port.writes))
	}
	if w := port.writes[0]; w.addr != testBase+regOSLAR || w.value != 0 {
		t.Fatalf("first write = %+v, want OS lock clear", w)
	}
	if w := port.writes[1]; w.addr != testBase+regDSCR || w.value != 0x40|dscrStallMode {
		t.Fatalf("second write = %+v, want DSCR with stall mode", w)
	}
}

func TestBringupRetriesDSCRRead(t *testing.T) {
	port := &regPort{
		regs: map[uint32]uint32{
			testBase + regEDPRSR: edprsrPoweredUp,
			testBase + regDSCR:   0,
		},
		failures: map[uint32]int{testBase + regDSCR: 3},
	}

	if err := Bringup(context.Background(), port, testBase); err != nil {
		t.Fatalf("Bringup: %v", err)
	}

	dscrReads := 0
	for _, addr := range port.reads {
		if addr == testBase+regDSCR {
			dscrReads++
		}
	}
	if dscrReads != 4 {
		t.Fatalf("DSCR reads = %d, want 3 failures plus 1 success", dscrReads)
	}
}

func TestBringupObservesCancellation(t *testing.T) {
	port := &regPort{
		regs:     map[uint32]uint32{testBase + regEDPRSR: edprsrPoweredUp},
		failures: map[uint32]int{testBase + regDSCR: 1 << 30},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Bringup(ctx, port, testBase); !errors.Is(err, context.Canceled) {
		t.Fatalf("Bringup = %v, want context.Canceled", err)
	}
}
