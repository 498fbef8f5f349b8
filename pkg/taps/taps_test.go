package taps

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/OpenTraceLab/dcctrace/pkg/jtag"
	"github.com/OpenTraceLab/dcctrace/pkg/tap"
)

// fakeChain builds a Chain whose detection already happened, so tests can
// exercise the scan padding math directly.
func fakeChain(adapter jtag.Adapter, devices, selected int) *Chain {
	c := &Chain{adapter: adapter, sm: tap.NewMachine(), selected: selected}
	c.ids = make([]uint32, devices)
	c.irLengths = make([]int, devices)
	for i := range c.irLengths {
		c.irLengths[i] = defaultIRLength
	}
	return c
}

func TestInstructionBypassPadding(t *testing.T) {
	sim := jtag.NewSimAdapter(jtag.AdapterInfo{Name: "test"})
	c := fakeChain(sim, 3, 1)

	if err := c.Instruction([]byte{0x0A}); err != nil {
		t.Fatalf("Instruction: %v", err)
	}

	var irOp *jtag.ShiftOp
	for _, op := range sim.Ops() {
		if op.Region == jtag.ShiftRegionIR && op.Bits == 12 {
			op := op
			irOp = &op
		}
	}
	if irOp == nil {
		t.Fatal("no 12-bit IR shift dispatched")
	}

	// Device 0 sits nearest TDO; devices 0 and 2 get BYPASS (all ones), the
	// selected device 1 gets 0b1010.
	want := []bool{
		true, true, true, true,
		false, true, false, true,
		true, true, true, true,
	}
	got := BytesToBools(irOp.TDI, 12)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("IR TDI mismatch (-want +got):\n%s", diff)
	}

	tms := BytesToBools(irOp.TMS, 12)
	for i := 0; i < 11; i++ {
		if tms[i] {
			t.Fatalf("TMS bit %d set before the final IR bit", i)
		}
	}
	if !tms[11] {
		t.Fatal("final IR bit must exit Shift-IR")
	}
}

func TestScanDRBypassWindow(t *testing.T) {
	const payload = uint32(0xCAFEBABE)
	sim := jtag.NewSimAdapter(jtag.AdapterInfo{Name: "test"})
	sim.OnShift = func(region jtag.ShiftRegion, tms, tdi []byte, bits int) ([]byte, error) {
		tdo := make([]byte, (bits+7)/8)
		if region == jtag.ShiftRegionDR && bits == 34 {
			// Place the answer in the selected device's window, past the one
			// downstream bypass bit.
			for i, bit := range Uint32ToBits(payload, 32) {
				if bit {
					tdo[(i+1)/8] |= 1 << ((i + 1) % 8)
				}
			}
		}
		return tdo, nil
	}

	// Three devices, middle one selected: one bypass bit on each side.
	c := fakeChain(sim, 3, 1)
	got, err := c.ScanDR(Uint32ToBits(0xDEADBEEF, 32))
	if err != nil {
		t.Fatalf("ScanDR: %v", err)
	}
	if len(got) != 32 {
		t.Fatalf("ScanDR returned %d bits, want 32", len(got))
	}
	if v := BitsToUint32(got); v != payload {
		t.Fatalf("ScanDR window = %#x, want %#x", v, payload)
	}

	for _, op := range sim.Ops() {
		if op.Region != jtag.ShiftRegionDR || op.Bits != 34 {
			continue
		}
		bits := BytesToBools(op.TDI, 34)
		if bits[0] {
			t.Fatal("downstream bypass bit must be zero")
		}
		if v := BitsToUint32(bits[1:33]); v != 0xDEADBEEF {
			t.Fatalf("payload shifted at wrong offset, got %#x", v)
		}
		if bits[33] {
			t.Fatal("upstream bypass bit must be zero")
		}
		return
	}
	t.Fatal("no 34-bit DR shift dispatched")
}

func TestScanDRRequiresSelection(t *testing.T) {
	c := New(jtag.NewSimAdapter(jtag.AdapterInfo{Name: "test"}))
	if _, err := c.ScanDR(make([]bool, 32)); err == nil {
		t.Fatal("ScanDR without a selected TAP should fail")
	}
	if err := c.Instruction([]byte{0x0F}); err == nil {
		t.Fatal("Instruction without a selected TAP should fail")
	}
}

func TestSelectValidation(t *testing.T) {
	sim := jtag.NewSimAdapter(jtag.AdapterInfo{Name: "test"})
	c := fakeChain(sim, 2, -1)

	if err := c.Select(5, []byte{0x0E}); err == nil {
		t.Fatal("Select out of range should fail")
	}
	if c.Selected() != -1 {
		t.Fatalf("Selected = %d after failed Select, want -1", c.Selected())
	}

	if err := c.SetIRLength(7, 4); err == nil {
		t.Fatal("SetIRLength out of range should fail")
	}
	if err := c.SetIRLength(1, 0); err == nil {
		t.Fatal("SetIRLength with zero bits should fail")
	}
	if err := c.SetIRLength(1, 5); err != nil {
		t.Fatalf("SetIRLength: %v", err)
	}
	if c.irLengths[1] != 5 {
		t.Fatalf("irLengths[1] = %d, want 5", c.irLengths[1])
	}
}
