// Package taps enumerates the devices on a JTAG scan chain and routes raw
// IR/DR access to one selected TAP, padding around the others in BYPASS.
package taps

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/dcctrace/pkg/jtag"
	"github.com/OpenTraceLab/dcctrace/pkg/tap"
)

// maxChainDevices bounds detection on a chain that never produces the
// all-ones/all-zeros terminator.
const maxChainDevices = 16

// defaultIRLength is assumed for detected devices until told otherwise. ARM
// debug TAPs carry a 4-bit IR.
const defaultIRLength = 4

// Chain walks a scan chain through a jtag.Adapter. Position 0 is the device
// nearest TDO (the first IDCODE shifted out during detection).
type Chain struct {
	adapter jtag.Adapter
	sm      *tap.Machine

	ids       []uint32
	irLengths []int
	selected  int
}

// New wraps an adapter. Detect must run before Select or scan operations.
func New(adapter jtag.Adapter) *Chain {
	return &Chain{adapter: adapter, sm: tap.NewMachine(), selected: -1}
}

// Detect resets the chain and reads IDCODEs in Shift-DR until an all-ones or
// all-zeros word terminates the walk. It returns the detected IDs, nearest
// TDO first.
func (c *Chain) Detect() ([]uint32, error) {
	if err := c.reset(); err != nil {
		return nil, err
	}
	if err := c.goTo(tap.ShiftDR); err != nil {
		return nil, err
	}

	c.ids = nil
	for len(c.ids) < maxChainDevices {
		word, err := c.shiftWord()
		if err != nil {
			return nil, err
		}
		if word == 0 || word == 0xFFFFFFFF {
			break
		}
		c.ids = append(c.ids, word)
	}

	c.irLengths = make([]int, len(c.ids))
	for i := range c.irLengths {
		c.irLengths[i] = defaultIRLength
	}

	if err := c.goTo(tap.RunTestIdle); err != nil {
		return nil, err
	}
	if len(c.ids) == 0 {
		return nil, errors.New("taps: no devices detected on chain")
	}
	return append([]uint32(nil), c.ids...), nil
}

// IDs returns the IDCODEs found by Detect.
func (c *Chain) IDs() []uint32 {
	return append([]uint32(nil), c.ids...)
}

// SetIRLength overrides the assumed IR length of one device.
func (c *Chain) SetIRLength(index, bits int) error {
	if index < 0 || index >= len(c.ids) {
		return fmt.Errorf("taps: device index %d out of range (%d devices)", index, len(c.ids))
	}
	if bits <= 0 {
		return fmt.Errorf("taps: IR length must be positive, got %d", bits)
	}
	c.irLengths[index] = bits
	return nil
}

// Select makes index the active TAP and loads instruction into its IR; every
// other device is programmed with BYPASS.
func (c *Chain) Select(index int, instruction []byte) error {
	if index < 0 || index >= len(c.ids) {
		return fmt.Errorf("taps: tap index %d out of range (%d devices)", index, len(c.ids))
	}
	c.selected = index
	return c.Instruction(instruction)
}

// Selected reports the active TAP index, or -1 before Select.
func (c *Chain) Selected() int {
	return c.selected
}

// Instruction reloads the active TAP's IR, keeping the rest in BYPASS.
func (c *Chain) Instruction(instruction []byte) error {
	if c.selected < 0 {
		return errors.New("taps: no TAP selected")
	}

	total := 0
	for _, n := range c.irLengths {
		total += n
	}

	// Device 0 is nearest TDO, so its IR bits are shifted in first.
	tdi := make([]bool, 0, total)
	for i := 0; i < len(c.ids); i++ {
		n := c.irLengths[i]
		if i == c.selected {
			for b := 0; b < n; b++ {
				tdi = append(tdi, instruction[b/8]&(1<<(b%8)) != 0)
			}
			continue
		}
		for b := 0; b < n; b++ {
			tdi = append(tdi, true) // BYPASS is all ones
		}
	}

	if err := c.goTo(tap.ShiftIR); err != nil {
		return err
	}
	tms := make([]bool, total)
	tms[total-1] = true // exit Shift-IR on the final bit
	if _, err := c.shift(tms, tdi); err != nil {
		return err
	}
	return c.goTo(tap.RunTestIdle)
}

// ScanDR shifts tdi through the selected TAP's data register and returns the
// captured bits. Bypass registers of the other chain members are compensated
// on both sides of the scan.
func (c *Chain) ScanDR(tdi []bool) ([]bool, error) {
	if c.selected < 0 {
		return nil, errors.New("taps: no TAP selected")
	}
	bits := len(tdi)
	downstream := c.selected               // one bypass bit per device toward TDO
	upstream := len(c.ids) - 1 - c.selected // and per device toward TDI
	total := bits + downstream + upstream

	fullTDI := make([]bool, total)
	copy(fullTDI[downstream:], tdi)

	if err := c.goTo(tap.ShiftDR); err != nil {
		return nil, err
	}
	tms := make([]bool, total)
	tms[total-1] = true
	tdo, err := c.shift(tms, fullTDI)
	if err != nil {
		return nil, err
	}
	if err := c.goTo(tap.RunTestIdle); err != nil {
		return nil, err
	}
	return tdo[downstream : downstream+bits], nil
}

// ReadDR captures bits from the selected TAP's data register.
func (c *Chain) ReadDR(bits int) ([]bool, error) {
	return c.ScanDR(make([]bool, bits))
}

// ReadDRWord captures a 32-bit word from the selected TAP's data register.
func (c *Chain) ReadDRWord() (uint32, error) {
	bits, err := c.ReadDR(32)
	if err != nil {
		return 0, err
	}
	return BitsToUint32(bits), nil
}

func (c *Chain) reset() error {
	if err := c.adapter.ResetTAP(false); err != nil && !errors.Is(err, jtag.ErrNotImplemented) {
		return err
	}
	tms := c.sm.Reset()
	_, err := c.dispatch(tms, nil)
	return err
}

func (c *Chain) goTo(target tap.State) error {
	tms, err := c.sm.PathTo(target)
	if err != nil {
		return err
	}
	if len(tms) == 0 {
		return nil
	}
	_, err = c.dispatch(tms, nil)
	return err
}

// shiftWord clocks 32 bits out of the DR path while remaining in Shift-DR.
func (c *Chain) shiftWord() (uint32, error) {
	tms := make([]bool, 32)
	tdo, err := c.shift(tms, nil)
	if err != nil {
		return 0, err
	}
	return BitsToUint32(tdo), nil
}

func (c *Chain) shift(tms, tdi []bool) ([]bool, error) {
	for _, bit := range tms {
		c.sm.Clock(bit)
	}
	raw, err := c.dispatch(tms, tdi)
	if err != nil {
		return nil, err
	}
	return BytesToBools(raw, len(tms)), nil
}

func (c *Chain) dispatch(tms, tdi []bool) ([]byte, error) {
	if len(tms) == 0 {
		return nil, nil
	}
	bits := len(tms)
	tmsBytes := BoolsToBytes(tms)
	tdiBytes := BoolsToBytes(tdi)
	if tdiBytes == nil {
		tdiBytes = make([]byte, len(tmsBytes))
	}
	if irState(c.sm.State()) {
		return c.adapter.ShiftIR(tmsBytes, tdiBytes, bits)
	}
	return c.adapter.ShiftDR(tmsBytes, tdiBytes, bits)
}

func irState(s tap.State) bool {
	switch s {
	case tap.SelectIRScan, tap.CaptureIR, tap.ShiftIR, tap.Exit1IR, tap.PauseIR, tap.Exit2IR, tap.UpdateIR:
		return true
	}
	return false
}
