package jtag

import "fmt"

// ShiftRegion identifies whether a shift targets the instruction or data
// register path.
type ShiftRegion uint8

const (
	ShiftRegionIR ShiftRegion = iota
	ShiftRegionDR
)

// ShiftHook lets the simulator emulate device-specific TDO behavior.
type ShiftHook func(region ShiftRegion, tms, tdi []byte, bits int) ([]byte, error)

// ShiftOp records one shift invocation for inspection in tests.
type ShiftOp struct {
	Region ShiftRegion
	TMS    []byte
	TDI    []byte
	Bits   int
}

// SimAdapter is an in-memory adapter for tests and hardware-free runs. It
// records shift requests and can provide deterministic TDO data via OnShift.
type SimAdapter struct {
	InfoData AdapterInfo
	SpeedHz  int

	// Capacity reported through BatchCapacity; zero means unlimited.
	Capacity int

	OnShift ShiftHook

	ops    []ShiftOp
	resets int
}

// NewSimAdapter constructs a simulator with the provided AdapterInfo.
func NewSimAdapter(info AdapterInfo) *SimAdapter {
	return &SimAdapter{InfoData: info}
}

// Ops returns a copy of every shift recorded so far.
func (s *SimAdapter) Ops() []ShiftOp {
	return append([]ShiftOp(nil), s.ops...)
}

// Resets reports how many TAP resets have been requested.
func (s *SimAdapter) Resets() int {
	return s.resets
}

func (s *SimAdapter) Info() (AdapterInfo, error) {
	return s.InfoData, nil
}

func (s *SimAdapter) BatchCapacity() int {
	return s.Capacity
}

func (s *SimAdapter) ShiftIR(tms, tdi []byte, bits int) ([]byte, error) {
	return s.shift(ShiftRegionIR, tms, tdi, bits)
}

func (s *SimAdapter) ShiftDR(tms, tdi []byte, bits int) ([]byte, error) {
	return s.shift(ShiftRegionDR, tms, tdi, bits)
}

func (s *SimAdapter) ResetTAP(hard bool) error {
	s.resets++
	return nil
}

func (s *SimAdapter) SetSpeed(hz int) error {
	if hz <= 0 {
		return fmt.Errorf("jtag: invalid speed %dHz", hz)
	}
	s.SpeedHz = hz
	return nil
}

func (s *SimAdapter) shift(region ShiftRegion, tms, tdi []byte, bits int) ([]byte, error) {
	if _, err := ValidateShiftBuffers(tms, tdi, bits); err != nil {
		return nil, err
	}

	s.ops = append(s.ops, ShiftOp{
		Region: region,
		TMS:    append([]byte(nil), tms...),
		TDI:    append([]byte(nil), tdi...),
		Bits:   bits,
	})

	if s.OnShift != nil {
		return s.OnShift(region, tms, tdi, bits)
	}

	// Default: echo TDI to TDO to keep tests predictable.
	tdo := make([]byte, (bits+7)/8)
	copy(tdo, tdi)
	return tdo, nil
}
