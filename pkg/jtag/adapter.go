package jtag

import (
	"errors"
	"fmt"
)

// AdapterInfo describes capabilities reported by a probe implementation.
type AdapterInfo struct {
	Name         string
	Vendor       string
	Model        string
	SerialNumber string
	Firmware     string
	MinFrequency int // Hertz
	MaxFrequency int // Hertz
}

// Adapter abstracts a physical or virtual JTAG probe. TMS and TDI buffers are
// LSB-first; implementations return the captured TDO bits in the same layout.
type Adapter interface {
	Info() (AdapterInfo, error)
	ShiftIR(tms, tdi []byte, bits int) (tdo []byte, err error)
	ShiftDR(tms, tdi []byte, bits int) (tdo []byte, err error)
	ResetTAP(hard bool) error
	SetSpeed(hz int) error
}

// ErrNotImplemented lets backends signal a missing capability without a
// bespoke error value each time.
var ErrNotImplemented = errors.New("jtag: not implemented")

// ValidateShiftBuffers checks that TMS/TDI buffers cover the requested bit
// count and returns the byte length needed to hold it.
func ValidateShiftBuffers(tms, tdi []byte, bits int) (int, error) {
	if bits <= 0 {
		return 0, fmt.Errorf("jtag: bits must be positive, got %d", bits)
	}
	required := (bits + 7) / 8
	if len(tms) > 0 && len(tms) < required {
		return 0, fmt.Errorf("jtag: tms buffer too short, need %d bytes", required)
	}
	if len(tdi) > 0 && len(tdi) < required {
		return 0, fmt.Errorf("jtag: tdi buffer too short, need %d bytes", required)
	}
	return required, nil
}
