package jtag

import (
	"fmt"
	"strconv"
	"strings"
)

// Open maps a cable identifier string to an adapter and applies the requested
// TCK rate. Supported identifiers:
//
//	sim                      in-memory simulator
//	cmsisdap                 CMSIS-DAP probe with the default VID/PID
//	cmsisdap:<vid>:<pid>     CMSIS-DAP probe with explicit hex VID/PID
func Open(identifier string, baud int) (Adapter, error) {
	if baud <= 0 {
		return nil, fmt.Errorf("jtag: baud must be positive, got %d", baud)
	}

	parts := strings.Split(identifier, ":")
	switch parts[0] {
	case "sim", "simulator":
		sim := NewSimAdapter(AdapterInfo{
			Name:         "JTAG Simulator",
			Vendor:       "OpenTraceLab",
			Model:        "Sim-1.0",
			MinFrequency: 100,
			MaxFrequency: 10_000_000,
		})
		if err := sim.SetSpeed(baud); err != nil {
			return nil, err
		}
		return sim, nil

	case "cmsisdap", "cmsis", "dap":
		vid := uint16(VendorIDRaspberryPi)
		pid := uint16(ProductIDCMSISDAP)
		if len(parts) == 3 {
			v, err := strconv.ParseUint(parts[1], 16, 16)
			if err != nil {
				return nil, fmt.Errorf("jtag: bad VID %q: %w", parts[1], err)
			}
			p, err := strconv.ParseUint(parts[2], 16, 16)
			if err != nil {
				return nil, fmt.Errorf("jtag: bad PID %q: %w", parts[2], err)
			}
			vid, pid = uint16(v), uint16(p)
		} else if len(parts) != 1 {
			return nil, fmt.Errorf("jtag: cable %q: want cmsisdap or cmsisdap:<vid>:<pid>", identifier)
		}

		adapter, err := NewCMSISDAPAdapter(vid, pid)
		if err != nil {
			return nil, err
		}
		if err := adapter.SetSpeed(baud); err != nil {
			adapter.Close()
			return nil, err
		}
		return adapter, nil

	default:
		return nil, fmt.Errorf("jtag: unknown cable %q (supported: sim, cmsisdap)", identifier)
	}
}
