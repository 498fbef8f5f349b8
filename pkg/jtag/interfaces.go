package jtag

import (
	"context"
	"fmt"

	"github.com/google/gousb"
)

// ProbeInfo describes a detected USB debug probe.
type ProbeInfo struct {
	Description string
	VendorID    uint16
	ProductID   uint16
}

// Label returns a user-friendly description for the probe.
func (p ProbeInfo) Label() string {
	if p.Description != "" {
		return fmt.Sprintf("%s (%04X:%04X)", p.Description, p.VendorID, p.ProductID)
	}
	return fmt.Sprintf("Probe %04X:%04X", p.VendorID, p.ProductID)
}

// DiscoverProbes enumerates connected USB devices matching known CMSIS-DAP
// VID/PID pairs.
func DiscoverProbes(ctx context.Context) ([]ProbeInfo, error) {
	var results []ProbeInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		for _, known := range knownProbes {
			if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
				results = append(results, known)
			}
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}
	return results, nil
}

var knownProbes = []ProbeInfo{
	{VendorID: VendorIDRaspberryPi, ProductID: ProductIDCMSISDAP, Description: "Raspberry Pi CMSIS-DAP"},
	{VendorID: 0x0d28, ProductID: 0x0204, Description: "DAPLink CMSIS-DAP"},
	{VendorID: 0x1366, ProductID: 0x0101, Description: "SEGGER J-Link CMSIS-DAP"},
}
