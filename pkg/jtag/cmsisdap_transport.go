package jtag

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

const (
	// Raspberry Pi debug probe running CMSIS-DAP firmware.
	VendorIDRaspberryPi = 0x2E8A
	ProductIDCMSISDAP   = 0x000C

	defaultPacketSize = 64
	defaultTimeout    = 5 * time.Second
)

// usbTransport drives the bulk endpoints of a CMSIS-DAP v2 probe.
type usbTransport struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	intf *gousb.Interface

	epOut *gousb.OutEndpoint
	epIn  *gousb.InEndpoint

	packetSize int
	timeout    time.Duration
}

func openUSBTransport(vid, pid uint16) (*usbTransport, error) {
	ctx := gousb.NewContext()
	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("cmsisdap: USB open: %w", err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("cmsisdap: no device %04X:%04X", vid, pid)
	}

	// Needed on Linux when a kernel driver holds the interface.
	_ = dev.SetAutoDetach(true)

	t := &usbTransport{
		ctx:        ctx,
		dev:        dev,
		packetSize: defaultPacketSize,
		timeout:    defaultTimeout,
	}
	if err := t.claim(); err != nil {
		dev.Close()
		ctx.Close()
		return nil, err
	}
	return t, nil
}

// claim finds the vendor-class interface and its bulk endpoint pair.
func (t *usbTransport) claim() error {
	cfg, err := t.dev.Config(1)
	if err != nil {
		return fmt.Errorf("cmsisdap: get config: %w", err)
	}

	intfNum := 0
	for _, intf := range cfg.Desc.Interfaces {
		if len(intf.AltSettings) > 0 && intf.AltSettings[0].Class == gousb.ClassVendorSpec {
			intfNum = intf.Number
			break
		}
	}

	intf, err := cfg.Interface(intfNum, 0)
	if err != nil {
		return fmt.Errorf("cmsisdap: claim interface %d: %w", intfNum, err)
	}
	t.intf = intf

	var outNum, inNum int
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		switch ep.Direction {
		case gousb.EndpointDirectionOut:
			if outNum == 0 {
				outNum = ep.Number
			}
		case gousb.EndpointDirectionIn:
			if inNum == 0 {
				inNum = ep.Number
				t.packetSize = ep.MaxPacketSize
			}
		}
	}
	if outNum == 0 || inNum == 0 {
		intf.Close()
		return fmt.Errorf("cmsisdap: bulk endpoint pair not found")
	}

	if t.epOut, err = intf.OutEndpoint(outNum); err != nil {
		intf.Close()
		return fmt.Errorf("cmsisdap: open OUT endpoint: %w", err)
	}
	if t.epIn, err = intf.InEndpoint(inNum); err != nil {
		intf.Close()
		return fmt.Errorf("cmsisdap: open IN endpoint: %w", err)
	}
	return nil
}

// roundTrip sends one command packet and reads the matching response. CMSIS-DAP
// packets are fixed size; the command is padded to the endpoint packet size.
func (t *usbTransport) roundTrip(cmd []byte) ([]byte, error) {
	packet := make([]byte, t.packetSize)
	copy(packet, cmd)
	if _, err := t.epOut.Write(packet); err != nil {
		return nil, fmt.Errorf("cmsisdap: USB write: %w", err)
	}

	resp := make([]byte, t.packetSize)
	n, err := t.epIn.Read(resp)
	if err != nil {
		return nil, fmt.Errorf("cmsisdap: USB read: %w", err)
	}
	return resp[:n], nil
}

func (t *usbTransport) close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	if t.dev != nil {
		t.dev.Close()
		t.dev = nil
	}
	if t.ctx != nil {
		t.ctx.Close()
		t.ctx = nil
	}
	return nil
}
