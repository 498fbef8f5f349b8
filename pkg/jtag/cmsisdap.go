package jtag

import (
	"fmt"
	"sync"
)

// CMSISDAPAdapter implements Adapter on top of a CMSIS-DAP probe.
type CMSISDAPAdapter struct {
	transport *usbTransport

	info        AdapterInfo
	speedHz     int
	packetCount int
	connected   bool

	mu sync.Mutex
}

// NewCMSISDAPAdapter opens the probe with the given VID/PID, connects it in
// JTAG mode and applies a 1 MHz default clock.
func NewCMSISDAPAdapter(vid, pid uint16) (*CMSISDAPAdapter, error) {
	transport, err := openUSBTransport(vid, pid)
	if err != nil {
		return nil, err
	}

	a := &CMSISDAPAdapter{
		transport:   transport,
		speedHz:     1_000_000,
		packetCount: 1,
	}
	if err := a.queryInfo(); err != nil {
		transport.close()
		return nil, fmt.Errorf("cmsisdap: query info: %w", err)
	}
	if err := a.connect(); err != nil {
		transport.close()
		return nil, err
	}
	if err := a.SetSpeed(a.speedHz); err != nil {
		transport.close()
		return nil, err
	}
	return a, nil
}

func (a *CMSISDAPAdapter) queryInfo() error {
	str := func(id byte) string {
		resp, err := a.transport.roundTrip(encodeInfo(id))
		if err != nil {
			return ""
		}
		s, _ := decodeInfoString(resp)
		return s
	}

	a.info = AdapterInfo{
		Name:         "CMSIS-DAP Probe",
		Vendor:       str(infoVendorID),
		Model:        str(infoProductID),
		SerialNumber: str(infoSerialNum),
		Firmware:     str(infoFirmwareVer),
		MinFrequency: 1_000,
		MaxFrequency: 10_000_000,
	}

	if resp, err := a.transport.roundTrip(encodeInfo(infoPacketCount)); err == nil {
		if n, err := decodeInfoByte(resp); err == nil && n > 0 {
			a.packetCount = int(n)
		}
	}
	if resp, err := a.transport.roundTrip(encodeInfo(infoPacketSize)); err == nil {
		if n, err := decodeInfoShort(resp); err == nil && int(n) > 0 {
			a.transport.packetSize = int(n)
		}
	}
	return nil
}

func (a *CMSISDAPAdapter) connect() error {
	resp, err := a.transport.roundTrip(encodeConnect(portJTAG))
	if err != nil {
		return err
	}
	port, err := a.decodePort(resp)
	if err != nil {
		return err
	}
	if port != portJTAG {
		return fmt.Errorf("cmsisdap: probe connected in mode %d, want JTAG", port)
	}
	a.connected = true
	return nil
}

func (a *CMSISDAPAdapter) decodePort(resp []byte) (byte, error) {
	return decodeConnect(resp)
}

func (a *CMSISDAPAdapter) Info() (AdapterInfo, error) {
	return a.info, nil
}

// BatchCapacity reports how many pipelined register reads the probe can hold
// before responses must be drained. One 35-bit scan occupies a sequence entry
// of roughly six bytes in a command packet.
func (a *CMSISDAPAdapter) BatchCapacity() int {
	perPacket := (a.transport.packetSize - 2) / 6
	if perPacket < 1 {
		perPacket = 1
	}
	return perPacket * a.packetCount
}

func (a *CMSISDAPAdapter) ShiftIR(tms, tdi []byte, bits int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := ValidateShiftBuffers(tms, tdi, bits); err != nil {
		return nil, err
	}
	return a.shift(tms, tdi, bits)
}

func (a *CMSISDAPAdapter) ShiftDR(tms, tdi []byte, bits int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := ValidateShiftBuffers(tms, tdi, bits); err != nil {
		return nil, err
	}
	return a.shift(tms, tdi, bits)
}

func (a *CMSISDAPAdapter) shift(tms, tdi []byte, bits int) ([]byte, error) {
	seqs := splitSequences(tms, tdi, bits)

	resp, err := a.transport.roundTrip(encodeJTAGSequences(seqs))
	if err != nil {
		return nil, fmt.Errorf("cmsisdap: shift: %w", err)
	}
	tdoSeqs, err := decodeJTAGSequences(resp, seqs)
	if err != nil {
		return nil, err
	}

	// Re-pack the per-sequence TDO chunks into one contiguous LSB-first buffer.
	tdo := make([]byte, (bits+7)/8)
	pos := 0
	for _, chunk := range tdoSeqs {
		for _, b := range chunk {
			for bit := 0; bit < 8 && pos < bits; bit++ {
				if b&(1<<bit) != 0 {
					tdo[pos/8] |= 1 << (pos % 8)
				}
				pos++
			}
		}
	}
	return tdo, nil
}

// splitSequences converts per-bit TMS control into DAP_JTAG_Sequence entries,
// which carry a single TMS level each and at most 64 clocks.
func splitSequences(tms, tdi []byte, bits int) []dapSequence {
	bitAt := func(buf []byte, i int) bool {
		if len(buf) == 0 {
			return false
		}
		return buf[i/8]&(1<<(i%8)) != 0
	}

	var seqs []dapSequence
	pos := 0
	for pos < bits {
		level := bitAt(tms, pos)
		run := 0
		for pos+run < bits && run < 64 && bitAt(tms, pos+run) == level {
			run++
		}

		chunk := make([]byte, (run+7)/8)
		for i := 0; i < run; i++ {
			if bitAt(tdi, pos+i) {
				chunk[i/8] |= 1 << (i % 8)
			}
		}
		seqs = append(seqs, newDAPSequence(run, level, true, chunk))
		pos += run
	}
	return seqs
}

func (a *CMSISDAPAdapter) ResetTAP(hard bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if hard {
		resp, err := a.transport.roundTrip(encodeResetTarget())
		if err != nil {
			return fmt.Errorf("cmsisdap: target reset: %w", err)
		}
		return decodeStatus(resp, cmdResetTarget)
	}

	// Five clocks with TMS high reach Test-Logic-Reset from anywhere.
	seq := newDAPSequence(5, true, false, []byte{0x00})
	resp, err := a.transport.roundTrip(encodeJTAGSequences([]dapSequence{seq}))
	if err != nil {
		return fmt.Errorf("cmsisdap: TAP reset: %w", err)
	}
	_, err = decodeJTAGSequences(resp, []dapSequence{seq})
	return err
}

func (a *CMSISDAPAdapter) SetSpeed(hz int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if hz < a.info.MinFrequency || hz > a.info.MaxFrequency {
		return fmt.Errorf("cmsisdap: frequency %d Hz outside [%d, %d]",
			hz, a.info.MinFrequency, a.info.MaxFrequency)
	}
	resp, err := a.transport.roundTrip(encodeSetClock(uint32(hz)))
	if err != nil {
		return fmt.Errorf("cmsisdap: set clock: %w", err)
	}
	if err := decodeStatus(resp, cmdSWJClock); err != nil {
		return err
	}
	a.speedHz = hz
	return nil
}

// Close disconnects the probe and releases USB resources.
func (a *CMSISDAPAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.connected {
		a.transport.roundTrip(encodeDisconnect())
		a.connected = false
	}
	return a.transport.close()
}
