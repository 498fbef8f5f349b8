// Package adi drives an ARM Debug Interface (ADIv5) reached through a JTAG
// debug port: DPACC/APACC scans against the selected TAP, and a MemAP handle
// for memory-mapped debug register access.
package adi

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/dcctrace/pkg/taps"
)

// JTAG-DP instructions (4-bit IR).
const (
	InstrAbort  byte = 0x8
	InstrDPACC  byte = 0xA
	InstrAPACC  byte = 0xB
	InstrIDCode byte = 0xE
)

// IDCodeARMDP is the identification code of an ARM JTAG debug port.
const IDCodeARMDP uint32 = 0x4BA00477

// ACK field of a DPACC/APACC response. JTAG-DP only distinguishes WAIT from
// OK/FAULT; faults surface through CTRL/STAT.
const (
	ackWait = 0x1
	ackOK   = 0x2
)

// DP register offsets.
const (
	dpCtrlStat = 0x4
	dpSelect   = 0x8
	dpRDBuff   = 0xC
)

// CTRL/STAT power-up request and acknowledge bits.
const (
	ctrlCDbgPwrUpReq = 1 << 28
	ctrlCDbgPwrUpAck = 1 << 29
	ctrlCSysPwrUpReq = 1 << 30
	ctrlCSysPwrUpAck = 1 << 31
)

// waitRetries bounds WAIT polling on housekeeping scans. DCC data reads have
// their own empty-result handling and never use this path.
const waitRetries = 64

// ErrNoData reports that a pipelined read had no payload available yet. It is
// an expected outcome, not a transport failure.
var ErrNoData = errors.New("adi: no data available")

// DP is a JTAG debug port bound to one TAP of a chain.
type DP struct {
	chain *taps.Chain

	instr     byte
	instrOK   bool
	selectReg uint32
	selectOK  bool
}

// NewDP wraps the chain's selected TAP. The caller must have selected the
// ARM debug TAP already.
func NewDP(chain *taps.Chain) *DP {
	return &DP{chain: chain}
}

// scan performs one 35-bit DPACC/APACC scan: RnW, A[3:2], 32-bit payload out;
// ACK and the previous transaction's payload back.
func (d *DP) scan(instr byte, reg uint8, rnw bool, value uint32) (uint8, uint32, error) {
	if err := d.loadInstr(instr); err != nil {
		return 0, 0, err
	}

	tdi := make([]bool, 35)
	tdi[0] = rnw
	tdi[1] = reg&0x4 != 0 // A[2]
	tdi[2] = reg&0x8 != 0 // A[3]
	for i := 0; i < 32; i++ {
		tdi[3+i] = value&(1<<i) != 0
	}

	tdo, err := d.chain.ScanDR(tdi)
	if err != nil {
		return 0, 0, fmt.Errorf("adi: scan: %w", err)
	}

	ack := uint8(0)
	for i := 0; i < 3; i++ {
		if tdo[i] {
			ack |= 1 << i
		}
	}
	return ack, taps.BitsToUint32(tdo[3:]), nil
}

// scanRetry repeats a scan while the previous transaction reports WAIT.
func (d *DP) scanRetry(instr byte, reg uint8, rnw bool, value uint32) (uint32, error) {
	for attempt := 0; attempt < waitRetries; attempt++ {
		ack, data, err := d.scan(instr, reg, rnw, value)
		if err != nil {
			return 0, err
		}
		if ack != ackWait {
			return data, nil
		}
	}
	return 0, fmt.Errorf("adi: target stuck in WAIT after %d attempts", waitRetries)
}

func (d *DP) loadInstr(instr byte) error {
	if d.instrOK && d.instr == instr {
		return nil
	}
	if err := d.chain.Instruction([]byte{instr}); err != nil {
		return err
	}
	d.instr = instr
	d.instrOK = true
	return nil
}

// ReadDP reads a debug port register.
func (d *DP) ReadDP(reg uint8) (uint32, error) {
	if _, err := d.scanRetry(InstrDPACC, reg, true, 0); err != nil {
		return 0, err
	}
	return d.scanRetry(InstrDPACC, dpRDBuff, true, 0)
}

// WriteDP writes a debug port register.
func (d *DP) WriteDP(reg uint8, value uint32) error {
	_, err := d.scanRetry(InstrDPACC, reg, false, value)
	return err
}

// PowerUp requests debug and system power in CTRL/STAT and waits for both
// acknowledge bits.
func (d *DP) PowerUp() error {
	const want = uint32(ctrlCDbgPwrUpReq | ctrlCDbgPwrUpAck | ctrlCSysPwrUpReq | ctrlCSysPwrUpAck)

	for attempt := 0; attempt < waitRetries; attempt++ {
		stat, err := d.ReadDP(dpCtrlStat)
		if err != nil {
			return fmt.Errorf("adi: read CTRL/STAT: %w", err)
		}
		if stat&want == want {
			return nil
		}
		if err := d.WriteDP(dpCtrlStat, stat|ctrlCDbgPwrUpReq|ctrlCSysPwrUpReq); err != nil {
			return fmt.Errorf("adi: write CTRL/STAT: %w", err)
		}
	}
	return errors.New("adi: debug power-up not acknowledged")
}

// selectAP caches the SELECT register the way every DP client does: APSEL in
// [31:24], APBANKSEL in [7:4].
func (d *DP) selectAP(apNum uint8, reg uint8) error {
	bank := uint32(reg) & 0xF0
	sel := uint32(apNum)<<24 | bank
	if d.selectOK && d.selectReg == sel {
		return nil
	}
	if err := d.WriteDP(dpSelect, sel); err != nil {
		return err
	}
	d.selectReg = sel
	d.selectOK = true
	return nil
}

// readAP reads an access port register, retiring through RDBUFF.
func (d *DP) readAP(apNum uint8, reg uint8) (uint32, error) {
	if err := d.selectAP(apNum, reg); err != nil {
		return 0, err
	}
	if _, err := d.scanRetry(InstrAPACC, reg&0xC, true, 0); err != nil {
		return 0, err
	}
	return d.scanRetry(InstrDPACC, dpRDBuff, true, 0)
}

// writeAP writes an access port register.
func (d *DP) writeAP(apNum uint8, reg uint8, value uint32) error {
	if err := d.selectAP(apNum, reg); err != nil {
		return err
	}
	_, err := d.scanRetry(InstrAPACC, reg&0xC, false, value)
	return err
}

// apScan issues one raw APACC read scan without WAIT retry, returning the ACK
// and previous payload. Used by the pipelined MemAP read path.
func (d *DP) apScan(apNum uint8, reg uint8) (uint8, uint32, error) {
	if err := d.selectAP(apNum, reg); err != nil {
		return 0, 0, err
	}
	return d.scan(InstrAPACC, reg&0xC, true, 0)
}

// rdBuffScan issues one raw RDBUFF read scan without WAIT retry.
func (d *DP) rdBuffScan() (uint8, uint32, error) {
	return d.scan(InstrDPACC, dpRDBuff, true, 0)
}
