package adi

import (
	"github.com/OpenTraceLab/dcctrace/pkg/jtag"
	"github.com/OpenTraceLab/dcctrace/pkg/tap"
	"github.com/OpenTraceLab/dcctrace/pkg/taps"
)

// SimTarget emulates a single ARM debug TAP behind a jtag.SimAdapter. It
// clocks a full 16-state TAP controller per TMS bit, answers IDCODE scans,
// and implements the DPACC/APACC response pipeline: each scan captures the
// result of the previous transaction. Behind the access port sits a flat
// 32-bit register file plus an optional read FIFO that models a DCC data
// register, where a read of an empty FIFO answers WAIT.
type SimTarget struct {
	IDCode uint32
	APIDR  uint32

	// Mem backs DRW accesses by TAR address. Reads at FIFOAddr (when nonzero)
	// pop the FIFO instead.
	Mem      map[uint32]uint32
	FIFOAddr uint32

	adapter *jtag.SimAdapter
	sm      *tap.Machine

	ir      byte
	irShift byte
	dr      []bool

	resp simResponse

	ctrlStat uint32
	sel      uint32
	csw      uint32
	tar      uint32
	rdbuff   uint32
	fifo     []uint32
}

// simResponse is the pending DPACC/APACC result, loaded into the scan
// register at the next Capture-DR.
type simResponse struct {
	ack  uint8
	data uint32
}

// NewSimTarget builds a target that identifies as an ARM JTAG debug port.
func NewSimTarget() *SimTarget {
	t := &SimTarget{
		IDCode: IDCodeARMDP,
		APIDR:  0x24770011,
		Mem:    make(map[uint32]uint32),
		sm:     tap.NewMachine(),
		ir:     InstrIDCode,
		resp:   simResponse{ack: ackOK},
	}
	t.adapter = jtag.NewSimAdapter(jtag.AdapterInfo{
		Name:   "ARM Debug Target Simulator",
		Vendor: "OpenTraceLab",
	})
	t.adapter.OnShift = t.handleShift
	return t
}

// Adapter returns the underlying SimAdapter for use with JTAG operations.
func (t *SimTarget) Adapter() *jtag.SimAdapter {
	return t.adapter
}

// PushFIFO appends words for DRW reads at FIFOAddr to return.
func (t *SimTarget) PushFIFO(values ...uint32) {
	t.fifo = append(t.fifo, values...)
}

// FIFOLen reports how many pushed words have not been read yet.
func (t *SimTarget) FIFOLen() int {
	return len(t.fifo)
}

// handleShift clocks the TAP once per TMS bit and shifts the active register
// while in a Shift state.
func (t *SimTarget) handleShift(_ jtag.ShiftRegion, tms, tdi []byte, bits int) ([]byte, error) {
	tdo := make([]byte, (bits+7)/8)
	for i := 0; i < bits; i++ {
		tmsBit := tms[i/8]&(1<<(i%8)) != 0
		tdiBit := len(tdi) > 0 && tdi[i/8]&(1<<(i%8)) != 0

		switch t.sm.State() {
		case tap.ShiftDR:
			if len(t.dr) > 0 {
				if t.dr[0] {
					tdo[i/8] |= 1 << (i % 8)
				}
				copy(t.dr, t.dr[1:])
				t.dr[len(t.dr)-1] = tdiBit
			}
		case tap.ShiftIR:
			if t.irShift&1 != 0 {
				tdo[i/8] |= 1 << (i % 8)
			}
			t.irShift >>= 1
			if tdiBit {
				t.irShift |= 1 << 3
			}
		}

		switch t.sm.Clock(tmsBit) {
		case tap.TestLogicReset:
			t.ir = InstrIDCode
		case tap.CaptureIR:
			t.irShift = t.ir
		case tap.UpdateIR:
			t.ir = t.irShift & 0xF
		case tap.CaptureDR:
			t.captureDR()
		case tap.UpdateDR:
			t.updateDR()
		}
	}
	return tdo, nil
}

// captureDR loads the data register selected by the current instruction.
func (t *SimTarget) captureDR() {
	switch t.ir {
	case InstrIDCode:
		t.dr = taps.Uint32ToBits(t.IDCode, 32)
	case InstrDPACC, InstrAPACC, InstrAbort:
		dr := make([]bool, 35)
		for i := 0; i < 3; i++ {
			dr[i] = t.resp.ack&(1<<i) != 0
		}
		copy(dr[3:], taps.Uint32ToBits(t.resp.data, 32))
		t.dr = dr
	default:
		// BYPASS and unknown instructions select a single-bit register.
		t.dr = make([]bool, 1)
	}
}

// updateDR latches the shifted-in request and executes it. The result becomes
// the response captured by the next scan.
func (t *SimTarget) updateDR() {
	switch t.ir {
	case InstrDPACC, InstrAPACC:
	default:
		return
	}
	if len(t.dr) != 35 {
		return
	}

	rnw := t.dr[0]
	var reg uint8
	if t.dr[1] {
		reg |= 0x4
	}
	if t.dr[2] {
		reg |= 0x8
	}
	data := taps.BitsToUint32(t.dr[3:])

	if t.ir == InstrDPACC {
		t.resp = t.accessDP(rnw, reg, data)
	} else {
		t.resp = t.accessAP(rnw, reg, data)
	}
}

func (t *SimTarget) accessDP(rnw bool, reg uint8, data uint32) simResponse {
	if rnw {
		switch reg {
		case dpCtrlStat:
			return simResponse{ack: ackOK, data: t.ctrlStat}
		case dpSelect:
			return simResponse{ack: ackOK, data: t.sel}
		case dpRDBuff:
			return simResponse{ack: ackOK, data: t.rdbuff}
		}
		return simResponse{ack: ackOK}
	}

	switch reg {
	case dpCtrlStat:
		// Power-up acknowledge follows the request bits immediately.
		v := data &^ uint32(ctrlCDbgPwrUpAck|ctrlCSysPwrUpAck)
		if v&ctrlCDbgPwrUpReq != 0 {
			v |= ctrlCDbgPwrUpAck
		}
		if v&ctrlCSysPwrUpReq != 0 {
			v |= ctrlCSysPwrUpAck
		}
		t.ctrlStat = v
	case dpSelect:
		t.sel = data
	}
	return simResponse{ack: ackOK}
}

func (t *SimTarget) accessAP(rnw bool, reg uint8, data uint32) simResponse {
	addr := uint8(t.sel&0xF0) | reg
	if rnw {
		r := t.readAPReg(addr)
		if r.ack == ackOK {
			t.rdbuff = r.data
		}
		return r
	}

	switch addr {
	case apCSW:
		t.csw = data
	case apTAR:
		t.tar = data
	case apDRW:
		t.Mem[t.tar] = data
	}
	return simResponse{ack: ackOK}
}

func (t *SimTarget) readAPReg(addr uint8) simResponse {
	switch addr {
	case apCSW:
		return simResponse{ack: ackOK, data: t.csw}
	case apTAR:
		return simResponse{ack: ackOK, data: t.tar}
	case apDRW:
		if t.FIFOAddr != 0 && t.tar == t.FIFOAddr {
			if len(t.fifo) == 0 {
				return simResponse{ack: ackWait}
			}
			v := t.fifo[0]
			t.fifo = t.fifo[1:]
			return simResponse{ack: ackOK, data: v}
		}
		return simResponse{ack: ackOK, data: t.Mem[t.tar]}
	case apIDR:
		return simResponse{ack: ackOK, data: t.APIDR}
	}
	return simResponse{ack: ackOK}
}
