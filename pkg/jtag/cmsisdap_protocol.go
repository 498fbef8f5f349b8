package jtag

import (
	"encoding/binary"
	"fmt"
)

// CMSIS-DAP command IDs used by this backend.
const (
	cmdInfo        = 0x00
	cmdConnect     = 0x02
	cmdDisconnect  = 0x03
	cmdResetTarget = 0x0A
	cmdSWJClock    = 0x11
	cmdJTAGSeq     = 0x14
)

// DAP_Info IDs.
const (
	infoVendorID    = 0x01
	infoProductID   = 0x02
	infoSerialNum   = 0x03
	infoFirmwareVer = 0x04
	infoPacketCount = 0xFE
	infoPacketSize  = 0xFF
)

const (
	portJTAG = 2

	statusOK = 0x00
)

// Sequence info byte layout for DAP_JTAG_Sequence.
const (
	seqTCKMask = 0x3F // bits [5:0], 0 means 64
	seqTMS     = 0x40
	seqTDO     = 0x80
)

// dapSequence is one DAP_JTAG_Sequence entry: a run of TCK cycles with a
// fixed TMS level.
type dapSequence struct {
	info byte
	tdi  []byte
}

func newDAPSequence(tckCount int, tms, captureTDO bool, tdi []byte) dapSequence {
	info := byte(tckCount & seqTCKMask)
	if tms {
		info |= seqTMS
	}
	if captureTDO {
		info |= seqTDO
	}
	return dapSequence{info: info, tdi: tdi}
}

func (s dapSequence) captureTDO() bool { return s.info&seqTDO != 0 }

func encodeInfo(id byte) []byte { return []byte{cmdInfo, id} }

func decodeInfoString(resp []byte) (string, error) {
	if len(resp) < 2 || resp[0] != cmdInfo {
		return "", fmt.Errorf("cmsisdap: bad DAP_Info response")
	}
	n := int(resp[1])
	if len(resp) < 2+n {
		return "", fmt.Errorf("cmsisdap: truncated DAP_Info string")
	}
	return string(resp[2 : 2+n]), nil
}

func decodeInfoByte(resp []byte) (byte, error) {
	if len(resp) < 3 || resp[0] != cmdInfo || resp[1] != 1 {
		return 0, fmt.Errorf("cmsisdap: bad DAP_Info byte response")
	}
	return resp[2], nil
}

func decodeInfoShort(resp []byte) (uint16, error) {
	if len(resp) < 4 || resp[0] != cmdInfo || resp[1] != 2 {
		return 0, fmt.Errorf("cmsisdap: bad DAP_Info short response")
	}
	return binary.LittleEndian.Uint16(resp[2:4]), nil
}

func encodeConnect(port byte) []byte { return []byte{cmdConnect, port} }

func decodeConnect(resp []byte) (byte, error) {
	if len(resp) < 2 || resp[0] != cmdConnect {
		return 0, fmt.Errorf("cmsisdap: bad DAP_Connect response")
	}
	if resp[1] == 0 {
		return 0, fmt.Errorf("cmsisdap: probe refused connection")
	}
	return resp[1], nil
}

func encodeDisconnect() []byte { return []byte{cmdDisconnect} }

func encodeResetTarget() []byte { return []byte{cmdResetTarget} }

func encodeSetClock(hz uint32) []byte {
	cmd := make([]byte, 5)
	cmd[0] = cmdSWJClock
	binary.LittleEndian.PutUint32(cmd[1:], hz)
	return cmd
}

// decodeStatus checks the single status byte responses shared by several
// commands.
func decodeStatus(resp []byte, cmd byte) error {
	if len(resp) < 2 || resp[0] != cmd {
		return fmt.Errorf("cmsisdap: bad response for command 0x%02X", cmd)
	}
	if resp[1] != statusOK {
		return fmt.Errorf("cmsisdap: command 0x%02X failed (status 0x%02X)", cmd, resp[1])
	}
	return nil
}

func encodeJTAGSequences(seqs []dapSequence) []byte {
	size := 2
	for _, s := range seqs {
		size += 1 + len(s.tdi)
	}
	cmd := make([]byte, 2, size)
	cmd[0] = cmdJTAGSeq
	cmd[1] = byte(len(seqs))
	for _, s := range seqs {
		cmd = append(cmd, s.info)
		cmd = append(cmd, s.tdi...)
	}
	return cmd
}

// decodeJTAGSequences returns one TDO buffer per sequence that requested
// capture, in order.
func decodeJTAGSequences(resp []byte, seqs []dapSequence) ([][]byte, error) {
	if err := decodeStatus(resp, cmdJTAGSeq); err != nil {
		return nil, err
	}
	var out [][]byte
	offset := 2
	for _, s := range seqs {
		if !s.captureTDO() {
			continue
		}
		n := len(s.tdi)
		if offset+n > len(resp) {
			return nil, fmt.Errorf("cmsisdap: truncated TDO data")
		}
		out = append(out, append([]byte(nil), resp[offset:offset+n]...))
		offset += n
	}
	return out, nil
}
