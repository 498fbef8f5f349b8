// Package dcc captures the Debug Communications Channel of an ARM core: the
// bring-up sequence that makes the DCC readable, pipelined batch reads of the
// data register, and the classification loop that turns polled words into a
// timestamped trace.
package dcc

// Debug register offsets from the core debug base address.
const (
	regDSCR   = 0x88  // Debug Status and Control Register
	regDTRTX  = 0x8C  // DCC data register, target-to-host
	regOSLAR  = 0x300 // OS Lock Access Register
	regEDPRSR = 0x314 // powerdown/reset status
)

// DSCR bit 20 enables stall mode: a read of an empty DTRTX holds instead of
// returning an undefined word.
const dscrStallMode = 1 << 20

// edprsrPoweredUp is EDPRSR bit 0: the core's debug logic has power.
const edprsrPoweredUp = 1 << 0

// Port is the slice of the MemAP surface the capture core drives. Exactly one
// Port is owned per session; no method may be called concurrently.
type Port interface {
	Read(addr uint32) (uint32, error)
	Write(addr, value uint32) error
	QueueRead(addr uint32) (bool, error)
	FinishRead() (uint32, error)
	ReadMulti(addr uint32, count int) ([]uint32, error)
}
