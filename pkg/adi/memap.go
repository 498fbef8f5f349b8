package adi

import (
	"errors"
	"fmt"
)

// MemAP register offsets.
const (
	apCSW = 0x00
	apTAR = 0x04
	apDRW = 0x0C
	apIDR = 0xFC
)

// CSW value for 32-bit accesses with no address increment: every DRW access
// hits the same word, which is what a polled data register needs.
const cswWord32NoIncr = 0x22000002

// defaultQueueCapacity applies when the adapter does not report one.
const defaultQueueCapacity = 64

// BatchCapacity is implemented by adapters that can report how many pipelined
// reads their transport can absorb before results must be drained.
type BatchCapacity interface {
	BatchCapacity() int
}

// MemAP is a memory access port handle bound to exactly one AP number. It is
// the sole owner of the debug port for a capture session; methods must not be
// called concurrently.
type MemAP struct {
	dp    *DP
	apNum uint8

	cswDone bool
	tar     uint32
	tarOK   bool

	queueCap    int
	retired     []result
	outstanding bool
}

type result struct {
	value uint32
	empty bool
}

// NewMemAP binds an access port number on the debug port. capacitySource may
// be the underlying adapter; if it reports a batch capacity, queued reads are
// rejected beyond it.
func NewMemAP(dp *DP, apNum uint8, capacitySource any) *MemAP {
	capacity := defaultQueueCapacity
	if bc, ok := capacitySource.(BatchCapacity); ok {
		if n := bc.BatchCapacity(); n > 0 {
			capacity = n
		}
	}
	return &MemAP{dp: dp, apNum: apNum, queueCap: capacity}
}

// APNum reports the bound access port number.
func (m *MemAP) APNum() uint8 {
	return m.apNum
}

// IDR reads the access port identification register.
func (m *MemAP) IDR() (uint32, error) {
	return m.dp.readAP(m.apNum, apIDR)
}

func (m *MemAP) ensureCSW() error {
	if m.cswDone {
		return nil
	}
	if err := m.dp.writeAP(m.apNum, apCSW, cswWord32NoIncr); err != nil {
		return fmt.Errorf("adi: program CSW: %w", err)
	}
	m.cswDone = true
	return nil
}

func (m *MemAP) setTAR(addr uint32) error {
	if m.tarOK && m.tar == addr {
		return nil
	}
	if err := m.dp.writeAP(m.apNum, apTAR, addr); err != nil {
		return fmt.Errorf("adi: write TAR: %w", err)
	}
	m.tar = addr
	m.tarOK = true
	return nil
}

// Read performs one blocking 32-bit read of a debug address.
func (m *MemAP) Read(addr uint32) (uint32, error) {
	if err := m.ensureCSW(); err != nil {
		return 0, err
	}
	if err := m.setTAR(addr); err != nil {
		return 0, err
	}
	return m.dp.readAP(m.apNum, apDRW)
}

// Write performs one 32-bit write to a debug address.
func (m *MemAP) Write(addr uint32, value uint32) error {
	if err := m.ensureCSW(); err != nil {
		return err
	}
	if err := m.setTAR(addr); err != nil {
		return err
	}
	return m.dp.writeAP(m.apNum, apDRW, value)
}

// inFlight counts queued reads whose results have not been finished yet.
func (m *MemAP) inFlight() int {
	n := len(m.retired)
	if m.outstanding {
		n++
	}
	return n
}

// QueueRead pipelines one read of addr. The boolean reports whether the
// transport accepted the request; false means the pipeline is at capacity and
// the caller should drain with FinishRead. Results come back in issue order.
func (m *MemAP) QueueRead(addr uint32) (bool, error) {
	if m.inFlight() >= m.queueCap {
		return false, nil
	}
	if err := m.ensureCSW(); err != nil {
		return false, err
	}
	if err := m.setTAR(addr); err != nil {
		return false, err
	}

	// Each APACC scan carries the response of the previous queued read: OK
	// retires its value, WAIT means no data was ready for it.
	ack, data, err := m.dp.apScan(m.apNum, apDRW)
	if err != nil {
		return false, err
	}
	if m.outstanding {
		m.retired = append(m.retired, result{value: data, empty: ack == ackWait})
	}
	m.outstanding = true
	return true, nil
}

// FinishRead returns the next queued result in issue order. ErrNoData marks a
// poll that found the data register empty; any other error is a transport
// failure.
func (m *MemAP) FinishRead() (uint32, error) {
	if len(m.retired) > 0 {
		r := m.retired[0]
		m.retired = m.retired[1:]
		if r.empty {
			return 0, ErrNoData
		}
		return r.value, nil
	}
	if !m.outstanding {
		return 0, errors.New("adi: FinishRead without a queued read")
	}

	// The last queued read retires through RDBUFF.
	ack, data, err := m.dp.rdBuffScan()
	if err != nil {
		return 0, err
	}
	m.outstanding = false
	if ack == ackWait {
		return 0, ErrNoData
	}
	return data, nil
}

// ReadMulti performs up to count non-stalling reads of addr and returns the
// values that were actually available, in order. It must not be interleaved
// with an unfinished queue.
func (m *MemAP) ReadMulti(addr uint32, count int) ([]uint32, error) {
	if m.inFlight() > 0 {
		return nil, errors.New("adi: ReadMulti with queued reads in flight")
	}
	if count <= 0 {
		return nil, nil
	}
	if err := m.ensureCSW(); err != nil {
		return nil, err
	}
	if err := m.setTAR(addr); err != nil {
		return nil, err
	}

	values := make([]uint32, 0, count)
	for i := 0; i < count; i++ {
		ack, data, err := m.dp.apScan(m.apNum, apDRW)
		if err != nil {
			return nil, err
		}
		if i > 0 && ack != ackWait {
			values = append(values, data)
		}
	}
	ack, data, err := m.dp.rdBuffScan()
	if err != nil {
		return nil, err
	}
	if ack != ackWait {
		values = append(values, data)
	}
	return values, nil
}
