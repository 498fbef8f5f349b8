package dcc

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/OpenTraceLab/dcctrace/pkg/adi"
)

// Outcome is one polled result in issue order: a payload word or an empty
// marker when no data was available at poll time.
type Outcome struct {
	Value uint32
	Empty bool
}

// ReadStrategy fetches one ordered batch of outcomes from the DCC data
// register. Implementations may permanently shrink their batch size; they
// never grow it.
type ReadStrategy interface {
	ReadBatch() ([]Outcome, error)
	Depth() int
}

// QueuedStrategy pipelines explicit queue/finish reads. A rejected queue
// request mid-batch shrinks the depth for the rest of the run.
type QueuedStrategy struct {
	port  Port
	addr  uint32
	depth int
}

// NewQueuedStrategy builds a queue/finish strategy polling the DCC data
// register at base.
func NewQueuedStrategy(port Port, base uint32, depth int) (*QueuedStrategy, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("dcc: queue depth must be positive, got %d", depth)
	}
	return &QueuedStrategy{port: port, addr: base + regDTRTX, depth: depth}, nil
}

func (s *QueuedStrategy) Depth() int {
	return s.depth
}

func (s *QueuedStrategy) ReadBatch() ([]Outcome, error) {
	accepted := 0
	for i := 0; i < s.depth; i++ {
		ok, err := s.port.QueueRead(s.addr)
		if err != nil {
			return nil, fmt.Errorf("dcc: queue DCC read: %w", err)
		}
		if !ok {
			if i == 0 {
				return nil, errors.New("dcc: transport rejected the first queued read")
			}
			logrus.Warnf("limiting queue size to %d", i)
			s.depth = i
			break
		}
		accepted++
	}

	out := make([]Outcome, 0, accepted)
	for i := 0; i < accepted; i++ {
		value, err := s.port.FinishRead()
		switch {
		case err == nil:
			out = append(out, Outcome{Value: value})
		case errors.Is(err, adi.ErrNoData):
			out = append(out, Outcome{Empty: true})
		default:
			return nil, fmt.Errorf("dcc: finish DCC read: %w", err)
		}
	}
	return out, nil
}

// BulkStrategy fetches each batch with one non-stalling multi-read; the
// transport returns however many words were actually available.
type BulkStrategy struct {
	port  Port
	addr  uint32
	depth int
}

// NewBulkStrategy builds a bulk multi-read strategy polling the DCC data
// register at base.
func NewBulkStrategy(port Port, base uint32, depth int) (*BulkStrategy, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("dcc: queue depth must be positive, got %d", depth)
	}
	return &BulkStrategy{port: port, addr: base + regDTRTX, depth: depth}, nil
}

func (s *BulkStrategy) Depth() int {
	return s.depth
}

func (s *BulkStrategy) ReadBatch() ([]Outcome, error) {
	values, err := s.port.ReadMulti(s.addr, s.depth)
	if err != nil {
		return nil, fmt.Errorf("dcc: bulk DCC read: %w", err)
	}
	out := make([]Outcome, len(values))
	for i, v := range values {
		out[i] = Outcome{Value: v}
	}
	return out, nil
}
