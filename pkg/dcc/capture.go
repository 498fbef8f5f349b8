package dcc

import (
	"context"
	"fmt"
	"time"
)

// statsInterval is how many processed outcomes separate periodic snapshots.
const statsInterval = 100

// Stats are the running counters of a capture session. They are monotonic for
// the lifetime of the loop.
type Stats struct {
	Total      uint64
	Duplicates uint64
	Empty      uint64
}

// Snapshot is one statistics emission.
type Snapshot struct {
	Stats
	Kbps       uint64
	Throughput bool // report Kbps instead of Empty
}

// Kbps estimates throughput as (total * 32 bits) * 1024 divided by the
// elapsed microseconds.
func (s Stats) Kbps(elapsed time.Duration) uint64 {
	us := uint64(elapsed.Microseconds())
	if us == 0 {
		return 0
	}
	return s.Total * 32 * 1024 / us
}

// Config selects the capture loop behavior.
type Config struct {
	// SuppressDups drops emission of values equal to the previous one. The
	// comparison state still updates, so a whole run of equal values
	// collapses to its first element.
	SuppressDups bool
	// Stats enables periodic and final snapshots.
	Stats bool
	// Throughput switches snapshots from empty counts to a kbps estimate.
	Throughput bool
}

// Capture is the steady-state loop driving a read strategy and classifying
// every polled outcome.
type Capture struct {
	strategy ReadStrategy
	emitter  Emitter
	cfg      Config

	stats Stats
	last  uint32
	start time.Time
}

// NewCapture wires a strategy to an emitter.
func NewCapture(strategy ReadStrategy, emitter Emitter, cfg Config) *Capture {
	return &Capture{strategy: strategy, emitter: emitter, cfg: cfg}
}

// Stats returns the counters accumulated so far.
func (c *Capture) Stats() Stats {
	return c.stats
}

// Run polls batches until ctx is cancelled. Cancellation is only observed
// between whole batches so no queued read is left unread. A strategy error is
// fatal and returned as-is; cancellation returns nil after the final
// snapshot.
func (c *Capture) Run(ctx context.Context) error {
	c.start = time.Now()
	c.last = 0

	for {
		select {
		case <-ctx.Done():
			if c.cfg.Stats {
				if err := c.snapshot(); err != nil {
					return err
				}
			}
			return nil
		default:
		}

		batch, err := c.strategy.ReadBatch()
		if err != nil {
			return err
		}
		for _, outcome := range batch {
			if err := c.process(outcome); err != nil {
				return fmt.Errorf("dcc: emit: %w", err)
			}
		}
	}
}

func (c *Capture) process(o Outcome) error {
	c.stats.Total++

	if o.Empty {
		c.stats.Empty++
	} else {
		dup := o.Value == c.last
		if dup {
			c.stats.Duplicates++
		}
		c.last = o.Value
		if !dup || !c.cfg.SuppressDups {
			us := time.Since(c.start).Microseconds()
			if err := c.emitter.Record(us, o.Value); err != nil {
				return err
			}
		}
	}

	if c.cfg.Stats && c.stats.Total%statsInterval == 0 {
		return c.snapshot()
	}
	return nil
}

func (c *Capture) snapshot() error {
	snap := Snapshot{
		Stats:      c.stats,
		Throughput: c.cfg.Throughput,
	}
	if c.cfg.Throughput {
		snap.Kbps = c.stats.Kbps(time.Since(c.start))
	}
	return c.emitter.Snapshot(snap)
}
