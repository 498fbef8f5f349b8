package dcc

import (
	"fmt"
	"io"

	"github.com/go-faster/jx"
)

// Emitter receives captured records and statistics snapshots. Records carry
// the elapsed microseconds since loop start and the raw 32-bit payload.
type Emitter interface {
	Record(us int64, value uint32) error
	Snapshot(snap Snapshot) error
}

// TextEmitter writes the classic line format: records to Out as
// "<microseconds>: <hex value>", snapshots to Err as "STATS: ..." lines.
type TextEmitter struct {
	Out io.Writer
	Err io.Writer
}

func (e *TextEmitter) Record(us int64, value uint32) error {
	_, err := fmt.Fprintf(e.Out, "%d: %x\n", us, value)
	return err
}

func (e *TextEmitter) Snapshot(snap Snapshot) error {
	var err error
	if snap.Throughput {
		_, err = fmt.Fprintf(e.Err, "STATS: total: %d duplicate: %d kbps: %d\n",
			snap.Total, snap.Duplicates, snap.Kbps)
	} else {
		_, err = fmt.Fprintf(e.Err, "STATS: total: %d duplicate: %d empty: %d\n",
			snap.Total, snap.Duplicates, snap.Empty)
	}
	return err
}

// JSONEmitter writes one JSON object per line, records and snapshots alike,
// for consumption by trace post-processing tools.
type JSONEmitter struct {
	Out io.Writer

	enc jx.Encoder
}

func (e *JSONEmitter) Record(us int64, value uint32) error {
	e.enc.Reset()
	e.enc.Obj(func(enc *jx.Encoder) {
		enc.Field("us", func(enc *jx.Encoder) { enc.Int64(us) })
		enc.Field("value", func(enc *jx.Encoder) { enc.UInt32(value) })
	})
	return e.writeLine()
}

func (e *JSONEmitter) Snapshot(snap Snapshot) error {
	e.enc.Reset()
	e.enc.Obj(func(enc *jx.Encoder) {
		enc.Field("stats", func(enc *jx.Encoder) {
			enc.Obj(func(enc *jx.Encoder) {
				enc.Field("total", func(enc *jx.Encoder) { enc.UInt64(snap.Total) })
				enc.Field("duplicate", func(enc *jx.Encoder) { enc.UInt64(snap.Duplicates) })
				if snap.Throughput {
					enc.Field("kbps", func(enc *jx.Encoder) { enc.UInt64(snap.Kbps) })
				} else {
					enc.Field("empty", func(enc *jx.Encoder) { enc.UInt64(snap.Empty) })
				}
			})
		})
	})
	return e.writeLine()
}

func (e *JSONEmitter) writeLine() error {
	if _, err := e.Out.Write(e.enc.Bytes()); err != nil {
		return err
	}
	_, err := io.WriteString(e.Out, "\n")
	return err
}
