// Package replay drives a sequence of frame.Frame values out over a
// line-driving io.Writer (typically a serial.Port talking to the same
// microcontroller capture's wire format decodes), the inverse of the
// capture package and the encode-side counterpart of huskki's
// drivers.Replayer.
package replay

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"flexray/capture"
	"flexray/frame"
	"flexray/framebuilder"
	"flexray/signal"
)

// Writer encodes signal.Edge values into capture's wire format and writes
// them to w.
type Writer struct {
	w io.Writer
}

// NewWriter wraps w as a Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEdge emits one edge record. lastSample is the previous edge's
// sample index (0 for the first edge), used to compute the wire's delta
// encoding; callers driving a sequence of edges must track it themselves,
// mirroring how capture.Source reconstructs it on the read side.
func (wr *Writer) WriteEdge(edge signal.Edge, lastSample uint64, first bool) error {
	delta := uint32(0)
	if !first {
		delta = uint32(edge.Sample - lastSample)
	}
	body := make([]byte, 5)
	binary.LittleEndian.PutUint32(body[0:4], delta)
	// Non-inverted wire levels: physical high is recessive, matching the
	// mapping capture.Source applies under signal.Polarity{}.
	if edge.Level == signal.Recessive {
		body[4] = 1
	}
	crc := capture.CRC8(body)
	rec := []byte{0xAA, 0x55}
	rec = append(rec, body...)
	rec = append(rec, crc)
	if _, err := wr.w.Write(rec); err != nil {
		return fmt.Errorf("replay: write edge: %w", err)
	}
	return nil
}

// WriteEdges emits a full edge sequence in order.
func (wr *Writer) WriteEdges(edges []signal.Edge) error {
	var last uint64
	for i, e := range edges {
		if err := wr.WriteEdge(e, last, i == 0); err != nil {
			return err
		}
		last = e.Sample
	}
	return nil
}

// Player drives a sequence of frames out over a Writer, spacing them in
// real time the way drivers.Replayer paces DID frames by their recorded
// timestamp, scaled by Speed (0 means "as fast as possible").
type Player struct {
	Writer        *Writer
	SamplesPerBit uint64
	Speed         float64
	Loop          bool
	IdleBits      uint64
}

// Play builds and writes frames in order, one TSS-to-FES bitstream per
// frame with Player.IdleBits of recessive idle inserted between them, at
// the pace Player.Speed dictates. It returns the first encode or write
// error encountered.
func (p *Player) Play(frames []*frame.Frame) error {
	builder := framebuilder.New()
	bitPeriod := time.Duration(0)
	if p.SamplesPerBit > 0 && p.Speed > 0 {
		bitPeriod = time.Duration(float64(time.Second) / float64(p.Speed))
	}

	// sample, last and first carry across frames (and loops) so every
	// frame's edges continue one delta-encoded timeline.
	var sample, last uint64
	first := true
	for {
		for _, f := range frames {
			bits, err := builder.Build(f)
			if err != nil {
				return fmt.Errorf("replay: build frame %d: %w", f.FrameID, err)
			}
			if p.IdleBits > 0 {
				idle := make([]signal.Level, p.IdleBits)
				for i := range idle {
					idle[i] = signal.Recessive
				}
				bits = append(idle, bits...)
			}
			edges := framebuilder.ToEdges(bits, p.SamplesPerBit, sample)
			for _, e := range edges {
				if err := p.Writer.WriteEdge(e, last, first); err != nil {
					return err
				}
				last, first = e.Sample, false
			}
			sample += uint64(len(bits)) * p.SamplesPerBit
			if bitPeriod > 0 {
				time.Sleep(bitPeriod * time.Duration(len(bits)))
			}
		}
		if !p.Loop {
			break
		}
	}
	return nil
}

// NewSerialWriter opens portName (or auto-selects a device) and returns a
// Writer over it, for callers driving a Player against real hardware
// instead of a file or in-memory buffer.
func NewSerialWriter(portName string, baud int) (*Writer, error) {
	port, err := capture.Open(portName, baud)
	if err != nil {
		return nil, err
	}
	return NewWriter(port), nil
}
