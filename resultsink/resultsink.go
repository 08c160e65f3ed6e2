// Package resultsink defines the ResultSink interface of §4.6 and a
// reference in-memory implementation with full packet grouping and
// cancellation semantics.
package resultsink

import "flexray/frame"

// Sink is the capability set FrameParser needs from a result consumer.
// Implementations own durability, display, or export; the core only
// guarantees ordering and that a committed record is final.
//
// Usage: the parser calls OpenPacket at TSS, Commit for every field of the
// frame in progress, then either CommitPacket on a clean FES or
// CancelPacket on abandonment (BSS violation, idle, or an explicit
// host-driven cancel).
type Sink interface {
	OpenPacket()
	Commit(record frame.FieldRecord)
	CommitPacket() (packetID int)
	CancelPacket()
}

// MemorySink is the reference Sink: it buffers the in-progress packet
// separately from committed history so CancelPacket can drop it without
// ever having let a partial record reach Records().
type MemorySink struct {
	records []frame.FieldRecord
	pending []frame.FieldRecord
	open    bool
	nextID  int
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) OpenPacket() {
	s.open = true
	s.pending = s.pending[:0]
}

func (s *MemorySink) Commit(record frame.FieldRecord) {
	if !s.open {
		// A sink-level protocol error by the caller; buffer it with the
		// pending records rather than panicking (it reaches Records() only
		// if CommitPacket runs before the next OpenPacket, which drops
		// it), since the core's
		// invariant (§3) is the caller's responsibility to uphold, not
		// this reference sink's to enforce.
		s.pending = append(s.pending, record)
		return
	}
	s.pending = append(s.pending, record)
}

func (s *MemorySink) CommitPacket() int {
	s.records = append(s.records, s.pending...)
	s.pending = nil
	s.open = false
	id := s.nextID
	s.nextID++
	return id
}

func (s *MemorySink) CancelPacket() {
	s.pending = nil
	s.open = false
}

// Records returns every record committed so far, in delivery order.
func (s *MemorySink) Records() []frame.FieldRecord {
	return s.records
}
