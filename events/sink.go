package events

import (
	"flexray/frame"
	"flexray/resultsink"
)

// Sink wraps a resultsink.Sink and broadcasts every record it sees onto a
// Hub as well, tagging each with a packet ID from Sink's own sequence (the
// value its CommitPacket returns), which counts cancelled packets as well
// as committed ones and so can differ from the wrapped sink's IDs.
// Records are broadcast as soon as they're committed to the in-progress
// packet, ahead of CommitPacket/CancelPacket, since a live dashboard
// benefits from seeing fields as they decode rather than only after a
// frame closes cleanly — PacketID lets a subscriber discard a packet's
// records if CancelPacket corresponds to it later. CancelPacket advances
// nextPID exactly like CommitPacket does, so the next packet never reuses
// a cancelled packet's ID and a subscriber accumulating by PacketID never
// merges a new frame's records into an abandoned one's leftovers.
type Sink struct {
	inner   resultsink.Sink
	hub     *Hub
	nextPID int
}

var _ resultsink.Sink = (*Sink)(nil)

// Wrap returns a Sink broadcasting to hub around inner.
func Wrap(inner resultsink.Sink, hub *Hub) *Sink {
	return &Sink{inner: inner, hub: hub}
}

func (s *Sink) OpenPacket() { s.inner.OpenPacket() }

func (s *Sink) Commit(record frame.FieldRecord) {
	s.inner.Commit(record)
	s.hub.Broadcast(Record{
		PacketID:    s.nextPID,
		Kind:        record.Kind.String(),
		Data1:       record.Data1,
		Data2:       record.Data2,
		Flags:       uint8(record.Flags),
		StartSample: record.StartSample,
		EndSample:   record.EndSample,
	})
}

func (s *Sink) CommitPacket() int {
	s.inner.CommitPacket()
	id := s.nextPID
	s.nextPID++
	return id
}

func (s *Sink) CancelPacket() {
	s.inner.CancelPacket()
	s.nextPID++
}
