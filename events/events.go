// Package events fans a live decode stream out to any number of
// subscribers — the web dashboard's SSE handler, a CLI tail, a metrics
// collector — without any of them blocking the decoder.
package events

import "sync"

// Record is a FieldRecord plus the packet it belongs to, broadcast to
// every subscriber as the parser commits it. PacketID matches the value
// resultsink.Sink.CommitPacket returns, letting subscribers group
// records back into frames after the fact.
type Record struct {
	PacketID    int
	Kind        string
	Data1       uint64
	Data2       uint64
	Flags       uint8
	StartSample uint64
	EndSample   uint64
}

// Hub fans out Records to any number of subscribers. A slow or absent
// subscriber never blocks the decoder: Broadcast drops a record for a
// subscriber whose buffer is full rather than waiting.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Record
	next int
	last *Record
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: map[int]chan Record{}}
}

// Subscribe registers a new listener and returns its channel and a cancel
// function that unregisters it. The most recently broadcast Record, if
// any, is replayed to the new subscriber immediately so a dashboard
// opened mid-capture isn't blank until the next record arrives.
func (h *Hub) Subscribe() (int, <-chan Record, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan Record, 64)
	if h.last != nil {
		ch <- *h.last
	}
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			close(c)
			delete(h.subs, id)
		}
	}
	return id, ch, cancel
}

// Broadcast sends record to every current subscriber.
func (h *Hub) Broadcast(record Record) {
	h.mu.Lock()
	h.last = &record
	for _, ch := range h.subs {
		select {
		case ch <- record:
		default:
		}
	}
	h.mu.Unlock()
}
