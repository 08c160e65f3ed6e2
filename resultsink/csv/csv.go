// Package csv is the reference CSV export Sink named in SPEC_FULL.md §4:
// spec.md treats export sinks as external collaborators that merely
// format records the core hands them. encoding/csv is plain stdlib here
// because no example in the retrieval pack reaches for a third-party CSV
// or table-formatting library; this is the one ambient concern in this
// repo with no grounding library to adopt.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"

	"flexray/frame"
	"flexray/resultsink"
)

// Sink writes committed FieldRecords to an io.Writer as CSV, one row per
// record, flushing only on CommitPacket so a cancelled packet never
// reaches the underlying writer.
type Sink struct {
	w       *csv.Writer
	pending [][]string
	open    bool
	nextID  int
}

var _ resultsink.Sink = (*Sink)(nil)

// New wraps w in a buffering CSV Sink and writes the header row.
func New(w io.Writer) *Sink {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"kind", "data1", "data2", "flags", "start_sample", "end_sample"})
	return &Sink{w: cw}
}

func (s *Sink) OpenPacket() {
	s.open = true
	s.pending = s.pending[:0]
}

func (s *Sink) Commit(r frame.FieldRecord) {
	row := []string{
		r.Kind.String(),
		fmt.Sprintf("%d", r.Data1),
		fmt.Sprintf("%d", r.Data2),
		fmt.Sprintf("%d", r.Flags),
		fmt.Sprintf("%d", r.StartSample),
		fmt.Sprintf("%d", r.EndSample),
	}
	s.pending = append(s.pending, row)
}

func (s *Sink) CommitPacket() int {
	for _, row := range s.pending {
		_ = s.w.Write(row)
	}
	s.w.Flush()
	s.pending = nil
	s.open = false
	id := s.nextID
	s.nextID++
	return id
}

func (s *Sink) CancelPacket() {
	s.pending = nil
	s.open = false
}
