// Package flexerr holds the fixed error taxonomy of the link-layer core.
//
// Non-fatal conditions (SyncError's siblings CrcError and ProtocolError)
// never surface as Go errors — they are flags on a frame.FieldRecord and
// are defined in that package instead. This package holds the three
// conditions that do unwind a call: SyncError itself (ErrSync, non-fatal
// to the pipeline), its fatal cousin InvariantViolation, and InvalidFrame
// from the encode path.
package flexerr

import "errors"

// ErrInvalidFrame is returned by the encode path when a Frame value
// violates a field constraint (frame_id range, payload length, cycle
// count range). Fatal to the one encode call.
var ErrInvalidFrame = errors.New("flexray: invalid frame")

// ErrInvariantViolation is returned when a caller violates a contract the
// core depends on to operate correctly: edges delivered out of sample-index
// order, or a bit index read past the end of a buffer. Fatal: the
// component that detects it stops and reports to the host.
var ErrInvariantViolation = errors.New("flexray: invariant violation")

// ErrSync is returned by the sampler/parser when a BSS, TSS, or FES pattern
// is violated on the wire. Non-fatal to the pipeline as a whole: the
// current frame is abandoned and the sampler returns to idle hunt, but the
// call that detected it returns this error so the caller can log/count it.
var ErrSync = errors.New("flexray: sync pattern violated")
