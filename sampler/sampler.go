// Package sampler implements the edge-driven bit sampler of §4.1: it
// turns a timestamped sequence of signal transitions into mid-bit
// samples, locks onto TSS/FSS at the start of a frame, and resyncs on the
// BSS before every byte.
//
// Sampler operates on a finite, already-ordered buffer of edges rather
// than a live channel; §5's single-producer/single-consumer, pull-based
// model is realized by the caller: the cmd binaries pull each edge from a
// capture.Source and hand it to Feed from the same goroutine that calls
// frameparser's ParseFrame. Edge
// ordering is the caller's responsibility — out-of-order input is an
// InvariantViolation (§6), enforced via a clock.Clock's Observe.
package sampler

import (
	"fmt"

	"flexray/clock"
	"flexray/flexerr"
	"flexray/signal"
)

// MinIdleLen (MIN_IDLE_LEN in §4.1) is the minimum run of recessive
// bit-times that counts as bus-idle.
const MinIdleLen = 9

// TssLen (TSS_LEN in §4.1) is the minimum run of dominant bit-times that
// counts as a Transmission Start Sequence.
const TssLen = 5

// DecoderBit is one decoded physical bit, per §3: start ≤ end, and
// consecutive bits within a contiguous frame abut.
type DecoderBit struct {
	Start uint64
	End   uint64
	Value signal.Level
}

// Range is an inclusive sample range consumed by one framing element
// (TSS, FSS, a byte's BSS, or FES).
type Range struct {
	Start uint64
	End   uint64
}

// Sampler consumes an ordered edge buffer and exposes the pull primitives
// FrameParser drives: HuntFrame to lock onto a
// new frame, NextByte to read one BSS-guarded byte, and ExpectFES to
// close a frame out.
type Sampler struct {
	edges         []signal.Edge
	pos           int
	curLevel      signal.Level
	samplesPerBit uint64
	cursor        uint64
	clk           *clock.Clock
}

// New builds a Sampler over edges (which must already be sorted
// non-decreasing by Sample) with the given bit period in sample units.
//
// The Sampler's internal clock.Clock is built from samplesPerBit too, but
// only ever for its Observe call below — Sampler never converts a sample
// index to a duration, so the rate that Clock carries is never read, just
// required to be positive like samplesPerBit itself already is.
func New(edges []signal.Edge, samplesPerBit uint64) *Sampler {
	if samplesPerBit == 0 {
		panic("sampler: samplesPerBit must be positive")
	}
	return &Sampler{edges: edges, samplesPerBit: samplesPerBit, curLevel: signal.Recessive, clk: clock.New(samplesPerBit)}
}

// Feed appends newly captured edges to the sampler's buffer. It is the
// live-capture counterpart to the finite buffer New is constructed with:
// a caller pulls edges from a capture.Source and calls Feed as they
// arrive, so the Sampler never needs to know where edges come from. Only
// HuntFrame reports running out of buffered input (ok=false); NextByte
// and ExpectFES have no such outcome and, past the last buffered edge,
// read the last edge's level as still holding. Appended edges must still
// be non-decreasing in Sample, continuing
// the ordering invariant New's documentation already requires of the
// whole buffer.
func (s *Sampler) Feed(edges ...signal.Edge) {
	s.edges = append(s.edges, edges...)
}

// Cursor reports the next sample the sampler will read from.
func (s *Sampler) Cursor() uint64 { return s.cursor }

// SamplesPerBit reports the configured bit period in sample units.
func (s *Sampler) SamplesPerBit() uint64 { return s.samplesPerBit }

// levelAt returns the logical level holding at sample, advancing the edge
// cursor as needed. Queries must be non-decreasing across calls.
func (s *Sampler) levelAt(sample uint64) (signal.Level, error) {
	if err := s.clk.Observe(sample); err != nil {
		return false, fmt.Errorf("queried sample regressed: %w", err)
	}
	for s.pos < len(s.edges) && s.edges[s.pos].Sample <= sample {
		if s.pos > 0 && s.edges[s.pos].Sample < s.edges[s.pos-1].Sample {
			return false, fmt.Errorf("%w: edge at sample %d precedes prior edge at %d", flexerr.ErrInvariantViolation, s.edges[s.pos].Sample, s.edges[s.pos-1].Sample)
		}
		s.curLevel = s.edges[s.pos].Level
		s.pos++
	}
	return s.curLevel, nil
}

// readCell samples the bit cell starting at s.cursor: value is the level
// at the cell's mid-point, and the cell spans [cursor, cursor+samplesPerBit).
// The cursor advances by one bit period.
func (s *Sampler) readCell() (DecoderBit, error) {
	start := s.cursor
	end := start + s.samplesPerBit - 1
	mid := start + s.samplesPerBit/2
	value, err := s.levelAt(mid)
	if err != nil {
		return DecoderBit{}, err
	}
	s.cursor = end + 1
	return DecoderBit{Start: start, End: end, Value: value}, nil
}

// HuntFrame scans forward from the current cursor for a confirmed idle
// period followed by TSS and a recessive FSS bit. It returns ok=false
// (with no error) when the edge buffer is exhausted before a frame was
// found — the "needs more input" outcome of §5, here surfaced as a
// non-fatal return rather than a block. On success the FSS cell (the
// bit-clock alignment point of §4.1) has been consumed and the cursor is
// left just past it, so the first call to NextByte reads byte 0's BSS.
func (s *Sampler) HuntFrame() (ok bool, tss, fss Range, err error) {
	// A freshly constructed sampler (or one that has just consumed a valid
	// FES with nothing captured before it) has no way to observe idle
	// time that elapsed before capture started; treat that as already
	// having satisfied MinIdleLen rather than refusing to ever lock onto
	// a frame whose capture begins mid-idle.
	idleBitTimes := uint64(0)
	if s.pos == 0 && s.cursor == 0 {
		idleBitTimes = MinIdleLen
	}
	sample := s.cursor
	for {
		level, lerr := s.levelAtRunStart(sample)
		if lerr != nil {
			return false, Range{}, Range{}, lerr
		}
		if level == signal.Recessive {
			idleBitTimes++
			sample += s.samplesPerBit
			if s.pos >= len(s.edges) && sample > s.highWaterMark() {
				return false, Range{}, Range{}, nil
			}
			continue
		}

		// level is dominant: see how long this run lasts.
		if idleBitTimes < MinIdleLen {
			// Not enough idle preceded this; this dominant run can't be a
			// TSS lock point. Skip past it and keep hunting.
			nextSample, found, serr := s.nextTransition(sample)
			if serr != nil {
				return false, Range{}, Range{}, serr
			}
			if !found {
				return false, Range{}, Range{}, nil
			}
			sample = nextSample
			idleBitTimes = 0
			continue
		}

		tssStart := sample
		dominantBitTimes := uint64(0)
		for {
			lvl, lerr := s.levelAtRunStart(sample)
			if lerr != nil {
				return false, Range{}, Range{}, lerr
			}
			if lvl != signal.Dominant {
				break
			}
			dominantBitTimes++
			sample += s.samplesPerBit
			if s.pos >= len(s.edges) && sample > s.highWaterMark() {
				if dominantBitTimes < TssLen {
					return false, Range{}, Range{}, nil
				}
				break
			}
		}
		tssEnd := sample - 1
		if dominantBitTimes < TssLen {
			idleBitTimes = 0
			continue
		}

		// FSS: the bit immediately following TSS must be recessive.
		fssStart := sample
		fssLevel, lerr := s.levelAtRunStart(fssStart + s.samplesPerBit/2)
		if lerr != nil {
			return false, Range{}, Range{}, lerr
		}
		if fssLevel != signal.Recessive {
			// False TSS (e.g. jitter); resume hunting from here.
			idleBitTimes = 0
			sample = fssStart
			continue
		}

		fssEnd := fssStart + s.samplesPerBit - 1
		s.cursor = fssStart
		// Consume the FSS cell itself so the cursor lands on byte 0's BSS.
		fssBit, rerr := s.readCell()
		if rerr != nil {
			return false, Range{}, Range{}, rerr
		}
		_ = fssBit
		return true, Range{Start: tssStart, End: tssEnd}, Range{Start: fssStart, End: fssEnd}, nil
	}
}

// levelAtRunStart is levelAt without advancing the read cursor's cell
// bookkeeping; used by the hunt loop, which probes levels ahead of the
// committed cursor.
func (s *Sampler) levelAtRunStart(sample uint64) (signal.Level, error) {
	return s.levelAt(sample)
}

// highWaterMark reports the last sample index known from the edge
// buffer, used by HuntFrame to decide when it has run out of input.
func (s *Sampler) highWaterMark() uint64 {
	if len(s.edges) == 0 {
		return 0
	}
	return s.edges[len(s.edges)-1].Sample
}

// nextTransition returns the sample of the first edge strictly after
// from, or found=false if none remains.
func (s *Sampler) nextTransition(from uint64) (uint64, bool, error) {
	// Ensure levelAt bookkeeping is current up to `from`.
	if _, err := s.levelAt(from); err != nil {
		return 0, false, err
	}
	if s.pos >= len(s.edges) {
		return 0, false, nil
	}
	return s.edges[s.pos].Sample, true, nil
}

// NextByte reads one BSS-guarded byte: a dominant cell, a recessive
// cell, then 8 data cells. It does not re-anchor the bit clock on the
// BSS edge: every cell is read at a fixed bit period from the cursor, so
// the timing is extrapolated from the FSS alignment for the whole frame. A BSS
// violation returns flexerr.ErrSync and leaves the cursor positioned
// just past the violating cell so a caller inspecting Range can report
// exactly where sync was lost.
func (s *Sampler) NextByte() (bss Range, bits [8]DecoderBit, err error) {
	bssStart := s.cursor
	dominantCell, rerr := s.readCell()
	if rerr != nil {
		return Range{}, bits, rerr
	}
	if dominantCell.Value != signal.Dominant {
		return Range{Start: bssStart, End: dominantCell.End}, bits, fmt.Errorf("%w: expected dominant BSS lead bit, got recessive", flexerr.ErrSync)
	}
	recessiveCell, rerr := s.readCell()
	if rerr != nil {
		return Range{}, bits, rerr
	}
	if recessiveCell.Value != signal.Recessive {
		return Range{Start: bssStart, End: recessiveCell.End}, bits, fmt.Errorf("%w: expected recessive BSS trailing bit, got dominant", flexerr.ErrSync)
	}

	for i := 0; i < 8; i++ {
		cell, rerr := s.readCell()
		if rerr != nil {
			return Range{}, bits, rerr
		}
		bits[i] = cell
	}
	return Range{Start: bssStart, End: recessiveCell.End}, bits, nil
}

// ExpectFES reads the two-cell Frame End Sequence (dominant then
// recessive). A violation returns flexerr.ErrSync.
func (s *Sampler) ExpectFES() (fes Range, err error) {
	start := s.cursor
	dominantCell, rerr := s.readCell()
	if rerr != nil {
		return Range{}, rerr
	}
	if dominantCell.Value != signal.Dominant {
		return Range{Start: start, End: dominantCell.End}, fmt.Errorf("%w: expected dominant FES lead bit, got recessive", flexerr.ErrSync)
	}
	recessiveCell, rerr := s.readCell()
	if rerr != nil {
		return Range{}, rerr
	}
	if recessiveCell.Value != signal.Recessive {
		return Range{Start: start, End: recessiveCell.End}, fmt.Errorf("%w: expected recessive FES trailing bit, got dominant", flexerr.ErrSync)
	}
	return Range{Start: start, End: recessiveCell.End}, nil
}

// BytesToBits packs a NextByte result into the wire bit order (MSB-first
// per cell) expected by the frame decoder.
func BytesToBits(bits [8]DecoderBit) [8]signal.Level {
	var out [8]signal.Level
	for i, b := range bits {
		out[i] = b.Value
	}
	return out
}
