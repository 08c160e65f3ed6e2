// Package clock converts between sample indices, the native unit of the
// sampler and the frame parser, and wall-clock durations, and tracks that
// the sample index a caller feeds in never regresses. It is a leaf
// component, like crc and bitcodec: no component shares a Clock, each
// owns one.
package clock

import (
	"fmt"
	"time"

	"flexray/flexerr"
)

// Clock converts sample indices to/from time given a fixed sample rate,
// and remembers the highest sample index it has observed so regressions
// can be detected as InvariantViolation (§7).
type Clock struct {
	sampleRate uint64
	lastSample uint64
	hasLast    bool
}

// New builds a Clock for the given sample rate in Hz. sampleRate must be
// positive; a zero or negative rate is a construction-time programmer
// error, not a runtime condition, so New panics rather than returning an
// error that every caller would have to check.
func New(sampleRate uint64) *Clock {
	if sampleRate == 0 {
		panic("clock: sampleRate must be positive")
	}
	return &Clock{sampleRate: sampleRate}
}

// SampleRate reports the configured sample rate in Hz.
func (c *Clock) SampleRate() uint64 { return c.sampleRate }

// SampleToDuration converts a sample index into the elapsed duration since
// sample 0.
func (c *Clock) SampleToDuration(sample uint64) time.Duration {
	return time.Duration(sample) * time.Second / time.Duration(c.sampleRate)
}

// DurationToSample converts an elapsed duration into the sample index at
// or before it; any fraction of a sample is truncated.
func (c *Clock) DurationToSample(d time.Duration) uint64 {
	return uint64(d * time.Duration(c.sampleRate) / time.Second)
}

// Observe records sample as the most recent one seen and returns
// ErrInvariantViolation if it regresses behind a previously observed
// sample, per §6's "An input violating [non-decreasing order] is a
// programmer error and may be reported as a fatal condition."
func (c *Clock) Observe(sample uint64) error {
	if c.hasLast && sample < c.lastSample {
		return fmt.Errorf("%w: sample %d precedes last observed sample %d", flexerr.ErrInvariantViolation, sample, c.lastSample)
	}
	c.lastSample = sample
	c.hasLast = true
	return nil
}

// Last returns the most recently observed sample index and whether any
// sample has been observed yet.
func (c *Clock) Last() (uint64, bool) {
	return c.lastSample, c.hasLast
}
