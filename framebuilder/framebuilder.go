// Package framebuilder implements the encode path of §4.5: the inverse of
// frameparser, turning a frame.Frame value into the raw bit sequence a
// line driver would put on the wire.
package framebuilder

import (
	"flexray/bitcodec"
	"flexray/crc"
	"flexray/frame"
	"flexray/sampler"
	"flexray/signal"
)

// Builder encodes frame.Frame values using the standard HeaderCRC/FrameCRC
// engines of §4.3.
type Builder struct {
	headerCRC *crc.Engine
	frameCRC  *crc.Engine
}

// New returns a Builder.
func New() *Builder {
	return &Builder{headerCRC: crc.HeaderCRC(), frameCRC: crc.FrameCRC()}
}

// Build validates f and produces its wire bit sequence: TSS, FSS, the
// BSS-wrapped header+cycle+payload+frame-CRC body, and FES. The output,
// re-parsed through frameparser without channel errors, reconstructs f
// exactly (§4.5, §8 property 1) including the CRC fields, which Build
// computes itself rather than trusting f.HeaderCRC/f.FrameCRC — a caller
// building a Frame by hand never has to compute them.
func (b *Builder) Build(f *frame.Frame) ([]signal.Level, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	header := make([]signal.Level, 0, 23)
	header = append(header, signal.Recessive) // reserved bit, transmitted as 0
	header = append(header, bitcodec.ToBits(uint64(f.IndicatorNibble()), 4)...)
	header = append(header, bitcodec.ToBits(uint64(f.FrameID), 11)...)
	header = append(header, bitcodec.ToBits(uint64(f.PayloadLength), 7)...)

	headerCRC := b.headerCRC.Table(header)

	body := make([]signal.Level, 0, 40+8*len(f.Payload)+24)
	body = append(body, header...)
	body = append(body, bitcodec.ToBits(uint64(headerCRC), 11)...)
	body = append(body, bitcodec.ToBits(uint64(f.CycleCount), 6)...)
	for _, by := range f.Payload {
		body = append(body, bitcodec.ToBits(uint64(by), 8)...)
	}

	frameCRC := b.frameCRC.Table(body)
	body = append(body, bitcodec.ToBits(uint64(frameCRC), 24)...)

	wrapped, err := bitcodec.ExtendWithBSS(body)
	if err != nil {
		return nil, err
	}

	out := make([]signal.Level, 0, sampler.TssLen+1+len(wrapped)+2)
	for i := 0; i < sampler.TssLen; i++ {
		out = append(out, signal.Dominant)
	}
	out = append(out, signal.Recessive) // FSS
	out = append(out, wrapped...)
	out = append(out, signal.Dominant, signal.Recessive) // FES

	return out, nil
}

// ToEdges converts a bit sequence produced by Build into a minimal edge
// list (one Edge per bit-level change, plus a leading edge establishing
// the initial state), sampled at samplesPerBit per bit, suitable for
// feeding a sampler.Sampler or a physical line driver. startSample
// offsets every produced edge, letting callers place successive frames
// at the right position in a shared sample timeline (e.g. after an idle
// gap, per §8 S4).
func ToEdges(bits []signal.Level, samplesPerBit uint64, startSample uint64) []signal.Edge {
	if len(bits) == 0 {
		return nil
	}
	edges := make([]signal.Edge, 0, len(bits))
	edges = append(edges, signal.Edge{Sample: startSample, Level: bits[0]})
	for i := 1; i < len(bits); i++ {
		if bits[i] != bits[i-1] {
			edges = append(edges, signal.Edge{Sample: startSample + uint64(i)*samplesPerBit, Level: bits[i]})
		}
	}
	return edges
}
