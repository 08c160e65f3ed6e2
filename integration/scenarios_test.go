// Package integration exercises the sampler/frameparser/framebuilder
// pipeline end-to-end against the scenario set used to validate this
// decoder during development: a minimal frame, CRC corruption, a BSS
// violation, back-to-back framing, maximum payload, and inverted
// polarity.
package integration

import (
	"testing"

	"flexray/bitcodec"
	"flexray/crc"
	"flexray/frame"
	"flexray/framebuilder"
	"flexray/frameparser"
	"flexray/resultsink"
	"flexray/sampler"
	"flexray/signal"

	"github.com/stretchr/testify/require"
)

const samplesPerBit = 16

func buildAndDecode(t *testing.T, f *frame.Frame, leadingIdleBits uint64) []frame.FieldRecord {
	t.Helper()
	bits := buildBits(t, f, leadingIdleBits)
	return decode(t, bits)
}

func buildBits(t *testing.T, f *frame.Frame, leadingIdleBits uint64) []signal.Level {
	t.Helper()
	b := framebuilder.New()
	frameBits, err := b.Build(f)
	require.NoError(t, err)
	idle := make([]signal.Level, leadingIdleBits)
	for i := range idle {
		idle[i] = signal.Recessive
	}
	return append(idle, frameBits...)
}

func decode(t *testing.T, bits []signal.Level) []frame.FieldRecord {
	t.Helper()
	edges := framebuilder.ToEdges(bits, samplesPerBit, 0)
	s := sampler.New(edges, samplesPerBit)
	sink := resultsink.NewMemorySink()
	p := frameparser.New()
	require.NoError(t, p.ParseFrame(s, sink))
	return sink.Records()
}

func kinds(records []frame.FieldRecord) []frame.Kind {
	out := make([]frame.Kind, len(records))
	for i, r := range records {
		out[i] = r.Kind
	}
	return out
}

// TestScenarioS1MinimalSyncFrame matches spec scenario S1: a minimal sync
// frame decodes to the expected record sequence with no CRC errors and
// the documented header CRC input.
func TestScenarioS1MinimalSyncFrame(t *testing.T) {
	f := &frame.Frame{FrameID: 0x005, SyncFrame: true}
	records := buildAndDecode(t, f, 0)

	require.Equal(t, []frame.Kind{
		frame.TSS, frame.FSS,
		frame.BSS, frame.BSS, frame.BSS, frame.Flags, frame.FrameID, frame.PayloadLength,
		frame.BSS, frame.BSS, frame.HeaderCRCField, frame.CycleCount,
		frame.BSS, frame.BSS, frame.BSS, frame.FrameCRCField,
		frame.FES,
	}, kinds(records))

	for _, r := range records {
		require.False(t, r.Flags.Has(frame.CrcError), "%s: unexpected CrcError", r.Kind)
	}

	var flags, id, pl, hc, cc, fc frame.FieldRecord
	for _, r := range records {
		switch r.Kind {
		case frame.Flags:
			flags = r
		case frame.FrameID:
			id = r
		case frame.PayloadLength:
			pl = r
		case frame.HeaderCRCField:
			hc = r
		case frame.CycleCount:
			cc = r
		case frame.FrameCRCField:
			fc = r
		}
	}
	require.Equal(t, uint64(2), flags.Data1) // sync_frame bit only: 0b0010
	require.Equal(t, uint64(0x005), id.Data1)
	require.Equal(t, uint64(0), pl.Data1)
	require.Equal(t, uint64(0), cc.Data1)

	headerBits := []signal.Level{signal.Recessive} // reserved bit
	headerBits = append(headerBits, bitcodec.ToBits(uint64(f.IndicatorNibble()), 4)...)
	headerBits = append(headerBits, bitcodec.ToBits(uint64(f.FrameID), 11)...)
	headerBits = append(headerBits, bitcodec.ToBits(uint64(0), 7)...)
	wantHeaderCRC := crc.HeaderCRC().Bitwise(headerBits)
	require.Equal(t, uint64(wantHeaderCRC), hc.Data1)
	require.False(t, fc.Flags.Has(frame.CrcError))
}

// TestScenarioS2CRCCorruption matches spec scenario S2: flipping a bit in
// the HeaderCrc field on the wire flags that record, and the FrameCrc
// record whose coverage includes the header CRC bits, leaving every other
// field untouched.
func TestScenarioS2CRCCorruption(t *testing.T) {
	f := &frame.Frame{FrameID: 0x005, SyncFrame: true}
	bits := buildBits(t, f, 0)

	idx := 6 + wrappedBitIndex(23) // first bit of the 11-bit HeaderCrc field
	bits[idx] = !bits[idx]

	records := decode(t, bits)
	require.Equal(t, []frame.Kind{
		frame.TSS, frame.FSS,
		frame.BSS, frame.BSS, frame.BSS, frame.Flags, frame.FrameID, frame.PayloadLength,
		frame.BSS, frame.BSS, frame.HeaderCRCField, frame.CycleCount,
		frame.BSS, frame.BSS, frame.BSS, frame.FrameCRCField,
		frame.FES,
	}, kinds(records))

	for _, r := range records {
		if r.Kind == frame.HeaderCRCField || r.Kind == frame.FrameCRCField {
			require.True(t, r.Flags.Has(frame.CrcError), "%s should be flagged by header CRC corruption", r.Kind)
		} else {
			require.False(t, r.Flags.Has(frame.CrcError), "%s should be unaffected by header CRC corruption", r.Kind)
		}
	}
}

// TestScenarioS3BSSViolationMidFrame matches spec scenario S3: corrupting
// the BSS before the CycleCount byte aborts the frame after
// Flags/FrameId/PayloadLength were committed (HeaderCrc is committed only
// once that byte has been read), with none of
// those records surviving in the sink (CancelPacket discards the whole
// buffered packet), and the parser ready to resume hunting afterward.
func TestScenarioS3BSSViolationMidFrame(t *testing.T) {
	f := &frame.Frame{FrameID: 0x005, SyncFrame: true}
	bits := buildBits(t, f, 0)

	// Byte index 4 holds the cycle-count bits (34-39); its BSS starts the
	// 5th wrapped group.
	bssLeadIdx := 6 + 4*10
	bits[bssLeadIdx] = !bits[bssLeadIdx]

	edges := framebuilder.ToEdges(bits, samplesPerBit, 0)
	s := sampler.New(edges, samplesPerBit)
	sink := resultsink.NewMemorySink()
	p := frameparser.New()

	err := p.ParseFrame(s, sink)
	require.Error(t, err)
	require.Empty(t, sink.Records())

	// The sampler must be positioned to resume hunting, not stuck.
	ok, _, _, huntErr := s.HuntFrame()
	require.NoError(t, huntErr)
	require.False(t, ok) // no further frame in this stream
}

// TestScenarioS4BackToBackFramesWithIdle matches spec scenario S4: all
// records of F1 precede all of F2, and F2's first record starts at least
// 12 bit-times after F1's last record ends.
func TestScenarioS4BackToBackFramesWithIdle(t *testing.T) {
	f1 := &frame.Frame{FrameID: 1}
	f2 := &frame.Frame{FrameID: 2}

	bits1 := buildBits(t, f1, 0)
	idle := make([]signal.Level, 12)
	for i := range idle {
		idle[i] = signal.Recessive
	}
	bits2 := buildBits(t, f2, 0)
	full := append(append(bits1, idle...), bits2...)

	edges := framebuilder.ToEdges(full, samplesPerBit, 0)
	s := sampler.New(edges, samplesPerBit)
	sink := resultsink.NewMemorySink()
	p := frameparser.New()

	require.NoError(t, p.ParseFrame(s, sink))
	require.NoError(t, p.ParseFrame(s, sink))

	records := sink.Records()

	ids := make([]uint64, 0, 2)
	for _, r := range records {
		if r.Kind == frame.FrameID {
			ids = append(ids, r.Data1)
		}
	}
	require.Equal(t, []uint64{1, 2}, ids)

	// F1's records (everything up to and including its FES) must all
	// precede F2's records (everything from its TSS on).
	splitAt := -1
	for i, r := range records {
		if r.Kind == frame.FES {
			splitAt = i
			break
		}
	}
	require.GreaterOrEqual(t, splitAt, 0)
	f1FESEnd := records[splitAt].EndSample
	f2TSS := records[splitAt+1]
	require.Equal(t, frame.TSS, f2TSS.Kind)
	require.GreaterOrEqual(t, f2TSS.StartSample-f1FESEnd, uint64(12*samplesPerBit))
}

// TestScenarioS5MaximumPayload matches spec scenario S5: a 254-byte
// payload decodes to 254 DataByte records, data2 0..253, data1 matching
// the input, with a clean FrameCrc.
func TestScenarioS5MaximumPayload(t *testing.T) {
	payload := make([]byte, 254)
	for i := range payload {
		payload[i] = byte(i)
	}
	f := &frame.Frame{FrameID: 1, PayloadLength: 127, Payload: payload}
	records := buildAndDecode(t, f, 0)

	var dataBytes []frame.FieldRecord
	var frameCRC frame.FieldRecord
	for _, r := range records {
		if r.Kind == frame.DataByte {
			dataBytes = append(dataBytes, r)
		}
		if r.Kind == frame.FrameCRCField {
			frameCRC = r
		}
	}

	require.Len(t, dataBytes, 254)
	for i, r := range dataBytes {
		require.Equal(t, uint64(i), r.Data2)
		require.Equal(t, uint64(payload[i]), r.Data1)
	}
	require.False(t, frameCRC.Flags.Has(frame.CrcError))
}

// TestScenarioS6InvertedChannel matches spec scenario S6: feeding the
// bit-flipped S1 stream through an inverted Polarity mapping yields the
// same records as decoding S1 directly under normal polarity — inversion
// is purely a front-end concern, resolved before bits ever reach the
// sampler.
func TestScenarioS6InvertedChannel(t *testing.T) {
	f := &frame.Frame{FrameID: 0x005, SyncFrame: true}
	normal := buildAndDecode(t, f, 0)

	bits := buildBits(t, f, 0)
	polarity := signal.Polarity{Inverted: true}
	invertedBits := make([]signal.Level, len(bits))
	for i, b := range bits {
		// Simulate a physically-inverted channel: what the line driver
		// would send as physical-high/low, then recovered back to logical
		// levels through the inverted Polarity mapping.
		physicalHigh := b == signal.Recessive
		invertedBits[i] = polarity.Logical(!physicalHigh)
	}
	require.Equal(t, bits, invertedBits)

	inverted := decode(t, invertedBits)
	require.Equal(t, normal, inverted)
}

func wrappedBitIndex(preWrapBitIndex int) int {
	group := preWrapBitIndex / 8
	offset := preWrapBitIndex % 8
	return group*10 + 2 + offset
}
