// Package frameparser implements the FlexRay framing state machine of
// §4.4: it drives a sampler.Sampler byte-by-byte and emits annotated
// frame.FieldRecords to a resultsink.Sink in the order §4.4 specifies.
package frameparser

import (
	"errors"
	"fmt"

	"flexray/bitcodec"
	"flexray/clock"
	"flexray/crc"
	"flexray/frame"
	"flexray/resultsink"
	"flexray/sampler"
	"flexray/signal"
)

// ErrNoFrame is returned by ParseFrame when the sampler ran out of input
// while hunting for the next frame, without finding one. It is not a
// fatal condition — the caller may feed more edges and try again.
var ErrNoFrame = errors.New("frameparser: no frame found before input exhausted")

// Parser decodes frames from a sampler.Sampler, one at a time, into a
// resultsink.Sink. It holds its own clock.Clock, independent of the
// Sampler it's fed, so a bookkeeping bug in Parser's own cell-span
// arithmetic that emitted a record whose EndSample regresses against the
// previous non-BSS record is caught here rather than silently reaching
// sink/events.
type Parser struct {
	headerCRC *crc.Engine
	frameCRC  *crc.Engine
	clk       *clock.Clock
}

// New builds a Parser using the standard HeaderCRC/FrameCRC engines of
// §4.3. Parser's clock.Clock only ever calls Observe — it never converts
// a sample to a duration — so it's constructed with an arbitrary positive
// rate rather than one tied to any real sample rate.
func New() *Parser {
	return &Parser{headerCRC: crc.HeaderCRC(), frameCRC: crc.FrameCRC(), clk: clock.New(1)}
}

// ParseFrame hunts for and decodes exactly one frame. It returns
// ErrNoFrame if the sampler's edge buffer was exhausted before a TSS/FSS
// lock was found. A returned error wrapping flexerr.ErrSync means the
// frame was abandoned mid-parse (and, per §4.6/§5, its sink.CancelPacket
// already ran, so none of its records were retained); the caller should
// simply call ParseFrame again to resume hunting. A returned error
// wrapping flexerr.ErrInvariantViolation is fatal.
func (p *Parser) ParseFrame(s *sampler.Sampler, sink resultsink.Sink) error {
	ok, tss, fss, err := s.HuntFrame()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoFrame
	}

	sink.OpenPacket()
	tssBits := (tss.End - tss.Start + 1) / s.SamplesPerBit()
	if err := p.commit(sink, frame.FieldRecord{Kind: frame.TSS, Data1: tssBits, StartSample: tss.Start, EndSample: tss.End}); err != nil {
		return err
	}
	if err := p.commit(sink, frame.FieldRecord{Kind: frame.FSS, StartSample: fss.Start, EndSample: fss.End}); err != nil {
		return err
	}

	var cells []sampler.DecoderBit
	byteIndex := 0

	readHeaderByte := func() error {
		bss, byteCells, berr := s.NextByte()
		if berr != nil {
			sink.CancelPacket()
			return berr
		}
		if err := p.commit(sink, frame.FieldRecord{Kind: frame.BSS, Data1: uint64(byteIndex), StartSample: bss.Start, EndSample: bss.End}); err != nil {
			return err
		}
		cells = append(cells, byteCells[:]...)
		byteIndex++
		return nil
	}

	// Bytes 0-2: reserved+indicators, frame_id, payload_length (bits 0-22).
	for i := 0; i < 3; i++ {
		if err := readHeaderByte(); err != nil {
			return err
		}
	}

	levels := cellLevels(cells)

	flagsValue, _ := bitcodec.FromBits(levels, 1, 4)
	flagsRange := cellSpan(cells, 1, 4)
	if err := p.commit(sink, frame.FieldRecord{Kind: frame.Flags, Data1: flagsValue, StartSample: flagsRange.Start, EndSample: flagsRange.End}); err != nil {
		return err
	}

	frameID, _ := bitcodec.FromBits(levels, 5, 11)
	var frameIDFlags frame.ErrorFlags
	if frameID == 0 {
		frameIDFlags |= frame.ProtocolError
	}
	idRange := cellSpan(cells, 5, 11)
	if err := p.commit(sink, frame.FieldRecord{Kind: frame.FrameID, Data1: frameID, Flags: frameIDFlags, StartSample: idRange.Start, EndSample: idRange.End}); err != nil {
		return err
	}

	payloadLength, _ := bitcodec.FromBits(levels, 16, 7)
	nullFrame := flagsValue&(1<<2) != 0
	var plFlags frame.ErrorFlags
	if nullFrame && payloadLength != 0 {
		plFlags |= frame.ProtocolError
	}
	plRange := cellSpan(cells, 16, 7)
	if err := p.commit(sink, frame.FieldRecord{Kind: frame.PayloadLength, Data1: payloadLength, Flags: plFlags, StartSample: plRange.Start, EndSample: plRange.End}); err != nil {
		return err
	}

	// Bytes 3-4: header CRC (bits 23-33) and cycle count (bits 34-39).
	for i := 0; i < 2; i++ {
		if err := readHeaderByte(); err != nil {
			return err
		}
	}
	levels = cellLevels(cells)

	headerCRCValue, _ := bitcodec.FromBits(levels, 23, 11)
	computedHeaderCRC := p.headerCRC.Table(levels[0:23])
	var headerFlags frame.ErrorFlags
	if uint64(computedHeaderCRC) != headerCRCValue {
		headerFlags |= frame.CrcError
	}
	hcRange := cellSpan(cells, 23, 11)
	if err := p.commit(sink, frame.FieldRecord{Kind: frame.HeaderCRCField, Data1: headerCRCValue, Flags: headerFlags, StartSample: hcRange.Start, EndSample: hcRange.End}); err != nil {
		return err
	}

	cycleCount, _ := bitcodec.FromBits(levels, 34, 6)
	ccRange := cellSpan(cells, 34, 6)
	if err := p.commit(sink, frame.FieldRecord{Kind: frame.CycleCount, Data1: cycleCount, StartSample: ccRange.Start, EndSample: ccRange.End}); err != nil {
		return err
	}

	payloadBytes := 2 * int(payloadLength)
	for k := 0; k < payloadBytes; k++ {
		bss, byteCells, berr := s.NextByte()
		if berr != nil {
			sink.CancelPacket()
			return berr
		}
		if err := p.commit(sink, frame.FieldRecord{Kind: frame.BSS, Data1: uint64(byteIndex), StartSample: bss.Start, EndSample: bss.End}); err != nil {
			return err
		}
		cells = append(cells, byteCells[:]...)
		byteLevels := cellLevels(byteCells[:])
		byteValue, _ := bitcodec.FromBits(byteLevels, 0, 8)
		if err := p.commit(sink, frame.FieldRecord{
			Kind:        frame.DataByte,
			Data1:       byteValue,
			Data2:       uint64(k),
			StartSample: byteCells[0].Start,
			EndSample:   byteCells[7].End,
		}); err != nil {
			return err
		}
		byteIndex++
	}

	// Final 3 bytes: frame CRC (24 bits, byte-aligned since the body
	// through the payload is always byte-aligned).
	frameCRCBitStart := len(cells)
	for i := 0; i < 3; i++ {
		if err := readHeaderByte(); err != nil {
			return err
		}
	}
	levels = cellLevels(cells)

	frameCRCValue, _ := bitcodec.FromBits(levels, frameCRCBitStart, 24)
	computedFrameCRC := p.frameCRC.Table(levels[0:frameCRCBitStart])
	var frameCRCFlags frame.ErrorFlags
	if uint64(computedFrameCRC) != frameCRCValue {
		frameCRCFlags |= frame.CrcError
	}
	fcRange := cellSpan(cells, frameCRCBitStart, 24)
	if err := p.commit(sink, frame.FieldRecord{Kind: frame.FrameCRCField, Data1: frameCRCValue, Flags: frameCRCFlags, StartSample: fcRange.Start, EndSample: fcRange.End}); err != nil {
		return err
	}

	fes, ferr := s.ExpectFES()
	if ferr != nil {
		sink.CancelPacket()
		return ferr
	}
	if err := p.commit(sink, frame.FieldRecord{Kind: frame.FES, StartSample: fes.Start, EndSample: fes.End}); err != nil {
		return err
	}

	sink.CommitPacket()
	return nil
}

// commit checks record against p's clock before handing it to sink. A
// regression here is Parser's own cell-span bookkeeping going backwards,
// not anything Sampler already checked on the edges underneath it, so it
// aborts the in-progress packet exactly like a sync violation does. BSS
// records are not checked: each is committed as its byte is read, ahead
// of the fields decoded from that byte and the bytes before it, so their
// ranges legitimately run ahead of the field records that follow.
func (p *Parser) commit(sink resultsink.Sink, record frame.FieldRecord) error {
	if record.Kind != frame.BSS {
		if err := p.clk.Observe(record.EndSample); err != nil {
			sink.CancelPacket()
			return fmt.Errorf("frameparser: %w", err)
		}
	}
	sink.Commit(record)
	return nil
}

func cellLevels(cells []sampler.DecoderBit) []signal.Level {
	levels := make([]signal.Level, len(cells))
	for i, c := range cells {
		levels[i] = c.Value
	}
	return levels
}

func cellSpan(cells []sampler.DecoderBit, start, n int) sampler.Range {
	return sampler.Range{Start: cells[start].Start, End: cells[start+n-1].End}
}
