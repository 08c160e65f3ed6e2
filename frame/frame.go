// Package frame holds the semantic Frame value and the FieldRecord output
// atom of §3, the closed tagged set FrameParser emits and FrameBuilder
// consumes.
package frame

import (
	"fmt"

	"flexray/flexerr"
)

// Frame is a complete, immutable FlexRay frame value. Construct one as a
// struct literal and validate it with Validate (FrameBuilder validates
// internally).
type Frame struct {
	FrameID          uint16
	PayloadPreamble  bool
	NullFrame        bool
	SyncFrame        bool
	StartupFrame     bool
	PayloadLength    uint8 // words; byte count is 2*PayloadLength
	HeaderCRC        uint16
	CycleCount       uint8
	Payload          []byte
	FrameCRC         uint32
}

// Validate checks the field-range invariants of §3 and §4.5 step 1.
// HeaderCRC and FrameCRC are not checked here — they are computed by
// FrameBuilder and checked against received values by FrameParser; a
// Frame value under construction by a client may not have them set yet.
func (f *Frame) Validate() error {
	if f.FrameID < 1 || f.FrameID > 2047 {
		return fmt.Errorf("%w: frame_id %d out of range [1,2047]", flexerr.ErrInvalidFrame, f.FrameID)
	}
	if f.CycleCount > 63 {
		return fmt.Errorf("%w: cycle_count %d out of range [0,63]", flexerr.ErrInvalidFrame, f.CycleCount)
	}
	if f.PayloadLength > 127 {
		return fmt.Errorf("%w: payload_length %d out of range [0,127]", flexerr.ErrInvalidFrame, f.PayloadLength)
	}
	if len(f.Payload) != 2*int(f.PayloadLength) {
		return fmt.Errorf("%w: payload length %d bytes does not match payload_length*2 (%d)", flexerr.ErrInvalidFrame, len(f.Payload), 2*int(f.PayloadLength))
	}
	return nil
}

// IndicatorNibble packs the four transmitted indicator bits as
// (PP<<3)|(NF<<2)|(SF<<1)|STF, matching §4.4 step 2's Flags record data1.
func (f *Frame) IndicatorNibble() uint8 {
	var v uint8
	if f.PayloadPreamble {
		v |= 1 << 3
	}
	if f.NullFrame {
		v |= 1 << 2
	}
	if f.SyncFrame {
		v |= 1 << 1
	}
	if f.StartupFrame {
		v |= 1 << 0
	}
	return v
}

// Kind identifies the variant of an emitted FieldRecord. The set is
// closed: no implementer of ResultSink should switch on an unknown Kind.
type Kind uint8

const (
	TSS Kind = iota
	FSS
	BSS
	FES
	Flags
	FrameID
	PayloadLength
	HeaderCRCField
	CycleCount
	DataByte
	FrameCRCField
)

func (k Kind) String() string {
	switch k {
	case TSS:
		return "TSS"
	case FSS:
		return "FSS"
	case BSS:
		return "BSS"
	case FES:
		return "FES"
	case Flags:
		return "Flags"
	case FrameID:
		return "FrameId"
	case PayloadLength:
		return "PayloadLength"
	case HeaderCRCField:
		return "HeaderCrc"
	case CycleCount:
		return "CycleCount"
	case DataByte:
		return "DataByte"
	case FrameCRCField:
		return "FrameCrc"
	default:
		return "Unknown"
	}
}

// ErrorFlags carries the non-fatal error taxonomy of §7 as bits on a
// FieldRecord. The bits are independent and may be combined on one
// record; frameparser sets ProtocolError on FrameId/PayloadLength records
// and CrcError on HeaderCrc/FrameCrc records.
type ErrorFlags uint8

const (
	CrcError      ErrorFlags = 1 << 0
	ProtocolError ErrorFlags = 1 << 1
	SyncError     ErrorFlags = 1 << 2
)

func (f ErrorFlags) Has(flag ErrorFlags) bool { return f&flag != 0 }

// FieldRecord is the output atom of §3: one annotated field of a decoded
// (or about-to-be-encoded) frame, with its sample-range timing. For
// DataByte, Data1 holds the byte value and Data2 holds its 0-based index
// in the payload; for every other Kind, Data1 holds the field's numeric
// value and Data2 is unused.
type FieldRecord struct {
	Kind        Kind
	Data1       uint64
	Data2       uint64
	Flags       ErrorFlags
	StartSample uint64
	EndSample   uint64
}
