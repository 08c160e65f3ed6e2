// Package canbridge re-packs decoded frame.Frame values into
// go.einride.tech/can frames for tooling that already speaks CAN (trace
// viewers, DBC-aware loggers) but has no FlexRay decoder of its own. The
// mapping is necessarily lossy: FlexRay's frame_id space is 11 bits wide
// like CAN's standard identifier, so it maps across directly, but a
// FlexRay payload can run to 254 bytes while a classic CAN frame carries
// at most 8 — every CAN frame carries a one-byte segment header followed
// by up to 7 payload bytes, and payloads beyond 7 bytes are split across
// consecutive frames.
package canbridge

import (
	"fmt"

	"flexray/frame"

	"go.einride.tech/can"
)

// MaxCANPayload is the data capacity of one classic CAN frame.
const MaxCANPayload = 8

// FromFrame converts f into one or more can.Frame values, in order. A
// payload longer than MaxCANPayload-1 bytes (after reserving one header
// byte for the continuation index) is split across as many frames as
// needed; a payload that already fits (or is empty) is sent as a single
// frame.
//
// Header byte layout: bit 7 set marks the final segment; bits 0-6 are the
// zero-based segment index. A single-segment frame therefore always has
// header byte 0x80.
func FromFrame(f *frame.Frame) ([]can.Frame, error) {
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("canbridge: %w", err)
	}

	const chunk = MaxCANPayload - 1
	if len(f.Payload) == 0 {
		return []can.Frame{headerOnlyFrame(f)}, nil
	}

	var frames []can.Frame
	for offset := 0; offset < len(f.Payload); offset += chunk {
		end := offset + chunk
		if end > len(f.Payload) {
			end = len(f.Payload)
		}
		segment := f.Payload[offset:end]
		idx := offset / chunk
		final := end == len(f.Payload)

		var data can.Data
		header := byte(idx)
		if final {
			header |= 0x80
		}
		data[0] = header
		copy(data[1:], segment)

		frames = append(frames, can.Frame{
			ID:     uint32(f.FrameID),
			Length: uint8(1 + len(segment)),
			Data:   data,
		})
	}
	return frames, nil
}

func headerOnlyFrame(f *frame.Frame) can.Frame {
	var data can.Data
	data[0] = 0x80
	return can.Frame{ID: uint32(f.FrameID), Length: 1, Data: data}
}

// ToFrame reassembles the can.Frame segments FromFrame produced (in
// order) back into a frame.Frame carrying only FrameID, Payload and the
// PayloadLength derived from it (len(Payload)/2) — the
// header/cycle CRC fields are not recoverable from the CAN
// representation and are left zero; callers that need them should keep
// the original decode's FieldRecords around instead of round-tripping
// through CAN.
func ToFrame(segments []can.Frame) (*frame.Frame, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("canbridge: no segments")
	}
	id := segments[0].ID
	var payload []byte
	for i, seg := range segments {
		if seg.ID != id {
			return nil, fmt.Errorf("canbridge: segment %d frame id %d does not match %d", i, seg.ID, id)
		}
		if seg.Length == 0 {
			return nil, fmt.Errorf("canbridge: segment %d has empty header", i)
		}
		header := seg.Data[0]
		idx := int(header & 0x7F)
		if idx != i {
			return nil, fmt.Errorf("canbridge: segment %d out of order (header index %d)", i, idx)
		}
		payload = append(payload, seg.Data[1:seg.Length]...)
		if header&0x80 != 0 && i != len(segments)-1 {
			return nil, fmt.Errorf("canbridge: final-segment marker set before last frame")
		}
	}
	return &frame.Frame{
		FrameID:       uint16(id),
		PayloadLength: uint8(len(payload) / 2),
		Payload:       payload,
	}, nil
}
