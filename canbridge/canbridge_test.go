package canbridge_test

import (
	"testing"

	"flexray/canbridge"
	"flexray/frame"

	"github.com/stretchr/testify/require"
)

func TestFromFrameSingleSegment(t *testing.T) {
	f := &frame.Frame{FrameID: 5, PayloadLength: 2, Payload: []byte{1, 2, 3, 4}}
	frames, err := canbridge.FromFrame(f)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, uint32(5), frames[0].ID)
	require.Equal(t, byte(0x80), frames[0].Data[0])
	require.Equal(t, []byte{1, 2, 3, 4}, frames[0].Data[1:5])
}

func TestFromFrameEmptyPayload(t *testing.T) {
	f := &frame.Frame{FrameID: 1}
	frames, err := canbridge.FromFrame(f)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, uint8(1), frames[0].Length)
}

func TestFromFrameSplitsLongPayload(t *testing.T) {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i)
	}
	f := &frame.Frame{FrameID: 3, PayloadLength: 10, Payload: payload}
	frames, err := canbridge.FromFrame(f)
	require.NoError(t, err)
	require.Greater(t, len(frames), 1)

	for i, seg := range frames {
		require.Equal(t, uint32(3), seg.ID)
		final := i == len(frames)-1
		header := seg.Data[0]
		require.Equal(t, byte(i), header&0x7F)
		require.Equal(t, final, header&0x80 != 0)
	}
}

func TestFromToFrameRoundTrip(t *testing.T) {
	payload := make([]byte, 20)
	for i := range payload {
		payload[i] = byte(i * 3)
	}
	f := &frame.Frame{FrameID: 42, PayloadLength: 10, Payload: payload}
	segments, err := canbridge.FromFrame(f)
	require.NoError(t, err)

	rebuilt, err := canbridge.ToFrame(segments)
	require.NoError(t, err)
	require.Equal(t, f.FrameID, rebuilt.FrameID)
	require.Equal(t, f.Payload, rebuilt.Payload)
}

func TestToFrameRejectsMismatchedIDs(t *testing.T) {
	f1 := &frame.Frame{FrameID: 1, PayloadLength: 1, Payload: []byte{1, 2}}
	f2 := &frame.Frame{FrameID: 2, PayloadLength: 1, Payload: []byte{3, 4}}
	s1, err := canbridge.FromFrame(f1)
	require.NoError(t, err)
	s2, err := canbridge.FromFrame(f2)
	require.NoError(t, err)

	_, err = canbridge.ToFrame(append(s1, s2...))
	require.Error(t, err)
}
