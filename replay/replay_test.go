package replay_test

import (
	"bytes"
	"testing"

	"flexray/capture"
	"flexray/frame"
	"flexray/frameparser"
	"flexray/replay"
	"flexray/resultsink"
	"flexray/sampler"
	"flexray/signal"

	"github.com/stretchr/testify/require"
)

func TestWriteEdgesRoundTripsThroughCaptureSource(t *testing.T) {
	edges := []signal.Edge{
		{Sample: 0, Level: signal.Recessive},
		{Sample: 50, Level: signal.Dominant},
		{Sample: 120, Level: signal.Recessive},
	}

	var buf bytes.Buffer
	require.NoError(t, replay.NewWriter(&buf).WriteEdges(edges))

	src := capture.NewSource(&buf, signal.Polarity{})
	for _, want := range edges {
		got, err := src.Next()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestPlayerDrivesFrameThroughFullPipeline(t *testing.T) {
	var buf bytes.Buffer
	player := &replay.Player{
		Writer:        replay.NewWriter(&buf),
		SamplesPerBit: 16,
		Speed:         0, // as fast as possible
		IdleBits:      sampler.MinIdleLen,
	}
	f := &frame.Frame{FrameID: 9, PayloadLength: 1, Payload: []byte{0x11, 0x22}}
	require.NoError(t, player.Play([]*frame.Frame{f}))

	src := capture.NewSource(&buf, signal.Polarity{})
	var edges []signal.Edge
	for {
		e, err := src.Next()
		if err != nil {
			break
		}
		edges = append(edges, e)
	}
	require.NotEmpty(t, edges)

	s := sampler.New(edges, 16)
	sink := resultsink.NewMemorySink()
	p := frameparser.New()
	require.NoError(t, p.ParseFrame(s, sink))

	var id frame.FieldRecord
	for _, r := range sink.Records() {
		if r.Kind == frame.FrameID {
			id = r
		}
	}
	require.Equal(t, uint64(9), id.Data1)
}
