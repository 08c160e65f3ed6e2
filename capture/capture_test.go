package capture

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"flexray/signal"

	"github.com/stretchr/testify/require"
)

func encodeRecord(delta uint32, physicalHigh bool) []byte {
	body := make([]byte, 5)
	binary.LittleEndian.PutUint32(body[0:4], delta)
	if physicalHigh {
		body[4] = 1
	}
	crc := CRC8(body)
	rec := append([]byte{magicBytes[0], magicBytes[1]}, body...)
	return append(rec, crc)
}

func TestSourceDecodesSequentialEdges(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeRecord(0, true))
	buf.Write(encodeRecord(100, false))
	buf.Write(encodeRecord(50, true))

	src := NewSource(&buf, signal.Polarity{})

	e1, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(0), e1.Sample)
	require.Equal(t, signal.Recessive, e1.Level)

	e2, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(100), e2.Sample)
	require.Equal(t, signal.Dominant, e2.Level)

	e3, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(150), e3.Sample)
	require.Equal(t, signal.Recessive, e3.Level)

	_, err = src.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestSourceAppliesInvertedPolarity(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(encodeRecord(0, true))

	src := NewSource(&buf, signal.Polarity{Inverted: true})
	e, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, signal.Dominant, e.Level)
}

func TestSourceResyncsPastGarbageBytes(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x01, 0x02, 0xAA, 0x00}) // noise, including a lone 0xAA
	buf.Write(encodeRecord(7, false))

	src := NewSource(&buf, signal.Polarity{})
	e, err := src.Next()
	require.NoError(t, err)
	require.Equal(t, uint64(0), e.Sample)
	require.Equal(t, signal.Dominant, e.Level)
}

func TestSourceDetectsCorruptedRecord(t *testing.T) {
	rec := encodeRecord(0, true)
	rec[len(rec)-1] ^= 0xFF // flip the checksum byte
	src := NewSource(bytes.NewReader(rec), signal.Polarity{})

	_, err := src.Next()
	require.ErrorIs(t, err, errBadCRC)
}
