// Package capture reads a live edge stream off a serial line driver (an
// Arduino-class microcontroller sampling the FlexRay bus and framing its
// observations), one edge at a time. Callers feed each edge into a
// sampler.Sampler via Feed themselves, from the same goroutine that
// drives decoding — §5's single-threaded pull-based pipeline — rather
// than through a separate pump goroutine racing the decoder.
package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"flexray/signal"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// Wire format for one edge record, little-endian, resynchronized on a
// magic byte pair the way huskki's binary DID log frames do:
// [AA 55][sample_delta:u32 LE][level:u8][crc8:u8]
// sample_delta is the gap in samples since the previous edge (0 for the
// first edge a Source emits), keeping the wire field small even at
// multi-megahertz sample rates that would overflow a 32-bit absolute
// sample index quickly.
var magicBytes = [2]byte{0xAA, 0x55}

var errBadCRC = errors.New("capture: edge record checksum mismatch")

// preferredVIDs lists USB vendor IDs of common microcontroller boards,
// used by AutoSelectPort the same way huskki's Arduino driver picks a
// default serial device.
var preferredVIDs = map[string]bool{
	"2341": true, // Arduino
	"2A03": true, // Arduino (older)
	"1A86": true, // CH340
	"10C4": true, // CP210x
	"0403": true, // FTDI
}

// AutoSelectPort returns the first enumerated USB serial port whose
// vendor ID matches a known microcontroller board.
func AutoSelectPort() (string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return "", fmt.Errorf("capture: enumerate ports: %w", err)
	}
	for _, p := range ports {
		if p.IsUSB && preferredVIDs[strings.ToUpper(p.VID)] {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("capture: no recognized capture device found")
}

// Open opens portName at baud, or auto-selects a port when portName is
// "auto".
func Open(portName string, baud int) (serial.Port, error) {
	if portName == "auto" {
		name, err := AutoSelectPort()
		if err != nil {
			return nil, err
		}
		portName = name
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("capture: open %s: %w", portName, err)
	}
	return port, nil
}

// Source decodes the edge wire format from an io.Reader and exposes it as
// one edge at a time. The zero value is not usable; construct with
// NewSource.
type Source struct {
	r          *bufio.Reader
	lastSample uint64
	hasSample  bool
	polarity   signal.Polarity
}

// NewSource wraps r (typically a serial.Port) as an edge Source, applying
// polarity to every decoded level before handing it to callers — the
// inversion named in §6's configuration table is resolved here, at the
// capture boundary, so nothing above this package ever sees a physical
// level.
func NewSource(r io.Reader, polarity signal.Polarity) *Source {
	return &Source{r: bufio.NewReaderSize(r, 1<<16), polarity: polarity}
}

// Next blocks for and returns the next edge on the wire.
func (s *Source) Next() (signal.Edge, error) {
	if err := s.resync(); err != nil {
		return signal.Edge{}, err
	}

	body := make([]byte, 6)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return signal.Edge{}, err
	}

	delta := binary.LittleEndian.Uint32(body[0:4])
	physicalHigh := body[4] != 0
	crcRx := body[5]

	want := CRC8(body[0:5])
	if want != crcRx {
		return signal.Edge{}, errBadCRC
	}

	if !s.hasSample {
		s.hasSample = true
	} else {
		s.lastSample += uint64(delta)
	}

	return signal.Edge{Sample: s.lastSample, Level: s.polarity.Logical(physicalHigh)}, nil
}

// resync discards bytes up to and including the next magic byte pair.
func (s *Source) resync() error {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if b != magicBytes[0] {
			continue
		}
		b2, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if b2 == magicBytes[1] {
			return nil
		}
	}
}

// CRC8 computes the CRC-8-CCITT (poly 0x07, init 0x00) checksum huskki's
// binary log frames use, over an edge record's delta+level body. Exported
// so replay.Writer can build records matching what Source decodes.
func CRC8(buf []byte) byte {
	var crc byte
	for _, b := range buf {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
