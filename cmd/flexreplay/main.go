// Command flexreplay builds frame.Frame values from a simple text script
// and drives them out over a serial line driver (or a file, for testing
// the encode path without hardware), the test-generator half of this
// repo: framebuilder's encode path given a concrete CLI front end.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"flexray/frame"
	"flexray/replay"
)

func main() {
	var (
		scriptPath = flag.String("script", "", "path to a frame script (required)")
		outPath    = flag.String("out", "", "write the encoded bitstream wire format to this file instead of a serial port")
		portName   = flag.String("port", "auto", "serial device path or 'auto'")
		baud       = flag.Int("baud", 115200, "baud rate")
		bitRate    = flag.Int("bit-rate", 10_000_000, "bit rate in bit/s")
		sampleRate = flag.Int("sample-rate", 80_000_000, "sample rate in Hz")
		speed      = flag.Float64("speed", 1.0, "playback speed multiplier (0 = as fast as possible)")
		loop       = flag.Bool("loop", false, "loop the script at end of file")
		idleBits   = flag.Uint64("idle-bits", 11, "idle bits inserted between frames")
	)
	flag.Parse()

	if *scriptPath == "" {
		log.Fatal("flexreplay: -script is required")
	}

	frames, err := loadScript(*scriptPath)
	if err != nil {
		log.Fatalf("flexreplay: %s", err)
	}

	var writer *replay.Writer
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.Fatalf("flexreplay: %s", err)
		}
		defer func() { _ = f.Close() }()
		writer = replay.NewWriter(f)
	} else {
		writer, err = replay.NewSerialWriter(*portName, *baud)
		if err != nil {
			log.Fatalf("flexreplay: %s", err)
		}
	}

	player := &replay.Player{
		Writer:        writer,
		SamplesPerBit: uint64(*sampleRate / *bitRate),
		Speed:         *speed,
		Loop:          *loop,
		IdleBits:      *idleBits,
	}

	if err := player.Play(frames); err != nil {
		log.Fatalf("flexreplay: %s", err)
	}
}

// loadScript parses a frame script: one frame per non-empty,
// non-comment line, fields separated by commas:
//
//	frame_id,cycle_count,sync,startup,null,preamble,payload_hex
//
// payload_hex may be empty for a zero-length payload. Unlike the wire
// formats this repo otherwise decodes, a script is meant to be
// hand-edited, so it stays plain text rather than binary.
func loadScript(path string) ([]*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var frames []*frame.Frame
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fr, err := parseScriptLine(line)
		if err != nil {
			return nil, fmt.Errorf("script line %d: %w", lineNum, err)
		}
		frames = append(frames, fr)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return frames, nil
}

func parseScriptLine(line string) (*frame.Frame, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 7 {
		return nil, fmt.Errorf("expected 7 fields, got %d", len(fields))
	}

	frameID, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 16)
	if err != nil {
		return nil, fmt.Errorf("frame_id: %w", err)
	}
	cycleCount, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 8)
	if err != nil {
		return nil, fmt.Errorf("cycle_count: %w", err)
	}

	payloadHex := strings.TrimSpace(fields[6])
	payload := []byte{}
	if payloadHex != "" {
		payload, err = hex.DecodeString(payloadHex)
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
	}
	if len(payload)%2 != 0 {
		payload = append(payload, 0)
	}

	return &frame.Frame{
		FrameID:         uint16(frameID),
		CycleCount:      uint8(cycleCount),
		SyncFrame:       parseBoolField(fields[2]),
		StartupFrame:    parseBoolField(fields[3]),
		NullFrame:       parseBoolField(fields[4]),
		PayloadPreamble: parseBoolField(fields[5]),
		PayloadLength:   uint8(len(payload) / 2),
		Payload:         payload,
	}, nil
}

func parseBoolField(raw string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(raw))
	return v
}
