// Command flexdump decodes a live or file-based edge capture and writes
// the decoded fields to stdout or a CSV file, the analyzer-only
// counterpart of flexdash (no web UI, no CAN bridging).
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"flexray/capture"
	"flexray/config"
	"flexray/frameparser"
	"flexray/logging"
	"flexray/resultsink"
	csvsink "flexray/resultsink/csv"
	"flexray/sampler"
	"flexray/signal"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a TOML config file (optional)")
		portName   = flag.String("port", "auto", "serial device path or 'auto'")
		baud       = flag.Int("baud", 115200, "baud rate")
		inputPath  = flag.String("in", "", "decode a captured edge log file instead of a live serial port")
		csvPath    = flag.String("csv", "", "write decoded records to this CSV file instead of stdout")
		logLevel   = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := logging.Init("flexdump", logging.ParseLevel(*logLevel))

	cfg := loadConfig(*configPath)

	var out io.Writer = os.Stdout
	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			log.Fatalf("flexdump: %s", err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	var sink resultsink.Sink = csvsink.New(out)

	src, closeSrc, err := openSource(*inputPath, *portName, *baud, cfg)
	if err != nil {
		log.Fatalf("flexdump: %s", err)
	}
	defer closeSrc()

	samp := sampler.New(nil, cfg.SamplesPerBit())
	parser := frameparser.New()

	// Single goroutine, pull-based: ParseFrame only ever consumes edges
	// this same loop has already fed it, matching §5's dedicated-thread
	// pipeline rather than racing a separate producer goroutine against
	// Sampler's unsynchronized buffer.
	decoded := 0
	for {
		err := parser.ParseFrame(samp, sink)
		switch {
		case err == nil:
			decoded++
			continue
		case errors.Is(err, frameparser.ErrNoFrame):
			edge, nextErr := src.Next()
			if nextErr != nil {
				if !errors.Is(nextErr, io.EOF) {
					logger.Error().Err(nextErr).Msg("capture stopped")
				}
				logger.Info().Int("frames", decoded).Msg("capture ended")
				return
			}
			samp.Feed(edge)
		default:
			logger.Warn().Err(err).Msg("frame abandoned, resuming hunt")
		}
	}
}

// loadConfig overlays configPath onto config.DefaultConfig when given and
// present, falling back to the default with an 8x-oversampled rate
// otherwise — a bare flexdump invocation should decode without requiring
// a TOML file.
func loadConfig(configPath string) config.Config {
	defaultSampleRate := config.DefaultConfig().BitRate * 8
	cfg, err := config.LoadOptional(configPath, defaultSampleRate)
	if err != nil {
		log.Fatalf("flexdump: %s", err)
	}
	return cfg
}

func openSource(inputPath, portName string, baud int, cfg config.Config) (*capture.Source, func(), error) {
	polarity := signal.Polarity{Inverted: cfg.Inverted}

	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open capture file: %w", err)
		}
		return capture.NewSource(f, polarity), func() { _ = f.Close() }, nil
	}

	port, err := capture.Open(portName, baud)
	if err != nil {
		return nil, nil, err
	}
	return capture.NewSource(port, polarity), func() { _ = port.Close() }, nil
}
