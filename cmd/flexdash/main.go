// Command flexdash runs a live capture-to-decode-to-dashboard pipeline:
// one goroutine feeds edges from a serial capture device into a sampler
// and decodes frames from it, pull-based and single-threaded per §5,
// fanning each committed field out over an events.Hub; a second
// goroutine serves a Datastar dashboard over the result. Optionally a
// third mirrors every completed frame onto a CAN trace, and decoded
// records can be exported to CSV alongside.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"

	"flexray/canbridge"
	"flexray/capture"
	"flexray/config"
	"flexray/events"
	"flexray/frame"
	"flexray/frameparser"
	"flexray/logging"
	"flexray/resultsink"
	csvsink "flexray/resultsink/csv"
	"flexray/sampler"
	"flexray/signal"
	"flexray/web"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a TOML config file (optional)")
		portName   = flag.String("port", "auto", "serial device path or 'auto'")
		baud       = flag.Int("baud", 115200, "baud rate")
		addr       = flag.String("addr", ":8080", "http listen address")
		csvPath    = flag.String("csv", "", "also export decoded records to this CSV file")
		canTrace   = flag.Bool("can-mirror", false, "log each completed frame re-packed as CAN frames")
		logLevel   = flag.String("log-level", "info", "log level (debug, info, warn, error)")
	)
	flag.Parse()

	logger := logging.Init("flexdash", logging.ParseLevel(*logLevel))

	defaultSampleRate := config.DefaultConfig().BitRate * 8
	cfg, err := config.LoadOptional(*configPath, defaultSampleRate)
	if err != nil {
		log.Fatalf("flexdash: %s", err)
	}

	port, err := capture.Open(*portName, *baud)
	if err != nil {
		log.Fatalf("flexdash: %s", err)
	}
	defer func() { _ = port.Close() }()

	src := capture.NewSource(port, signal.Polarity{Inverted: cfg.Inverted})
	samp := sampler.New(nil, cfg.SamplesPerBit())

	hub := events.NewHub()
	sink := buildSink(hub, *csvPath, logger)

	dashboard := web.NewDashboard(hub)
	server, err := web.NewServer(dashboard)
	if err != nil {
		log.Fatalf("flexdash: %s", err)
	}

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return runPipeline(groupCtx, src, samp, sink, logger)
	})

	if *canTrace {
		group.Go(func() error {
			return mirrorToCAN(groupCtx, hub, logger)
		})
	}

	group.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- server.Start(*addr) }()
		select {
		case <-groupCtx.Done():
			return nil
		case err := <-errCh:
			return err
		}
	})

	if err := group.Wait(); err != nil && groupCtx.Err() == nil {
		logger.Fatal().Err(err).Msg("flexdash exited")
	}
}

func buildSink(hub *events.Hub, csvPath string, logger zerolog.Logger) resultsink.Sink {
	var inner resultsink.Sink = resultsink.NewMemorySink()
	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("couldn't open csv export")
		}
		inner = csvsink.New(f)
	}
	return events.Wrap(inner, hub)
}

// runPipeline drives capture and decode from a single goroutine: it only
// ever feeds Sampler an edge and then calls ParseFrame from that same
// goroutine, matching §5's single-threaded pull-based pipeline rather
// than racing an independent capture-pump goroutine against Sampler's
// unsynchronized buffer.
func runPipeline(ctx context.Context, src *capture.Source, samp *sampler.Sampler, sink resultsink.Sink, logger zerolog.Logger) error {
	parser := frameparser.New()
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := parser.ParseFrame(samp, sink)
		switch {
		case err == nil:
			continue
		case errors.Is(err, frameparser.ErrNoFrame):
			edge, nextErr := src.Next()
			if nextErr != nil {
				if errors.Is(nextErr, io.EOF) {
					return nil
				}
				return nextErr
			}
			samp.Feed(edge)
		default:
			logger.Warn().Err(err).Msg("frame abandoned, resuming hunt")
		}
	}
}

// mirrorToCAN subscribes to hub independently of the dashboard and, for
// every packet that reaches FES cleanly, reassembles the minimal
// frame.Frame canbridge needs (frame_id and payload bytes) from that
// packet's committed Records and logs the resulting CAN segments.
// Packets cancelled mid-decode never produce a FES record, so they never
// reach this logging path — the same "no partial output" guarantee the
// sink chain gives every other consumer.
func mirrorToCAN(ctx context.Context, hub *events.Hub, logger zerolog.Logger) error {
	_, ch, cancel := hub.Subscribe()
	defer cancel()

	type pending struct {
		frameID uint16
		payload []byte
	}
	packets := map[int]*pending{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case record, ok := <-ch:
			if !ok {
				return nil
			}
			p, exists := packets[record.PacketID]
			if !exists {
				p = &pending{}
				packets[record.PacketID] = p
			}
			switch record.Kind {
			case "FrameId":
				p.frameID = uint16(record.Data1)
			case "DataByte":
				idx := int(record.Data2)
				for len(p.payload) <= idx {
					p.payload = append(p.payload, 0)
				}
				p.payload[idx] = byte(record.Data1)
			case "FES":
				f := &frame.Frame{
					FrameID:       p.frameID,
					PayloadLength: uint8(len(p.payload) / 2),
					Payload:       p.payload,
				}
				delete(packets, record.PacketID)
				segments, err := canbridge.FromFrame(f)
				if err != nil {
					logger.Warn().Err(err).Uint16("frame_id", f.FrameID).Msg("can mirror: couldn't repack frame")
					continue
				}
				logger.Info().Uint16("frame_id", f.FrameID).Int("can_segments", len(segments)).Msg("can mirror")
			}
		}
	}
}
