package events_test

import (
	"testing"
	"time"

	"flexray/events"
	"flexray/frame"
	"flexray/resultsink"

	"github.com/stretchr/testify/require"
)

func TestSubscribeReplaysLastRecord(t *testing.T) {
	hub := events.NewHub()
	hub.Broadcast(events.Record{Kind: "TSS", Data1: 5})

	_, ch, cancel := hub.Subscribe()
	defer cancel()

	select {
	case r := <-ch:
		require.Equal(t, "TSS", r.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected replayed record")
	}
}

func TestBroadcastDoesNotBlockOnFullSubscriber(t *testing.T) {
	hub := events.NewHub()
	_, ch, cancel := hub.Subscribe()
	defer cancel()
	_ = ch

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Broadcast(events.Record{Data1: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full subscriber channel")
	}
}

func TestCancelUnsubscribesAndClosesChannel(t *testing.T) {
	hub := events.NewHub()
	_, ch, cancel := hub.Subscribe()
	cancel()

	_, ok := <-ch
	require.False(t, ok, "channel should be closed after cancel")
}

func TestSinkBroadcastsCommittedRecords(t *testing.T) {
	hub := events.NewHub()
	mem := resultsink.NewMemorySink()
	sink := events.Wrap(mem, hub)

	_, ch, cancel := hub.Subscribe()
	defer cancel()

	sink.OpenPacket()
	sink.Commit(frame.FieldRecord{Kind: frame.TSS, Data1: 5})
	sink.CommitPacket()

	select {
	case r := <-ch:
		require.Equal(t, "TSS", r.Kind)
		require.Equal(t, uint64(5), r.Data1)
	case <-time.After(time.Second):
		t.Fatal("expected broadcast record")
	}
	require.Len(t, mem.Records(), 1)
}

func TestSinkCancelPacketAdvancesPacketID(t *testing.T) {
	hub := events.NewHub()
	mem := resultsink.NewMemorySink()
	sink := events.Wrap(mem, hub)

	_, ch, cancel := hub.Subscribe()
	defer cancel()

	sink.OpenPacket()
	sink.Commit(frame.FieldRecord{Kind: frame.TSS})
	sink.CancelPacket()

	sink.OpenPacket()
	sink.Commit(frame.FieldRecord{Kind: frame.FrameID, Data1: 7})
	sink.CommitPacket()

	var cancelledID, committedID int
	for i := 0; i < 2; i++ {
		select {
		case r := <-ch:
			if r.Kind == "TSS" {
				cancelledID = r.PacketID
			} else {
				committedID = r.PacketID
			}
		case <-time.After(time.Second):
			t.Fatal("expected two broadcast records")
		}
	}
	require.NotEqual(t, cancelledID, committedID, "cancelled packet's id must not be reused by the next packet")
}
