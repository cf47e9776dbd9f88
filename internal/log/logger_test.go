package log

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func testEvent(details string) Event {
	return NewTransferEvent(time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC), "alice", "bob", 1, details)
}

// TestMemoryLoggerSeq: sequence numbers are assigned in log order, starting
// at 1.
func TestMemoryLoggerSeq(t *testing.T) {
	logger := NewMemoryLogger()
	logger.Log(testEvent("first"))
	logger.Log(testEvent("second"))

	events := logger.Events()
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Errorf("Expected seqs 1,2, got %d,%d", events[0].Seq, events[1].Seq)
	}
}

// TestEventsOfTypeAndLast: type filtering and last-event access.
func TestEventsOfTypeAndLast(t *testing.T) {
	logger := NewMemoryLogger()
	logger.Log(NewMintEvent(time.Now(), "issuer", "alice", 1, "Dragon Dore", "legendaire", 1, 150))
	logger.Log(testEvent("moved"))

	mints := logger.EventsOfType(EventMint)
	if len(mints) != 1 {
		t.Fatalf("Expected 1 mint event, got %d", len(mints))
	}
	if logger.LastEvent().Type != EventTransfer {
		t.Errorf("Expected last event to be a transfer, got %s", logger.LastEvent().Type)
	}

	empty := NewMemoryLogger()
	if empty.LastEvent().Seq != 0 {
		t.Error("Expected zero event from empty logger")
	}
}

// TestTextLoggerWrites: events land on the writer and stay queryable.
func TestTextLoggerWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewTextLogger(&buf)
	logger.Log(testEvent("zebra"))

	out := buf.String()
	if !strings.Contains(out, "zebra") {
		t.Errorf("Expected output to contain the card name, got %q", out)
	}
	if !strings.Contains(out, "Transfer") {
		t.Errorf("Expected output to contain the event type, got %q", out)
	}
	if len(logger.Events()) != 1 {
		t.Errorf("Expected 1 stored event, got %d", len(logger.Events()))
	}
}

// TestBroadcaster: subscribers see events logged after they subscribe, and
// cancelling closes the channel.
func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster(NewMemoryLogger())

	ch, cancel := b.Subscribe()
	b.Log(testEvent("live"))

	select {
	case e := <-ch:
		if !strings.Contains(e.Details, "live") {
			t.Errorf("Expected broadcast of the logged event, got %q", e.Details)
		}
		if e.Seq != 1 {
			t.Errorf("Expected broadcast event to carry seq 1, got %d", e.Seq)
		}
	default:
		t.Fatal("Expected a buffered event on the subscription channel")
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("Expected channel closed after cancel")
	}

	// Logging after all subscribers left must not panic or block.
	b.Log(testEvent("after"))
	if len(b.Events()) != 2 {
		t.Errorf("Expected 2 events stored, got %d", len(b.Events()))
	}
}
