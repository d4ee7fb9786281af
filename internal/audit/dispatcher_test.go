package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestDispatcherStampsAndDelivers(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "password_changed", UserID: "u1", Success: true})

	select {
	case ev := <-sink.Events():
		if ev.ID == "" {
			t.Fatal("expected event id to be assigned")
		}
		if ev.Timestamp.IsZero() {
			t.Fatal("expected timestamp to be assigned")
		}
		if ev.UserID != "u1" || ev.EventType != "password_changed" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "x"})
	d.Close()
	if d.Dropped() != 0 || d.Delivered() != 0 {
		t.Fatal("nil dispatcher must report zero counters")
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s blockingSink) Emit(context.Context, Event) { <-s.release }

func TestDispatcherDropIfFull(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "flood"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected some events to be dropped")
	}
	close(sink.release)
	d.Close()
}

func TestCloseDrainsQueue(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(Config{Enabled: true, BufferSize: 8}, NewJSONWriterSink(&buf))
	for i := 0; i < 3; i++ {
		d.Emit(context.Background(), Event{EventType: "recovery_code_redeemed", Success: true})
	}
	d.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 JSON lines, got %d", len(lines))
	}
	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if d.Delivered() != 3 {
		t.Fatalf("expected 3 delivered, got %d", d.Delivered())
	}
	d.Emit(context.Background(), Event{EventType: "after_close"})
	if d.Delivered() != 3 {
		t.Fatal("emit after close must be ignored")
	}
}

func TestSlogSinkLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	sink := NewSlogSink(logger)

	sink.Emit(context.Background(), Event{ID: "e1", EventType: "two_factor_failed", UserID: "u1", Provider: "Authenticator", Error: "invalid_token"})
	out := buf.String()
	for _, want := range []string{`"level":"WARN"`, `"event_type":"two_factor_failed"`, `"provider":"Authenticator"`, `"error":"invalid_token"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
}

// gatedSink reports when delivery starts and blocks until released.
type gatedSink struct {
	entered chan struct{}
	release chan struct{}
}

func (s gatedSink) Emit(context.Context, Event) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
}

func TestDispatcherKeepsCriticalEventsWhenFull(t *testing.T) {
	sink := gatedSink{entered: make(chan struct{}, 1), release: make(chan struct{})}
	d := NewDispatcher(Config{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
		Critical:   func(eventType string) bool { return eventType == "locked_out" },
	}, sink)

	d.Emit(context.Background(), Event{EventType: "access_failed"})
	select {
	case <-sink.entered:
	case <-time.After(time.Second):
		t.Fatal("first event never reached the sink")
	}
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: "access_failed"})
	}
	dropped := d.Dropped()
	if dropped == 0 {
		t.Fatal("expected routine events to be dropped")
	}

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "locked_out"})
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("critical event must wait for buffer space instead of being dropped")
	case <-time.After(50 * time.Millisecond):
	}

	close(sink.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("critical event never queued")
	}
	d.Close()
	if d.Dropped() != dropped {
		t.Fatalf("critical event counted as dropped: %d -> %d", dropped, d.Dropped())
	}
}

func TestDispatcherRedactsSecretMetadata(t *testing.T) {
	sink := NewChannelSink(4)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, Now: func() time.Time { return fixed }}, sink)

	meta := map[string]string{"provider": "Email", "Recovery_Code": "ABCDE-FGHJK", "reset_token": "t0k"}
	d.Emit(context.Background(), Event{EventType: "two_factor_failure", Metadata: meta})
	d.Close()

	ev := <-sink.Events()
	if ev.Metadata["provider"] != "Email" {
		t.Fatalf("provider must pass through, got %q", ev.Metadata["provider"])
	}
	for _, k := range []string{"Recovery_Code", "reset_token"} {
		if ev.Metadata[k] != Redacted {
			t.Fatalf("expected %s redacted, got %q", k, ev.Metadata[k])
		}
	}
	if meta["reset_token"] != "t0k" {
		t.Fatal("caller metadata must not be mutated")
	}
	if !ev.Timestamp.Equal(fixed) {
		t.Fatalf("expected timestamp from the configured clock, got %v", ev.Timestamp)
	}
}
