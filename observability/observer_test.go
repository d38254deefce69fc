package observability_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tailored-agentic-units/clones/observability"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  string
	}{
		{level: 1, want: "TRACE"},
		{level: observability.LevelVerbose, want: "DEBUG"},
		{level: observability.LevelInfo, want: "INFO"},
		{level: observability.LevelWarning, want: "WARN"},
		{level: observability.LevelError, want: "ERROR"},
		{level: 21, want: "FATAL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
			}
		})
	}
}

func TestLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level observability.Level
		want  slog.Level
	}{
		{level: observability.LevelVerbose, want: slog.LevelDebug},
		{level: observability.LevelInfo, want: slog.LevelInfo},
		{level: observability.LevelWarning, want: slog.LevelWarn},
		{level: observability.LevelError, want: slog.LevelError},
	}

	for _, tt := range tests {
		if got := tt.level.SlogLevel(); got != tt.want {
			t.Errorf("Level(%d).SlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestEmit_StampsTimestamp(t *testing.T) {
	rec := observability.NewRecorder()
	observability.Emit(context.Background(), rec, observability.Event{Type: "test.event"})

	events := rec.Events()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Timestamp.IsZero() {
		t.Error("Emit should set a timestamp")
	}
}

func TestEmit_NilObserver(t *testing.T) {
	observability.Emit(context.Background(), nil, observability.Event{Type: "test.event"})
}

func TestMultiObserver(t *testing.T) {
	first := observability.NewRecorder()
	second := observability.NewRecorder()

	multi := observability.NewMultiObserver(nil, first, nil, second)
	multi.OnEvent(context.Background(), observability.Event{
		Type:      "test.event",
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
	})

	if len(first.Events()) != 1 || len(second.Events()) != 1 {
		t.Errorf("got %d and %d events, want 1 each", len(first.Events()), len(second.Events()))
	}
}

func TestSlogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	obs := observability.NewSlogObserver(logger)
	obs.OnEvent(context.Background(), observability.Event{
		Type:   "factory.create.complete",
		Level:  observability.LevelInfo,
		Source: "factory.Create",
		Data:   map[string]any{"salt": "0x00"},
	})
	obs.OnEvent(context.Background(), observability.Event{
		Type:  "ledger.commit",
		Level: observability.LevelVerbose,
	})

	out := buf.String()
	for _, want := range []string{"factory.create.complete", "source=factory.Create", "salt=0x00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
	if strings.Contains(out, "ledger.commit") {
		t.Errorf("verbose event should be filtered at info level: %s", out)
	}
}

func TestRecorder_CopiesData(t *testing.T) {
	rec := observability.NewRecorder()
	data := map[string]any{"k": 1}
	rec.OnEvent(context.Background(), observability.Event{Type: "a", Data: data})
	data["k"] = 2

	if got := rec.Events()[0].Data["k"]; got != 1 {
		t.Errorf("recorded data = %v, want 1", got)
	}
}

func TestRecorder_OfTypeAndReset(t *testing.T) {
	rec := observability.NewRecorder()
	rec.OnEvent(context.Background(), observability.Event{Type: "a"})
	rec.OnEvent(context.Background(), observability.Event{Type: "b"})
	rec.OnEvent(context.Background(), observability.Event{Type: "a"})

	if got := len(rec.OfType("a")); got != 2 {
		t.Errorf("OfType(a) = %d events, want 2", got)
	}

	rec.Reset()
	if got := len(rec.Events()); got != 0 {
		t.Errorf("after Reset got %d events, want 0", got)
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"noop", "slog"} {
		if _, err := observability.GetObserver(name); err != nil {
			t.Errorf("GetObserver(%q) error = %v", name, err)
		}
	}

	if _, err := observability.GetObserver("missing"); !errors.Is(err, observability.ErrUnknownObserver) {
		t.Errorf("GetObserver(missing) error = %v, want ErrUnknownObserver", err)
	}

	rec := observability.NewRecorder()
	observability.RegisterObserver("test-recorder", rec)

	obs, err := observability.GetObserver("test-recorder")
	if err != nil {
		t.Fatalf("GetObserver failed: %v", err)
	}
	obs.OnEvent(context.Background(), observability.Event{Type: "x"})
	if len(rec.Events()) != 1 {
		t.Error("registered observer did not receive the event")
	}

	if !slices.Contains(observability.ObserverNames(), "test-recorder") {
		t.Error("ObserverNames missing test-recorder")
	}
}
