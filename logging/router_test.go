package logging_test

import (
	"context"
	"log"
	"testing"
	"time"

	. "ticksim/server/logging"
	"ticksim/server/logging/sinks"
)

func TestRouterDeliversEventsToEnabledSinks(t *testing.T) {
	mem := sinks.NewMemory(16)
	cfg := Config{EnabledSinks: []string{"memory"}, BufferSize: 8, MinSeverity: SeverityDebug}
	router, err := NewRouter(cfg, SystemClock{}, log.Default(), map[string]Sink{"memory": mem})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), Event{Type: "lease.acquired", Severity: SeverityInfo})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(mem.Events()) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	events := mem.Events()
	if len(events) != 1 || events[0].Type != "lease.acquired" {
		t.Fatalf("expected the event to reach the memory sink, got %+v", events)
	}
}

func TestRouterFiltersBelowMinSeverity(t *testing.T) {
	mem := sinks.NewMemory(16)
	cfg := Config{EnabledSinks: []string{"memory"}, BufferSize: 8, MinSeverity: SeverityWarn}
	router, err := NewRouter(cfg, SystemClock{}, log.Default(), map[string]Sink{"memory": mem})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	defer router.Close(context.Background())

	router.Publish(context.Background(), Event{Type: "debug.noise", Severity: SeverityDebug})
	router.Publish(context.Background(), Event{Type: "real.warning", Severity: SeverityWarn})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(mem.Events()) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	events := mem.Events()
	if len(events) != 1 || events[0].Type != "real.warning" {
		t.Fatalf("expected only the warning-severity event to pass the filter, got %+v", events)
	}
}

func TestNewRouterRejectsNonPositiveBufferSize(t *testing.T) {
	_, err := NewRouter(Config{BufferSize: 0}, SystemClock{}, log.Default(), nil)
	if err == nil {
		t.Fatalf("expected an error for a non-positive buffer size")
	}
}

func TestWithFieldsAttachesStaticMetadataWithoutOverwriting(t *testing.T) {
	mem := sinks.NewMemory(16)
	cfg := Config{EnabledSinks: []string{"memory"}, BufferSize: 8, MinSeverity: SeverityDebug}
	router, err := NewRouter(cfg, SystemClock{}, log.Default(), map[string]Sink{"memory": mem})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	defer router.Close(context.Background())

	pub := WithFields(router, map[string]any{"component": "lease", "tick": 1})
	pub.Publish(context.Background(), Event{Type: "lease.acquired", Severity: SeverityInfo, Extra: map[string]any{"tick": 99}})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(mem.Events()) > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	events := mem.Events()
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	if events[0].Extra["component"] != "lease" {
		t.Fatalf("expected static field to be attached, got %+v", events[0].Extra)
	}
	if events[0].Extra["tick"] != 99 {
		t.Fatalf("expected the event's own field to win over the static default, got %+v", events[0].Extra)
	}
}
