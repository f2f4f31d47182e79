package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"ticksim/server/logging"
)

// JSON writes one JSON object per line to the provided writer, suitable for
// ingestion by an external log archive. Disabled by default.
type JSON struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSON constructs a JSON sink writing to w.
func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

type jsonRecord struct {
	Type     logging.EventType `json:"type"`
	Tick     uint64            `json:"tick"`
	ActorID  string            `json:"actorId,omitempty"`
	Severity string            `json:"severity"`
	Category logging.Category  `json:"category,omitempty"`
	Payload  any               `json:"payload,omitempty"`
	Extra    map[string]any    `json:"extra,omitempty"`
}

// Write implements logging.Sink.
func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := jsonRecord{
		Type:     event.Type,
		Tick:     event.Tick,
		ActorID:  event.Actor.ID,
		Severity: severityLabel(event.Severity),
		Category: event.Category,
		Payload:  event.Payload,
		Extra:    event.Extra,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("logging/sinks: marshal event: %w", err)
	}
	data = append(data, '\n')
	_, err = s.w.Write(data)
	return err
}

// Close implements logging.Sink.
func (s *JSON) Close(context.Context) error { return nil }

func severityLabel(sev logging.Severity) string {
	switch sev {
	case logging.SeverityDebug:
		return "debug"
	case logging.SeverityInfo:
		return "info"
	case logging.SeverityWarn:
		return "warn"
	case logging.SeverityError:
		return "error"
	default:
		return "unknown"
	}
}
