package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Event is a security-relevant outcome of an engine operation. Error holds
// a client-safe code, never the underlying cause.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Level is Warn for failures and Info otherwise.
func (e Event) Level() slog.Level {
	if e.Success {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

// metadataKeys returns the metadata keys in a stable order.
func (e Event) metadataKeys() []string {
	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sink receives events from the dispatcher goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink exposes events on a channel, mostly for tests. Emit blocks
// while the channel is full.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line. Each line reaches the
// writer in a single Write call.
type JSONWriterSink struct {
	// OnError receives encode and write failures.
	OnError func(error)

	mu  sync.Mutex
	w   io.Writer
	buf bytes.Buffer
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{w: w}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.w == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf.Reset()
	if err := json.NewEncoder(&s.buf).Encode(event); err != nil {
		s.report(err)
		return
	}
	if _, err := s.w.Write(s.buf.Bytes()); err != nil {
		s.report(err)
	}
}

func (s *JSONWriterSink) report(err error) {
	if s.OnError != nil {
		s.OnError(err)
	}
}

// LogSink records events through a structured logger, failures at Warn.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, event Event) {
	attrs := make([]slog.Attr, 0, 7)
	attrs = append(attrs,
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
	)
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session_id", event.SessionID))
	}
	if event.IP != "" {
		attrs = append(attrs, slog.String("ip", event.IP))
	}
	if event.Error != "" {
		attrs = append(attrs, slog.String("error", event.Error))
	}
	if len(event.Metadata) > 0 {
		meta := make([]any, 0, len(event.Metadata))
		for _, k := range event.metadataKeys() {
			meta = append(meta, slog.String(k, event.Metadata[k]))
		}
		attrs = append(attrs, slog.Group("meta", meta...))
	}
	s.logger.LogAttrs(ctx, event.Level(), "audit", attrs...)
}
