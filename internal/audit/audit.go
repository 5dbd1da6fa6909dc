package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling/internal/principal"
)

// Entry describes one committed state change. ActorKind is always set for
// authenticated calls; ActorID only when the actor has a subject id.
type Entry struct {
	ID            int64          `json:"id,omitempty"`
	EventType     string         `json:"event_type"`
	AppointmentID *uuid.UUID     `json:"appointment_id,omitempty"`
	ActorKind     string         `json:"actor_kind,omitempty"`
	ActorID       *uuid.UUID     `json:"actor_id,omitempty"`
	Description   string         `json:"description"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Sink persists or forwards audit entries. Delivery guarantees are the sink's concern.
type Sink interface {
	Record(ctx context.Context, e Entry) error
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Query narrows ListEntries. EventType matches case-insensitively as a
// substring; an empty one matches everything.
type Query struct {
	EventType string
	Limit     int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultListLimit
	}
	return min(q.Limit, MaxListLimit)
}

// Reader lists stored entries, newest first.
type Reader interface {
	ListEntries(ctx context.Context, q Query) ([]Entry, error)
}

// Recorder emits entries on a best-effort basis: a failing sink is logged and
// never fails the operation that produced the entry.
type Recorder struct {
	sink   Sink
	logger zerolog.Logger
}

func NewRecorder(sink Sink, logger zerolog.Logger) *Recorder {
	return &Recorder{sink: sink, logger: logger}
}

func (r *Recorder) Emit(ctx context.Context, e Entry) {
	if r == nil || r.sink == nil {
		return
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if p, ok := principal.FromContext(ctx); ok {
		if e.ActorKind == "" {
			e.ActorKind = string(p.Kind)
		}
		if e.ActorID == nil && p.ID != uuid.Nil {
			id := p.ID
			e.ActorID = &id
		}
	}
	if err := r.sink.Record(ctx, e); err != nil {
		evt := r.logger.Error().Err(err).Str("event_type", e.EventType)
		if e.AppointmentID != nil {
			evt = evt.Str("appointment_id", e.AppointmentID.String())
		}
		evt.Msg("failed to record audit entry")
	}
}

// LogSink writes entries to the structured log.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Record(_ context.Context, e Entry) error {
	evt := s.logger.Info().Str("event_type", e.EventType).Time("at", e.CreatedAt)
	if e.AppointmentID != nil {
		evt = evt.Str("appointment_id", e.AppointmentID.String())
	}
	if e.ActorKind != "" {
		evt = evt.Str("actor_kind", e.ActorKind)
	}
	if e.ActorID != nil {
		evt = evt.Str("actor_id", e.ActorID.String())
	}
	if len(e.Payload) > 0 {
		evt = evt.Interface("payload", e.Payload)
	}
	evt.Msg(e.Description)
	return nil
}

// MultiSink fans out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink keeps entries in memory and numbers them in arrival order.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.entries) + 1)
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemorySink) ListEntries(_ context.Context, q Query) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(q.EventType)
	out := make([]Entry, 0, min(len(s.entries), q.limit()))
	for i := len(s.entries) - 1; i >= 0 && len(out) < q.limit(); i-- {
		e := s.entries[i]
		if needle != "" && !strings.Contains(strings.ToLower(e.EventType), needle) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemorySink) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// EventTypes lists recorded event types in order.
func (s *MemorySink) EventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.EventType)
	}
	return out
}
