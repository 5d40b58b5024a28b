// Package audit journals the outcome of every create, update and delete the
// console submits to the backend. Payloads are never stored, only who/what
// identifiers and the result.
package audit

import (
	"context"
	"embed"
	"io/fs"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/emr/console/internal/resource"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the journal's schema migrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Outcome is the terminal result of one mutation.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeConflict  Outcome = "conflict"
	OutcomeInvalid   Outcome = "invalid"
)

// Entry is one journaled mutation.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	Resource  string    `json:"resource"`
	Kind      string    `json:"kind"`
	RecordID  string    `json:"record_id"`
	Outcome   Outcome   `json:"outcome"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	At        time.Time `json:"at"`
}

// Recorder persists entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Lister pages through entries, newest first.
type Lister interface {
	List(ctx context.Context, limit, offset int) ([]Entry, int, error)
}

// Store is a Recorder that can also be read back.
type Store interface {
	Recorder
	Lister
}

// FromOutcome converts a terminal coordinator outcome into an Entry. ok is
// false for non-terminal phases.
func FromOutcome(o resource.Outcome) (e Entry, ok bool) {
	var out Outcome
	switch o.Phase {
	case resource.PhaseSucceeded:
		out = OutcomeSucceeded
	case resource.PhaseFailed:
		switch o.ErrorKind {
		case resource.KindConflict:
			out = OutcomeConflict
		case resource.KindValidation:
			out = OutcomeInvalid
		default:
			out = OutcomeFailed
		}
	default:
		return Entry{}, false
	}

	return Entry{
		ID:        uuid.New(),
		Resource:  o.Resource,
		Kind:      string(o.Kind),
		RecordID:  o.RecordID,
		Outcome:   out,
		Message:   o.Message,
		RequestID: o.RequestID,
		At:        o.At,
	}, true
}

// Hook returns a coordinator outcome hook that journals terminal outcomes to
// rec. Journal failures are logged and never fail the mutation.
func Hook(rec Recorder, logger zerolog.Logger) func(context.Context, resource.Outcome) {
	return func(ctx context.Context, o resource.Outcome) {
		e, ok := FromOutcome(o)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := rec.Record(ctx, e); err != nil {
			logger.Error().Err(err).
				Str("resource", e.Resource).
				Str("record_id", e.RecordID).
				Str("outcome", string(e.Outcome)).
				Msg("failed to journal mutation")
		}
	}
}

// LogRecorder writes entries to the structured log.
type LogRecorder struct {
	Logger zerolog.Logger
}

func (r LogRecorder) Record(_ context.Context, e Entry) error {
	evt := r.Logger.Info()
	if e.Outcome != OutcomeSucceeded {
		evt = r.Logger.Warn()
	}
	evt.
		Str("audit_id", e.ID.String()).
		Str("resource", e.Resource).
		Str("kind", e.Kind).
		Str("record_id", e.RecordID).
		Str("outcome", string(e.Outcome)).
		Str("request_id", e.RequestID).
		Str("message", e.Message).
		Time("at", e.At).
		Msg("mutation")
	return nil
}

// Multi fans an entry out to several recorders. Every recorder is called;
// the first error is returned.
func Multi(recs ...Recorder) Recorder {
	return multi(recs)
}

type multi []Recorder

func (m multi) Record(ctx context.Context, e Entry) error {
	var first error
	for _, r := range m {
		if err := r.Record(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// MemoryStore keeps entries in memory. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

// NewMemoryStore keeps at most max entries; older ones are dropped. A
// non-positive max keeps 1000.
func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = 1000
	}
	return &MemoryStore{max: max}
}

func (s *MemoryStore) Record(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	if over := len(s.entries) - s.max; over > 0 {
		s.entries = append([]Entry(nil), s.entries[over:]...)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit, offset int) ([]Entry, int, error) {
	s.mu.Lock()
	sorted := append([]Entry(nil), s.entries...)
	s.mu.Unlock()

	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.After(sorted[j].At) })

	total := len(sorted)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []Entry{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return sorted[offset:end], total, nil
}
