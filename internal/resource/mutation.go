package resource

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/emr/console/internal/platform/transport"
)

// MutationKind is the operation a MutationIntent performs.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

func (k MutationKind) pastTense() string {
	switch k {
	case MutationCreate:
		return "created"
	case MutationUpdate:
		return "updated"
	case MutationDelete:
		return "deleted"
	}
	return string(k)
}

// MutationIntent is a requested create, update or delete. Intents live only
// for the duration of one Submit.
type MutationIntent struct {
	Kind     MutationKind
	RecordID string
	// Payload is JSON-encoded as the request body. Ignored when Multipart
	// is set.
	Payload   any
	Multipart *transport.Multipart
}

// createSlot is the in-flight key shared by creates that carry no id, so a
// double-submitted create form is rejected like any other double submit.
const createSlot = "\x00create"

func (i MutationIntent) key() string {
	if i.RecordID == "" && i.Kind == MutationCreate {
		return createSlot
	}
	return i.RecordID
}

// Phase is the lifecycle position of one intent.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// Outcome reports a phase change of one intent.
type Outcome struct {
	Resource  string
	Kind      MutationKind
	RecordID  string
	Phase     Phase
	ErrorKind ErrorKind
	Message   string
	RequestID string
	At        time.Time
}

// Refresher is the cache side of a Coordinator. Refetch must go through the
// cache's own fetch path with the view's current query.
type Refresher interface {
	Invalidate()
	Refetch(ctx context.Context) error
}

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	// Resource is the singular display name used in default messages,
	// e.g. "Patient".
	Resource string
	Path     string
	Gateway  transport.Gateway
	Notifier Notifier
	Cache    Refresher
	// Validate checks a payload before anything is sent. A
	// *ValidationError is kept as is; any other error is wrapped.
	Validate  func(payload any) error
	OnOutcome func(ctx context.Context, o Outcome)
	Metrics   *Metrics
	Logger    zerolog.Logger
}

// Coordinator serializes mutations per record and keeps the cache
// consistent with confirmed outcomes.
type Coordinator[T Record] struct {
	opts CoordinatorOptions

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewCoordinator creates a Coordinator. A nil Notifier discards messages.
func NewCoordinator[T Record](opts CoordinatorOptions) *Coordinator[T] {
	if opts.Notifier == nil {
		opts.Notifier = discard{}
	}
	return &Coordinator[T]{opts: opts, inflight: make(map[string]struct{})}
}

// InFlight reports whether a mutation for recordID is pending. An empty id
// asks about the create slot.
func (c *Coordinator[T]) InFlight(recordID string) bool {
	key := recordID
	if key == "" {
		key = createSlot
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}

// Submit runs one intent to completion. On success the cache is invalidated
// and refetched before the success message is sent, and the decoded record
// (zero for deletes) is returned. Every failure is a *MutationError; the
// cache is not touched.
func (c *Coordinator[T]) Submit(ctx context.Context, intent MutationIntent) (T, error) {
	var zero T

	ctx, span := tracer.Start(ctx, "resource.mutate")
	defer span.End()
	span.SetAttributes(
		attribute.String("resource", c.opts.Resource),
		attribute.String("mutation.kind", string(intent.Kind)),
		attribute.String("record.id", intent.RecordID),
	)

	if transport.RequestIDFromContext(ctx) == "" {
		ctx = transport.ContextWithRequestID(ctx, uuid.NewString())
	}

	if err := c.preflight(intent); err != nil {
		return zero, c.fail(ctx, intent, KindValidation, UserMessage(err), err, LevelError)
	}

	key := intent.key()
	if !c.acquire(key) {
		return zero, c.fail(ctx, intent, KindConflict, conflictMessage, ErrConflict, LevelWarning)
	}
	defer c.release(key)

	c.emit(ctx, intent, PhaseSubmitting, "", "")

	env, err := c.send(ctx, intent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, c.fail(ctx, intent, Classify(err), UserMessage(err), err, LevelError)
	}

	var rec T
	if intent.Kind != MutationDelete {
		if rec, err = transport.DecodeRecord[T](env); err != nil {
			c.opts.Logger.Warn().Err(err).
				Str("resource", c.opts.Resource).
				Str("kind", string(intent.Kind)).
				Msg("mutation succeeded but response record could not be decoded")
			rec = zero
		}
	}

	if c.opts.Cache != nil {
		c.opts.Cache.Invalidate()
		if rerr := c.opts.Cache.Refetch(ctx); rerr != nil && !errors.Is(rerr, ErrSuperseded) {
			c.opts.Logger.Warn().Err(rerr).
				Str("resource", c.opts.Resource).
				Msg("refetch after mutation failed")
		}
	}

	msg := env.Message
	if msg == "" {
		msg = c.opts.Resource + " " + intent.Kind.pastTense()
	}
	c.opts.Metrics.observeMutation(c.opts.Resource, intent.Kind, string(PhaseSucceeded))
	c.emit(ctx, intent, PhaseSucceeded, "", msg)
	c.opts.Notifier.Notify(LevelSuccess, msg)
	return rec, nil
}

func (c *Coordinator[T]) preflight(intent MutationIntent) error {
	switch intent.Kind {
	case MutationCreate:
	case MutationUpdate, MutationDelete:
		if intent.RecordID == "" {
			return NewValidationError("id", "A record id is required to "+string(intent.Kind)+".")
		}
	default:
		return NewValidationError("kind", "Unknown operation "+string(intent.Kind)+".")
	}

	if c.opts.Validate == nil || intent.Payload == nil || intent.Kind == MutationDelete {
		return nil
	}
	if err := c.opts.Validate(intent.Payload); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return NewValidationError("", err.Error())
	}
	return nil
}

func (c *Coordinator[T]) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Coordinator[T]) release(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

func (c *Coordinator[T]) send(ctx context.Context, intent MutationIntent) (*transport.Envelope, error) {
	opts := transport.Options{
		Headers: http.Header{transport.IdempotencyKeyHeader: []string{uuid.NewString()}},
	}
	if intent.Multipart != nil {
		opts.Multipart = intent.Multipart
	} else if intent.Kind != MutationDelete {
		opts.Body = intent.Payload
	}

	switch intent.Kind {
	case MutationCreate:
		return c.opts.Gateway.Request(ctx, http.MethodPost, c.opts.Path, opts)
	case MutationUpdate:
		return c.opts.Gateway.Request(ctx, http.MethodPut, c.recordPath(intent.RecordID), opts)
	default:
		return c.opts.Gateway.Request(ctx, http.MethodDelete, c.recordPath(intent.RecordID), opts)
	}
}

func (c *Coordinator[T]) recordPath(id string) string {
	return c.opts.Path + "/" + url.PathEscape(id)
}

func (c *Coordinator[T]) fail(ctx context.Context, intent MutationIntent, kind ErrorKind, msg string, cause error, level Level) error {
	if msg == "" {
		msg = transport.DefaultErrorMessage
	}
	c.opts.Metrics.observeMutation(c.opts.Resource, intent.Kind, string(kind))
	c.emit(ctx, intent, PhaseFailed, kind, msg)
	c.opts.Notifier.Notify(level, msg)

	ev := c.opts.Logger.Warn()
	if kind == KindTransport {
		ev = c.opts.Logger.Error()
	}
	ev.Err(cause).
		Str("resource", c.opts.Resource).
		Str("kind", string(intent.Kind)).
		Str("record_id", intent.RecordID).
		Str("error_kind", string(kind)).
		Msg("mutation failed")

	return &MutationError{
		Kind:     kind,
		Op:       intent.Kind,
		RecordID: intent.RecordID,
		Message:  msg,
		Err:      cause,
	}
}

func (c *Coordinator[T]) emit(ctx context.Context, intent MutationIntent, phase Phase, kind ErrorKind, msg string) {
	if c.opts.OnOutcome == nil {
		return
	}
	c.opts.OnOutcome(ctx, Outcome{
		Resource:  c.opts.Resource,
		Kind:      intent.Kind,
		RecordID:  intent.RecordID,
		Phase:     phase,
		ErrorKind: kind,
		Message:   msg,
		RequestID: transport.RequestIDFromContext(ctx),
		At:        time.Now().UTC(),
	})
}
