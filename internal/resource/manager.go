package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/emr/console/internal/platform/transport"
)

// Config describes one entity's Manager.
type Config struct {
	// Resource is the singular display name, e.g. "Lab test".
	Resource string
	// Path is the backend collection path, e.g. "/lab-tests".
	Path     string
	Gateway  transport.Gateway
	Notifier Notifier
	PerPage  int
	Debounce time.Duration
	// Validate runs before create and update submissions. Defaults to
	// ValidateStruct.
	Validate  func(payload any) error
	OnOutcome func(ctx context.Context, o Outcome)
	Metrics   *Metrics
	Logger    zerolog.Logger
}

// Listener is called after every applied fetch.
type Listener[T Record] func(q QueryState, c CacheState[T])

// Manager combines the query, cache and mutation coordinator of one view.
// Instances are never shared between views.
type Manager[T Record] struct {
	cfg   Config
	query *Query
	cache *Cache[T]
	coord *Coordinator[T]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	closed    bool
	listeners map[int]Listener[T]
	nextID    int
}

// NewManager wires a Manager. Query changes trigger background refetches
// until Close is called.
func NewManager[T Record](cfg Config) *Manager[T] {
	if cfg.Notifier == nil {
		cfg.Notifier = discard{}
	}
	if cfg.Validate == nil {
		cfg.Validate = ValidateStruct
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager[T]{
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		listeners: make(map[int]Listener[T]),
	}
	m.cache = NewCache[T](cfg.Resource, cfg.Path, cfg.Gateway, cfg.Metrics)
	m.query = NewQuery(QueryOptions{
		PerPage:  cfg.PerPage,
		Debounce: cfg.Debounce,
		OnChange: m.refetchAsync,
	})
	m.coord = NewCoordinator[T](CoordinatorOptions{
		Resource:  cfg.Resource,
		Path:      cfg.Path,
		Gateway:   cfg.Gateway,
		Notifier:  cfg.Notifier,
		Cache:     m,
		Validate:  cfg.Validate,
		OnOutcome: cfg.OnOutcome,
		Metrics:   cfg.Metrics,
		Logger:    cfg.Logger,
	})
	return m
}

// Name returns the display name of the managed resource.
func (m *Manager[T]) Name() string { return m.cfg.Resource }

// Snapshot returns copies of the query and cache state.
func (m *Manager[T]) Snapshot() (QueryState, CacheState[T]) {
	return m.query.State(), m.cache.Snapshot()
}

// Refresh fetches the page for the current query and waits for it.
func (m *Manager[T]) Refresh(ctx context.Context) (CacheState[T], error) {
	st := m.query.State()
	return m.fetch(ctx, st)
}

// Sync replaces the query with st, without a debounce, and fetches it.
func (m *Manager[T]) Sync(ctx context.Context, st QueryState) (CacheState[T], error) {
	m.query.Restore(st)
	return m.Refresh(ctx)
}

// Invalidate marks the cache stale.
func (m *Manager[T]) Invalidate() { m.cache.Invalidate() }

// Refetch re-reads the current page through the cache.
func (m *Manager[T]) Refetch(ctx context.Context) error {
	_, err := m.Refresh(ctx)
	return err
}

// Query setters forward to the Query; the resulting fetches run in the
// background and pass through the stale guard.
func (m *Manager[T]) SetSearch(text string) { m.query.SetSearch(text) }
func (m *Manager[T]) SetPage(n int) { m.query.SetPage(n) }
func (m *Manager[T]) SetPerPage(n int) { m.query.SetPerPage(n) }
func (m *Manager[T]) SetFilter(key string, value any) { m.query.SetFilter(key, value) }

// Submit runs a mutation through the coordinator.
func (m *Manager[T]) Submit(ctx context.Context, intent MutationIntent) (T, error) {
	return m.coord.Submit(ctx, intent)
}

// Busy reports whether a mutation on recordID is in flight.
func (m *Manager[T]) Busy(recordID string) bool {
	return m.coord.InFlight(recordID)
}

// Get reads one record directly from the backend. The cache is not touched.
func (m *Manager[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	path := m.cfg.Path + "/" + url.PathEscape(id)
	env, err := m.cfg.Gateway.Request(ctx, http.MethodGet, path, transport.Options{})
	if err != nil {
		return zero, err
	}
	rec, err := transport.DecodeRecord[T](env)
	if err != nil {
		return zero, &transport.TransportError{Method: http.MethodGet, Path: path, Err: err}
	}
	return rec, nil
}

// Subscribe registers fn for state changes. The returned func removes it.
func (m *Manager[T]) Subscribe(fn Listener[T]) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Close stops pending triggers and waits for background fetches.
func (m *Manager[T]) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.mu.Unlock()

	m.query.Stop()
	m.cancel()
	m.wg.Wait()
}

func (m *Manager[T]) refetchAsync(st QueryState) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		if _, err := m.fetch(m.ctx, st); err != nil && !errors.Is(err, ErrSuperseded) {
			m.cfg.Logger.Debug().Err(err).Str("resource", m.cfg.Resource).Msg("background fetch failed")
		}
	}()
}

func (m *Manager[T]) fetch(ctx context.Context, st QueryState) (CacheState[T], error) {
	cs, err := m.cache.Fetch(ctx, st.RequestParams())
	if errors.Is(err, ErrSuperseded) {
		return cs, err
	}
	if err != nil {
		m.cfg.Notifier.Notify(LevelError, UserMessage(err))
		err = fmt.Errorf("fetch %s: %w", m.cfg.Path, err)
	}
	m.publish(st, cs)
	return cs, err
}

func (m *Manager[T]) publish(st QueryState, cs CacheState[T]) {
	m.mu.Lock()
	fns := make([]Listener[T], 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(st, cs)
	}
}
