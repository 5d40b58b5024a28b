package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/emr/console/internal/platform/transport"
	"github.com/emr/console/pkg/pagination"
)

var tracer = otel.Tracer("github.com/emr/console/internal/resource")

// Status is the fetch status of a Cache.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// CacheState is a snapshot of the last successfully fetched page plus the
// status of the most recent fetch.
type CacheState[T Record] struct {
	Status    Status
	Records   []T
	Meta      pagination.Meta
	Error     string
	FetchedAt time.Time
}

func (s CacheState[T]) clone() CacheState[T] {
	out := s
	out.Records = append([]T(nil), s.Records...)
	return out
}

// Cache owns the last fetched page of one resource list.
type Cache[T Record] struct {
	resource string
	path     string
	gw       transport.Gateway
	metrics  *Metrics

	mu     sync.Mutex
	state  CacheState[T]
	issued uint64
}

// NewCache creates an idle cache for the list at path.
func NewCache[T Record](resource, path string, gw transport.Gateway, metrics *Metrics) *Cache[T] {
	return &Cache[T]{
		resource: resource,
		path:     path,
		gw:       gw,
		metrics:  metrics,
		state:    CacheState[T]{Status: StatusIdle},
	}
}

// Snapshot returns a copy of the current state.
func (c *Cache[T]) Snapshot() CacheState[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Invalidate marks the cache as loading for its next read. Records and meta
// are kept, so calling it repeatedly changes nothing but the status.
func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	c.state.Status = StatusLoading
	c.mu.Unlock()
}

// Fetch loads one page. The latest issued fetch wins: a fetch that resolves
// after a newer one was issued leaves the cache untouched and returns
// ErrSuperseded. On failure the previous records are kept.
func (c *Cache[T]) Fetch(ctx context.Context, params url.Values) (CacheState[T], error) {
	ctx, span := tracer.Start(ctx, "resource.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("resource", c.resource))

	c.mu.Lock()
	c.issued++
	ticket := c.issued
	c.state.Status = StatusLoading
	c.mu.Unlock()

	start := time.Now()
	page, err := c.load(ctx, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	if ticket != c.issued {
		c.metrics.observeSuperseded(c.resource)
		span.SetAttributes(attribute.Bool("superseded", true))
		return c.state.clone(), ErrSuperseded
	}

	if err != nil {
		c.metrics.observeFetch(c.resource, string(Classify(err)), time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.state.Status = StatusError
		c.state.Error = UserMessage(err)
		return c.state.clone(), err
	}

	c.metrics.observeFetch(c.resource, "ok", time.Since(start))
	c.state = CacheState[T]{
		Status:    StatusReady,
		Records:   page.Data,
		Meta:      page.Meta(),
		FetchedAt: time.Now(),
	}
	return c.state.clone(), nil
}

func (c *Cache[T]) load(ctx context.Context, params url.Values) (pagination.PagedData[T], error) {
	env, err := c.gw.Request(ctx, http.MethodGet, c.path, transport.Options{Query: params})
	if err != nil {
		return pagination.PagedData[T]{}, err
	}
	page, err := transport.DecodePage[T](env)
	if err != nil {
		return page, &transport.TransportError{Method: http.MethodGet, Path: c.path, Err: fmt.Errorf("%s: %w", c.resource, err)}
	}
	if page.PerPage == 0 {
		page.PerPage = len(page.Data)
	}
	return page, nil
}
