package resource

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/emr/console/internal/platform/transport"
	"github.com/emr/console/pkg/pagination"
)

type widget struct {
	ID   ID     `json:"id"`
	Name string `json:"name" validate:"required"`
}

func (w widget) RecordID() string { return string(w.ID) }

type call struct {
	Method string
	Path   string
	Opts   transport.Options
}

// fakeGateway records every call and answers with handle.
type fakeGateway struct {
	mu     sync.Mutex
	calls  []call
	handle func(ctx context.Context, c call) (*transport.Envelope, error)
}

func (g *fakeGateway) Request(ctx context.Context, method, path string, opts transport.Options) (*transport.Envelope, error) {
	c := call{Method: method, Path: path, Opts: opts}
	g.mu.Lock()
	g.calls = append(g.calls, c)
	h := g.handle
	g.mu.Unlock()
	if h == nil {
		return &transport.Envelope{Success: true}, nil
	}
	return h(ctx, c)
}

func (g *fakeGateway) Calls() []call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]call(nil), g.calls...)
}

func (g *fakeGateway) CallsTo(method string) int {
	n := 0
	for _, c := range g.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func pageEnvelope(page, lastPage int, records ...widget) *transport.Envelope {
	if records == nil {
		records = []widget{}
	}
	data, _ := json.Marshal(pagination.PagedData[widget]{
		Data:     records,
		Page:     page,
		PerPage:  10,
		LastPage: lastPage,
		Total:    len(records),
	})
	return &transport.Envelope{Success: true, Data: data}
}

func recordEnvelope(w widget, message string) *transport.Envelope {
	data, _ := json.Marshal(w)
	return &transport.Envelope{Success: true, Data: data, Message: message}
}

type toast struct {
	Level   Level
	Message string
}

// recorder is a Notifier that keeps every message.
type recorder struct {
	mu     sync.Mutex
	toasts []toast
}

func (r *recorder) Notify(level Level, message string) {
	r.mu.Lock()
	r.toasts = append(r.toasts, toast{Level: level, Message: message})
	r.mu.Unlock()
}

func (r *recorder) All() []toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]toast(nil), r.toasts...)
}

func params(page int, search string) url.Values {
	return QueryState{Page: page, PerPage: 10, Search: search}.RequestParams()
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
