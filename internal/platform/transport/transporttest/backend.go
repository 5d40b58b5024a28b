// Package transporttest provides an in-memory backend that implements
// transport.Gateway for tests.
package transporttest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/emr/console/internal/platform/transport"
	"github.com/emr/console/pkg/pagination"
)

// Call is one request seen by the Backend.
type Call struct {
	Method string
	Path   string
	Opts   transport.Options
}

// Backend stores records per collection path and answers list, read,
// create, update and delete requests the way the EMR backend does.
type Backend struct {
	mu          sync.Mutex
	collections map[string][]map[string]any
	failures    map[string]error
	calls       []Call
	nextID      int
}

// NewBackend returns an empty backend.
func NewBackend() *Backend {
	return &Backend{
		collections: make(map[string][]map[string]any),
		failures:    make(map[string]error),
		nextID:      1,
	}
}

// Seed adds records to a collection, assigning ids to those without one.
func (b *Backend) Seed(path string, records ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range records {
		if _, ok := r["id"]; !ok {
			r["id"] = b.nextID
			b.nextID++
		}
		b.collections[path] = append(b.collections[path], r)
	}
}

// Fail makes the next request matching method and path return err.
func (b *Backend) Fail(method, path string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = err
}

// Records returns a copy of a collection.
func (b *Backend) Records(path string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.collections[path]...)
}

// Calls returns every request seen so far.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// Count returns the number of requests with method.
func (b *Backend) Count(method string) int {
	n := 0
	for _, c := range b.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Request implements transport.Gateway.
func (b *Backend) Request(ctx context.Context, method, path string, opts transport.Options) (*transport.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return nil, &transport.TransportError{Method: method, Path: path, Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, Call{Method: method, Path: path, Opts: opts})
	if err, ok := b.failures[method+" "+path]; ok {
		delete(b.failures, method+" "+path)
		return nil, err
	}

	collection, id := b.split(path)
	switch {
	case method == http.MethodGet && id == "":
		return b.list(collection, opts)
	case method == http.MethodGet:
		i := b.find(collection, id)
		if i < 0 {
			return nil, notFound()
		}
		return envelope(b.collections[collection][i])
	case method == http.MethodPost && id == "":
		rec, err := body(opts)
		if err != nil {
			return nil, err
		}
		rec["id"] = b.nextID
		b.nextID++
		b.collections[collection] = append(b.collections[collection], rec)
		return envelope(rec)
	case method == http.MethodPut:
		i := b.find(collection, id)
		if i < 0 {
			return nil, notFound()
		}
		rec, err := body(opts)
		if err != nil {
			return nil, err
		}
		for k, v := range rec {
			b.collections[collection][i][k] = v
		}
		return envelope(b.collections[collection][i])
	case method == http.MethodDelete:
		i := b.find(collection, id)
		if i < 0 {
			return nil, notFound()
		}
		recs := b.collections[collection]
		b.collections[collection] = append(recs[:i:i], recs[i+1:]...)
		return &transport.Envelope{Success: true}, nil
	}
	return nil, &transport.ApplicationError{Status: http.StatusMethodNotAllowed, Message: "Method not allowed"}
}

// split separates "/patients/7" into the collection and the id.
func (b *Backend) split(path string) (string, string) {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)
	if len(parts) == 2 {
		return "/" + parts[0], parts[1]
	}
	return path, ""
}

func (b *Backend) find(collection, id string) int {
	for i, r := range b.collections[collection] {
		if fmt.Sprint(r["id"]) == id {
			return i
		}
	}
	return -1
}

func (b *Backend) list(collection string, opts transport.Options) (*transport.Envelope, error) {
	q := opts.Query
	search := strings.ToLower(q.Get("search"))

	var matched []map[string]any
	for _, r := range b.collections[collection] {
		if search != "" && !containsText(r, search) {
			continue
		}
		if !matchesFilters(r, q) {
			continue
		}
		matched = append(matched, r)
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	perPage := pagination.ClampPerPage(atoi(q.Get("per_page")))
	lastPage := (len(matched) + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	start := (page - 1) * perPage
	end := start + perPage
	if start > len(matched) {
		start = len(matched)
	}
	if end > len(matched) {
		end = len(matched)
	}

	data := matched[start:end]
	if data == nil {
		data = []map[string]any{}
	}
	return envelope(pagination.PagedData[map[string]any]{
		Data:     data,
		Page:     page,
		PerPage:  perPage,
		LastPage: lastPage,
		Total:    len(matched),
	})
}

func containsText(r map[string]any, needle string) bool {
	for _, v := range r {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

func matchesFilters(r map[string]any, q map[string][]string) bool {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch k {
		case "page", "per_page", "search":
			continue
		}
		want := q[k]
		got := fmt.Sprint(r[k])
		ok := false
		for _, w := range want {
			if w == got {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func body(opts transport.Options) (map[string]any, error) {
	rec := map[string]any{}
	if opts.Multipart != nil {
		for k, vs := range opts.Multipart.Fields {
			if strings.HasSuffix(k, "[]") {
				rec[strings.TrimSuffix(k, "[]")] = append([]string(nil), vs...)
				continue
			}
			rec[k] = vs[0]
		}
		return rec, nil
	}
	if opts.Body == nil {
		return rec, nil
	}
	raw, err := json.Marshal(opts.Body)
	if err != nil {
		return nil, &transport.TransportError{Err: err}
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &transport.TransportError{Err: err}
	}
	delete(rec, "id")
	return rec, nil
}

func envelope(v any) (*transport.Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &transport.Envelope{Success: true, Data: data}, nil
}

func notFound() error {
	return &transport.ApplicationError{Status: http.StatusNotFound, Message: "Record not found"}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
