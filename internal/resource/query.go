package resource

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/emr/console/pkg/pagination"
)

// DefaultSearchDebounce is the quiet period after the last keystroke before a
// search triggers a refetch.
const DefaultSearchDebounce = 800 * time.Millisecond

// QueryState is the list query of one view. Page is 0-indexed.
type QueryState struct {
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Search  string         `json:"search"`
	Filters map[string]any `json:"filters,omitempty"`
}

func (s QueryState) clone() QueryState {
	out := s
	if s.Filters != nil {
		out.Filters = make(map[string]any, len(s.Filters))
		for k, v := range s.Filters {
			out.Filters[k] = v
		}
	}
	return out
}

// RequestParams produces the backend query parameters for s. The page is
// sent 1-indexed; filters are flattened in key order, slices as repeated
// values.
func (s QueryState) RequestParams() url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(pagination.ToWire(s.Page)))
	params.Set("per_page", strconv.Itoa(pagination.ClampPerPage(s.PerPage)))
	if s.Search != "" {
		params.Set("search", s.Search)
	}

	keys := make([]string, 0, len(s.Filters))
	for k := range s.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range flatten(s.Filters[k]) {
			params.Add(k, v)
		}
	}
	return params
}

func flatten(v any) []string {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	case []string:
		return x
	case bool:
		return []string{strconv.FormatBool(x)}
	case time.Time:
		return []string{x.Format(time.DateOnly)}
	case fmt.Stringer:
		return []string{x.String()}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, fmt.Sprint(rv.Index(i).Interface()))
		}
		return out
	}
	return []string{fmt.Sprint(v)}
}

func isEmptyFilter(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// QueryOptions configures a Query.
type QueryOptions struct {
	PerPage  int
	Debounce time.Duration
	// OnChange receives the state that should be fetched. It is called
	// without any lock held, immediately for page/per-page/filter changes
	// and after the debounce window for search changes.
	OnChange func(QueryState)
}

// Query holds a view's QueryState and decides when a change should trigger a
// refetch. It never performs I/O itself.
type Query struct {
	mu       sync.Mutex
	state    QueryState
	debounce time.Duration
	onChange func(QueryState)

	timer *time.Timer
	gen   uint64
}

// NewQuery creates a Query with {page:0, per_page:opts.PerPage, search:""}.
func NewQuery(opts QueryOptions) *Query {
	d := opts.Debounce
	if d <= 0 {
		d = DefaultSearchDebounce
	}
	return &Query{
		state:    QueryState{PerPage: pagination.ClampPerPage(opts.PerPage)},
		debounce: d,
		onChange: opts.OnChange,
	}
}

// State returns a copy of the current state.
func (q *Query) State() QueryState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state.clone()
}

// ToRequestParams returns the backend parameters for the current state.
func (q *Query) ToRequestParams() url.Values {
	return q.State().RequestParams()
}

// SetSearch updates the search text, resets the page and restarts the
// debounce window.
func (q *Query) SetSearch(text string) {
	q.mu.Lock()
	q.state.Search = text
	q.state.Page = 0
	q.gen++
	gen := q.gen
	if q.timer != nil {
		q.timer.Stop()
	}
	q.timer = time.AfterFunc(q.debounce, func() { q.fireDebounced(gen) })
	q.mu.Unlock()
}

func (q *Query) fireDebounced(gen uint64) {
	q.mu.Lock()
	if gen != q.gen {
		q.mu.Unlock()
		return
	}
	q.timer = nil
	st := q.state.clone()
	q.mu.Unlock()

	if q.onChange != nil {
		q.onChange(st)
	}
}

// SetPage moves to a 0-indexed page. Negative pages clamp to 0.
func (q *Query) SetPage(n int) {
	if n < 0 {
		n = 0
	}
	q.update(func(s *QueryState) { s.Page = n })
}

// SetPerPage changes the page size and resets the page.
func (q *Query) SetPerPage(n int) {
	q.update(func(s *QueryState) {
		s.PerPage = pagination.ClampPerPage(n)
		s.Page = 0
	})
}

// SetFilter merges one filter and resets the page. A nil or empty string
// value removes the filter.
func (q *Query) SetFilter(key string, value any) {
	q.update(func(s *QueryState) {
		if isEmptyFilter(value) {
			delete(s.Filters, key)
		} else {
			if s.Filters == nil {
				s.Filters = make(map[string]any)
			}
			s.Filters[key] = value
		}
		s.Page = 0
	})
}

// Restore replaces the whole state without triggering a refetch and cancels
// any pending search trigger.
func (q *Query) Restore(st QueryState) {
	st = st.clone()
	if st.Page < 0 {
		st.Page = 0
	}
	st.PerPage = pagination.ClampPerPage(st.PerPage)

	q.mu.Lock()
	q.cancelPendingLocked()
	q.state = st
	q.mu.Unlock()
}

// Stop cancels a pending debounced trigger.
func (q *Query) Stop() {
	q.mu.Lock()
	q.cancelPendingLocked()
	q.mu.Unlock()
}

// update applies fn and fires an immediate trigger. A pending search trigger
// is cancelled since the immediate one already carries the search text.
func (q *Query) update(fn func(*QueryState)) {
	q.mu.Lock()
	fn(&q.state)
	q.cancelPendingLocked()
	st := q.state.clone()
	q.mu.Unlock()

	if q.onChange != nil {
		q.onChange(st)
	}
}

func (q *Query) cancelPendingLocked() {
	q.gen++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}
