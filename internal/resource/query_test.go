package resource

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuery_Defaults(t *testing.T) {
	q := NewQuery(QueryOptions{})
	st := q.State()
	assert.Equal(t, 0, st.Page)
	assert.Equal(t, 10, st.PerPage)
	assert.Equal(t, "", st.Search)
	assert.Equal(t, url.Values{"page": {"1"}, "per_page": {"10"}}, q.ToRequestParams())
}

func TestQuery_SetSearch_DebouncedTrigger(t *testing.T) {
	fired := make(chan QueryState, 4)
	q := NewQuery(QueryOptions{
		Debounce: 30 * time.Millisecond,
		OnChange: func(st QueryState) { fired <- st },
	})
	defer q.Stop()

	q.SetPage(3)
	<-fired

	q.SetSearch("jo")
	q.SetSearch("john")

	select {
	case st := <-fired:
		assert.Equal(t, "john", st.Search)
		assert.Equal(t, 0, st.Page)
	case <-time.After(time.Second):
		t.Fatal("debounced trigger never fired")
	}

	select {
	case st := <-fired:
		t.Fatalf("unexpected second trigger: %+v", st)
	case <-time.After(80 * time.Millisecond):
	}

	assert.Equal(t, url.Values{
		"page":     {"1"},
		"per_page": {"10"},
		"search":   {"john"},
	}, q.ToRequestParams())
	assert.Equal(t, 0, q.State().Page)
}

func TestQuery_SetSearch_NoTriggerBeforeWindow(t *testing.T) {
	fired := make(chan QueryState, 1)
	q := NewQuery(QueryOptions{
		Debounce: time.Hour,
		OnChange: func(st QueryState) { fired <- st },
	})
	defer q.Stop()

	q.SetSearch("john")
	select {
	case <-fired:
		t.Fatal("search triggered before debounce window")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestQuery_ImmediateTriggerCancelsPendingSearch(t *testing.T) {
	fired := make(chan QueryState, 4)
	q := NewQuery(QueryOptions{
		Debounce: 30 * time.Millisecond,
		OnChange: func(st QueryState) { fired <- st },
	})
	defer q.Stop()

	q.SetSearch("john")
	q.SetFilter("status", "active")

	st := <-fired
	assert.Equal(t, "john", st.Search)
	assert.Equal(t, "active", st.Filters["status"])

	select {
	case st := <-fired:
		t.Fatalf("pending search fired after immediate trigger: %+v", st)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestQuery_ResetsPage(t *testing.T) {
	tests := []struct {
		name   string
		change func(q *Query)
	}{
		{"per page", func(q *Query) { q.SetPerPage(25) }},
		{"filter set", func(q *Query) { q.SetFilter("gender", "female") }},
		{"filter removed", func(q *Query) { q.SetFilter("gender", nil) }},
		{"search", func(q *Query) { q.SetSearch("x") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQuery(QueryOptions{Debounce: time.Hour})
			defer q.Stop()
			q.SetPage(4)
			tt.change(q)
			assert.Equal(t, 0, q.State().Page)
			assert.Equal(t, "1", q.ToRequestParams().Get("page"))
		})
	}
}

func TestQuery_SetPage(t *testing.T) {
	var got []int
	q := NewQuery(QueryOptions{OnChange: func(st QueryState) { got = append(got, st.Page) }})
	q.SetPage(2)
	q.SetPage(-5)
	assert.Equal(t, []int{2, 0}, got)
	assert.Equal(t, "1", q.ToRequestParams().Get("page"))
}

func TestQuery_SetPerPageClamps(t *testing.T) {
	q := NewQuery(QueryOptions{})
	q.SetPerPage(1000)
	assert.Equal(t, 100, q.State().PerPage)
	q.SetPerPage(0)
	assert.Equal(t, 10, q.State().PerPage)
}

func TestQuery_SetFilterEmptyRemoves(t *testing.T) {
	q := NewQuery(QueryOptions{})
	q.SetFilter("status", "pending")
	q.SetFilter("priority", "high")
	q.SetFilter("status", "")
	assert.Equal(t, map[string]any{"priority": "high"}, q.State().Filters)
}

func TestQuery_RestoreDoesNotTrigger(t *testing.T) {
	calls := 0
	q := NewQuery(QueryOptions{OnChange: func(QueryState) { calls++ }})
	q.Restore(QueryState{Page: 2, PerPage: 25, Search: "amy", Filters: map[string]any{"status": "active"}})

	assert.Zero(t, calls)
	st := q.State()
	assert.Equal(t, 2, st.Page)
	assert.Equal(t, 25, st.PerPage)
	assert.Equal(t, "3", q.ToRequestParams().Get("page"))
}

func TestQuery_StateIsACopy(t *testing.T) {
	q := NewQuery(QueryOptions{})
	q.SetFilter("status", "active")
	st := q.State()
	st.Filters["status"] = "mutated"
	assert.Equal(t, "active", q.State().Filters["status"])
}

func TestQueryState_RequestParamsFlattensFilters(t *testing.T) {
	st := QueryState{
		Page:    1,
		PerPage: 20,
		Filters: map[string]any{
			"ids":      []int{3, 4},
			"in_stock": true,
			"from":     time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC),
			"types":    []string{"lab", "radiology"},
			"min":      2.5,
		},
	}
	got := st.RequestParams()
	require.Equal(t, "2", got.Get("page"))
	assert.Equal(t, "20", got.Get("per_page"))
	assert.False(t, got.Has("search"))
	assert.Equal(t, []string{"3", "4"}, got["ids"])
	assert.Equal(t, "true", got.Get("in_stock"))
	assert.Equal(t, "2024-03-09", got.Get("from"))
	assert.Equal(t, []string{"lab", "radiology"}, got["types"])
	assert.Equal(t, "2.5", got.Get("min"))
}
