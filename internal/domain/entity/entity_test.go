package entity

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emr/console/internal/platform/transport/transporttest"
	"github.com/emr/console/internal/resource"
	"github.com/emr/console/pkg/pagination"
)

type item struct {
	ID     resource.ID `json:"id"`
	Name   string      `json:"name"`
	Count  int         `json:"count"`
	Active bool        `json:"active"`
	Tags   []string    `json:"tags,omitempty"`
	Owner  *struct {
		Name string `json:"name"`
	} `json:"owner,omitempty"`
	Due string `json:"due,omitempty"`
}

func (i item) RecordID() string { return i.ID.String() }

type itemPayload struct {
	Name   string   `json:"name" validate:"required"`
	Count  int      `json:"count" validate:"gte=0"`
	Weight float64  `json:"weight"`
	Active bool     `json:"active"`
	Tags   []string `json:"tags"`
	Due    string   `json:"due,omitempty"`
}

var fields = []Field{
	{Name: "name", Label: "Name", Kind: KindText, Required: true},
	{Name: "count", Label: "Count", Kind: KindInteger},
	{Name: "weight", Label: "Weight", Kind: KindNumber},
	{Name: "active", Label: "Active", Kind: KindBool},
	{Name: "tags", Label: "Tags", Kind: KindMultiSelect},
	{Name: "due", Label: "Due", Kind: KindDate},
}

var items = Descriptor[item]{
	Meta: Meta{
		Slug:    "items",
		Name:    "Item",
		Plural:  "Items",
		Path:    "/items",
		Columns: []Column{{Key: "name", Label: "Name"}, {Key: "owner.name", Label: "Owner"}, {Key: "active", Label: "Active"}, {Key: "tags", Label: "Tags"}},
		Fields:  fields,
	},
	NewPayload: func() any { return &itemPayload{} },
}

func TestDecode(t *testing.T) {
	var p itemPayload
	err := Decode(fields, url.Values{
		"name":   {"  Gauze  "},
		"count":  {"3"},
		"weight": {"0.5"},
		"active": {"on"},
		"tags[]": {"a", " ", "b, c"},
		"due":    {""},
	}, &p)
	require.NoError(t, err)
	assert.Equal(t, itemPayload{Name: "Gauze", Count: 3, Weight: 0.5, Active: true, Tags: []string{"a", "b", "c"}}, p)
}

func TestDecode_NumberProblems(t *testing.T) {
	var p itemPayload
	err := Decode(fields, url.Values{"count": {"3.5"}, "weight": {"heavy"}}, &p)
	var ve *resource.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, map[string]string{
		"count":  "Count must be a whole number.",
		"weight": "Weight must be a number.",
	}, ve.Fields)

	for _, raw := range []string{"NaN", "Inf", "-Infinity"} {
		err := Decode(fields, url.Values{"name": {"x"}, "weight": {raw}}, &p)
		require.ErrorAs(t, err, &ve, raw)
		assert.Equal(t, map[string]string{"weight": "Weight must be a number."}, ve.Fields, raw)
	}
}

func TestDecode_TypeMismatch(t *testing.T) {
	var dst struct {
		Name int `json:"name"`
	}
	err := Decode([]Field{{Name: "name", Label: "Name", Kind: KindText}}, url.Values{"name": {"abc"}}, &dst)
	var ve *resource.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "name")
}

func TestFlatten(t *testing.T) {
	it := item{ID: "7", Name: "Gauze", Count: 2, Active: true, Tags: []string{"x", "y"}}
	it.Owner = &struct {
		Name string `json:"name"`
	}{Name: "Ward 3"}

	flat := Flatten(it)
	assert.Equal(t, "7", flat["id"])
	assert.Equal(t, "2", flat["count"])
	assert.Equal(t, "Yes", flat["active"])
	assert.Equal(t, "x, y", flat["tags"])
	assert.Equal(t, "Ward 3", flat["owner.name"])

	assert.Equal(t, "a, b", display([]any{map[string]any{"name": "a"}, map[string]any{"zeta": "b"}}))
	assert.Empty(t, Flatten(make(chan int)))
}

func TestFormValues(t *testing.T) {
	vals := FormValues(item{Name: "Gauze", Count: 0, Active: true, Tags: []string{"x", "y"}, Due: "2024-05-01T00:00:00Z"}, fields)
	assert.Equal(t, "Gauze", vals.Get("name"))
	assert.Equal(t, "0", vals.Get("count"))
	assert.Equal(t, "on", vals.Get("active"))
	assert.Equal(t, []string{"x", "y"}, vals["tags"])
	assert.Equal(t, "2024-05-01", vals.Get("due"))
	_, hasWeight := vals["weight"]
	assert.False(t, hasWeight)
}

func TestListView_Render(t *testing.T) {
	v := ListView[item]{Meta: items.Meta, Busy: func(id string) bool { return id == "2" }}
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := v.Render(resource.QueryState{Page: 1, Search: "g"}, resource.CacheState[item]{
		Status:    resource.StatusReady,
		Records:   []item{{ID: "1", Name: "Gauze"}, {ID: "2", Name: "Tape", Active: true}},
		Meta:      pagination.Meta{Page: 1, LastPage: 3, PerPage: 2, Total: 6},
		FetchedAt: at,
	})

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"Gauze", "", "No", ""}, tbl.Rows[0].Cells)
	assert.False(t, tbl.Rows[0].Busy)
	assert.True(t, tbl.Rows[1].Busy)
	assert.Equal(t, "g", tbl.Query.Search)
	assert.Equal(t, 3, tbl.Page.LastPage)
	assert.Equal(t, at, tbl.FetchedAt)
	assert.False(t, tbl.Empty())

	empty := v.Render(resource.QueryState{}, resource.CacheState[item]{Status: resource.StatusReady})
	assert.True(t, empty.Empty())
	idle := v.Render(resource.QueryState{}, resource.CacheState[item]{Status: resource.StatusIdle})
	assert.False(t, idle.Empty())
}

func TestMetaField(t *testing.T) {
	f, ok := items.Field("weight")
	require.True(t, ok)
	assert.Equal(t, KindNumber, f.Kind)
	_, ok = items.Field("nope")
	assert.False(t, ok)
}

func TestManaged_Lifecycle(t *testing.T) {
	b := transporttest.NewBackend()
	b.Seed("/items", map[string]any{"name": "Gauze", "count": 1})

	var toasts []string
	m := items.Open(resource.Config{
		Gateway:  b,
		Notifier: resource.NotifierFunc(func(_ resource.Level, msg string) { toasts = append(toasts, msg) }),
	})
	defer m.Close()

	var published []Table
	unsubscribe := m.Subscribe(func(tbl Table) { published = append(published, tbl) })

	tbl, err := m.Sync(context.Background(), resource.QueryState{PerPage: 5})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, 5, m.Query().PerPage)

	require.NoError(t, m.Update(context.Background(), "1", url.Values{"name": {"Gauze XL"}, "count": {"2"}}))
	assert.Equal(t, "Gauze XL", m.Table().Rows[0].Cells[0])

	vals, err := m.Values(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "2", vals.Get("count"))

	err = m.Create(context.Background(), url.Values{"count": {"x"}})
	require.Error(t, err)
	assert.Equal(t, resource.KindValidation, resource.Classify(err))

	err = m.Create(context.Background(), url.Values{"count": {"1"}})
	require.Error(t, err)
	assert.Equal(t, 1, b.Count("PUT"))
	assert.Zero(t, b.Count("POST"))

	require.NoError(t, m.Delete(context.Background(), "1"))
	assert.True(t, m.Table().Empty())

	assert.Equal(t, []string{
		"Item updated",
		"Count must be a whole number.",
		"Name is required.",
		"Item deleted",
	}, toasts)

	unsubscribe()
	n := len(published)
	assert.GreaterOrEqual(t, n, 3)
	_, err = m.Sync(context.Background(), resource.QueryState{})
	require.NoError(t, err)
	assert.Len(t, published, n)
}
