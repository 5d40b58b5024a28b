package entity

import (
	"context"
	"net/url"
	"time"

	"github.com/emr/console/internal/resource"
	"github.com/emr/console/pkg/pagination"
)

// Managed is a Manager bound to its Descriptor with the record type erased.
// Form values go in; rendered Tables come out.
type Managed interface {
	Meta() Meta
	Query() resource.QueryState
	// Sync replaces the query and fetches it. The returned Table reflects
	// the cache after the fetch whether or not it failed.
	Sync(ctx context.Context, q resource.QueryState) (Table, error)
	Table() Table
	// SetSearch changes the search text and returns at once. The fetch runs
	// after the debounce delay and is reported through Subscribe.
	SetSearch(text string)
	// Values loads one record and returns its edit form values.
	Values(ctx context.Context, id string) (url.Values, error)
	Create(ctx context.Context, form url.Values) error
	Update(ctx context.Context, id string, form url.Values) error
	Delete(ctx context.Context, id string) error
	Busy(id string) bool
	// Subscribe calls fn with a fresh Table after every applied fetch.
	Subscribe(fn func(Table)) (unsubscribe func())
	Close()
}

// Table is a rendered list page.
type Table struct {
	Meta      Meta
	Query     resource.QueryState
	Status    resource.Status
	Error     string
	Rows      []Row
	Page      pagination.Meta
	FetchedAt time.Time
}

// Row is one rendered record. Cells follow Meta.Columns.
type Row struct {
	ID    string
	Cells []string
	Busy  bool
}

// Empty reports whether a loaded page has no records.
func (t Table) Empty() bool {
	return t.Status == resource.StatusReady && len(t.Rows) == 0
}

// ListView renders a Manager's state as a Table.
type ListView[T resource.Record] struct {
	Meta Meta
	// Busy reports whether a mutation on a record is in flight. May be nil.
	Busy func(id string) bool
}

// Render implements resource.View.
func (v ListView[T]) Render(q resource.QueryState, c resource.CacheState[T]) Table {
	rows := make([]Row, 0, len(c.Records))
	for _, rec := range c.Records {
		flat := Flatten(rec)
		cells := make([]string, len(v.Meta.Columns))
		for i, col := range v.Meta.Columns {
			cells[i] = flat[col.Key]
		}
		id := rec.RecordID()
		rows = append(rows, Row{ID: id, Cells: cells, Busy: v.Busy != nil && v.Busy(id)})
	}
	return Table{
		Meta:      v.Meta,
		Query:     q,
		Status:    c.Status,
		Error:     c.Error,
		Rows:      rows,
		Page:      c.Meta,
		FetchedAt: c.FetchedAt,
	}
}

type managed[T resource.Record] struct {
	desc Descriptor[T]
	cfg  resource.Config
	m    *resource.Manager[T]
}

func (b *managed[T]) Meta() Meta { return b.desc.Meta }

func (b *managed[T]) view() ListView[T] {
	return ListView[T]{Meta: b.desc.Meta, Busy: b.m.Busy}
}

func (b *managed[T]) Query() resource.QueryState {
	q, _ := b.m.Snapshot()
	return q
}

func (b *managed[T]) Sync(ctx context.Context, q resource.QueryState) (Table, error) {
	_, err := b.m.Sync(ctx, q)
	return b.Table(), err
}

func (b *managed[T]) Table() Table {
	return resource.Render[T, Table](b.m, b.view())
}

func (b *managed[T]) SetSearch(text string) { b.m.SetSearch(text) }

func (b *managed[T]) Values(ctx context.Context, id string) (url.Values, error) {
	rec, err := b.m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return FormValues(rec, b.desc.Fields), nil
}

func (b *managed[T]) Create(ctx context.Context, form url.Values) error {
	return b.submit(ctx, resource.MutationCreate, "", form)
}

func (b *managed[T]) Update(ctx context.Context, id string, form url.Values) error {
	return b.submit(ctx, resource.MutationUpdate, id, form)
}

func (b *managed[T]) Delete(ctx context.Context, id string) error {
	_, err := b.m.Submit(ctx, resource.MutationIntent{Kind: resource.MutationDelete, RecordID: id})
	return err
}

func (b *managed[T]) submit(ctx context.Context, kind resource.MutationKind, id string, form url.Values) error {
	payload, err := b.desc.Payload(form)
	if err != nil {
		msg := resource.UserMessage(err)
		if b.cfg.Notifier != nil {
			b.cfg.Notifier.Notify(resource.LevelError, msg)
		}
		return &resource.MutationError{Kind: resource.KindValidation, Op: kind, RecordID: id, Message: msg, Err: err}
	}
	intent := resource.MutationIntent{Kind: kind, RecordID: id, Payload: payload}
	if b.desc.Multipart != nil {
		intent.Multipart = b.desc.Multipart(payload)
	}
	_, err = b.m.Submit(ctx, intent)
	return err
}

func (b *managed[T]) Busy(id string) bool { return b.m.Busy(id) }

func (b *managed[T]) Subscribe(fn func(Table)) func() {
	v := b.view()
	return b.m.Subscribe(func(q resource.QueryState, c resource.CacheState[T]) {
		fn(v.Render(q, c))
	})
}

func (b *managed[T]) Close() { b.m.Close() }
