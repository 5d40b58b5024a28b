// Package entity describes the console's domain resources to the generic
// Resource Manager and to the views built on it. A Descriptor names the
// backend collection, the list columns, the filters and the form fields of
// one record type; Open binds it to a Manager behind the type-erased
// Managed interface the web and CLI views use.
package entity

import (
	"net/url"

	"github.com/emr/console/internal/platform/transport"
	"github.com/emr/console/internal/resource"
)

// FieldKind selects the input control and value decoding of a form field.
type FieldKind string

const (
	KindText        FieldKind = "text"
	KindTextArea    FieldKind = "textarea"
	KindEmail       FieldKind = "email"
	KindTel         FieldKind = "tel"
	KindDate        FieldKind = "date"
	KindNumber      FieldKind = "number"
	KindInteger     FieldKind = "integer"
	KindBool        FieldKind = "bool"
	KindSelect      FieldKind = "select"
	KindMultiSelect FieldKind = "multiselect"
)

// Option is one choice of a select field or filter.
type Option struct {
	Value string
	Label string
}

// Field is one input of the create/edit form. Name is the json field of the
// payload it fills.
type Field struct {
	Name     string
	Label    string
	Kind     FieldKind
	Required bool
	Options  []Option
	Help     string
}

// Column is one list column. Key is a json field of the record; nested
// objects are reached with dots, e.g. "patient.name".
type Column struct {
	Key   string
	Label string
}

// Filter is one list filter sent to the backend as a query parameter.
type Filter struct {
	Key     string
	Label   string
	Options []Option
}

// Meta is the non-generic part of a Descriptor.
type Meta struct {
	// Slug is the URL segment and CLI name, e.g. "lab-tests".
	Slug string
	// Name is the singular display name used in toasts, e.g. "Lab test".
	Name   string
	Plural string
	// Path is the backend collection path.
	Path    string
	Columns []Column
	Filters []Filter
	Fields  []Field
}

// Field returns the form field called name.
func (m Meta) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Resource is a Descriptor with its record type erased.
type Resource interface {
	Describe() Meta
	Open(cfg resource.Config) Managed
}

// Descriptor describes the record type T.
type Descriptor[T resource.Record] struct {
	Meta
	// NewPayload returns a pointer to an empty create/update payload that
	// form values are decoded into and validated.
	NewPayload func() any
	// Multipart, when set, builds the request body from the decoded payload
	// instead of sending it as JSON.
	Multipart func(payload any) *transport.Multipart
}

// Describe implements Resource.
func (d Descriptor[T]) Describe() Meta {
	return d.Meta
}

// Open implements Resource. cfg.Resource and cfg.Path are taken from the
// descriptor.
func (d Descriptor[T]) Open(cfg resource.Config) Managed {
	cfg.Resource = d.Name
	cfg.Path = d.Path
	return &managed[T]{desc: d, cfg: cfg, m: resource.NewManager[T](cfg)}
}

// Payload decodes form into a new payload. Decode problems are returned as
// a *resource.ValidationError.
func (d Descriptor[T]) Payload(form url.Values) (any, error) {
	p := d.NewPayload()
	if err := Decode(d.Fields, form, p); err != nil {
		return nil, err
	}
	return p, nil
}
