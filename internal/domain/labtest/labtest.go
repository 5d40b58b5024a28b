// Package labtest describes the lab test catalogue.
package labtest

import (
	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/resource"
)

// LabTest is an orderable laboratory test.
type LabTest struct {
	ID              resource.ID      `json:"id"`
	Name            string           `json:"name"`
	Code            string           `json:"code"`
	Category        string           `json:"category"`
	Price           resource.Decimal `json:"price"`
	TurnaroundHours int              `json:"turnaround_hours"`
	Status          string           `json:"status,omitempty"`
}

func (l LabTest) RecordID() string { return l.ID.String() }

// Payload is the create/update body.
type Payload struct {
	Name            string  `json:"name" validate:"required,max=120"`
	Code            string  `json:"code" validate:"required,alphanum,max=20"`
	Category        string  `json:"category" validate:"required,oneof=hematology biochemistry microbiology immunology pathology"`
	Price           float64 `json:"price" validate:"gt=0"`
	TurnaroundHours int     `json:"turnaround_hours" validate:"gte=1,lte=720"`
	Status          string  `json:"status,omitempty" validate:"omitempty,oneof=active retired"`
}

var categories = []entity.Option{
	{Value: "hematology", Label: "Hematology"},
	{Value: "biochemistry", Label: "Biochemistry"},
	{Value: "microbiology", Label: "Microbiology"},
	{Value: "immunology", Label: "Immunology"},
	{Value: "pathology", Label: "Pathology"},
}

var statuses = []entity.Option{
	{Value: "active", Label: "Active"},
	{Value: "retired", Label: "Retired"},
}

// Resource describes lab tests to the console.
var Resource = entity.Descriptor[LabTest]{
	Meta: entity.Meta{
		Slug:   "lab-tests",
		Name:   "Lab test",
		Plural: "Lab tests",
		Path:   "/lab-tests",
		Columns: []entity.Column{
			{Key: "code", Label: "Code"},
			{Key: "name", Label: "Name"},
			{Key: "category", Label: "Category"},
			{Key: "price", Label: "Price"},
			{Key: "turnaround_hours", Label: "Turnaround (h)"},
		},
		Filters: []entity.Filter{
			{Key: "category", Label: "Category", Options: categories},
			{Key: "status", Label: "Status", Options: statuses},
		},
		Fields: []entity.Field{
			{Name: "name", Label: "Name", Kind: entity.KindText, Required: true},
			{Name: "code", Label: "Code", Kind: entity.KindText, Required: true},
			{Name: "category", Label: "Category", Kind: entity.KindSelect, Required: true, Options: categories},
			{Name: "price", Label: "Price", Kind: entity.KindNumber, Required: true},
			{Name: "turnaround_hours", Label: "Turnaround hours", Kind: entity.KindInteger, Required: true},
			{Name: "status", Label: "Status", Kind: entity.KindSelect, Options: statuses},
		},
	},
	NewPayload: func() any { return &Payload{} },
}

// NewManager returns a Manager for lab tests.
func NewManager(cfg resource.Config) *resource.Manager[LabTest] {
	cfg.Resource, cfg.Path = Resource.Name, Resource.Path
	return resource.NewManager[LabTest](cfg)
}
