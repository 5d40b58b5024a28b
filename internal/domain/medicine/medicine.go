// Package medicine describes the pharmacy formulary.
package medicine

import (
	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/resource"
)

// Medicine is a stocked formulary item.
type Medicine struct {
	ID          resource.ID      `json:"id"`
	Name        string           `json:"name"`
	GenericName string           `json:"generic_name,omitempty"`
	Form        string           `json:"form"`
	Strength    string           `json:"strength,omitempty"`
	Stock       int              `json:"stock"`
	UnitPrice   resource.Decimal `json:"unit_price"`
	InStock     bool             `json:"in_stock"`
}

func (m Medicine) RecordID() string { return m.ID.String() }

// LowStockThreshold is the stock level at or below which a medicine is
// flagged for reorder.
const LowStockThreshold = 10

// LowStock reports whether the medicine should be reordered.
func (m Medicine) LowStock() bool {
	return m.Stock <= LowStockThreshold
}

// Payload is the create/update body.
type Payload struct {
	Name        string  `json:"name" validate:"required,max=120"`
	GenericName string  `json:"generic_name,omitempty" validate:"max=120"`
	Form        string  `json:"form" validate:"required,oneof=tablet capsule syrup injection ointment drops inhaler"`
	Strength    string  `json:"strength,omitempty" validate:"max=40"`
	Stock       int     `json:"stock" validate:"gte=0"`
	UnitPrice   float64 `json:"unit_price" validate:"gte=0"`
}

var forms = []entity.Option{
	{Value: "tablet", Label: "Tablet"},
	{Value: "capsule", Label: "Capsule"},
	{Value: "syrup", Label: "Syrup"},
	{Value: "injection", Label: "Injection"},
	{Value: "ointment", Label: "Ointment"},
	{Value: "drops", Label: "Drops"},
	{Value: "inhaler", Label: "Inhaler"},
}

// Resource describes medicines to the console.
var Resource = entity.Descriptor[Medicine]{
	Meta: entity.Meta{
		Slug:   "medicines",
		Name:   "Medicine",
		Plural: "Medicines",
		Path:   "/medicines",
		Columns: []entity.Column{
			{Key: "name", Label: "Name"},
			{Key: "generic_name", Label: "Generic name"},
			{Key: "form", Label: "Form"},
			{Key: "strength", Label: "Strength"},
			{Key: "stock", Label: "Stock"},
			{Key: "unit_price", Label: "Unit price"},
		},
		Filters: []entity.Filter{
			{Key: "form", Label: "Form", Options: forms},
			{Key: "in_stock", Label: "Availability", Options: []entity.Option{
				{Value: "true", Label: "In stock"},
				{Value: "false", Label: "Out of stock"},
			}},
		},
		Fields: []entity.Field{
			{Name: "name", Label: "Brand name", Kind: entity.KindText, Required: true},
			{Name: "generic_name", Label: "Generic name", Kind: entity.KindText},
			{Name: "form", Label: "Form", Kind: entity.KindSelect, Required: true, Options: forms},
			{Name: "strength", Label: "Strength", Kind: entity.KindText, Help: "For example 500 mg or 5 mg/ml."},
			{Name: "stock", Label: "Stock", Kind: entity.KindInteger},
			{Name: "unit_price", Label: "Unit price", Kind: entity.KindNumber},
		},
	},
	NewPayload: func() any { return &Payload{} },
}

// NewManager returns a Manager for medicines.
func NewManager(cfg resource.Config) *resource.Manager[Medicine] {
	cfg.Resource, cfg.Path = Resource.Name, Resource.Path
	return resource.NewManager[Medicine](cfg)
}
