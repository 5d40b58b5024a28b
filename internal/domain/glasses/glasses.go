// Package glasses describes spectacle orders placed for patients.
package glasses

import (
	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/resource"
)

// Order is a glasses order with its prescription.
type Order struct {
	ID            resource.ID      `json:"id"`
	PatientID     resource.ID      `json:"patient_id"`
	Patient       *Party           `json:"patient,omitempty"`
	RightSphere   resource.Decimal `json:"right_sphere"`
	RightCylinder resource.Decimal `json:"right_cylinder"`
	RightAxis     int              `json:"right_axis"`
	LeftSphere    resource.Decimal `json:"left_sphere"`
	LeftCylinder  resource.Decimal `json:"left_cylinder"`
	LeftAxis      int              `json:"left_axis"`
	Frame         string           `json:"frame,omitempty"`
	Status        string           `json:"status"`
	OrderedAt     string           `json:"ordered_at,omitempty"`
}

// Party is the embedded summary of a related record.
type Party struct {
	ID   resource.ID `json:"id"`
	Name string      `json:"name"`
}

func (o Order) RecordID() string { return o.ID.String() }

// Payload is the create/update body. Sphere and cylinder are in dioptres.
type Payload struct {
	PatientID     string  `json:"patient_id" validate:"required"`
	RightSphere   float64 `json:"right_sphere" validate:"gte=-20,lte=20"`
	RightCylinder float64 `json:"right_cylinder" validate:"gte=-6,lte=6"`
	RightAxis     int     `json:"right_axis" validate:"gte=0,lte=180"`
	LeftSphere    float64 `json:"left_sphere" validate:"gte=-20,lte=20"`
	LeftCylinder  float64 `json:"left_cylinder" validate:"gte=-6,lte=6"`
	LeftAxis      int     `json:"left_axis" validate:"gte=0,lte=180"`
	Frame         string  `json:"frame,omitempty" validate:"max=80"`
	Status        string  `json:"status,omitempty" validate:"omitempty,oneof=ordered in_lab ready collected cancelled"`
}

// Check rejects dioptre values that are not in quarter steps, which no lab
// can grind.
func (p Payload) Check() map[string]string {
	problems := map[string]string{}
	for name, v := range map[string]float64{
		"right_sphere":   p.RightSphere,
		"right_cylinder": p.RightCylinder,
		"left_sphere":    p.LeftSphere,
		"left_cylinder":  p.LeftCylinder,
	} {
		if q := v * 4; q != float64(int(q)) {
			problems[name] = "Use steps of 0.25 dioptres."
		}
	}
	return problems
}

var statuses = []entity.Option{
	{Value: "ordered", Label: "Ordered"},
	{Value: "in_lab", Label: "In lab"},
	{Value: "ready", Label: "Ready"},
	{Value: "collected", Label: "Collected"},
	{Value: "cancelled", Label: "Cancelled"},
}

// Resource describes glasses orders to the console.
var Resource = entity.Descriptor[Order]{
	Meta: entity.Meta{
		Slug:   "glasses-orders",
		Name:   "Glasses order",
		Plural: "Glasses orders",
		Path:   "/glasses-orders",
		Columns: []entity.Column{
			{Key: "patient.name", Label: "Patient"},
			{Key: "right_sphere", Label: "R SPH"},
			{Key: "left_sphere", Label: "L SPH"},
			{Key: "frame", Label: "Frame"},
			{Key: "status", Label: "Status"},
		},
		Filters: []entity.Filter{
			{Key: "status", Label: "Status", Options: statuses},
		},
		Fields: []entity.Field{
			{Name: "patient_id", Label: "Patient ID", Kind: entity.KindText, Required: true},
			{Name: "right_sphere", Label: "Right sphere", Kind: entity.KindNumber},
			{Name: "right_cylinder", Label: "Right cylinder", Kind: entity.KindNumber},
			{Name: "right_axis", Label: "Right axis", Kind: entity.KindInteger, Help: "0 to 180 degrees."},
			{Name: "left_sphere", Label: "Left sphere", Kind: entity.KindNumber},
			{Name: "left_cylinder", Label: "Left cylinder", Kind: entity.KindNumber},
			{Name: "left_axis", Label: "Left axis", Kind: entity.KindInteger, Help: "0 to 180 degrees."},
			{Name: "frame", Label: "Frame", Kind: entity.KindText},
			{Name: "status", Label: "Status", Kind: entity.KindSelect, Options: statuses},
		},
	},
	NewPayload: func() any { return &Payload{} },
}

// NewManager returns a Manager for glasses orders.
func NewManager(cfg resource.Config) *resource.Manager[Order] {
	cfg.Resource, cfg.Path = Resource.Name, Resource.Path
	return resource.NewManager[Order](cfg)
}
