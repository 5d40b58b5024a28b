// Package patient describes the patient registry.
package patient

import (
	"time"

	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/resource"
)

// Patient is a registered patient as returned by the backend.
type Patient struct {
	ID          resource.ID `json:"id"`
	Name        string      `json:"name"`
	Phone       string      `json:"phone"`
	Email       string      `json:"email,omitempty"`
	DateOfBirth string      `json:"date_of_birth"`
	Gender      string      `json:"gender"`
	Address     string      `json:"address,omitempty"`
	Status      string      `json:"status,omitempty"`
}

func (p Patient) RecordID() string { return p.ID.String() }

// Payload is the create/update body.
type Payload struct {
	Name        string `json:"name" validate:"required,max=120"`
	Phone       string `json:"phone" validate:"required,min=7,max=20"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	DateOfBirth string `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender      string `json:"gender" validate:"required,oneof=male female other"`
	Address     string `json:"address,omitempty" validate:"max=255"`
	Status      string `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

// now is replaced in tests.
var now = time.Now

// Check rejects birth dates in the future.
func (p Payload) Check() map[string]string {
	dob, err := time.Parse("2006-01-02", p.DateOfBirth)
	if err != nil {
		return nil
	}
	if dob.After(now()) {
		return map[string]string{"date_of_birth": "Date of birth cannot be in the future."}
	}
	return nil
}

var genders = []entity.Option{
	{Value: "male", Label: "Male"},
	{Value: "female", Label: "Female"},
	{Value: "other", Label: "Other"},
}

var statuses = []entity.Option{
	{Value: "active", Label: "Active"},
	{Value: "inactive", Label: "Inactive"},
}

// Resource describes patients to the console.
var Resource = entity.Descriptor[Patient]{
	Meta: entity.Meta{
		Slug:   "patients",
		Name:   "Patient",
		Plural: "Patients",
		Path:   "/patients",
		Columns: []entity.Column{
			{Key: "name", Label: "Name"},
			{Key: "phone", Label: "Phone"},
			{Key: "gender", Label: "Gender"},
			{Key: "date_of_birth", Label: "Date of birth"},
			{Key: "status", Label: "Status"},
		},
		Filters: []entity.Filter{
			{Key: "gender", Label: "Gender", Options: genders},
			{Key: "status", Label: "Status", Options: statuses},
		},
		Fields: []entity.Field{
			{Name: "name", Label: "Full name", Kind: entity.KindText, Required: true},
			{Name: "phone", Label: "Phone", Kind: entity.KindTel, Required: true},
			{Name: "email", Label: "Email", Kind: entity.KindEmail},
			{Name: "date_of_birth", Label: "Date of birth", Kind: entity.KindDate, Required: true},
			{Name: "gender", Label: "Gender", Kind: entity.KindSelect, Required: true, Options: genders},
			{Name: "address", Label: "Address", Kind: entity.KindTextArea},
			{Name: "status", Label: "Status", Kind: entity.KindSelect, Options: statuses},
		},
	},
	NewPayload: func() any { return &Payload{} },
}

// NewManager returns a Manager for patients.
func NewManager(cfg resource.Config) *resource.Manager[Patient] {
	cfg.Resource, cfg.Path = Resource.Name, Resource.Path
	return resource.NewManager[Patient](cfg)
}
