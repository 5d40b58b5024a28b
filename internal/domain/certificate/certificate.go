// Package certificate describes medical certificates (sick leave, fitness
// and similar attestations) issued to patients.
package certificate

import (
	"time"

	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/resource"
)

const dateLayout = "2006-01-02"

// Certificate is an issued medical certificate.
type Certificate struct {
	ID               resource.ID `json:"id"`
	PatientID        resource.ID `json:"patient_id"`
	Patient          *Party      `json:"patient,omitempty"`
	Type             string      `json:"type"`
	DiagnosisSummary string      `json:"diagnosis_summary"`
	RestFrom         string      `json:"rest_from,omitempty"`
	RestTo           string      `json:"rest_to,omitempty"`
	IssuedAt         string      `json:"issued_at,omitempty"`
}

// Party is the embedded summary of a related record.
type Party struct {
	ID   resource.ID `json:"id"`
	Name string      `json:"name"`
}

func (c Certificate) RecordID() string { return c.ID.String() }

// RestDays returns the inclusive length of the rest period, or 0 when the
// period is not set.
func (c Certificate) RestDays() int {
	return restDays(c.RestFrom, c.RestTo)
}

// Payload is the create/update body.
type Payload struct {
	PatientID        string `json:"patient_id" validate:"required"`
	Type             string `json:"type" validate:"required,oneof=sick_leave fitness referral_note"`
	DiagnosisSummary string `json:"diagnosis_summary" validate:"required,max=2000"`
	RestFrom         string `json:"rest_from,omitempty" validate:"required_with=RestTo,omitempty,datetime=2006-01-02"`
	RestTo           string `json:"rest_to,omitempty" validate:"required_with=RestFrom,omitempty,datetime=2006-01-02"`
}

// Check enforces that the rest period does not end before it starts, and
// that sick leave carries a rest period.
func (p Payload) Check() map[string]string {
	if p.Type == "sick_leave" && p.RestFrom == "" && p.RestTo == "" {
		return map[string]string{"rest_from": "Sick leave needs a rest period."}
	}
	from, errFrom := time.Parse(dateLayout, p.RestFrom)
	to, errTo := time.Parse(dateLayout, p.RestTo)
	if errFrom != nil || errTo != nil {
		return nil
	}
	if to.Before(from) {
		return map[string]string{"rest_to": "Rest to must be on or after rest from."}
	}
	return nil
}

func restDays(fromStr, toStr string) int {
	from, err := time.Parse(dateLayout, firstDate(fromStr))
	if err != nil {
		return 0
	}
	to, err := time.Parse(dateLayout, firstDate(toStr))
	if err != nil || to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

func firstDate(s string) string {
	if len(s) > len(dateLayout) {
		return s[:len(dateLayout)]
	}
	return s
}

var types = []entity.Option{
	{Value: "sick_leave", Label: "Sick leave"},
	{Value: "fitness", Label: "Fitness"},
	{Value: "referral_note", Label: "Referral note"},
}

// Resource describes medical certificates to the console.
var Resource = entity.Descriptor[Certificate]{
	Meta: entity.Meta{
		Slug:   "medical-certificates",
		Name:   "Medical certificate",
		Plural: "Medical certificates",
		Path:   "/medical-certificates",
		Columns: []entity.Column{
			{Key: "patient.name", Label: "Patient"},
			{Key: "type", Label: "Type"},
			{Key: "rest_from", Label: "Rest from"},
			{Key: "rest_to", Label: "Rest to"},
			{Key: "issued_at", Label: "Issued"},
		},
		Filters: []entity.Filter{
			{Key: "type", Label: "Type", Options: types},
		},
		Fields: []entity.Field{
			{Name: "patient_id", Label: "Patient ID", Kind: entity.KindText, Required: true},
			{Name: "type", Label: "Type", Kind: entity.KindSelect, Required: true, Options: types},
			{Name: "diagnosis_summary", Label: "Diagnosis summary", Kind: entity.KindTextArea, Required: true},
			{Name: "rest_from", Label: "Rest from", Kind: entity.KindDate},
			{Name: "rest_to", Label: "Rest to", Kind: entity.KindDate},
		},
	},
	NewPayload: func() any { return &Payload{} },
}

// NewManager returns a Manager for medical certificates.
func NewManager(cfg resource.Config) *resource.Manager[Certificate] {
	cfg.Resource, cfg.Path = Resource.Name, Resource.Path
	return resource.NewManager[Certificate](cfg)
}
