// Package physio describes physiotherapy assessments.
package physio

import (
	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/resource"
)

// Assessment is one physiotherapy assessment of a body region.
type Assessment struct {
	ID         resource.ID `json:"id"`
	PatientID  resource.ID `json:"patient_id"`
	Patient    *Party      `json:"patient,omitempty"`
	Region     string      `json:"region"`
	PainScore  int         `json:"pain_score"`
	Notes      string      `json:"notes,omitempty"`
	AssessedAt string      `json:"assessed_at,omitempty"`
}

// Party is the embedded summary of a related record.
type Party struct {
	ID   resource.ID `json:"id"`
	Name string      `json:"name"`
}

func (a Assessment) RecordID() string { return a.ID.String() }

// Severity buckets the pain score the way the assessment forms do.
func (a Assessment) Severity() string {
	switch {
	case a.PainScore == 0:
		return "none"
	case a.PainScore <= 3:
		return "mild"
	case a.PainScore <= 6:
		return "moderate"
	default:
		return "severe"
	}
}

// Payload is the create/update body.
type Payload struct {
	PatientID string `json:"patient_id" validate:"required"`
	Region    string `json:"region" validate:"required,oneof=neck shoulder back hip knee ankle"`
	PainScore int    `json:"pain_score" validate:"gte=0,lte=10"`
	Notes     string `json:"notes,omitempty" validate:"max=4000"`
}

var regions = []entity.Option{
	{Value: "neck", Label: "Neck"},
	{Value: "shoulder", Label: "Shoulder"},
	{Value: "back", Label: "Back"},
	{Value: "hip", Label: "Hip"},
	{Value: "knee", Label: "Knee"},
	{Value: "ankle", Label: "Ankle"},
}

// Resource describes physiotherapy assessments to the console.
var Resource = entity.Descriptor[Assessment]{
	Meta: entity.Meta{
		Slug:   "physiotherapy-assessments",
		Name:   "Physiotherapy assessment",
		Plural: "Physiotherapy assessments",
		Path:   "/physiotherapy-assessments",
		Columns: []entity.Column{
			{Key: "patient.name", Label: "Patient"},
			{Key: "region", Label: "Region"},
			{Key: "pain_score", Label: "Pain (0-10)"},
			{Key: "assessed_at", Label: "Assessed"},
		},
		Filters: []entity.Filter{
			{Key: "region", Label: "Region", Options: regions},
		},
		Fields: []entity.Field{
			{Name: "patient_id", Label: "Patient ID", Kind: entity.KindText, Required: true},
			{Name: "region", Label: "Region", Kind: entity.KindSelect, Required: true, Options: regions},
			{Name: "pain_score", Label: "Pain score", Kind: entity.KindInteger, Help: "0 is no pain, 10 is the worst imaginable."},
			{Name: "notes", Label: "Notes", Kind: entity.KindTextArea},
		},
	},
	NewPayload: func() any { return &Payload{} },
}

// NewManager returns a Manager for physiotherapy assessments.
func NewManager(cfg resource.Config) *resource.Manager[Assessment] {
	cfg.Resource, cfg.Path = Resource.Name, Resource.Path
	return resource.NewManager[Assessment](cfg)
}
