// Package referral describes outbound patient referrals.
package referral

import (
	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/resource"
)

// Referral sends a patient to another provider.
type Referral struct {
	ID         resource.ID `json:"id"`
	PatientID  resource.ID `json:"patient_id"`
	Patient    *Party      `json:"patient,omitempty"`
	ReferredTo string      `json:"referred_to"`
	Reason     string      `json:"reason"`
	Priority   string      `json:"priority"`
	Status     string      `json:"status"`
	CreatedAt  string      `json:"created_at,omitempty"`
}

// Party is the embedded summary of a related record.
type Party struct {
	ID   resource.ID `json:"id"`
	Name string      `json:"name"`
}

func (r Referral) RecordID() string { return r.ID.String() }

// Payload is the create/update body.
type Payload struct {
	PatientID  string `json:"patient_id" validate:"required"`
	ReferredTo string `json:"referred_to" validate:"required,max=160"`
	Reason     string `json:"reason" validate:"required,max=2000"`
	Priority   string `json:"priority" validate:"required,oneof=routine urgent emergency"`
	Status     string `json:"status,omitempty" validate:"omitempty,oneof=pending accepted completed cancelled"`
}

var priorities = []entity.Option{
	{Value: "routine", Label: "Routine"},
	{Value: "urgent", Label: "Urgent"},
	{Value: "emergency", Label: "Emergency"},
}

var statuses = []entity.Option{
	{Value: "pending", Label: "Pending"},
	{Value: "accepted", Label: "Accepted"},
	{Value: "completed", Label: "Completed"},
	{Value: "cancelled", Label: "Cancelled"},
}

// Resource describes referrals to the console.
var Resource = entity.Descriptor[Referral]{
	Meta: entity.Meta{
		Slug:   "referrals",
		Name:   "Referral",
		Plural: "Referrals",
		Path:   "/referrals",
		Columns: []entity.Column{
			{Key: "patient.name", Label: "Patient"},
			{Key: "referred_to", Label: "Referred to"},
			{Key: "priority", Label: "Priority"},
			{Key: "status", Label: "Status"},
			{Key: "created_at", Label: "Created"},
		},
		Filters: []entity.Filter{
			{Key: "status", Label: "Status", Options: statuses},
			{Key: "priority", Label: "Priority", Options: priorities},
		},
		Fields: []entity.Field{
			{Name: "patient_id", Label: "Patient ID", Kind: entity.KindText, Required: true},
			{Name: "referred_to", Label: "Referred to", Kind: entity.KindText, Required: true},
			{Name: "reason", Label: "Reason", Kind: entity.KindTextArea, Required: true},
			{Name: "priority", Label: "Priority", Kind: entity.KindSelect, Required: true, Options: priorities},
			{Name: "status", Label: "Status", Kind: entity.KindSelect, Options: statuses},
		},
	},
	NewPayload: func() any { return &Payload{} },
}

// NewManager returns a Manager for referrals.
func NewManager(cfg resource.Config) *resource.Manager[Referral] {
	cfg.Resource, cfg.Path = Resource.Name, Resource.Path
	return resource.NewManager[Referral](cfg)
}
