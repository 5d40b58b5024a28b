// Package payment describes patient payments. A payment may settle a
// selection of lab and radiology items; such payments are submitted as
// multipart forms with one array entry per selected item.
package payment

import (
	"strconv"

	"github.com/emr/console/internal/domain/entity"
	"github.com/emr/console/internal/platform/transport"
	"github.com/emr/console/internal/resource"
)

// Payment is a recorded payment.
type Payment struct {
	ID             resource.ID      `json:"id"`
	PatientID      resource.ID      `json:"patient_id"`
	Patient        *Party           `json:"patient,omitempty"`
	Amount         resource.Decimal `json:"amount"`
	Method         string           `json:"method"`
	Reference      string           `json:"reference,omitempty"`
	Status         string           `json:"status"`
	LabTests       []resource.ID    `json:"lab_tests,omitempty"`
	RadiologyTests []resource.ID    `json:"radiology_tests,omitempty"`
	PaidAt         string           `json:"paid_at,omitempty"`
}

// Party is the embedded summary of a related record.
type Party struct {
	ID   resource.ID `json:"id"`
	Name string      `json:"name"`
}

func (p Payment) RecordID() string { return p.ID.String() }

// Payload is the create/update body.
type Payload struct {
	PatientID      string   `json:"patient_id" validate:"required"`
	Amount         float64  `json:"amount" validate:"gt=0"`
	Method         string   `json:"method" validate:"required,oneof=cash card insurance transfer"`
	Reference      string   `json:"reference,omitempty" validate:"max=64"`
	Status         string   `json:"status,omitempty" validate:"omitempty,oneof=pending paid refunded"`
	LabTests       []string `json:"lab_tests" validate:"dive,required"`
	RadiologyTests []string `json:"radiology_tests" validate:"dive,required"`
}

// Check requires a reference for non-cash payments.
func (p Payload) Check() map[string]string {
	if p.Method != "" && p.Method != "cash" && p.Reference == "" {
		return map[string]string{"reference": "Reference is required for " + p.Method + " payments."}
	}
	return nil
}

// SelectionPayload encodes a payload with item selections as a multipart
// form. Payloads without selected items are sent as JSON.
func SelectionPayload(payload any) *transport.Multipart {
	p, ok := payload.(*Payload)
	if !ok || (len(p.LabTests) == 0 && len(p.RadiologyTests) == 0) {
		return nil
	}
	mp := &transport.Multipart{}
	mp.AddField("patient_id", p.PatientID)
	mp.AddField("amount", strconv.FormatFloat(p.Amount, 'f', 2, 64))
	mp.AddField("method", p.Method)
	if p.Reference != "" {
		mp.AddField("reference", p.Reference)
	}
	if p.Status != "" {
		mp.AddField("status", p.Status)
	}
	mp.AddArray("lab_tests", p.LabTests...)
	mp.AddArray("radiology_tests", p.RadiologyTests...)
	return mp
}

var methods = []entity.Option{
	{Value: "cash", Label: "Cash"},
	{Value: "card", Label: "Card"},
	{Value: "insurance", Label: "Insurance"},
	{Value: "transfer", Label: "Bank transfer"},
}

var statuses = []entity.Option{
	{Value: "pending", Label: "Pending"},
	{Value: "paid", Label: "Paid"},
	{Value: "refunded", Label: "Refunded"},
}

// Resource describes payments to the console.
var Resource = entity.Descriptor[Payment]{
	Meta: entity.Meta{
		Slug:   "payments",
		Name:   "Payment",
		Plural: "Payments",
		Path:   "/payments",
		Columns: []entity.Column{
			{Key: "patient.name", Label: "Patient"},
			{Key: "amount", Label: "Amount"},
			{Key: "method", Label: "Method"},
			{Key: "status", Label: "Status"},
			{Key: "paid_at", Label: "Paid at"},
		},
		Filters: []entity.Filter{
			{Key: "method", Label: "Method", Options: methods},
			{Key: "status", Label: "Status", Options: statuses},
		},
		Fields: []entity.Field{
			{Name: "patient_id", Label: "Patient ID", Kind: entity.KindText, Required: true},
			{Name: "amount", Label: "Amount", Kind: entity.KindNumber, Required: true},
			{Name: "method", Label: "Method", Kind: entity.KindSelect, Required: true, Options: methods},
			{Name: "reference", Label: "Reference", Kind: entity.KindText, Help: "Card slip, claim or transfer number."},
			{Name: "status", Label: "Status", Kind: entity.KindSelect, Options: statuses},
			{Name: "lab_tests", Label: "Lab test IDs", Kind: entity.KindMultiSelect},
			{Name: "radiology_tests", Label: "Radiology test IDs", Kind: entity.KindMultiSelect},
		},
	},
	NewPayload: func() any { return &Payload{} },
	Multipart:  SelectionPayload,
}

// NewManager returns a Manager for payments.
func NewManager(cfg resource.Config) *resource.Manager[Payment] {
	cfg.Resource, cfg.Path = Resource.Name, Resource.Path
	return resource.NewManager[Payment](cfg)
}
