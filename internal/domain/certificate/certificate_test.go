package certificate

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emr/console/internal/platform/transport/transporttest"
	"github.com/emr/console/internal/resource"
)

func TestPayload_RestPeriod(t *testing.T) {
	base := Payload{PatientID: "1", Type: "sick_leave", DiagnosisSummary: "Influenza"}

	tests := []struct {
		name     string
		from, to string
		fields   map[string]string
	}{
		{"same day", "2024-03-01", "2024-03-01", nil},
		{"ordered", "2024-03-01", "2024-03-05", nil},
		{"reversed", "2024-03-05", "2024-03-01", map[string]string{"rest_to": "Rest to must be on or after rest from."}},
		{"missing end", "2024-03-05", "", map[string]string{"rest_to": "Rest to is required."}},
		{"sick leave without period", "", "", map[string]string{"rest_from": "Sick leave needs a rest period."}},
		{"bad format", "01/03/2024", "2024-03-05", map[string]string{"rest_from": "Rest from must be a date (2006-01-02)."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			p.RestFrom, p.RestTo = tt.from, tt.to
			err := resource.ValidateStruct(p)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var ve *resource.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.fields, ve.Fields)
		})
	}
}

func TestPayload_FitnessWithoutPeriod(t *testing.T) {
	assert.NoError(t, resource.ValidateStruct(Payload{PatientID: "1", Type: "fitness", DiagnosisSummary: "Fit to work"}))
}

func TestCertificate_RestDays(t *testing.T) {
	assert.Equal(t, 5, Certificate{RestFrom: "2024-03-01", RestTo: "2024-03-05"}.RestDays())
	assert.Equal(t, 1, Certificate{RestFrom: "2024-03-01T00:00:00Z", RestTo: "2024-03-01"}.RestDays())
	assert.Equal(t, 0, Certificate{RestFrom: "2024-03-05", RestTo: "2024-03-01"}.RestDays())
	assert.Equal(t, 0, Certificate{}.RestDays())
}

func TestManaged_InvalidPeriodNeverReachesBackend(t *testing.T) {
	b := transporttest.NewBackend()
	var toasts []string
	m := Resource.Open(resource.Config{
		Gateway:  b,
		Notifier: resource.NotifierFunc(func(_ resource.Level, msg string) { toasts = append(toasts, msg) }),
	})
	defer m.Close()

	err := m.Create(context.Background(), url.Values{
		"patient_id":        {"2"},
		"type":              {"sick_leave"},
		"diagnosis_summary": {"Back pain"},
		"rest_from":         {"2024-03-05"},
		"rest_to":           {"2024-03-01"},
	})
	require.Error(t, err)
	assert.Equal(t, resource.KindValidation, resource.Classify(err))
	assert.Zero(t, b.Count("POST"))
	assert.Equal(t, []string{"Rest to must be on or after rest from."}, toasts)
}
