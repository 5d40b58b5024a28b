package physio

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emr/console/internal/platform/transport/transporttest"
	"github.com/emr/console/internal/resource"
)

func TestAssessment_Severity(t *testing.T) {
	tests := map[int]string{0: "none", 2: "mild", 3: "mild", 5: "moderate", 7: "severe", 10: "severe"}
	for score, want := range tests {
		assert.Equal(t, want, Assessment{PainScore: score}.Severity(), "score %d", score)
	}
}

func TestPayload_PainScoreRange(t *testing.T) {
	for _, score := range []string{"0", "10"} {
		p, err := Resource.Payload(url.Values{"patient_id": {"1"}, "region": {"knee"}, "pain_score": {score}})
		require.NoError(t, err)
		assert.NoError(t, resource.ValidateStruct(p), "score %s", score)
	}

	p, err := Resource.Payload(url.Values{"patient_id": {"1"}, "region": {"knee"}, "pain_score": {"11"}})
	require.NoError(t, err)
	var ve *resource.ValidationError
	require.ErrorAs(t, resource.ValidateStruct(p), &ve)
	assert.Equal(t, "Pain score must be 10 or less.", ve.Fields["pain_score"])
}

func TestManager_PagesAreZeroIndexed(t *testing.T) {
	b := transporttest.NewBackend()
	for i := 0; i < 12; i++ {
		b.Seed("/physiotherapy-assessments", map[string]any{"patient_id": 1, "region": "back", "pain_score": i % 11})
	}
	m := NewManager(resource.Config{Gateway: b, PerPage: 5})
	defer m.Close()

	st, err := m.Sync(context.Background(), resource.QueryState{Page: 2, PerPage: 5})
	require.NoError(t, err)
	assert.Len(t, st.Records, 2)
	assert.Equal(t, 2, st.Meta.Page)
	assert.Equal(t, 2, st.Meta.LastPage)
	assert.False(t, st.Meta.HasNext())

	calls := b.Calls()
	assert.Equal(t, "3", calls[len(calls)-1].Opts.Query.Get("page"))
}
