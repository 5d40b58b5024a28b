package medicine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emr/console/internal/platform/transport/transporttest"
	"github.com/emr/console/internal/resource"
)

func TestMedicine_LowStock(t *testing.T) {
	assert.True(t, Medicine{Stock: 0}.LowStock())
	assert.True(t, Medicine{Stock: LowStockThreshold}.LowStock())
	assert.False(t, Medicine{Stock: LowStockThreshold + 1}.LowStock())
}

func TestPayload_NegativeStock(t *testing.T) {
	var ve *resource.ValidationError
	require.ErrorAs(t, resource.ValidateStruct(&Payload{Name: "Panadol", Form: "tablet", Stock: -1}), &ve)
	assert.Equal(t, map[string]string{"stock": "Stock must be 0 or more."}, ve.Fields)
}

func TestManager_InStockFilterAndDecimalPrice(t *testing.T) {
	b := transporttest.NewBackend()
	b.Seed("/medicines",
		map[string]any{"name": "Amoxil", "form": "capsule", "stock": 40, "unit_price": "0.35", "in_stock": true},
		map[string]any{"name": "Ventolin", "form": "inhaler", "stock": 0, "unit_price": "7.90", "in_stock": false},
	)
	m := NewManager(resource.Config{Gateway: b})
	defer m.Close()

	st, err := m.Sync(context.Background(), resource.QueryState{Filters: map[string]any{"in_stock": true}})
	require.NoError(t, err)
	require.Len(t, st.Records, 1)
	assert.Equal(t, "Amoxil", st.Records[0].Name)
	assert.Equal(t, resource.Decimal(0.35), st.Records[0].UnitPrice)

	last := b.Calls()[len(b.Calls())-1]
	assert.Equal(t, "true", last.Opts.Query.Get("in_stock"))
}

func TestManaged_TableCells(t *testing.T) {
	b := transporttest.NewBackend()
	b.Seed("/medicines", map[string]any{"name": "Amoxil", "generic_name": "amoxicillin", "form": "capsule", "strength": "500 mg", "stock": 40, "unit_price": "0.35"})
	m := Resource.Open(resource.Config{Gateway: b})
	defer m.Close()

	tbl, err := m.Sync(context.Background(), resource.QueryState{})
	require.NoError(t, err)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []string{"Amoxil", "amoxicillin", "capsule", "500 mg", "40", "0.35"}, tbl.Rows[0].Cells)
	assert.Equal(t, "1", tbl.Rows[0].ID)
	assert.False(t, tbl.Rows[0].Busy)
}
