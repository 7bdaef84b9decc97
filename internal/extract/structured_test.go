package extract

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTables struct {
	rows []map[string]any
	err  error
}

func (f *fakeTables) Extract(context.Context, string) ([]map[string]any, error) {
	return f.rows, f.err
}

// bulletinRows mimics tabula output for a bulletin with two category
// sections and a repeated header row in the middle.
func bulletinRows() []map[string]any {
	return []map[string]any{
		{"#": "A", "COMMODITY": "CEREALS", "PREVAILING PRICE": nil},
		{"#": float64(1), "COMMODITY": "Rice Regular Milled", "SPECIFICATION": "Local", "PREVAILING PRICE": "45.00"},
		{"#": float64(2), "COMMODITY": "Rice Well Milled", "SPECIFICATION": "Local", "PREVAILING PRICE": "50.00"},
		{"#": nil, "COMMODITY": "COMMODITY", "SPECIFICATION": "SPECIFICATION", "PREVAILING PRICE": "PREVAILING PRICE"},
		{"#": "B", "COMMODITY": "FISH", "PREVAILING PRICE": nil},
		{"#": float64(3), "COMMODITY": "Galunggong", "SPECIFICATION": "Medium", "PREVAILING PRICE": "240.00"},
		{"#": float64(4), "COMMODITY": "Bangus", "SPECIFICATION": "Large", "PREVAILING PRICE": "n/a"},
		{"#": float64(5), "COMMODITY": "Tilapia", "SPECIFICATION": "", "PREVAILING PRICE": "120.00"},
		{"#": nil, "COMMODITY": "Source: DA-AMAS as of August 28, 2026", "PREVAILING PRICE": nil},
	}
}

func TestTabulaStage_CategoryCarryForward(t *testing.T) {
	s := NewTabulaStage(&fakeTables{rows: bulletinRows()}, 0)
	rows, err := s.Extract(context.Background(), Source{PDFPath: "/tmp/b.pdf"})
	require.NoError(t, err)
	require.Len(t, rows, 5)

	assert.Equal(t, "CEREALS", rows[0].Category)
	assert.Equal(t, "CEREALS", rows[1].Category)
	assert.Equal(t, "FISH", rows[2].Category)
	assert.Equal(t, "FISH", rows[4].Category)

	assert.Equal(t, "Rice Regular Milled", rows[0].CropName)
	assert.Equal(t, "45.00", rows[0].Price)
	assert.Equal(t, "n/a", rows[3].Price)
	assert.Equal(t, SourceTabula, rows[0].Source)
}

func TestTabulaStage_SkipsHeaderAndFooterRows(t *testing.T) {
	s := NewTabulaStage(&fakeTables{rows: bulletinRows()}, 0)
	rows, err := s.Extract(context.Background(), Source{})
	require.NoError(t, err)
	for _, r := range rows {
		assert.NotContains(t, r.CropName, "COMMODITY")
		assert.NotContains(t, r.CropName, "Source:")
	}
}

func TestTabulaStage_ValidateRejectsTooFewRows(t *testing.T) {
	// No purely-numeric leading identifiers at all: every row is rejected,
	// so the structured attempt fails and the chain falls through.
	rows := []map[string]any{
		{"#": "x1", "COMMODITY": "Rice", "PREVAILING PRICE": "45.00"},
		{"#": "x2", "COMMODITY": "Corn", "PREVAILING PRICE": "30.00"},
	}
	s := NewTabulaStage(&fakeTables{rows: rows}, 0)
	_, err := s.Extract(context.Background(), Source{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plausible data rows")
}

func TestTabulaStage_ValidateRejectsMissingCommodityColumn(t *testing.T) {
	rows := []map[string]any{
		{"col_a": "1", "col_b": "45.00"},
		{"col_a": "2", "col_b": "50.00"},
	}
	s := NewTabulaStage(&fakeTables{rows: rows}, 0)
	_, err := s.Extract(context.Background(), Source{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "commodity column absent")
}

func TestTabulaStage_ToolFailurePropagates(t *testing.T) {
	s := NewTabulaStage(&fakeTables{err: eris.New("exit status 1")}, 0)
	_, err := s.Extract(context.Background(), Source{})
	require.Error(t, err)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", stringify(nil))
	assert.Equal(t, "Rice", stringify(" Rice "))
	assert.Equal(t, "3", stringify(float64(3)))
	assert.Equal(t, "45.5", stringify(45.5))
	assert.Equal(t, "", stringify([]any{}))
}
