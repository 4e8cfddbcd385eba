package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"
)

func testSchema() *tabular.Schema {
	return &tabular.Schema{
		Table: "spend",
		Columns: []tabular.ColumnSchema{
			{Name: "campaign_id", Type: tabular.TypeInteger},
			{Name: "spend", Type: tabular.TypeFloating},
			{Name: "date", Type: tabular.TypeDate},
			{Name: "active", Type: tabular.TypeBoolean},
			{Name: "name", Type: tabular.TypeString},
		},
	}
}

func TestAlignPayloadCoercesNaNAndNullToZero(t *testing.T) {
	schema := testSchema()
	payload := tabular.NewPayload("campaign_id", "spend", "date", "active", "name")
	payload.Rows = append(payload.Rows, tabular.Row{"nan", "", "not-a-date", "true", 42})

	aligned, _, err := AlignPayload(payload, schema)
	require.NoError(t, err)
	require.Len(t, aligned.Rows, 1)

	row := aligned.Rows[0]
	assert.Equal(t, int64(0), row[0])
	assert.Equal(t, float64(0), row[1])
	assert.Nil(t, row[2])
	assert.Equal(t, true, row[3])
	assert.Equal(t, "42", row[4])
}

func TestAlignPayloadDropsUnknownColumnsAndDefaultsMissingOnes(t *testing.T) {
	schema := testSchema()
	payload := tabular.NewPayload("campaign_id", "extra_column")
	payload.Rows = append(payload.Rows, tabular.Row{int64(7), "unwanted"})

	aligned, warnings, err := AlignPayload(payload, schema)
	require.NoError(t, err)
	assert.Equal(t, schema.Names(), aligned.Columns)
	assert.NotEmpty(t, warnings)
	assert.Equal(t, int64(7), aligned.Rows[0][0])
	assert.Equal(t, float64(0), aligned.Rows[0][1])
}

func TestAlignPayloadIsIdempotent(t *testing.T) {
	schema := testSchema()
	payload := tabular.NewPayload("campaign_id", "spend", "date", "active", "name")
	payload.Rows = append(payload.Rows, tabular.Row{int64(1), 12.5, "2024-01-15", true, "alpha"})

	first, _, err := AlignPayload(payload, schema)
	require.NoError(t, err)
	second, _, err := AlignPayload(first, schema)
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
}
