package platform

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/processing"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/warehouse"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"
)

type fakeExtractor struct {
	rows map[string][]tabular.Row
}

func (f *fakeExtractor) Extract(ctx context.Context, table string, dateRange DateRange, driverKeys []string) (*tabular.Payload, error) {
	rows, ok := f.rows[table]
	if !ok {
		return nil, fmt.Errorf("fakeExtractor: no fixture for table %q", table)
	}
	p := tabular.NewPayload("id")
	p.Rows = append(p.Rows, rows...)
	return p, nil
}

type fakeSink struct {
	loaded    map[string]*tabular.Payload
	loadCalls int
	queryRows *tabular.Payload
}

func (f *fakeSink) Load(ctx context.Context, payload *tabular.Payload, table string, opts warehouse.LoadOptions) (int64, error) {
	f.loadCalls++
	if f.loaded == nil {
		f.loaded = map[string]*tabular.Payload{}
	}
	f.loaded[table] = payload
	return int64(len(payload.Rows)), nil
}

func (f *fakeSink) Query(ctx context.Context, sql string, args ...interface{}) (*tabular.Payload, error) {
	return f.queryRows, nil
}
func (f *fakeSink) TableExists(ctx context.Context, table string) (bool, error) { return true, nil }
func (f *fakeSink) Close() error                                                { return nil }

func newTestPipeline(extractor Extractor, sink warehouse.Sink, dryRun bool, tables ...config.TableConfig) *BasePipeline {
	return NewBasePipeline("testplatform", &config.PlatformTableConfig{Tables: tables},
		map[string]TableDependency{}, extractor, sink, processing.NewRegistry(), dryRun, false)
}

func TestBasePipelineRunLoadsEachTable(t *testing.T) {
	extractor := &fakeExtractor{rows: map[string][]tabular.Row{
		"campaign": {{int64(1)}, {int64(2)}},
	}}
	sink := &fakeSink{}
	p := newTestPipeline(extractor, sink, false, config.TableConfig{Name: "campaign", LoadMode: "append"})

	result, err := p.Run(context.Background(), DateRange{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"campaign"}, result.TablesLoaded)
	assert.Equal(t, int64(2), result.RowsPerTable["campaign"])
	assert.Equal(t, 1, sink.loadCalls)
}

func TestBasePipelineDryRunSkipsSinkLoad(t *testing.T) {
	extractor := &fakeExtractor{rows: map[string][]tabular.Row{"campaign": {{int64(1)}}}}
	sink := &fakeSink{}
	p := newTestPipeline(extractor, sink, true, config.TableConfig{Name: "campaign", LoadMode: "append"})

	result, err := p.Run(context.Background(), DateRange{}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.RowsPerTable["campaign"])
	assert.Equal(t, 0, sink.loadCalls)
}

func TestBasePipelineStopOnFailureAbortsRemainingTables(t *testing.T) {
	extractor := &fakeExtractor{rows: map[string][]tabular.Row{"campaign": {{int64(1)}}}}
	sink := &fakeSink{}
	p := newTestPipeline(extractor, sink, false,
		config.TableConfig{Name: "missing_fixture", LoadMode: "append", StopOnFailure: true},
		config.TableConfig{Name: "campaign", LoadMode: "append"},
	)

	result, err := p.Run(context.Background(), DateRange{}, nil)
	require.Error(t, err)
	assert.Empty(t, result.TablesLoaded)
	assert.Contains(t, result.Errors, "missing_fixture")
}

func TestBasePipelineContinuesPastNonFatalTableFailure(t *testing.T) {
	extractor := &fakeExtractor{rows: map[string][]tabular.Row{"campaign": {{int64(1)}}}}
	sink := &fakeSink{}
	p := newTestPipeline(extractor, sink, false,
		config.TableConfig{Name: "missing_fixture", LoadMode: "append", StopOnFailure: false},
		config.TableConfig{Name: "campaign", LoadMode: "append"},
	)

	result, err := p.Run(context.Background(), DateRange{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"campaign"}, result.TablesLoaded)
	assert.Contains(t, result.Errors, "missing_fixture")
}

func TestBasePipelineDependentTableWaitsForDriver(t *testing.T) {
	extractor := &fakeExtractor{rows: map[string][]tabular.Row{
		"campaign": {{int64(1)}},
		"insights": {{int64(9)}},
	}}
	sink := &fakeSink{queryRows: &tabular.Payload{Columns: []string{"id"}, Rows: []tabular.Row{{int64(1)}}}}

	p := NewBasePipeline("testplatform",
		&config.PlatformTableConfig{Tables: []config.TableConfig{
			{Name: "campaign", LoadMode: "append"},
			{Name: "insights", LoadMode: "append"},
		}},
		map[string]TableDependency{
			"insights": {Table: "insights", DependsOn: "campaign", DriverColumn: "id", DriverQueryFmt: "SELECT %s FROM campaign"},
		},
		extractor, sink, processing.NewRegistry(), false, false)

	result, err := p.Run(context.Background(), DateRange{}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"campaign", "insights"}, result.TablesLoaded)
}

func TestGetTableDependenciesReflectsDeclaredMap(t *testing.T) {
	p := NewBasePipeline("testplatform",
		&config.PlatformTableConfig{Tables: []config.TableConfig{{Name: "insights"}, {Name: "campaign"}}},
		map[string]TableDependency{"insights": {Table: "insights", DependsOn: "campaign"}},
		&fakeExtractor{}, &fakeSink{}, processing.NewRegistry(), false, false)

	assert.Equal(t, []string{"campaign"}, p.GetTableDependencies("insights"))
	assert.Nil(t, p.GetTableDependencies("campaign"))
}
