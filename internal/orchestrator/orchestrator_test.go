package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/platform"
)

type fakePipeline struct {
	name        string
	deps        map[string][]string
	fail        bool
	failUntil   int
	attempts    int
}

func (f *fakePipeline) Name() string { return f.name }
func (f *fakePipeline) GetAllTableNames() []string { return []string{"table"} }
func (f *fakePipeline) GetTableDependencies(table string) []string { return f.deps[table] }
func (f *fakePipeline) Run(ctx context.Context, dateRange platform.DateRange, tables []string) (platform.PlatformResult, error) {
	f.attempts++
	if f.fail && f.attempts <= f.failUntil {
		return platform.PlatformResult{}, fmt.Errorf("%s: simulated failure", f.name)
	}
	return platform.PlatformResult{
		Platform:     f.name,
		TablesLoaded: []string{"table"},
		RowsPerTable: map[string]int64{"table": 10},
	}, nil
}

func baseConfig(platforms ...config.PlatformEntry) *config.OrchestratorConfig {
	return &config.OrchestratorConfig{
		Orchestrator: config.OrchestratorSettings{ParallelExecution: true, MaxParallel: 4, ContinueOnFailure: true},
		Platforms:    platforms,
	}
}

func TestRunAllRunsDependenciesBeforeDependents(t *testing.T) {
	cfg := baseConfig(
		config.PlatformEntry{Name: "campaign_source", Enabled: true},
		config.PlatformEntry{Name: "insights", Enabled: true, DependsOn: []string{"campaign_source"}},
	)
	pipelines := map[string]platform.Pipeline{
		"campaign_source": &fakePipeline{name: "campaign_source"},
		"insights":        &fakePipeline{name: "insights"},
	}
	orch, err := New(cfg, pipelines)
	require.NoError(t, err)

	result, err := orch.RunAll(context.Background(), platform.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, result.ExitCode)
	assert.Equal(t, 2, result.Report.Summary.Completed)
}

func TestRunAllSkipsDependentsOfAFailedPlatform(t *testing.T) {
	cfg := baseConfig(
		config.PlatformEntry{Name: "campaign_source", Enabled: true, Retry: config.RetryPolicy{MaxAttempts: 1}},
		config.PlatformEntry{Name: "insights", Enabled: true, DependsOn: []string{"campaign_source"}},
	)
	pipelines := map[string]platform.Pipeline{
		"campaign_source": &fakePipeline{name: "campaign_source", fail: true, failUntil: 99},
		"insights":        &fakePipeline{name: "insights"},
	}
	orch, err := New(cfg, pipelines)
	require.NoError(t, err)

	result, err := orch.RunAll(context.Background(), platform.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, ExitTotalFailure, result.ExitCode)
	assert.Equal(t, 1, result.Report.Summary.Failed)
	assert.Equal(t, 1, result.Report.Summary.Skipped)
}

func TestRunAllRetriesTransientFailureUntilSuccess(t *testing.T) {
	cfg := baseConfig(
		config.PlatformEntry{Name: "google", Enabled: true, Retry: config.RetryPolicy{MaxAttempts: 3, BackoffSeconds: 0}},
	)
	fp := &fakePipeline{name: "google", fail: true, failUntil: 2}
	orch, err := New(cfg, map[string]platform.Pipeline{"google": fp})
	require.NoError(t, err)

	result, err := orch.RunAll(context.Background(), platform.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, result.ExitCode)
	assert.Equal(t, 3, fp.attempts)
}

func TestRunAllWithNoEnabledPlatformsSucceedsTrivially(t *testing.T) {
	cfg := baseConfig(config.PlatformEntry{Name: "linkedin", Enabled: false})
	orch, err := New(cfg, map[string]platform.Pipeline{})
	require.NoError(t, err)

	result, err := orch.RunAll(context.Background(), platform.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, ExitSuccess, result.ExitCode)
}
