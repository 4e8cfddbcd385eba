package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsDuplicatePlatform(t *testing.T) {
	cfg := &OrchestratorConfig{Platforms: []PlatformEntry{{Name: "linkedin"}, {Name: "linkedin"}}}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownDependsOn(t *testing.T) {
	cfg := &OrchestratorConfig{Platforms: []PlatformEntry{{Name: "linkedin", DependsOn: []string{"ghost"}}}}
	require.Error(t, cfg.Validate())
}

func TestValidateAcceptsConsistentParallelGroups(t *testing.T) {
	cfg := &OrchestratorConfig{
		Platforms: []PlatformEntry{
			{Name: "campaign"},
			{Name: "insights", DependsOn: []string{"campaign"}},
		},
		ParallelGroups: [][]string{{"campaign"}, {"insights"}},
	}
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsParallelGroupsConflictingWithDependsOn(t *testing.T) {
	cfg := &OrchestratorConfig{
		Platforms: []PlatformEntry{
			{Name: "campaign"},
			{Name: "insights", DependsOn: []string{"campaign"}},
		},
		// insights placed in the same or an earlier group than its dependency.
		ParallelGroups: [][]string{{"campaign", "insights"}},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsDependsOnCycleWithoutParallelGroups(t *testing.T) {
	cfg := &OrchestratorConfig{
		Platforms: []PlatformEntry{
			{Name: "campaign", DependsOn: []string{"insights"}},
			{Name: "insights", DependsOn: []string{"campaign"}},
		},
	}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsParallelGroupsMissingAPlatform(t *testing.T) {
	cfg := &OrchestratorConfig{
		Platforms:      []PlatformEntry{{Name: "campaign"}, {Name: "insights"}},
		ParallelGroups: [][]string{{"campaign"}},
	}
	require.Error(t, cfg.Validate())
}
