package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPlatformConfigParsesSingleKeyStepMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkedin.yml")
	contents := `
platform: linkedin
tables:
  - name: linkedin_ads_campaign
    load_mode: append
    processing:
      - modify_urn_account: {}
      - rename_column:
          renaming:
            id: campaign_id
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := LoadPlatformConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Tables, 1)
	require.Len(t, cfg.Tables[0].Processing, 2)
	assert.Equal(t, "modify_urn_account", cfg.Tables[0].Processing[0].Step)
	assert.Equal(t, "rename_column", cfg.Tables[0].Processing[1].Step)
}

func TestLoadPlatformConfigRejectsUnknownLoadMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	contents := `
platform: linkedin
tables:
  - name: linkedin_ads_campaign
    load_mode: overwrite_everything
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	_, err := LoadPlatformConfig(path)
	require.Error(t, err)
}

func TestTableByNameLookup(t *testing.T) {
	cfg := &PlatformTableConfig{Tables: []TableConfig{{Name: "campaign"}}}
	_, ok := cfg.TableByName("campaign")
	assert.True(t, ok)
	_, ok = cfg.TableByName("missing")
	assert.False(t, ok)
}
