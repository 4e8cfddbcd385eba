package config

import (
	"os"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
	"gopkg.in/yaml.v3"
)

// ProcessingStepConfig is one `{step_name: params}` entry in a table's
// processing list. Params is left as a generic map since each step
// interprets its own parameter shape.
type ProcessingStepConfig struct {
	Step   string
	Params map[string]interface{}
}

// UnmarshalYAML accepts the single-key-map shape `{step_name: {...params}}`
// used throughout the platform table config.
func (s *ProcessingStepConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]map[string]interface{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	for name, params := range raw {
		s.Step = name
		s.Params = params
		return nil
	}
	return nil
}

// TableConfig is one logical table's declared extraction, processing, and
// load configuration.
type TableConfig struct {
	Name             string                 `yaml:"name"`
	Request          string                 `yaml:"request"`
	Type             string                 `yaml:"type"`
	PageSize         int                    `yaml:"page_size"`
	Fields           []string               `yaml:"fields"`
	Processing       []ProcessingStepConfig `yaml:"processing"`
	LoadMode         string                 `yaml:"load_mode"`
	PKColumns        []string               `yaml:"pk_columns"`
	IncrementColumns []string               `yaml:"increment_columns"`
	Day              int                    `yaml:"day"`
	TestModeSuffix   bool                   `yaml:"test_mode_suffix"`
	StopOnFailure    bool                   `yaml:"stop_on_failure"`
}

// PlatformTableConfig is the per-platform table configuration document.
type PlatformTableConfig struct {
	Platform string        `yaml:"platform"`
	Tables   []TableConfig `yaml:"tables"`
}

// LoadPlatformConfig reads and parses one platform's table configuration
// document and validates its load_mode values. pk_columns are not
// inspected, so a date column listed as a pk column of an increment table
// is not rejected here.
func LoadPlatformConfig(path string) (*PlatformTableConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg PlatformTableConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &errs.ConfigError{Field: path, Msg: err.Error()}
	}
	for _, t := range cfg.Tables {
		switch t.LoadMode {
		case "append", "replace", "upsert", "increment":
		default:
			return nil, &errs.ConfigError{Field: "tables." + t.Name + ".load_mode", Msg: "unknown load_mode " + t.LoadMode}
		}
	}
	return &cfg, nil
}

// TableByName finds a table config by logical name.
func (c *PlatformTableConfig) TableByName(name string) (TableConfig, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableConfig{}, false
}
