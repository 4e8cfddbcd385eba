package platform

import (
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/processing"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/warehouse"
)

// microsoftAdsDependencies: the campaign report has no value-level
// dependency of its own (MicrosoftAdsTable in constants.py lists only two
// flat report tables), so this platform's map is empty; GetTableDependencies
// falls through to nil for every table.
func microsoftAdsDependencies() map[string]TableDependency {
	return map[string]TableDependency{}
}

// NewMicrosoftAdsPipeline builds the Microsoft Ads platform pipeline.
func NewMicrosoftAdsPipeline(tables *config.PlatformTableConfig, extractor Extractor, sink warehouse.Sink, registry *processing.Registry, dryRun, testMode bool) *BasePipeline {
	return NewBasePipeline("microsoft", tables, microsoftAdsDependencies(), extractor, sink, registry, dryRun, testMode)
}
