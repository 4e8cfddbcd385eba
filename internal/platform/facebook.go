package platform

import (
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/processing"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/warehouse"
)

// facebookDependencies: insights (impressions/clicks/spend, increment
// mode) is driven by the campaign table's ids, mirroring
// facebook/pipeline.py's per-table load-mode selection.
func facebookDependencies() map[string]TableDependency {
	return map[string]TableDependency{
		"facebook_ads_insights": {
			Table: "facebook_ads_insights", DependsOn: "facebook_ads_campaign",
			DriverColumn: "id", DriverQueryFmt: "SELECT %s FROM facebook_ads_campaign",
		},
	}
}

// NewFacebookPipeline builds the Facebook Ads platform pipeline.
func NewFacebookPipeline(tables *config.PlatformTableConfig, extractor Extractor, sink warehouse.Sink, registry *processing.Registry, dryRun, testMode bool) *BasePipeline {
	return NewBasePipeline("facebook", tables, facebookDependencies(), extractor, sink, registry, dryRun, testMode)
}
