package platform

import (
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/processing"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/warehouse"
)

// linkedInDependencies mirrors TABLE_DEPENDENCIES: insights and creative
// depend on campaign; campaign_audience depends on both campaign and
// audience but only campaign carries a value-level driver-key dependency
// here (audience membership is resolved by the extractor itself from the
// campaign-audience API response, not by a separate id lookup).
func linkedInDependencies() map[string]TableDependency {
	return map[string]TableDependency{
		"linkedin_ads_insights": {
			Table: "linkedin_ads_insights", DependsOn: "linkedin_ads_campaign",
			DriverColumn: "id", DriverQueryFmt: "SELECT %s FROM linkedin_ads_campaign",
		},
		"linkedin_ads_creative": {
			Table: "linkedin_ads_creative", DependsOn: "linkedin_ads_campaign",
			DriverColumn: "id", DriverQueryFmt: "SELECT %s FROM linkedin_ads_campaign",
		},
		"linkedin_ads_campaign_audience": {
			Table: "linkedin_ads_campaign_audience", DependsOn: "linkedin_ads_campaign",
			DriverColumn: "id", DriverQueryFmt: "SELECT %s FROM linkedin_ads_campaign",
		},
	}
}

// NewLinkedInPipeline builds the LinkedIn Ads platform pipeline.
func NewLinkedInPipeline(tables *config.PlatformTableConfig, extractor Extractor, sink warehouse.Sink, registry *processing.Registry, dryRun, testMode bool) *BasePipeline {
	return NewBasePipeline("linkedin", tables, linkedInDependencies(), extractor, sink, registry, dryRun, testMode)
}
