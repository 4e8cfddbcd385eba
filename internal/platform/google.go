package platform

import (
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/processing"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/warehouse"
)

// googleAdsDependencies: placement and audience reports are driven by
// campaign ids (google_ads_placement, google_ads_audience per
// GoogleAdsTable in constants.py).
func googleAdsDependencies() map[string]TableDependency {
	return map[string]TableDependency{
		"google_ads_placement": {
			Table: "google_ads_placement", DependsOn: "google_ads_campaign",
			DriverColumn: "id", DriverQueryFmt: "SELECT %s FROM google_ads_campaign",
		},
		"google_ads_audience": {
			Table: "google_ads_audience", DependsOn: "google_ads_campaign",
			DriverColumn: "id", DriverQueryFmt: "SELECT %s FROM google_ads_campaign",
		},
	}
}

// NewGoogleAdsPipeline builds the Google Ads platform pipeline.
func NewGoogleAdsPipeline(tables *config.PlatformTableConfig, extractor Extractor, sink warehouse.Sink, registry *processing.Registry, dryRun, testMode bool) *BasePipeline {
	return NewBasePipeline("google", tables, googleAdsDependencies(), extractor, sink, registry, dryRun, testMode)
}
