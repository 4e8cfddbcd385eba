package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/processing"
)

func TestNewLinkedInPipelineDeclaresCampaignDependencies(t *testing.T) {
	p := NewLinkedInPipeline(&config.PlatformTableConfig{}, &fakeExtractor{}, &fakeSink{}, processing.NewRegistry(), false, false)
	assert.Equal(t, "linkedin", p.Name())
	assert.Equal(t, []string{"linkedin_ads_campaign"}, p.GetTableDependencies("linkedin_ads_insights"))
	assert.Equal(t, []string{"linkedin_ads_campaign"}, p.GetTableDependencies("linkedin_ads_creative"))
}

func TestNewFacebookPipelineDeclaresInsightsDependency(t *testing.T) {
	p := NewFacebookPipeline(&config.PlatformTableConfig{}, &fakeExtractor{}, &fakeSink{}, processing.NewRegistry(), false, false)
	assert.Equal(t, "facebook", p.Name())
	assert.Equal(t, []string{"facebook_ads_campaign"}, p.GetTableDependencies("facebook_ads_insights"))
}

func TestNewGoogleAdsPipelineDeclaresPlacementAndAudienceDependencies(t *testing.T) {
	p := NewGoogleAdsPipeline(&config.PlatformTableConfig{}, &fakeExtractor{}, &fakeSink{}, processing.NewRegistry(), false, false)
	assert.Equal(t, "google", p.Name())
	assert.Equal(t, []string{"google_ads_campaign"}, p.GetTableDependencies("google_ads_placement"))
	assert.Equal(t, []string{"google_ads_campaign"}, p.GetTableDependencies("google_ads_audience"))
}

func TestNewMicrosoftAdsPipelineHasNoDeclaredDependencies(t *testing.T) {
	p := NewMicrosoftAdsPipeline(&config.PlatformTableConfig{}, &fakeExtractor{}, &fakeSink{}, processing.NewRegistry(), false, false)
	assert.Equal(t, "microsoft", p.Name())
	assert.Nil(t, p.GetTableDependencies("microsoft_ads_campaign"))
}
