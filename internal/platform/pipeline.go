// Package platform drives one advertising platform's extract-transform-load
// cycle: resolve table order, extract each table from the external API,
// run it through the processing pipeline, and hand it to the warehouse
// sink under its configured load mode.
package platform

import (
	"context"
	"time"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"
)

// DateRange bounds an extraction request.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Extractor is the external collaborator contract every platform adapter
// implements. driverKeys carries the parent-table identifiers a dependent
// table's extraction is parameterized by (e.g. campaign ids driving an
// insights fetch); nil when the table has no value-level dependency.
type Extractor interface {
	Extract(ctx context.Context, table string, dateRange DateRange, driverKeys []string) (*tabular.Payload, error)
}

// TableOutcome is one table's contribution to a PlatformResult.
type TableOutcome struct {
	Table      string
	RowsLoaded int64
	Err        error
}

// PlatformResult is the outcome of one platform Run.
type PlatformResult struct {
	Platform     string
	TablesLoaded []string
	RowsPerTable map[string]int64
	Errors       map[string]error
}

// Pipeline is the polymorphic per-platform contract the orchestrator
// drives.
type Pipeline interface {
	Run(ctx context.Context, dateRange DateRange, tables []string) (PlatformResult, error)
	GetTableDependencies(table string) []string
	GetAllTableNames() []string
	Name() string
}
