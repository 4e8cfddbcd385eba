package platform

import (
	"context"
	"fmt"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/processing"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/scheduler"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/warehouse"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/logger"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/tabular"
)

// TableDependency declares that a table needs another table's driver
// keys to be extracted, e.g. LinkedIn insights needs the set of
// campaign urns.
type TableDependency struct {
	Table          string
	DependsOn      string
	DriverColumn   string
	DriverQueryFmt string // e.g. "SELECT %s FROM linkedin_ads_campaign"
}

// BasePipeline is the generic, config-driven extract->process->load
// skeleton shared by every platform implementation: one instance per
// platform, differing only in table configuration and extractor.
// Platform-specific constructors (linkedin.go, facebook.go, google.go,
// microsoft.go) supply the extractor and table dependency map; everything
// else is identical.
type BasePipeline struct {
	name         string
	tables       *config.PlatformTableConfig
	dependencies map[string]TableDependency
	extractor    Extractor
	sink         warehouse.Sink
	registry     *processing.Registry
	dryRun       bool
	testMode     bool
}

// NewBasePipeline wires a platform's configuration, extractor, and shared
// collaborators into a runnable Pipeline.
func NewBasePipeline(
	name string,
	tables *config.PlatformTableConfig,
	dependencies map[string]TableDependency,
	extractor Extractor,
	sink warehouse.Sink,
	registry *processing.Registry,
	dryRun, testMode bool,
) *BasePipeline {
	return &BasePipeline{
		name:         name,
		tables:       tables,
		dependencies: dependencies,
		extractor:    extractor,
		sink:         sink,
		registry:     registry,
		dryRun:       dryRun,
		testMode:     testMode,
	}
}

func (p *BasePipeline) Name() string { return p.name }

func (p *BasePipeline) GetAllTableNames() []string {
	names := make([]string, len(p.tables.Tables))
	for i, t := range p.tables.Tables {
		names[i] = t.Name
	}
	return names
}

func (p *BasePipeline) GetTableDependencies(table string) []string {
	if dep, ok := p.dependencies[table]; ok {
		return []string{dep.DependsOn}
	}
	return nil
}

// tableOrder resolves the topological order of tables within the
// platform, reusing the scheduler's Kahn's-algorithm implementation at
// table granularity. Tables with no ordering constraint between them keep
// the order in which they are listed.
func (p *BasePipeline) tableOrder(tables []string) ([]string, error) {
	nodes := make([]scheduler.Node, len(tables))
	for i, t := range tables {
		nodes[i] = scheduler.Node{Name: t, DependsOn: p.GetTableDependencies(t), Priority: i}
	}
	sched, err := scheduler.New(nodes)
	if err != nil {
		return nil, err
	}
	groups, err := sched.ScheduleGroups(nil)
	if err != nil {
		return nil, err
	}
	var order []string
	for _, g := range groups {
		order = append(order, g...)
	}
	return order, nil
}

// Run implements the Pipeline contract.
func (p *BasePipeline) Run(ctx context.Context, dateRange DateRange, tables []string) (PlatformResult, error) {
	if len(tables) == 0 {
		tables = p.GetAllTableNames()
	}
	order, err := p.tableOrder(tables)
	if err != nil {
		return PlatformResult{}, err
	}

	result := PlatformResult{
		Platform:     p.name,
		RowsPerTable: map[string]int64{},
		Errors:       map[string]error{},
	}

	completed := map[string]bool{}
	for _, tableName := range order {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		tableCfg, ok := p.tables.TableByName(tableName)
		if !ok {
			result.Errors[tableName] = &errs.ConfigError{Field: "tables", Msg: "no configuration for table " + tableName}
			continue
		}

		if err := p.runTable(ctx, dateRange, tableCfg, completed, &result); err != nil {
			result.Errors[tableName] = err
			logger.Errorf("%s.%s: %s", p.name, tableName, err)
			if tableCfg.StopOnFailure {
				return result, err
			}
			continue
		}
		completed[tableName] = true
		result.TablesLoaded = append(result.TablesLoaded, tableName)
	}
	return result, nil
}

func (p *BasePipeline) runTable(ctx context.Context, dateRange DateRange, tableCfg config.TableConfig, completed map[string]bool, result *PlatformResult) error {
	var driverKeys []string
	if dep, ok := p.dependencies[tableCfg.Name]; ok {
		if !completed[dep.DependsOn] {
			return &errs.DependencyError{Name: tableCfg.Name, DependsOn: dep.DependsOn}
		}
		keys, err := p.fetchDriverKeys(ctx, dep)
		if err != nil {
			return &errs.DependencyError{Name: tableCfg.Name, DependsOn: dep.DependsOn}
		}
		if len(keys) == 0 {
			return &errs.DependencyError{Name: tableCfg.Name, DependsOn: dep.DependsOn}
		}
		driverKeys = keys
	}

	payload, err := p.extractor.Extract(ctx, tableCfg.Name, dateRange, driverKeys)
	if err != nil {
		return err
	}

	pipeline := processing.NewPipeline(p.registry)
	for _, step := range tableCfg.Processing {
		if _, err := pipeline.AddStep(step.Step, step.Params); err != nil {
			return err
		}
	}
	processed, err := pipeline.Process(payload)
	if err != nil {
		return err
	}

	if p.dryRun {
		logger.Infof("dry-run: skipping load of %s.%s (%d rows)", p.name, tableCfg.Name, len(processed.Rows))
		result.RowsPerTable[tableCfg.Name] = int64(len(processed.Rows))
		return nil
	}

	rows, err := p.sink.Load(ctx, processed, tableCfg.Name, warehouse.LoadOptions{
		Mode:             warehouse.LoadMode(tableCfg.LoadMode),
		PKColumns:        tableCfg.PKColumns,
		IncrementColumns: tableCfg.IncrementColumns,
		TestModeSuffix:   tableCfg.TestModeSuffix,
	})
	if err != nil {
		return err
	}
	result.RowsPerTable[tableCfg.Name] = rows
	return nil
}

func (p *BasePipeline) fetchDriverKeys(ctx context.Context, dep TableDependency) ([]string, error) {
	query := fmt.Sprintf(dep.DriverQueryFmt, dep.DriverColumn)
	payload, err := p.sink.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	idx := payload.ColumnIndex(dep.DriverColumn)
	if idx < 0 {
		idx = 0
	}
	keys := make([]string, 0, len(payload.Rows))
	for _, row := range payload.Rows {
		keys = append(keys, valueToString(row[idx]))
	}
	return keys, nil
}

func valueToString(v tabular.Value) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
