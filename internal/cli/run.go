package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/orchestrator"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/platform"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/processing"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/token"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/warehouse"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/database"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/logger"
)

// RunOptions collects the flags shared by `run all` and `run one`.
type RunOptions struct {
	ConfigPath   string
	PlatformsDir string
	Platform     string
	Tables       []string
	DryRun       bool
	TestMode     bool
	StartDate    string
	EndDate      string
	Verbose      bool
	ReportPath   string
	ReportFormat string
}

// NewRunCmd builds the `run` command group.
func NewRunCmd() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the orchestrator",
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "config/orchestrator.yml", "path to the orchestrator config document")
	cmd.PersistentFlags().StringVar(&opts.PlatformsDir, "platforms-dir", "config/platforms", "directory of per-platform table config documents, named <platform>.yml")
	cmd.PersistentFlags().StringSliceVar(&opts.Tables, "tables", nil, "list of table names (parsed only: it is not passed to the pipelines, which run every configured table)")
	cmd.PersistentFlags().BoolVar(&opts.DryRun, "dry-run", false, "extract and transform but skip all sink writes")
	cmd.PersistentFlags().BoolVar(&opts.TestMode, "test-mode", false, "load only tables with test_mode_suffix set, into their _test-suffixed names; other tables are skipped")
	cmd.PersistentFlags().StringVar(&opts.StartDate, "start-date", "", "override the extraction start date (YYYY-MM-DD)")
	cmd.PersistentFlags().StringVar(&opts.EndDate, "end-date", "", "override the extraction end date (YYYY-MM-DD)")
	cmd.PersistentFlags().BoolVar(&opts.Verbose, "verbose", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.ReportPath, "report", "", "write the execution report to this path")
	cmd.PersistentFlags().StringVar(&opts.ReportFormat, "report-format", "json", "report format: json or csv")

	all := &cobra.Command{
		Use:   "all",
		Short: "launch the orchestrator with the configured platform set",
		RunE: func(c *cobra.Command, args []string) error {
			return runAll(opts)
		},
	}

	one := &cobra.Command{
		Use:   "one",
		Short: "limit execution to a single platform (dependencies ignored)",
		RunE: func(c *cobra.Command, args []string) error {
			if opts.Platform == "" {
				return fmt.Errorf("--platform is required for 'run one'")
			}
			return runOne(opts)
		},
	}
	one.Flags().StringVar(&opts.Platform, "platform", "", "platform name to run")

	cmd.AddCommand(all, one)
	return cmd
}

func setupLogging(opts *RunOptions) {
	if opts.Verbose {
		logger.Init()
	}
	_ = logger.InitLogger("orchestrator.log", opts.Verbose)
}

func parseDateRange(opts *RunOptions) (platform.DateRange, error) {
	var dr platform.DateRange
	if opts.StartDate != "" {
		t, err := time.Parse("2006-01-02", opts.StartDate)
		if err != nil {
			return dr, fmt.Errorf("--start-date: %w", err)
		}
		dr.Start = t
	}
	if opts.EndDate != "" {
		t, err := time.Parse("2006-01-02", opts.EndDate)
		if err != nil {
			return dr, fmt.Errorf("--end-date: %w", err)
		}
		dr.End = t
	}
	return dr, nil
}

// buildComponents loads configuration, opens the warehouse connection,
// and constructs the sink, token provider, and every enabled platform's
// pipeline.
func buildComponents(opts *RunOptions) (*config.OrchestratorConfig, *orchestrator.Orchestrator, *warehouse.MSSQLSink, error) {
	cfg, err := config.LoadOrchestratorConfig(opts.ConfigPath)
	if err != nil {
		return nil, nil, nil, err
	}

	var platformNames []string
	for _, p := range cfg.Platforms {
		platformNames = append(platformNames, p.Name)
	}
	env, err := config.LoadEnvironment(".env", platformNames)
	if err != nil {
		return nil, nil, nil, err
	}

	connString := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s",
		env.WarehouseUser, env.WarehousePassword, env.WarehouseHost, env.WarehousePort, env.WarehouseDatabase)
	db, err := database.ConnectSQL(connString)
	if err != nil {
		return nil, nil, nil, err
	}
	sink := warehouse.NewMSSQLSink(db, "dbo", opts.TestMode || env.TestMode)

	registry := processing.NewRegistry()
	pipelines := map[string]platform.Pipeline{}

	for _, p := range cfg.Platforms {
		if !p.Enabled {
			continue
		}
		tableCfg, err := config.LoadPlatformConfig(fmt.Sprintf("%s/%s.yml", opts.PlatformsDir, p.Name))
		if err != nil {
			return nil, nil, nil, err
		}
		creds := env.Platforms[p.Name]
		tp := token.NewInMemoryCache(newCredentialRefresher(creds), 0)
		extractor := newUnimplementedExtractor(p.Name, tp)

		switch p.Name {
		case "linkedin":
			pipelines[p.Name] = platform.NewLinkedInPipeline(tableCfg, extractor, sink, registry, opts.DryRun || env.DryRun, opts.TestMode || env.TestMode)
		case "facebook":
			pipelines[p.Name] = platform.NewFacebookPipeline(tableCfg, extractor, sink, registry, opts.DryRun || env.DryRun, opts.TestMode || env.TestMode)
		case "google":
			pipelines[p.Name] = platform.NewGoogleAdsPipeline(tableCfg, extractor, sink, registry, opts.DryRun || env.DryRun, opts.TestMode || env.TestMode)
		case "microsoft":
			pipelines[p.Name] = platform.NewMicrosoftAdsPipeline(tableCfg, extractor, sink, registry, opts.DryRun || env.DryRun, opts.TestMode || env.TestMode)
		default:
			return nil, nil, nil, fmt.Errorf("no pipeline constructor registered for platform %q", p.Name)
		}
	}

	orch, err := orchestrator.New(cfg, pipelines)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, orch, sink, nil
}

func runAll(opts *RunOptions) error {
	setupLogging(opts)
	defer logger.Close()

	_, orch, sink, err := buildComponents(opts)
	if err != nil {
		return exitWithConfigError(err)
	}
	defer sink.Close()

	dateRange, err := parseDateRange(opts)
	if err != nil {
		return exitWithConfigError(err)
	}

	result, err := orch.RunAll(context.Background(), dateRange)
	if err != nil {
		logger.Errorf("%s", err)
	}
	if opts.ReportPath != "" {
		if err := orch.ExportReport(opts.ReportFormat, opts.ReportPath); err != nil {
			logger.Errorf("failed to write report: %s", err)
		}
	}
	os.Exit(result.ExitCode)
	return nil
}

func runOne(opts *RunOptions) error {
	setupLogging(opts)
	defer logger.Close()

	_, orch, sink, err := buildComponents(opts)
	if err != nil {
		return exitWithConfigError(err)
	}
	defer sink.Close()

	dateRange, err := parseDateRange(opts)
	if err != nil {
		return exitWithConfigError(err)
	}

	_, err = orch.RunOne(context.Background(), opts.Platform, dateRange)
	if opts.ReportPath != "" {
		if rerr := orch.ExportReport(opts.ReportFormat, opts.ReportPath); rerr != nil {
			logger.Errorf("failed to write report: %s", rerr)
		}
	}
	if err != nil {
		os.Exit(orchestrator.ExitTotalFailure)
	}
	os.Exit(orchestrator.ExitSuccess)
	return nil
}

func exitWithConfigError(err error) error {
	logger.Errorf("%s", err)
	os.Exit(orchestrator.ExitConfigError)
	return nil
}
