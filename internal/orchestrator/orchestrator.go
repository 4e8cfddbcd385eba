package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/config"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/errs"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/platform"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/internal/scheduler"
	"github.com/alexmarinoESP/digital-report-etl-pipelines/pkg/logger"
)

// Exit codes returned by the CLI entrypoint.
const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitPartialFailure  = 2
	ExitTotalFailure    = 3
	ExitInternalError   = 4
	ExitUserInterrupted = 130
)

// Result is the run-wide outcome RunAll returns.
type Result struct {
	RunID     string
	Report    Report
	ExitCode  int
}

// Orchestrator coordinates platform pipelines under the scheduler's
// execution groups, applying per-platform retry/timeout and the run's
// concurrency and continue-on-failure policy.
type Orchestrator struct {
	cfg       *config.OrchestratorConfig
	pipelines map[string]platform.Pipeline
	monitor   *ExecutionMonitor
	scheduler *scheduler.Scheduler
}

// New builds an Orchestrator from its configuration and the platform
// pipelines registered under each configured platform's name. Only
// pipelines matching an enabled configured platform are used.
func New(cfg *config.OrchestratorConfig, pipelines map[string]platform.Pipeline) (*Orchestrator, error) {
	var nodes []scheduler.Node
	for _, p := range cfg.Platforms {
		if !p.Enabled {
			continue
		}
		nodes = append(nodes, scheduler.Node{Name: p.Name, DependsOn: p.DependsOn, Priority: p.Priority})
	}
	sched, err := scheduler.New(nodes)
	if err != nil {
		return nil, &errs.ConfigError{Field: "platforms", Msg: err.Error()}
	}
	return &Orchestrator{cfg: cfg, pipelines: pipelines, monitor: NewExecutionMonitor(), scheduler: sched}, nil
}

// RunAll executes every enabled platform under the configured concurrency,
// retry, timeout, and continue-on-failure policy.
func (o *Orchestrator) RunAll(ctx context.Context, dateRange platform.DateRange) (Result, error) {
	runID := uuid.NewString()
	logger.Infof("run %s: starting orchestrator", runID)

	groups, err := o.scheduler.ScheduleGroups(o.cfg.ParallelGroups)
	if err != nil {
		return Result{RunID: runID, ExitCode: ExitConfigError}, err
	}

	var enabled []string
	for _, p := range o.cfg.Platforms {
		if p.Enabled {
			enabled = append(enabled, p.Name)
			o.monitor.Register(p.Name)
		}
	}
	if len(enabled) == 0 {
		logger.Warnf("no enabled platforms configured")
		return Result{RunID: runID, Report: o.monitor.BuildReport(), ExitCode: ExitSuccess}, nil
	}

	o.monitor.StartRun()
	defer o.monitor.EndRun()

	runCtx := ctx
	var cancel context.CancelFunc
	if o.cfg.Orchestrator.GlobalTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(o.cfg.Orchestrator.GlobalTimeout)*time.Second)
		defer cancel()
	}

	completed := map[string]bool{}
	skipped := map[string]bool{}
	var mu sync.Mutex

	maxParallel := o.cfg.Orchestrator.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}
	if !o.cfg.Orchestrator.ParallelExecution {
		maxParallel = 1
	}

groupLoop:
	for _, group := range groups {
		select {
		case <-runCtx.Done():
			break groupLoop
		default:
		}

		sem := semaphore.NewWeighted(int64(maxParallel))
		eg, egCtx := errgroup.WithContext(runCtx)

		for _, name := range group {
			name := name
			mu.Lock()
			shouldSkip := false
			for _, dep := range o.scheduler.Dependencies(name) {
				if !completed[dep] {
					shouldSkip = true
					break
				}
			}
			mu.Unlock()
			if shouldSkip {
				o.monitor.Skip(name, "dependency did not complete")
				mu.Lock()
				skipped[name] = true
				mu.Unlock()
				continue
			}

			if err := sem.Acquire(egCtx, 1); err != nil {
				continue
			}
			eg.Go(func() error {
				defer sem.Release(1)
				outcome := o.runPlatform(egCtx, name, dateRange)
				mu.Lock()
				if outcome {
					completed[name] = true
				}
				mu.Unlock()
				return nil
			})
		}
		_ = eg.Wait()

		// Propagate skip to transitive dependents of anything that failed
		// or was cancelled this group, before starting the next group.
		if o.cfg.Orchestrator.ContinueOnFailure {
			mu.Lock()
			for _, name := range group {
				if !completed[name] && !skipped[name] {
					for _, dependent := range o.scheduler.TransitiveDependents(name) {
						if !skipped[dependent] {
							o.monitor.Skip(dependent, fmt.Sprintf("dependency %q did not complete", name))
							skipped[dependent] = true
						}
					}
				}
			}
			mu.Unlock()
		} else {
			mu.Lock()
			anyFailed := false
			for _, name := range group {
				if !completed[name] {
					anyFailed = true
				}
			}
			mu.Unlock()
			if anyFailed {
				break groupLoop
			}
		}
	}

	// Anything still pending when the run ends (global timeout, or
	// continue_on_failure=false abort) is marked skipped or cancelled.
	for _, name := range enabled {
		if runCtx.Err() != nil {
			o.monitor.Cancel(name)
		} else {
			o.monitor.Skip(name, "not reached before orchestrator stopped")
		}
	}

	report := o.monitor.BuildReport()
	exitCode := computeExitCode(report)
	if runCtx.Err() == context.DeadlineExceeded {
		logger.Warnf("run %s: global timeout exceeded", runID)
	}
	return Result{RunID: runID, Report: report, ExitCode: exitCode}, nil
}

// RunOne executes a single platform ignoring its declared dependencies.
func (o *Orchestrator) RunOne(ctx context.Context, name string, dateRange platform.DateRange) (platform.PlatformResult, error) {
	o.monitor.Register(name)
	o.monitor.StartRun()
	defer o.monitor.EndRun()
	ok := o.runPlatform(ctx, name, dateRange)
	if !ok {
		return platform.PlatformResult{}, fmt.Errorf("platform %q did not complete", name)
	}
	return platform.PlatformResult{Platform: name}, nil
}

// runPlatform runs one platform under its retry policy and per-platform
// timeout, updating the monitor at each transition.
func (o *Orchestrator) runPlatform(ctx context.Context, name string, dateRange platform.DateRange) bool {
	entry, ok := o.cfg.PlatformByName(name)
	if !ok {
		o.monitor.Fail(name, &errs.ConfigError{Field: "platforms", Msg: "platform not configured: " + name})
		return false
	}
	pipeline, ok := o.pipelines[name]
	if !ok {
		o.monitor.Fail(name, &errs.ConfigError{Field: "platforms", Msg: "no pipeline registered for: " + name})
		return false
	}

	platformCtx := ctx
	var cancel context.CancelFunc
	if entry.Timeout > 0 {
		platformCtx, cancel = context.WithTimeout(ctx, time.Duration(entry.Timeout)*time.Second)
		defer cancel()
	}

	var result platform.PlatformResult
	err := runWithRetry(platformCtx, entry.Retry,
		func(attempt int) {
			if attempt == 1 {
				o.monitor.StartAttempt(name)
			} else {
				o.monitor.IncrementRetry(name)
			}
			logger.Infof("%s: attempt %d/%d", name, attempt, entry.Retry.MaxAttempts)
		},
		func(attempt int, wait time.Duration) {
			logger.Infof("%s: retrying after %s", name, wait)
		},
		func() error {
			r, err := pipeline.Run(platformCtx, dateRange, nil)
			result = r
			if err != nil {
				return err
			}
			if len(r.Errors) > 0 {
				for table, tErr := range r.Errors {
					logger.Errorf("%s.%s: %s", name, table, tErr)
				}
			}
			return nil
		},
	)

	if platformCtx.Err() == context.DeadlineExceeded {
		o.monitor.Cancel(name)
		return false
	}
	if err != nil {
		o.monitor.Fail(name, err)
		return false
	}

	var totalRows int64
	for _, rows := range result.RowsPerTable {
		totalRows += rows
	}
	o.monitor.Complete(name, totalRows, len(result.TablesLoaded))
	logger.Successf("%s: completed (%d rows, %d tables)", name, totalRows, len(result.TablesLoaded))
	return true
}

// ExportReport writes the current monitor state.
func (o *Orchestrator) ExportReport(format, path string) error {
	return o.monitor.ExportReport(format, path)
}

func computeExitCode(report Report) int {
	if report.Summary.TotalPlatforms == 0 {
		return ExitSuccess
	}
	if report.Summary.Completed == report.Summary.TotalPlatforms {
		return ExitSuccess
	}
	if report.Summary.Completed == 0 {
		return ExitTotalFailure
	}
	return ExitPartialFailure
}
