package orchestrator

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// PlatformExecution tracks one platform's status, timing, attempts, and
// outcome across the run. Updates from concurrently running platforms
// are serialized by ExecutionMonitor's mutex.
type PlatformExecution struct {
	PlatformName   string
	State          State
	StartedAt      time.Time
	EndedAt        time.Time
	AttemptCount   int
	RowsProcessed  int64
	TablesProcessed int
	ErrorMessage   string
}

func (e PlatformExecution) duration() time.Duration {
	if e.StartedAt.IsZero() {
		return 0
	}
	end := e.EndedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(e.StartedAt)
}

// ExecutionMonitor tracks per-platform status for a single orchestrator
// run and renders the final report. All writes are protected by a
// single writer-lock, in the mutex-guarded PipelineTracker/
// PipelineMetrics shape used elsewhere for pipeline observability.
type ExecutionMonitor struct {
	mu         sync.Mutex
	executions map[string]*PlatformExecution
	order      []string
	startedAt  time.Time
	endedAt    time.Time
}

// NewExecutionMonitor returns an empty monitor.
func NewExecutionMonitor() *ExecutionMonitor {
	return &ExecutionMonitor{executions: map[string]*PlatformExecution{}}
}

func (m *ExecutionMonitor) StartRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedAt = time.Now()
}

func (m *ExecutionMonitor) EndRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endedAt = time.Now()
}

// Register creates a pending entry for platform, called before scheduling
// begins so every configured platform appears in the final report even if
// it never starts (e.g. skipped).
func (m *ExecutionMonitor) Register(platform string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.executions[platform]; ok {
		return
	}
	m.executions[platform] = &PlatformExecution{PlatformName: platform, State: Pending}
	m.order = append(m.order, platform)
}

// transition enforces the monotonic state machine: once a platform
// reaches a terminal state, further calls are no-ops.
func (m *ExecutionMonitor) transition(platform string, next State, mutate func(*PlatformExecution)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.executions[platform]
	if !ok {
		e = &PlatformExecution{PlatformName: platform}
		m.executions[platform] = e
		m.order = append(m.order, platform)
	}
	if e.State.terminal() {
		return
	}
	e.State = next
	if mutate != nil {
		mutate(e)
	}
}

func (m *ExecutionMonitor) StartAttempt(platform string) {
	m.transition(platform, Running, func(e *PlatformExecution) {
		if e.StartedAt.IsZero() {
			e.StartedAt = time.Now()
		}
		e.AttemptCount++
	})
}

// IncrementRetry records a retry without transitioning state (retries
// keep the state at running across attempts).
func (m *ExecutionMonitor) IncrementRetry(platform string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.executions[platform]; ok {
		e.AttemptCount++
	}
}

func (m *ExecutionMonitor) Complete(platform string, rowsProcessed int64, tablesProcessed int) {
	m.transition(platform, Completed, func(e *PlatformExecution) {
		e.EndedAt = time.Now()
		e.RowsProcessed = rowsProcessed
		e.TablesProcessed = tablesProcessed
	})
}

func (m *ExecutionMonitor) Fail(platform string, err error) {
	m.transition(platform, Failed, func(e *PlatformExecution) {
		e.EndedAt = time.Now()
		if err != nil {
			e.ErrorMessage = err.Error()
		}
	})
}

func (m *ExecutionMonitor) Cancel(platform string) {
	m.transition(platform, Cancelled, func(e *PlatformExecution) {
		e.EndedAt = time.Now()
	})
}

func (m *ExecutionMonitor) Skip(platform string, reason string) {
	m.transition(platform, Skipped, func(e *PlatformExecution) {
		e.EndedAt = time.Now()
		e.ErrorMessage = reason
	})
}

// Snapshot returns a stable, deterministically ordered copy of every
// tracked execution.
func (m *ExecutionMonitor) Snapshot() []PlatformExecution {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PlatformExecution, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, *m.executions[name])
	}
	return out
}

// Summary is the `summary` object in the JSON/CSV report.
type Summary struct {
	TotalPlatforms        int       `json:"total_platforms"`
	Completed             int       `json:"completed"`
	Failed                int       `json:"failed"`
	Skipped               int       `json:"skipped"`
	SuccessRate           float64   `json:"success_rate"`
	TotalRowsProcessed    int64     `json:"total_rows_processed"`
	TotalDurationSeconds  float64   `json:"total_duration_seconds"`
	StartedAt             time.Time `json:"started_at"`
	EndedAt               time.Time `json:"ended_at"`
}

// PlatformReport is one `platforms[]` entry in the report.
type PlatformReport struct {
	PlatformName     string  `json:"platform_name"`
	Status           State   `json:"status"`
	DurationSeconds  float64 `json:"duration_seconds"`
	RowsProcessed    int64   `json:"rows_processed"`
	TablesProcessed  int     `json:"tables_processed"`
	RetryCount       int     `json:"retry_count"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}

// Report is the full structured document ExportReport writes.
type Report struct {
	Summary   Summary          `json:"summary"`
	Platforms []PlatformReport `json:"platforms"`
}

// BuildReport composes the current snapshot into a Report.
func (m *ExecutionMonitor) BuildReport() Report {
	m.mu.Lock()
	started, ended := m.startedAt, m.endedAt
	m.mu.Unlock()

	executions := m.Snapshot()
	sort.Slice(executions, func(i, j int) bool { return executions[i].PlatformName < executions[j].PlatformName })

	report := Report{Summary: Summary{StartedAt: started, EndedAt: ended}}
	var totalRows int64
	for _, e := range executions {
		report.Summary.TotalPlatforms++
		switch e.State {
		case Completed:
			report.Summary.Completed++
		case Failed:
			report.Summary.Failed++
		case Skipped, Cancelled:
			report.Summary.Skipped++
		}
		totalRows += e.RowsProcessed

		retryCount := e.AttemptCount - 1
		if retryCount < 0 {
			retryCount = 0
		}
		report.Platforms = append(report.Platforms, PlatformReport{
			PlatformName:    e.PlatformName,
			Status:          e.State,
			DurationSeconds: e.duration().Seconds(),
			RowsProcessed:   e.RowsProcessed,
			TablesProcessed: e.TablesProcessed,
			RetryCount:      retryCount,
			ErrorMessage:    e.ErrorMessage,
		})
	}
	report.Summary.TotalRowsProcessed = totalRows
	if !started.IsZero() {
		end := ended
		if end.IsZero() {
			end = time.Now()
		}
		report.Summary.TotalDurationSeconds = end.Sub(started).Seconds()
	}
	if report.Summary.TotalPlatforms > 0 {
		report.Summary.SuccessRate = float64(report.Summary.Completed) / float64(report.Summary.TotalPlatforms)
	}
	return report
}

// ExportReport renders the report as JSON or CSV to path.
func (m *ExecutionMonitor) ExportReport(format, path string) error {
	report := m.BuildReport()
	switch format {
	case "json":
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0644)
	case "csv":
		return writeCSVReport(path, report)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeCSVReport(path string, report Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"platform_name", "status", "duration_seconds", "rows_processed", "tables_processed", "retry_count", "error_message"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, p := range report.Platforms {
		row := []string{
			p.PlatformName,
			string(p.Status),
			fmt.Sprintf("%.3f", p.DurationSeconds),
			fmt.Sprintf("%d", p.RowsProcessed),
			fmt.Sprintf("%d", p.TablesProcessed),
			fmt.Sprintf("%d", p.RetryCount),
			p.ErrorMessage,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
