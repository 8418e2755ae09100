package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/edukit/gradebatch/internal/audit"
	"github.com/edukit/gradebatch/internal/config"
	"github.com/edukit/gradebatch/internal/export"
	"github.com/edukit/gradebatch/internal/formats"
	"github.com/edukit/gradebatch/internal/records"
	"github.com/edukit/gradebatch/pkg/log"
)

// Service wires the record store, format encoders, audit trail and
// export engine together for the CLI, the scheduler and the HTTP API.
type Service struct {
	cfg   *config.Config
	store *records.Store
	cache *records.GradeCache
	trail *audit.Trail

	mu      sync.Mutex
	running bool
	runID   string
	run     *export.Run[records.Student]
}

func New(cfg *config.Config, store *records.Store, trail *audit.Trail) *Service {
	return &Service{
		cfg:   cfg,
		store: store,
		cache: records.NewGradeCache(store, 0),
		trail: trail,
	}
}

// RunOptions override the configured export parameters for one run.
// Zero values fall back to the configuration.
type RunOptions struct {
	Format    string
	OutputDir string
	Workers   int

	// Progress receives the live progress line; nil disables it.
	Progress io.Writer
}

func (o RunOptions) withDefaults(cfg *config.Config) RunOptions {
	if o.Format == "" {
		o.Format = cfg.Export.Format
	}
	if o.OutputDir == "" {
		o.OutputDir = cfg.Export.OutputDir
	}
	if o.Workers <= 0 {
		o.Workers = cfg.Export.Workers
	}
	return o
}

// RunExport executes one batch export over every student in the store
// and blocks until the run finishes. Only one run may be in flight;
// concurrent calls fail fast. Interruption shows up in the summary
// counts, not the error.
func (s *Service) RunExport(ctx context.Context, opts RunOptions) (export.Summary, error) {
	runID, err := s.begin()
	if err != nil {
		return export.Summary{}, err
	}
	defer s.end()
	return s.runExport(ctx, runID, opts)
}

// TriggerExport starts a run in the background unless one is already
// in flight. It reports the run ID and whether a new run was started.
// ctx should outlive the request that triggered it, typically the
// daemon's lifetime context.
func (s *Service) TriggerExport(ctx context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return s.runID, false
	}
	s.running = true
	s.runID = audit.NewRunID()
	s.run = nil
	runID := s.runID

	go func() {
		defer s.end()
		if _, err := s.runExport(ctx, runID, RunOptions{}); err != nil {
			log.Error("Triggered export failed: %v", err)
		}
	}()
	return runID, true
}

func (s *Service) begin() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return "", fmt.Errorf("an export run is already in flight (%s)", s.runID)
	}
	s.running = true
	s.runID = audit.NewRunID()
	s.run = nil
	return s.runID, nil
}

func (s *Service) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Service) setRun(run *export.Run[records.Student]) {
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()
}

func (s *Service) runExport(ctx context.Context, runID string, opts RunOptions) (export.Summary, error) {
	opts = opts.withDefaults(s.cfg)

	students, err := s.store.ListStudents(ctx)
	if err != nil {
		return export.Summary{}, fmt.Errorf("list students: %w", err)
	}

	encoders, err := formats.ForSelection(opts.Format, s.cache)
	if err != nil {
		return export.Summary{}, err
	}

	pool, err := export.NewPool(opts.Workers, encoders,
		export.WithGracePeriod[records.Student](time.Duration(s.cfg.Export.Grace)),
		export.WithTerminalHook[records.Student](func(job export.Job[records.Student]) {
			s.auditJob(runID, job)
		}),
	)
	if err != nil {
		return export.Summary{}, err
	}

	run, err := pool.Submit(ctx, students, opts.OutputDir)
	if err != nil {
		return export.Summary{}, err
	}
	s.setRun(run)

	if opts.Progress != nil {
		export.NewMonitor(run, opts.Progress, 0).Run(ctx)
	} else if err := run.Wait(ctx); err != nil {
		log.Warn("Export run %s interrupted: %v", runID, err)
	}
	run.Shutdown()

	summary := run.Summary()
	s.auditRun(runID, summary)
	log.Info("Export run %s finished: %d total, %d succeeded, %d failed in %.1fs",
		runID, summary.Total, summary.Succeeded, summary.Failed, summary.Elapsed.Seconds())
	return summary, nil
}

func (s *Service) auditJob(runID string, job export.Job[records.Student]) {
	if s.trail == nil {
		return
	}
	detail := "report generated"
	if job.State == export.StateFailed {
		detail = job.Error
	}
	err := s.trail.Record(audit.Entry{
		RunID:      runID,
		Operation:  audit.OpExportJob,
		EntityID:   job.ID,
		DurationMS: job.Duration().Milliseconds(),
		Success:    job.State == export.StateCompleted,
		Detail:     detail,
	})
	if err != nil {
		log.Error("Failed to record audit entry for %s: %v", job.ID, err)
	}
}

func (s *Service) auditRun(runID string, sum export.Summary) {
	if s.trail == nil {
		return
	}
	err := s.trail.Record(audit.Entry{
		RunID:      runID,
		Operation:  audit.OpExportRun,
		DurationMS: sum.Elapsed.Milliseconds(),
		Success:    sum.Failed == 0,
		Detail: fmt.Sprintf("total %d, succeeded %d, failed %d, output %s",
			sum.Total, sum.Succeeded, sum.Failed, sum.OutputDir),
	})
	if err != nil {
		log.Error("Failed to record run audit entry: %v", err)
	}
}

// Status is the live run view served by the HTTP API.
type Status struct {
	Running   bool          `json:"running"`
	RunID     string        `json:"run_id,omitempty"`
	Total     int           `json:"total"`
	Active    int           `json:"active"`
	Counts    export.Counts `json:"counts"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   string        `json:"elapsed,omitempty"`
}

// Status reports the current or most recent run. The zero Status means
// no run has happened yet.
func (s *Service) Status() Status {
	s.mu.Lock()
	running, runID, run := s.running, s.runID, s.run
	s.mu.Unlock()

	if run == nil {
		return Status{Running: running, RunID: runID}
	}
	return Status{
		Running:   running,
		RunID:     runID,
		Total:     run.Total(),
		Active:    run.ActiveCount(),
		Counts:    run.Counts(),
		StartedAt: run.StartedAt(),
		Elapsed:   run.Elapsed().Round(time.Millisecond).String(),
	}
}

// RunDetail is the latest run with per-job states.
type RunDetail struct {
	Status
	OutputDir string                         `json:"output_dir"`
	Jobs      []*export.Job[records.Student] `json:"jobs"`
}

// LatestRun returns the latest run's jobs, finished or not. ok is
// false until a run has been submitted.
func (s *Service) LatestRun() (RunDetail, bool) {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	if run == nil {
		return RunDetail{}, false
	}
	return RunDetail{
		Status:    s.Status(),
		OutputDir: run.OutputDir(),
		Jobs:      run.Jobs(),
	}, true
}

// Students lists every student in the store.
func (s *Service) Students(ctx context.Context) ([]records.Student, error) {
	return s.store.ListStudents(ctx)
}

// StudentGrades returns one student's grades, reporting whether the
// student exists.
func (s *Service) StudentGrades(ctx context.Context, studentID string) (records.Student, []records.Grade, bool, error) {
	student, found, err := s.store.GetStudent(ctx, studentID)
	if err != nil || !found {
		return records.Student{}, nil, found, err
	}
	grades, err := s.store.GradesByStudent(ctx, studentID)
	if err != nil {
		return records.Student{}, nil, true, err
	}
	return student, grades, true, nil
}

// ImportStudents bulk-loads student rows from CSV and records the
// outcome in the audit trail.
func (s *Service) ImportStudents(ctx context.Context, r io.Reader) (records.ImportResult, error) {
	started := time.Now()
	res, err := s.store.ImportStudentsCSV(ctx, r)
	s.auditImport("students", started, res, err)
	return res, err
}

// ImportGrades bulk-loads grade rows from CSV. Cached grades are
// dropped so the next run reads fresh values.
func (s *Service) ImportGrades(ctx context.Context, r io.Reader, overwrite bool) (records.ImportResult, error) {
	started := time.Now()
	res, err := s.store.ImportGradesCSV(ctx, r, overwrite)
	if err == nil {
		s.cache.InvalidateAll()
	}
	s.auditImport("grades", started, res, err)
	return res, err
}

func (s *Service) auditImport(kind string, started time.Time, res records.ImportResult, err error) {
	if s.trail == nil {
		return
	}
	detail := fmt.Sprintf("%s: %d of %d rows imported, %d rejected", kind, res.Imported, res.TotalRows, res.Rejected)
	if err != nil {
		detail = fmt.Sprintf("%s: %v", kind, err)
	}
	recErr := s.trail.Record(audit.Entry{
		Operation:  audit.OpImport,
		DurationMS: time.Since(started).Milliseconds(),
		Success:    err == nil,
		Detail:     detail,
	})
	if recErr != nil {
		log.Error("Failed to record import audit entry: %v", recErr)
	}
}
