package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dupecheck/internal/embedding"
)

// RunMode names a pipeline composition.
type RunMode string

const (
	// ModeAnalyze runs every stage.
	ModeAnalyze RunMode = "analyze"
	// ModeAnalyzeFast skips the content-hash stage, trading precision
	// for speed.
	ModeAnalyzeFast RunMode = "analyze_fast"
)

// RunStatus is the linear run state machine:
// pending -> running -> {completed | cancelled | failed}.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// StepProgress records one stage of a run. Entries are appended in
// execution order and never removed, so a summary doubles as an audit
// trail.
type StepProgress struct {
	Step        Step       `json:"step"`
	Status      RunStatus  `json:"status"`
	Processed   int        `json:"processed"`
	Total       int        `json:"total"`
	Message     string     `json:"message"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Summary is the result of one pipeline run. The orchestrator owns it
// for the duration of the run and hands it back to the caller.
type Summary struct {
	Mode        RunMode         `json:"mode"`
	ReportID    *int64          `json:"reportId,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Status      RunStatus       `json:"status"`
	Steps       []*StepProgress `json:"steps"`
}

// ClearResult mirrors the subprocess-style shape some callers expect
// from the table-clear operation.
type ClearResult struct {
	Cleared       bool      `json:"cleared"`
	CancelledJobs []int64   `json:"cancelledJobs"`
	ExitCode      int       `json:"exitCode"`
	Stdout        string    `json:"stdout"`
	Stderr        string    `json:"stderr"`
	Timestamp     time.Time `json:"timestamp"`
}

// RunScope selects the new-article side of a run and whether existing
// pairs survive.
type RunScope struct {
	ReportID *int64
	// KeepPairs skips the table clear that normally precedes the load
	// stage.
	KeepPairs bool
}

// Orchestrator sequences stage processors into named pipeline modes.
// One orchestrator serves one run at a time; concurrent runs against
// the same store race on clear/insert and must be serialized by the
// caller.
type Orchestrator struct {
	store    *Store
	source   ArticleSource
	provider embedding.Provider
	opts     Options
	logger   zerolog.Logger
}

func NewOrchestrator(
	store *Store,
	source ArticleSource,
	provider embedding.Provider,
	opts Options,
	logger zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:    store,
		source:   source,
		provider: provider,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// SetCSVPath overrides the CSV article-ID source for subsequent load
// runs. Not safe while a run is in progress.
func (o *Orchestrator) SetCSVPath(path string) {
	o.opts.CSVPath = path
}

func (o *Orchestrator) CheckReady(ctx context.Context) error {
	return o.store.Healthcheck(ctx)
}

// Run executes the named mode and returns its summary. The summary is
// returned (with completedAt stamped) even when err is non-nil.
func (o *Orchestrator) Run(ctx context.Context, mode RunMode, scope RunScope, cancel CancelFunc) (*Summary, error) {
	switch mode {
	case ModeAnalyze:
		return o.RunAnalyze(ctx, scope, cancel)
	case ModeAnalyzeFast:
		return o.RunAnalyzeFast(ctx, scope, cancel)
	default:
		return nil, fmt.Errorf("unknown pipeline mode %q", mode)
	}
}

func (o *Orchestrator) RunAnalyze(ctx context.Context, scope RunScope, cancel CancelFunc) (*Summary, error) {
	steps := []pipelineStep{
		{StepLoad, func() (Stats, error) { return o.RunLoad(ctx, scope.ReportID, cancel) }},
		{StepStates, func() (Stats, error) { return o.RunStates(ctx, cancel) }},
		{StepURLCheck, func() (Stats, error) { return o.RunURLCheck(ctx, cancel) }},
		{StepContentHash, func() (Stats, error) { return o.RunContentHash(ctx, cancel) }},
		{StepEmbedding, func() (Stats, error) { return o.RunEmbedding(ctx, cancel) }},
	}
	return o.runPipeline(ctx, ModeAnalyze, scope, steps, cancel)
}

func (o *Orchestrator) RunAnalyzeFast(ctx context.Context, scope RunScope, cancel CancelFunc) (*Summary, error) {
	steps := []pipelineStep{
		{StepLoad, func() (Stats, error) { return o.RunLoad(ctx, scope.ReportID, cancel) }},
		{StepStates, func() (Stats, error) { return o.RunStates(ctx, cancel) }},
		{StepURLCheck, func() (Stats, error) { return o.RunURLCheck(ctx, cancel) }},
		{StepEmbedding, func() (Stats, error) { return o.RunEmbedding(ctx, cancel) }},
	}
	return o.runPipeline(ctx, ModeAnalyzeFast, scope, steps, cancel)
}

func (o *Orchestrator) RunLoad(ctx context.Context, reportID *int64, cancel CancelFunc) (Stats, error) {
	return NewLoadProcessor(o.store, o.source, o.opts, o.logger).Execute(ctx, reportID, cancel)
}

func (o *Orchestrator) RunStates(ctx context.Context, cancel CancelFunc) (Stats, error) {
	return NewStatesProcessor(o.store, o.source, o.opts, o.logger).Execute(ctx, cancel)
}

func (o *Orchestrator) RunURLCheck(ctx context.Context, cancel CancelFunc) (Stats, error) {
	return NewURLCheckProcessor(o.store, o.source, o.opts, o.logger).Execute(ctx, cancel)
}

func (o *Orchestrator) RunContentHash(ctx context.Context, cancel CancelFunc) (Stats, error) {
	return NewContentHashProcessor(o.store, o.opts, o.logger).Execute(ctx, cancel)
}

func (o *Orchestrator) RunEmbedding(ctx context.Context, cancel CancelFunc) (Stats, error) {
	return NewEmbeddingProcessor(o.store, o.source, o.provider, o.opts, o.logger).Execute(ctx, cancel)
}

// ClearTable truncates the pair table synchronously.
func (o *Orchestrator) ClearTable(ctx context.Context) (*ClearResult, error) {
	deleted, err := o.store.ClearAll(ctx)
	if err != nil {
		return &ClearResult{
			Cleared:       false,
			CancelledJobs: []int64{},
			ExitCode:      1,
			Stderr:        err.Error(),
			Timestamp:     time.Now().UTC(),
		}, err
	}
	return &ClearResult{
		Cleared:       true,
		CancelledJobs: []int64{},
		ExitCode:      0,
		Stdout:        fmt.Sprintf("Successfully deleted %d rows from ArticleDuplicateAnalyses table.", deleted),
		Timestamp:     time.Now().UTC(),
	}, nil
}

type pipelineStep struct {
	step Step
	run  func() (Stats, error)
}

func (o *Orchestrator) runPipeline(
	ctx context.Context,
	mode RunMode,
	scope RunScope,
	steps []pipelineStep,
	cancel CancelFunc,
) (summary *Summary, err error) {
	if cancel == nil {
		cancel = neverCancel
	}

	summary = &Summary{
		Mode:      mode,
		ReportID:  scope.ReportID,
		StartedAt: time.Now().UTC(),
		Status:    StatusRunning,
		Steps:     make([]*StepProgress, 0, len(steps)),
	}

	defer func() {
		now := time.Now().UTC()
		summary.CompletedAt = &now
		switch {
		case err == nil:
			summary.Status = StatusCompleted
		case IsCancelled(err):
			summary.Status = StatusCancelled
		default:
			summary.Status = StatusFailed
		}
		o.logger.Info().
			Str("mode", string(mode)).
			Str("status", string(summary.Status)).
			Int("steps", len(summary.Steps)).
			Msg("pipeline finished")
	}()

	if !scope.KeepPairs {
		if _, clearErr := o.ClearTable(ctx); clearErr != nil {
			err = clearErr
			return summary, err
		}
	}

	for _, s := range steps {
		if cancel() {
			err = cancelledErr(s.step)
			return summary, err
		}

		startedAt := time.Now().UTC()
		progress := &StepProgress{
			Step:      s.step,
			Status:    StatusRunning,
			StartedAt: &startedAt,
		}
		summary.Steps = append(summary.Steps, progress)

		stats, stepErr := s.run()
		if stepErr != nil {
			progress.Status = StatusFailed
			if IsCancelled(stepErr) {
				progress.Status = StatusCancelled
			}
			completedAt := time.Now().UTC()
			progress.CompletedAt = &completedAt
			progress.Message = stepErr.Error()
			err = stepErr
			return summary, err
		}

		completedAt := time.Now().UTC()
		progress.Status = StatusCompleted
		progress.CompletedAt = &completedAt
		progress.Processed = processedCount(stats)
		progress.Total = progress.Processed
		progress.Message = statsMessage(stats)
	}

	return summary, nil
}

func processedCount(stats Stats) int {
	switch v := stats["processed"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func statsMessage(stats Stats) string {
	encoded, err := json.Marshal(stats)
	if err != nil {
		return fmt.Sprintf("%v", stats)
	}
	return string(encoded)
}
