package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dupecheck/internal/pipeline"
)

// Job is a snapshot of one registered pipeline run.
type Job struct {
	ID          int64             `json:"id"`
	Mode        pipeline.RunMode  `json:"mode"`
	ReportID    *int64            `json:"reportId,omitempty"`
	Status      pipeline.RunStatus `json:"status"`
	Summary     *pipeline.Summary `json:"summary,omitempty"`
	Error       string            `json:"error,omitempty"`
	SubmittedAt time.Time         `json:"submittedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

type jobRecord struct {
	job       Job
	cancelled bool
	done      chan struct{}
}

// Registry tracks pipeline runs and carries their cooperative cancel
// flags. One run executes per Start call, each on its own goroutine.
type Registry struct {
	orchestrator *pipeline.Orchestrator
	logger       zerolog.Logger

	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*jobRecord
}

func NewRegistry(orchestrator *pipeline.Orchestrator, logger zerolog.Logger) *Registry {
	return &Registry{
		orchestrator: orchestrator,
		logger:       logger,
		nextID:       1,
		jobs:         make(map[int64]*jobRecord),
	}
}

// Start registers a run and launches it in the background. The
// returned snapshot has status pending; poll Get for progress.
func (r *Registry) Start(ctx context.Context, request *RunRequest) (Job, error) {
	mode, err := parseMode(request.Mode)
	if err != nil {
		return Job{}, err
	}

	r.mu.Lock()
	id := r.nextID
	r.nextID++
	record := &jobRecord{
		job: Job{
			ID:          id,
			Mode:        mode,
			ReportID:    request.ReportID,
			Status:      pipeline.StatusPending,
			SubmittedAt: time.Now().UTC(),
		},
		done: make(chan struct{}),
	}
	r.jobs[id] = record
	snapshot := record.job
	r.mu.Unlock()

	go r.run(ctx, record, mode, pipeline.RunScope{
		ReportID:  request.ReportID,
		KeepPairs: request.KeepPairs,
	})

	return snapshot, nil
}

func (r *Registry) run(ctx context.Context, record *jobRecord, mode pipeline.RunMode, scope pipeline.RunScope) {
	defer close(record.done)

	r.mu.Lock()
	record.job.Status = pipeline.StatusRunning
	id := record.job.ID
	r.mu.Unlock()

	cancel := func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return record.cancelled
	}

	summary, err := r.orchestrator.Run(ctx, mode, scope, cancel)

	r.mu.Lock()
	defer r.mu.Unlock()
	record.job.Summary = summary
	if summary != nil {
		record.job.Status = summary.Status
		record.job.CompletedAt = summary.CompletedAt
	}
	if err != nil {
		record.job.Error = err.Error()
		if record.job.Status == pipeline.StatusRunning {
			record.job.Status = pipeline.StatusFailed
		}
	}
	r.logger.Info().
		Int64("job", id).
		Str("status", string(record.job.Status)).
		Msg("pipeline job finished")
}

// Cancel raises the job's cancel flag. The run observes it at its next
// checkpoint, so completion is not immediate.
func (r *Registry) Cancel(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("job %d not found", id)
	}
	switch record.job.Status {
	case pipeline.StatusPending, pipeline.StatusRunning:
		record.cancelled = true
		return nil
	default:
		return fmt.Errorf("job %d already %s", id, record.job.Status)
	}
}

// CancelAll flags every pending or running job and returns their IDs.
func (r *Registry) CancelAll() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := make([]int64, 0)
	for id, record := range r.jobs {
		switch record.job.Status {
		case pipeline.StatusPending, pipeline.StatusRunning:
			record.cancelled = true
			cancelled = append(cancelled, id)
		}
	}
	sort.Slice(cancelled, func(i, j int) bool { return cancelled[i] < cancelled[j] })
	return cancelled
}

func (r *Registry) Get(id int64) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return record.job, true
}

// List returns all jobs ordered by ID.
func (r *Registry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]Job, 0, len(r.jobs))
	for _, record := range r.jobs {
		jobs = append(jobs, record.job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].ID < jobs[j].ID })
	return jobs
}

// Clear flags every active job for cancellation, waits for them to
// observe it, then truncates the pair table. The cancelled job IDs are
// reported in the result.
func (r *Registry) Clear(ctx context.Context) (*pipeline.ClearResult, error) {
	cancelled := r.CancelAll()
	for _, id := range cancelled {
		if _, err := r.Wait(ctx, id); err != nil {
			return nil, err
		}
	}

	result, err := r.orchestrator.ClearTable(ctx)
	if result != nil {
		result.CancelledJobs = cancelled
	}
	return result, err
}

// Wait blocks until the job finishes or the context is done.
func (r *Registry) Wait(ctx context.Context, id int64) (Job, error) {
	r.mu.Lock()
	record, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return Job{}, fmt.Errorf("job %d not found", id)
	}

	select {
	case <-record.done:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}

	job, _ := r.Get(id)
	return job, nil
}
