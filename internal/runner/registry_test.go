package runner

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"dupecheck/internal/db"
	"dupecheck/internal/pipeline"
)

type stubSource struct {
	approved []int64
	reports  map[int64][]int64
	slow     time.Duration
}

func (s *stubSource) State(context.Context, int64) (string, error) { return "", nil }

func (s *stubSource) URL(ctx context.Context, _ int64) (*string, error) {
	if s.slow > 0 {
		select {
		case <-time.After(s.slow):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, nil
}

func (s *stubSource) ApprovedText(context.Context, int64) (*pipeline.ApprovedText, error) {
	return nil, nil
}

func (s *stubSource) RawText(context.Context, int64) (*string, error) { return nil, nil }

func (s *stubSource) ApprovedArticleIDs(context.Context) ([]int64, error) {
	return s.approved, nil
}

func (s *stubSource) ArticleIDsForReport(_ context.Context, reportID int64) ([]int64, error) {
	return s.reports[reportID], nil
}

func (s *stubSource) ArticleIDsFromCSV(string) ([]int64, error) { return nil, nil }

type stubProvider struct{}

func (stubProvider) EnsureLoaded(context.Context) error { return nil }

func (stubProvider) Dimensions() int { return 2 }

func (stubProvider) Embed(context.Context, string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func newTestRegistry(t *testing.T, source pipeline.ArticleSource, opts pipeline.Options) *Registry {
	t.Helper()

	pool, err := db.NewPool(context.Background(), db.Options{
		Path:        filepath.Join(t.TempDir(), "runner_test.db"),
		LogLevel:    "error",
		Environment: "test",
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	orchestrator := pipeline.NewOrchestrator(
		pipeline.NewStore(pool), source, stubProvider{}, opts, zerolog.Nop())
	return NewRegistry(orchestrator, zerolog.Nop())
}

func TestRegistryRunCompletes(t *testing.T) {
	t.Parallel()

	source := &stubSource{
		approved: []int64{10},
		reports:  map[int64][]int64{7: {1}},
	}
	registry := newTestRegistry(t, source, pipeline.Options{})

	reportID := int64(7)
	job, err := registry.Start(context.Background(), &RunRequest{Mode: "analyze_fast", ReportID: &reportID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	finished, err := registry.Wait(ctx, job.ID)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if finished.Status != pipeline.StatusCompleted {
		t.Fatalf("status = %s (error %q), want %s", finished.Status, finished.Error, pipeline.StatusCompleted)
	}
	if finished.Summary == nil || finished.Summary.CompletedAt == nil {
		t.Fatal("summary missing or incomplete")
	}
}

func TestRegistryRejectsUnknownMode(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, &stubSource{}, pipeline.Options{})
	if _, err := registry.Start(context.Background(), &RunRequest{Mode: "turbo"}); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestRegistryCancelStopsRun(t *testing.T) {
	t.Parallel()

	source := &stubSource{
		approved: []int64{10, 11, 12, 13, 14},
		reports:  map[int64][]int64{7: {1, 2, 3, 4, 5}},
		slow:     20 * time.Millisecond,
	}
	registry := newTestRegistry(t, source, pipeline.Options{CheckpointInterval: 1})

	reportID := int64(7)
	job, err := registry.Start(context.Background(), &RunRequest{Mode: "analyze_fast", ReportID: &reportID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := registry.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	finished, err := registry.Wait(ctx, job.ID)
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if finished.Status != pipeline.StatusCancelled {
		t.Fatalf("status = %s, want %s", finished.Status, pipeline.StatusCancelled)
	}
}

func TestRegistryCancelUnknownJob(t *testing.T) {
	t.Parallel()

	registry := newTestRegistry(t, &stubSource{}, pipeline.Options{})
	if err := registry.Cancel(42); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestRegistryListOrdered(t *testing.T) {
	t.Parallel()

	source := &stubSource{
		approved: []int64{10},
		reports:  map[int64][]int64{7: {1}},
	}
	registry := newTestRegistry(t, source, pipeline.Options{})

	reportID := int64(7)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < 3; i++ {
		job, err := registry.Start(context.Background(), &RunRequest{Mode: "analyze_fast", ReportID: &reportID, KeepPairs: true})
		if err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		if _, err := registry.Wait(ctx, job.ID); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}

	jobs := registry.List()
	if len(jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(jobs))
	}
	for i, job := range jobs {
		if job.ID != int64(i+1) {
			t.Fatalf("job[%d].ID = %d, want %d", i, job.ID, i+1)
		}
	}
}

func TestRegistryClearCancelsActiveJobs(t *testing.T) {
	t.Parallel()

	source := &stubSource{
		approved: []int64{10, 11, 12, 13, 14},
		reports:  map[int64][]int64{7: {1, 2, 3, 4, 5}},
		slow:     20 * time.Millisecond,
	}
	registry := newTestRegistry(t, source, pipeline.Options{CheckpointInterval: 1})

	reportID := int64(7)
	job, err := registry.Start(context.Background(), &RunRequest{Mode: "analyze_fast", ReportID: &reportID})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	result, err := registry.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if !result.Cleared {
		t.Fatal("cleared = false")
	}
	if len(result.CancelledJobs) != 1 || result.CancelledJobs[0] != job.ID {
		t.Fatalf("cancelledJobs = %v, want [%d]", result.CancelledJobs, job.ID)
	}

	finished, ok := registry.Get(job.ID)
	if !ok {
		t.Fatal("job vanished")
	}
	if finished.Status != pipeline.StatusCancelled {
		t.Fatalf("status = %s, want %s", finished.Status, pipeline.StatusCancelled)
	}
}
