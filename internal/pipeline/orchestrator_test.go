package pipeline

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func newTestOrchestrator(t *testing.T, source ArticleSource, provider *fakeProvider, opts Options) (*Orchestrator, *Store) {
	t.Helper()
	pool := newTestPool(t)
	store := NewStore(pool)
	return NewOrchestrator(store, source, provider, opts, zerolog.Nop()), store
}

func TestOrchestratorRunAnalyze(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		approved: []int64{10},
		reports:  map[int64][]int64{7: {1}},
		states:   map[int64]string{1: "TX", 10: "TX"},
		urls:     map[int64]string{1: "https://example.com/a", 10: "https://example.com/b"},
		rawTexts: map[int64]string{1: "council vote", 10: "storm warning"},
	}
	provider := &fakeProvider{vectors: map[string][]float64{
		"council vote":  {1, 0},
		"storm warning": {0, 1},
	}}
	orchestrator, _ := newTestOrchestrator(t, source, provider, Options{EnableEmbedding: true})

	reportID := int64(7)
	summary, err := orchestrator.RunAnalyze(context.Background(), RunScope{ReportID: &reportID}, nil)
	if err != nil {
		t.Fatalf("RunAnalyze failed: %v", err)
	}

	if summary.Status != StatusCompleted {
		t.Fatalf("status = %s, want %s", summary.Status, StatusCompleted)
	}
	if summary.CompletedAt == nil {
		t.Fatal("completedAt not stamped")
	}
	wantSteps := []Step{StepLoad, StepStates, StepURLCheck, StepContentHash, StepEmbedding}
	if len(summary.Steps) != len(wantSteps) {
		t.Fatalf("steps = %d, want %d", len(summary.Steps), len(wantSteps))
	}
	for i, progress := range summary.Steps {
		if progress.Step != wantSteps[i] {
			t.Fatalf("step[%d] = %s, want %s", i, progress.Step, wantSteps[i])
		}
		if progress.Status != StatusCompleted {
			t.Fatalf("step[%d] status = %s, want %s", i, progress.Status, StatusCompleted)
		}
		if progress.CompletedAt == nil {
			t.Fatalf("step[%d] completedAt not stamped", i)
		}
	}
}

func TestOrchestratorRunAnalyzeFastSkipsContentHash(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		approved: []int64{10},
		reports:  map[int64][]int64{7: {1}},
		rawTexts: map[int64]string{1: "council vote", 10: "council vote"},
	}
	provider := &fakeProvider{vectors: map[string][]float64{
		"council vote": {1, 0},
	}}
	orchestrator, _ := newTestOrchestrator(t, source, provider, Options{EnableEmbedding: true})

	reportID := int64(7)
	summary, err := orchestrator.RunAnalyzeFast(context.Background(), RunScope{ReportID: &reportID}, nil)
	if err != nil {
		t.Fatalf("RunAnalyzeFast failed: %v", err)
	}
	for _, progress := range summary.Steps {
		if progress.Step == StepContentHash {
			t.Fatal("fast mode must not run the content hash stage")
		}
	}
	if len(summary.Steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(summary.Steps))
	}
}

func TestOrchestratorCancellationMarksSummary(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		approved: []int64{10, 11, 12},
		reports:  map[int64][]int64{7: {1, 2, 3}},
	}
	orchestrator, _ := newTestOrchestrator(t, source, &fakeProvider{}, Options{CheckpointInterval: 1})

	reportID := int64(7)
	summary, err := orchestrator.RunAnalyze(context.Background(), RunScope{ReportID: &reportID}, cancelAfter(0))
	if !IsCancelled(err) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if summary == nil {
		t.Fatal("summary missing on cancellation")
	}
	if summary.Status != StatusCancelled {
		t.Fatalf("status = %s, want %s", summary.Status, StatusCancelled)
	}
	if summary.CompletedAt == nil {
		t.Fatal("completedAt not stamped on cancellation")
	}
}

func TestOrchestratorFailureMarksSummary(t *testing.T) {
	t.Parallel()

	// no report id and no CSV path makes the load stage fail
	source := &fakeSource{}
	orchestrator, _ := newTestOrchestrator(t, source, &fakeProvider{}, Options{})

	summary, err := orchestrator.RunAnalyze(context.Background(), RunScope{}, nil)
	if err == nil {
		t.Fatal("expected load failure")
	}
	if summary.Status != StatusFailed {
		t.Fatalf("status = %s, want %s", summary.Status, StatusFailed)
	}
	if len(summary.Steps) != 1 {
		t.Fatalf("steps = %d, want 1", len(summary.Steps))
	}
	if summary.Steps[0].Status != StatusFailed {
		t.Fatalf("load step status = %s, want %s", summary.Steps[0].Status, StatusFailed)
	}
	if summary.Steps[0].Message == "" {
		t.Fatal("failed step message empty")
	}
}

func TestOrchestratorKeepPairsSkipsClear(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		approved: []int64{10},
		reports:  map[int64][]int64{7: {1}},
	}
	orchestrator, store := newTestOrchestrator(t, source, &fakeProvider{}, Options{})
	ctx := context.Background()

	// pre-existing pair outside the report scope
	if _, err := store.InsertPairsBatch(ctx, []PairInsert{{ArticleIDNew: 99, ArticleIDApproved: 10}}); err != nil {
		t.Fatalf("insert pre-existing pair: %v", err)
	}

	reportID := int64(7)
	if _, err := orchestrator.RunAnalyzeFast(ctx, RunScope{ReportID: &reportID, KeepPairs: true}, nil); err != nil {
		t.Fatalf("RunAnalyzeFast failed: %v", err)
	}

	refs, err := store.PairsMissingEmbedding(ctx)
	if err != nil {
		t.Fatalf("PairsMissingEmbedding failed: %v", err)
	}
	found := false
	for _, ref := range refs {
		if ref.ArticleIDNew == 99 {
			found = true
		}
	}
	if !found {
		t.Fatal("pre-existing pair was cleared despite keep-pairs")
	}
}

func TestOrchestratorClearTable(t *testing.T) {
	t.Parallel()

	orchestrator, store := newTestOrchestrator(t, &fakeSource{}, &fakeProvider{}, Options{})
	ctx := context.Background()

	rows := []PairInsert{
		{ArticleIDNew: 1, ArticleIDApproved: 10},
		{ArticleIDNew: 2, ArticleIDApproved: 10},
	}
	if _, err := store.InsertPairsBatch(ctx, rows); err != nil {
		t.Fatalf("insert pairs: %v", err)
	}

	result, err := orchestrator.ClearTable(ctx)
	if err != nil {
		t.Fatalf("ClearTable failed: %v", err)
	}
	if !result.Cleared {
		t.Fatal("cleared = false")
	}
	if result.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", result.ExitCode)
	}
	if result.Stdout == "" {
		t.Fatal("stdout empty")
	}

	remaining, err := store.ClearAll(ctx)
	if err != nil {
		t.Fatalf("ClearAll failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("rows remaining after clear = %d", remaining)
	}
}

func TestOrchestratorUnknownMode(t *testing.T) {
	t.Parallel()

	orchestrator, _ := newTestOrchestrator(t, &fakeSource{}, &fakeProvider{}, Options{})
	if _, err := orchestrator.Run(context.Background(), RunMode("bogus"), RunScope{}, nil); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
