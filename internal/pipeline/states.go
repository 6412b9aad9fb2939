package pipeline

import (
	"context"

	"github.com/rs/zerolog"
)

// StatesProcessor resolves the jurisdiction code of both sides of
// every unresolved pair and records whether they match.
type StatesProcessor struct {
	store  *Store
	source ArticleSource
	opts   Options
	logger zerolog.Logger
}

func NewStatesProcessor(store *Store, source ArticleSource, opts Options, logger zerolog.Logger) *StatesProcessor {
	return &StatesProcessor{
		store:  store,
		source: source,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

func (p *StatesProcessor) Execute(ctx context.Context, cancel CancelFunc) (Stats, error) {
	if cancel == nil {
		cancel = neverCancel
	}

	records, err := p.store.PairsMissingState(ctx)
	if err != nil {
		return nil, processorErr(StepStates, err)
	}
	if len(records) == 0 {
		return Stats{
			"processed":             0,
			"same_state_count":      int64(0),
			"different_state_count": int64(0),
			"missing_state_count":   int64(0),
		}, nil
	}

	p.logger.Info().Int("total", len(records)).Msg("states start")

	batch := make([]StateUpdate, 0, p.opts.BatchSizeStates)
	processed := 0
	for _, record := range records {
		if processed%p.opts.CheckpointInterval == 0 && cancel() {
			return nil, cancelledErr(StepStates)
		}

		newState, err := p.source.State(ctx, record.ArticleIDNew)
		if err != nil {
			return nil, processorErr(StepStates, err)
		}
		approvedState, err := p.source.State(ctx, record.ArticleIDApproved)
		if err != nil {
			return nil, processorErr(StepStates, err)
		}

		// Two empty codes also count as equal; see the state stats
		// bucketing for how unresolved pairs are reported.
		sameStateFlag := 0
		if newState == approvedState {
			sameStateFlag = 1
		}
		batch = append(batch, StateUpdate{
			ID:                   record.ID,
			ArticleNewState:      newState,
			ArticleApprovedState: approvedState,
			SameStateFlag:        sameStateFlag,
		})
		processed++

		if len(batch) >= p.opts.BatchSizeStates {
			if _, err := p.store.UpdateStatesBatch(ctx, batch); err != nil {
				return nil, processorErr(StepStates, err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := p.store.UpdateStatesBatch(ctx, batch); err != nil {
			return nil, processorErr(StepStates, err)
		}
	}

	stats, err := p.store.StateStats(ctx)
	if err != nil {
		return nil, processorErr(StepStates, err)
	}
	stats["processed"] = processed
	p.logger.Info().Int("processed", processed).Msg("states complete")
	return stats, nil
}
