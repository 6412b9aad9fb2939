package pipeline

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// LoadProcessor creates one pair row for every new x approved article
// combination. The scope of "new" articles comes either from a report
// id or from a flat CSV file; the approved side is always the full
// approved catalog.
type LoadProcessor struct {
	store  *Store
	source ArticleSource
	opts   Options
	logger zerolog.Logger
}

func NewLoadProcessor(store *Store, source ArticleSource, opts Options, logger zerolog.Logger) *LoadProcessor {
	return &LoadProcessor{
		store:  store,
		source: source,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

func (p *LoadProcessor) Execute(ctx context.Context, reportID *int64, cancel CancelFunc) (Stats, error) {
	if cancel == nil {
		cancel = neverCancel
	}

	var newArticleIDs []int64
	var err error
	if reportID != nil {
		newArticleIDs, err = p.source.ArticleIDsForReport(ctx, *reportID)
	} else {
		if p.opts.CSVPath == "" {
			return nil, processorErr(StepLoad, errors.New("PATH_TO_CSV is required when loading without a report id"))
		}
		newArticleIDs, err = p.source.ArticleIDsFromCSV(p.opts.CSVPath)
	}
	if err != nil {
		return nil, processorErr(StepLoad, err)
	}

	if len(newArticleIDs) == 0 {
		return Stats{"processed": 0, "new_articles": 0, "approved_articles": 0, "empty": true}, nil
	}

	approvedArticleIDs, err := p.source.ApprovedArticleIDs(ctx)
	if err != nil {
		return nil, processorErr(StepLoad, err)
	}
	if len(approvedArticleIDs) == 0 {
		return Stats{
			"processed":         0,
			"new_articles":      len(newArticleIDs),
			"approved_articles": 0,
			"empty":             true,
		}, nil
	}

	// Idempotent reload: drop any pairs already loaded for this scope
	// before reinserting the cross product.
	if _, err := p.store.ClearForNewArticles(ctx, newArticleIDs); err != nil {
		return nil, processorErr(StepLoad, err)
	}

	p.logger.Info().
		Int("new_articles", len(newArticleIDs)).
		Int("approved_articles", len(approvedArticleIDs)).
		Msg("load start")

	batch := make([]PairInsert, 0, p.opts.BatchSizeLoad)
	processed := 0
	for _, newID := range newArticleIDs {
		for _, approvedID := range approvedArticleIDs {
			if processed%p.opts.CheckpointInterval == 0 && cancel() {
				return nil, cancelledErr(StepLoad)
			}

			sameArticleIDFlag := 0
			if newID == approvedID {
				sameArticleIDFlag = 1
			}
			batch = append(batch, PairInsert{
				ArticleIDNew:      newID,
				ArticleIDApproved: approvedID,
				ReportID:          reportID,
				SameArticleIDFlag: sameArticleIDFlag,
			})
			processed++

			if len(batch) >= p.opts.BatchSizeLoad {
				if _, err := p.store.InsertPairsBatch(ctx, batch); err != nil {
					return nil, processorErr(StepLoad, err)
				}
				batch = batch[:0]
			}
		}
	}
	if len(batch) > 0 {
		if _, err := p.store.InsertPairsBatch(ctx, batch); err != nil {
			return nil, processorErr(StepLoad, err)
		}
	}

	p.logger.Info().Int("processed", processed).Msg("load complete")
	return Stats{
		"processed":         processed,
		"new_articles":      len(newArticleIDs),
		"approved_articles": len(approvedArticleIDs),
		"empty":             false,
	}, nil
}
