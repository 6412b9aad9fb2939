package pipeline

import (
	"context"

	"github.com/rs/zerolog"
)

// URLCheckProcessor compares the canonical URL forms of both sides of
// every unscored pair.
type URLCheckProcessor struct {
	store  *Store
	source ArticleSource
	opts   Options
	logger zerolog.Logger
}

func NewURLCheckProcessor(store *Store, source ArticleSource, opts Options, logger zerolog.Logger) *URLCheckProcessor {
	return &URLCheckProcessor{
		store:  store,
		source: source,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

func (p *URLCheckProcessor) Execute(ctx context.Context, cancel CancelFunc) (Stats, error) {
	if cancel == nil {
		cancel = neverCancel
	}

	records, err := p.store.PairsMissingURL(ctx)
	if err != nil {
		return nil, processorErr(StepURLCheck, err)
	}
	if len(records) == 0 {
		return Stats{
			"processed":          0,
			"url_match_count":    int64(0),
			"url_no_match_count": int64(0),
		}, nil
	}

	p.logger.Info().Int("total", len(records)).Msg("url check start")

	batch := make([]URLUpdate, 0, p.opts.BatchSizeURL)
	processed := 0
	for _, record := range records {
		if processed%p.opts.CheckpointInterval == 0 && cancel() {
			return nil, cancelledErr(StepURLCheck)
		}

		newURL, err := p.source.URL(ctx, record.ArticleIDNew)
		if err != nil {
			return nil, processorErr(StepURLCheck, err)
		}
		approvedURL, err := p.source.URL(ctx, record.ArticleIDApproved)
		if err != nil {
			return nil, processorErr(StepURLCheck, err)
		}

		urlCheck := 0
		if CompareURLs(newURL, approvedURL) {
			urlCheck = 1
		}
		batch = append(batch, URLUpdate{ID: record.ID, URLCheck: urlCheck})
		processed++

		if len(batch) >= p.opts.BatchSizeURL {
			if _, err := p.store.UpdateURLBatch(ctx, batch); err != nil {
				return nil, processorErr(StepURLCheck, err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := p.store.UpdateURLBatch(ctx, batch); err != nil {
			return nil, processorErr(StepURLCheck, err)
		}
	}

	stats, err := p.store.URLStats(ctx)
	if err != nil {
		return nil, processorErr(StepURLCheck, err)
	}
	stats["processed"] = processed
	p.logger.Info().Int("processed", processed).Msg("url check complete")
	return stats, nil
}

// CompareURLs treats two absent URLs as a match and one absent URL as
// a mismatch; otherwise the canonical forms must be string-equal.
func CompareURLs(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	canonicalA, okA := CanonicalizeURL(*a)
	canonicalB, okB := CanonicalizeURL(*b)
	if !okA && !okB {
		return true
	}
	if !okA || !okB {
		return false
	}
	return canonicalA == canonicalB
}
