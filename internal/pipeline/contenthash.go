package pipeline

import (
	"context"

	"github.com/rs/zerolog"
)

// ContentHashProcessor scores unscored pairs by normalized-content
// equality, falling back to SimHash similarity when the digests
// differ. Candidates are paged with their joined approved text to
// bound memory.
type ContentHashProcessor struct {
	store     *Store
	opts      Options
	logger    zerolog.Logger
	normCache *boundedCache[string]
}

func NewContentHashProcessor(store *Store, opts Options, logger zerolog.Logger) *ContentHashProcessor {
	opts = opts.withDefaults()
	return &ContentHashProcessor{
		store:     store,
		opts:      opts,
		logger:    logger,
		normCache: newBoundedCache[string]("content_norm", opts.CacheMaxEntries, logger),
	}
}

func (p *ContentHashProcessor) Execute(ctx context.Context, cancel CancelFunc) (Stats, error) {
	if cancel == nil {
		cancel = neverCancel
	}

	candidates, err := p.store.PairsMissingContentHash(ctx)
	if err != nil {
		return nil, processorErr(StepContentHash, err)
	}
	if len(candidates) == 0 {
		return Stats{
			"processed":               0,
			"exact_match_count":       int64(0),
			"high_similarity_count":   int64(0),
			"medium_similarity_count": int64(0),
			"low_similarity_count":    int64(0),
			"no_match_count":          int64(0),
		}, nil
	}

	p.logger.Info().Int("total", len(candidates)).Msg("content hash start")

	processed := 0
	for {
		if processed%p.opts.CheckpointInterval == 0 && cancel() {
			return nil, cancelledErr(StepContentHash)
		}

		records, err := p.store.PairsMissingContentHashWithContents(ctx, p.opts.BatchSizeContentHash)
		if err != nil {
			return nil, processorErr(StepContentHash, err)
		}
		if len(records) == 0 {
			break
		}

		updates := make([]ScoreUpdate, 0, len(records))
		for _, record := range records {
			similarity := p.compareContent(record)
			updates = append(updates, ScoreUpdate{ID: record.ID, Score: similarity})
			processed++
		}
		if _, err := p.store.UpdateContentHashBatch(ctx, updates); err != nil {
			return nil, processorErr(StepContentHash, err)
		}
	}

	stats, err := p.store.ContentHashStats(ctx)
	if err != nil {
		return nil, processorErr(StepContentHash, err)
	}
	stats["processed"] = processed
	p.logger.Info().Int("processed", processed).Msg("content hash complete")
	return stats, nil
}

func (p *ContentHashProcessor) compareContent(record PairContents) float64 {
	newMissing := record.HeadlineNew == nil && record.TextNew == nil
	approvedMissing := record.HeadlineApproved == nil && record.TextApproved == nil
	if newMissing && approvedMissing {
		return 1.0
	}
	if newMissing || approvedMissing {
		return 0.0
	}

	normNew := p.normalizedContent(record.ArticleIDNew, record.HeadlineNew, record.TextNew)
	normApproved := p.normalizedContent(record.ArticleIDApproved, record.HeadlineApproved, record.TextApproved)

	digestNew := ContentDigest(normNew)
	digestApproved := ContentDigest(normApproved)
	if digestNew == digestApproved && digestNew != "" {
		return 1.0
	}

	simhashNew := Simhash(normNew)
	simhashApproved := Simhash(normApproved)
	if simhashNew == 0 && simhashApproved == 0 {
		// Two empty token streams would otherwise hash to equal zero
		// values and read as identical.
		return 0.0
	}

	return SimilarityFromHamming(HammingDistance(simhashNew, simhashApproved))
}

func (p *ContentHashProcessor) normalizedContent(articleID int64, headline, text *string) string {
	if cached, ok := p.normCache.get(articleID); ok {
		return cached
	}
	normalized := PrepareContent(deref(headline), deref(text))
	p.normCache.set(articleID, normalized)
	return normalized
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
