package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"dupecheck/internal/embedding"
)

const embeddingTextLimit = 1000

var (
	embedHTMLTagRegex    = regexp.MustCompile(`<[^>]+>`)
	embedWhitespaceRegex = regexp.MustCompile(`\s+`)
)

// EmbeddingProcessor scores unscored pairs by the dot product of the
// L2-normalized embeddings of both sides' text. Skipped entirely when
// embeddings are disabled by configuration.
type EmbeddingProcessor struct {
	store    *Store
	source   ArticleSource
	provider embedding.Provider
	opts     Options
	logger   zerolog.Logger
	cache    *boundedCache[[]float64]
	loaded   bool
}

func NewEmbeddingProcessor(
	store *Store,
	source ArticleSource,
	provider embedding.Provider,
	opts Options,
	logger zerolog.Logger,
) *EmbeddingProcessor {
	opts = opts.withDefaults()
	return &EmbeddingProcessor{
		store:    store,
		source:   source,
		provider: provider,
		opts:     opts,
		logger:   logger,
		cache:    newBoundedCache[[]float64]("embedding", opts.CacheMaxEntries, logger),
	}
}

func (p *EmbeddingProcessor) Execute(ctx context.Context, cancel CancelFunc) (Stats, error) {
	if cancel == nil {
		cancel = neverCancel
	}

	if !p.opts.EnableEmbedding {
		return Stats{"processed": 0, "status": "skipped", "reason": "embedding disabled"}, nil
	}

	if !p.loaded {
		if err := p.provider.EnsureLoaded(ctx); err != nil {
			return nil, processorErr(StepEmbedding, err)
		}
		p.loaded = true
	}

	records, err := p.store.PairsMissingEmbedding(ctx)
	if err != nil {
		return nil, processorErr(StepEmbedding, err)
	}
	if len(records) == 0 {
		return Stats{
			"processed":               0,
			"status":                  "ok",
			"high_similarity_count":   int64(0),
			"medium_similarity_count": int64(0),
			"low_similarity_count":    int64(0),
		}, nil
	}

	p.logger.Info().Int("total", len(records)).Msg("embedding start")

	batch := make([]ScoreUpdate, 0, p.opts.BatchSizeEmbedding)
	processed := 0
	for _, record := range records {
		if processed%p.opts.CheckpointInterval == 0 && cancel() {
			return nil, cancelledErr(StepEmbedding)
		}

		newText, err := p.source.RawText(ctx, record.ArticleIDNew)
		if err != nil {
			return nil, processorErr(StepEmbedding, err)
		}
		approvedText, err := p.source.RawText(ctx, record.ArticleIDApproved)
		if err != nil {
			return nil, processorErr(StepEmbedding, err)
		}

		similarity, err := p.semanticSimilarity(ctx, record.ArticleIDNew, newText, record.ArticleIDApproved, approvedText)
		if err != nil {
			return nil, processorErr(StepEmbedding, err)
		}
		batch = append(batch, ScoreUpdate{ID: record.ID, Score: similarity})
		processed++

		if len(batch) >= p.opts.BatchSizeEmbedding {
			if _, err := p.store.UpdateEmbeddingBatch(ctx, batch); err != nil {
				return nil, processorErr(StepEmbedding, err)
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if _, err := p.store.UpdateEmbeddingBatch(ctx, batch); err != nil {
			return nil, processorErr(StepEmbedding, err)
		}
	}

	stats, err := p.store.EmbeddingStats(ctx)
	if err != nil {
		return nil, processorErr(StepEmbedding, err)
	}
	stats["processed"] = processed
	stats["status"] = "ok"
	p.logger.Info().Int("processed", processed).Msg("embedding complete")
	return stats, nil
}

func (p *EmbeddingProcessor) semanticSimilarity(
	ctx context.Context,
	newID int64,
	newText *string,
	approvedID int64,
	approvedText *string,
) (float64, error) {
	if newText == nil && approvedText == nil {
		return 1.0, nil
	}
	if newText == nil || approvedText == nil {
		return 0.0, nil
	}

	newVector, err := p.vectorFor(ctx, newID, *newText)
	if err != nil {
		return 0, err
	}
	approvedVector, err := p.vectorFor(ctx, approvedID, *approvedText)
	if err != nil {
		return 0, err
	}

	similarity := embedding.Dot(newVector, approvedVector)
	if similarity < 0 {
		return 0, nil
	}
	if similarity > 1 {
		return 1, nil
	}
	return similarity, nil
}

func (p *EmbeddingProcessor) vectorFor(ctx context.Context, articleID int64, rawText string) ([]float64, error) {
	if cached, ok := p.cache.get(articleID); ok {
		return cached, nil
	}

	prepared := preprocessEmbeddingText(rawText)
	if prepared == "" {
		zero := make([]float64, p.provider.Dimensions())
		p.cache.set(articleID, zero)
		return zero, nil
	}

	vector, err := p.provider.Embed(ctx, prepared)
	if err != nil {
		return nil, err
	}
	p.cache.set(articleID, vector)
	return vector, nil
}

// preprocessEmbeddingText strips HTML, collapses whitespace, and
// clamps the text to the model's useful input size.
func preprocessEmbeddingText(text string) string {
	if text == "" {
		return ""
	}
	cleaned := embedHTMLTagRegex.ReplaceAllString(text, " ")
	cleaned = embedWhitespaceRegex.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(cleaned)
	if len(cleaned) > embeddingTextLimit {
		cleaned = cleaned[:embeddingTextLimit]
	}
	return cleaned
}
