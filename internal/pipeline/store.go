package pipeline

import (
	"context"
	"time"

	"dupecheck/internal/db"
)

// Stats carries a processor's aggregate counts, merged with the
// processed total. Keys stay snake_case for compatibility with the
// consumers of the original worker's summaries.
type Stats map[string]any

// PairRef identifies one comparison pair awaiting a score.
type PairRef struct {
	ID                int64
	ArticleIDNew      int64
	ArticleIDApproved int64
}

// PairInsert is one row created by the load stage. Score columns
// start at their zero sentinels; id and timestamps are assigned by
// the store.
type PairInsert struct {
	ArticleIDNew      int64
	ArticleIDApproved int64
	ReportID          *int64
	SameArticleIDFlag int
}

// PairContents is a pair joined with the approved headline/body text
// for both sides.
type PairContents struct {
	ID                int64
	ArticleIDNew      int64
	ArticleIDApproved int64
	HeadlineNew       *string
	TextNew           *string
	HeadlineApproved  *string
	TextApproved      *string
}

// StateUpdate carries resolved state codes for one pair.
type StateUpdate struct {
	ID                   int64
	ArticleNewState      string
	ArticleApprovedState string
	SameStateFlag        int
}

// URLUpdate carries the URL comparison outcome for one pair.
type URLUpdate struct {
	ID       int64
	URLCheck int
}

// ScoreUpdate carries a [0,1] similarity score for one pair; used by
// both the content-hash and embedding stages.
type ScoreUpdate struct {
	ID    int64
	Score float64
}

// Store owns the ArticleDuplicateAnalyses pair table. Batch
// operations are atomic at the row-batch level only; there is no
// cross-batch transaction.
type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Healthcheck(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return storeErr("healthcheck", err)
	}
	return nil
}

func (s *Store) InsertPairsBatch(ctx context.Context, rows []PairInsert) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	const q = `
INSERT INTO ArticleDuplicateAnalyses (
	articleIdNew, articleIdApproved, reportId, sameArticleIdFlag,
	articleNewState, articleApprovedState, sameStateFlag,
	urlCheck, contentHash, embeddingSearch, createdAt, updatedAt
)
VALUES (?, ?, ?, ?, '', '', 0, 0, 0, 0, ?, ?)
`

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return 0, storeErr("insert pairs begin tx", err)
	}

	now := timestamp()
	var inserted int64
	for _, row := range rows {
		tag, err := tx.Exec(ctx, q, row.ArticleIDNew, row.ArticleIDApproved, row.ReportID, row.SameArticleIDFlag, now, now)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, storeErr("insert pair", err)
		}
		inserted += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return 0, storeErr("insert pairs commit", err)
	}
	return inserted, nil
}

// ClearForNewArticles deletes all pairs whose "new" side is in ids,
// so a reload of the same scope cannot create duplicate pairs.
func (s *Store) ClearForNewArticles(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return 0, storeErr("clear scoped pairs begin tx", err)
	}

	var deleted int64
	for _, id := range ids {
		tag, err := tx.Exec(ctx, `DELETE FROM ArticleDuplicateAnalyses WHERE articleIdNew = ?`, id)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, storeErr("clear scoped pairs", err)
		}
		deleted += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return 0, storeErr("clear scoped pairs commit", err)
	}
	return deleted, nil
}

// ClearAll truncates the pair table and returns the prior row count.
func (s *Store) ClearAll(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ArticleDuplicateAnalyses`).Scan(&count); err != nil {
		return 0, storeErr("count pairs", err)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM ArticleDuplicateAnalyses`); err != nil {
		return 0, storeErr("clear all pairs", err)
	}
	return count, nil
}

// PairsMissingState returns pairs with an unresolved state on either
// side. sameStateFlag=0 alone cannot distinguish "resolved and
// different" from "unresolved", hence the state-string conditions.
func (s *Store) PairsMissingState(ctx context.Context) ([]PairRef, error) {
	const q = `
SELECT id, articleIdNew, articleIdApproved
FROM ArticleDuplicateAnalyses
WHERE articleNewState = '' OR articleApprovedState = '' OR sameStateFlag = 0
ORDER BY id
`
	return s.queryRefs(ctx, "select pairs missing state", q)
}

// PairsMissingURL returns pairs with urlCheck at its zero sentinel.
// Scored non-matches share the sentinel and are re-scanned every run;
// that idempotent-rescan cost is accepted by design of the schema.
func (s *Store) PairsMissingURL(ctx context.Context) ([]PairRef, error) {
	const q = `
SELECT id, articleIdNew, articleIdApproved
FROM ArticleDuplicateAnalyses
WHERE urlCheck = 0
ORDER BY id
`
	return s.queryRefs(ctx, "select pairs missing url", q)
}

func (s *Store) PairsMissingContentHash(ctx context.Context) ([]PairRef, error) {
	const q = `
SELECT id, articleIdNew, articleIdApproved
FROM ArticleDuplicateAnalyses
WHERE contentHash = 0
ORDER BY id
`
	return s.queryRefs(ctx, "select pairs missing content hash", q)
}

// PairsMissingContentHashWithContents pages through unscored pairs
// joined with the approved headline/body text of both sides. Only
// articles with an approved record appear here; pairs whose new side
// was never approved stay unscored by this query shape.
func (s *Store) PairsMissingContentHashWithContents(ctx context.Context, limit int) ([]PairContents, error) {
	const q = `
SELECT
	ada.id,
	ada.articleIdNew,
	ada.articleIdApproved,
	an.headlineForPdfReport,
	an.textForPdfReport,
	aa.headlineForPdfReport,
	aa.textForPdfReport
FROM ArticleDuplicateAnalyses ada
JOIN ArticleApproveds an ON an.articleId = ada.articleIdNew
JOIN ArticleApproveds aa ON aa.articleId = ada.articleIdApproved
WHERE ada.contentHash = 0
ORDER BY ada.id
LIMIT ?
`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, storeErr("select pairs with contents", err)
	}
	defer rows.Close()

	records := make([]PairContents, 0, limit)
	for rows.Next() {
		var record PairContents
		if err := rows.Scan(
			&record.ID,
			&record.ArticleIDNew,
			&record.ArticleIDApproved,
			&record.HeadlineNew,
			&record.TextNew,
			&record.HeadlineApproved,
			&record.TextApproved,
		); err != nil {
			return nil, storeErr("scan pair with contents", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate pairs with contents", err)
	}
	return records, nil
}

func (s *Store) PairsMissingEmbedding(ctx context.Context) ([]PairRef, error) {
	const q = `
SELECT id, articleIdNew, articleIdApproved
FROM ArticleDuplicateAnalyses
WHERE embeddingSearch = 0
ORDER BY id
`
	return s.queryRefs(ctx, "select pairs missing embedding", q)
}

func (s *Store) UpdateStatesBatch(ctx context.Context, updates []StateUpdate) (int64, error) {
	const q = `
UPDATE ArticleDuplicateAnalyses
SET articleNewState = ?, articleApprovedState = ?, sameStateFlag = ?, updatedAt = ?
WHERE id = ?
`
	return s.execBatch(ctx, "update states batch", len(updates), func(tx db.Tx, i int, now string) (db.CommandTag, error) {
		u := updates[i]
		return tx.Exec(ctx, q, u.ArticleNewState, u.ArticleApprovedState, u.SameStateFlag, now, u.ID)
	})
}

func (s *Store) UpdateURLBatch(ctx context.Context, updates []URLUpdate) (int64, error) {
	const q = `
UPDATE ArticleDuplicateAnalyses
SET urlCheck = ?, updatedAt = ?
WHERE id = ?
`
	return s.execBatch(ctx, "update url batch", len(updates), func(tx db.Tx, i int, now string) (db.CommandTag, error) {
		u := updates[i]
		return tx.Exec(ctx, q, u.URLCheck, now, u.ID)
	})
}

func (s *Store) UpdateContentHashBatch(ctx context.Context, updates []ScoreUpdate) (int64, error) {
	const q = `
UPDATE ArticleDuplicateAnalyses
SET contentHash = ?, updatedAt = ?
WHERE id = ?
`
	return s.execBatch(ctx, "update content hash batch", len(updates), func(tx db.Tx, i int, now string) (db.CommandTag, error) {
		u := updates[i]
		return tx.Exec(ctx, q, u.Score, now, u.ID)
	})
}

func (s *Store) UpdateEmbeddingBatch(ctx context.Context, updates []ScoreUpdate) (int64, error) {
	const q = `
UPDATE ArticleDuplicateAnalyses
SET embeddingSearch = ?, updatedAt = ?
WHERE id = ?
`
	return s.execBatch(ctx, "update embedding batch", len(updates), func(tx db.Tx, i int, now string) (db.CommandTag, error) {
		u := updates[i]
		return tx.Exec(ctx, q, u.Score, now, u.ID)
	})
}

// StateStats partitions all pairs into same / different / missing
// state buckets. Pairs where both sides resolved to the same code
// count as same even when both codes are empty.
func (s *Store) StateStats(ctx context.Context) (Stats, error) {
	const q = `
SELECT
	COALESCE(SUM(CASE WHEN sameStateFlag = 1 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN sameStateFlag = 0 AND articleNewState != '' AND articleApprovedState != '' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN articleNewState = '' OR articleApprovedState = '' THEN 1 ELSE 0 END), 0)
FROM ArticleDuplicateAnalyses
`
	var same, different, missing int64
	if err := s.pool.QueryRow(ctx, q).Scan(&same, &different, &missing); err != nil {
		return nil, storeErr("state stats", err)
	}
	return Stats{
		"same_state_count":      same,
		"different_state_count": different,
		"missing_state_count":   missing,
	}, nil
}

func (s *Store) URLStats(ctx context.Context) (Stats, error) {
	const q = `
SELECT
	COALESCE(SUM(CASE WHEN urlCheck = 1 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN urlCheck = 0 THEN 1 ELSE 0 END), 0)
FROM ArticleDuplicateAnalyses
`
	var match, noMatch int64
	if err := s.pool.QueryRow(ctx, q).Scan(&match, &noMatch); err != nil {
		return nil, storeErr("url stats", err)
	}
	return Stats{
		"url_match_count":    match,
		"url_no_match_count": noMatch,
	}, nil
}

func (s *Store) ContentHashStats(ctx context.Context) (Stats, error) {
	const q = `
SELECT
	COALESCE(SUM(CASE WHEN contentHash = 1.0 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN contentHash >= 0.9 AND contentHash < 1.0 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN contentHash >= 0.7 AND contentHash < 0.9 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN contentHash > 0 AND contentHash < 0.7 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN contentHash = 0 THEN 1 ELSE 0 END), 0)
FROM ArticleDuplicateAnalyses
`
	var exact, high, medium, low, none int64
	if err := s.pool.QueryRow(ctx, q).Scan(&exact, &high, &medium, &low, &none); err != nil {
		return nil, storeErr("content hash stats", err)
	}
	return Stats{
		"exact_match_count":       exact,
		"high_similarity_count":   high,
		"medium_similarity_count": medium,
		"low_similarity_count":    low,
		"no_match_count":          none,
	}, nil
}

func (s *Store) EmbeddingStats(ctx context.Context) (Stats, error) {
	const q = `
SELECT
	COALESCE(SUM(CASE WHEN embeddingSearch >= 0.8 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN embeddingSearch >= 0.5 AND embeddingSearch < 0.8 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN embeddingSearch > 0 AND embeddingSearch < 0.5 THEN 1 ELSE 0 END), 0)
FROM ArticleDuplicateAnalyses
`
	var high, medium, low int64
	if err := s.pool.QueryRow(ctx, q).Scan(&high, &medium, &low); err != nil {
		return nil, storeErr("embedding stats", err)
	}
	return Stats{
		"high_similarity_count":   high,
		"medium_similarity_count": medium,
		"low_similarity_count":    low,
	}, nil
}

func (s *Store) queryRefs(ctx context.Context, op, query string) ([]PairRef, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	refs := make([]PairRef, 0, 64)
	for rows.Next() {
		var ref PairRef
		if err := rows.Scan(&ref.ID, &ref.ArticleIDNew, &ref.ArticleIDApproved); err != nil {
			return nil, storeErr(op, err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return refs, nil
}

func (s *Store) execBatch(
	ctx context.Context,
	op string,
	count int,
	exec func(tx db.Tx, i int, now string) (db.CommandTag, error),
) (int64, error) {
	if count == 0 {
		return 0, nil
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return 0, storeErr(op+" begin tx", err)
	}

	now := timestamp()
	var updated int64
	for i := 0; i < count; i++ {
		tag, err := exec(tx, i, now)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, storeErr(op, err)
		}
		updated += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return 0, storeErr(op+" commit", err)
	}
	return updated, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
