package pipeline

import (
	"context"

	"dupecheck/internal/db"
)

// ApprovedText is the reviewed headline/body pair used for content
// comparison.
type ApprovedText struct {
	Headline *string
	Body     *string
}

// ArticleSource resolves article attributes from the upstream
// catalog. The pipeline only reads through this interface; how
// articles enter the catalog is not its concern.
type ArticleSource interface {
	// State returns the two-letter jurisdiction code, or "" when the
	// article has no state assignment.
	State(ctx context.Context, articleID int64) (string, error)
	// URL returns the article URL, or nil when unknown.
	URL(ctx context.Context, articleID int64) (*string, error)
	// ApprovedText returns the approved headline/body, or nil when the
	// article has no approved record.
	ApprovedText(ctx context.Context, articleID int64) (*ApprovedText, error)
	// RawText returns the approved body text used for embeddings, or
	// nil when absent.
	RawText(ctx context.Context, articleID int64) (*string, error)
	ApprovedArticleIDs(ctx context.Context) ([]int64, error)
	ArticleIDsForReport(ctx context.Context, reportID int64) ([]int64, error)
	// ArticleIDsFromCSV reads the "new" article-id scope from a flat
	// CSV file.
	ArticleIDsFromCSV(path string) ([]int64, error)
}

// Catalog is the SQL ArticleSource over the shared database.
type Catalog struct {
	pool *db.Pool
}

func NewCatalog(pool *db.Pool) *Catalog {
	return &Catalog{pool: pool}
}

func (c *Catalog) State(ctx context.Context, articleID int64) (string, error) {
	const q = `
SELECT s.abbreviation
FROM ArticleStateContracts asc2
JOIN States s ON s.id = asc2.stateId
WHERE asc2.articleId = ?
LIMIT 1
`
	var state string
	err := c.pool.QueryRow(ctx, q, articleID).Scan(&state)
	if err != nil {
		if db.IsNoRows(err) {
			return "", nil
		}
		return "", storeErr("get article state", err)
	}
	return state, nil
}

func (c *Catalog) URL(ctx context.Context, articleID int64) (*string, error) {
	var url *string
	err := c.pool.QueryRow(ctx, `SELECT url FROM Articles WHERE id = ? LIMIT 1`, articleID).Scan(&url)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, storeErr("get article url", err)
	}
	return url, nil
}

func (c *Catalog) ApprovedText(ctx context.Context, articleID int64) (*ApprovedText, error) {
	const q = `
SELECT headlineForPdfReport, textForPdfReport
FROM ArticleApproveds
WHERE articleId = ?
LIMIT 1
`
	var text ApprovedText
	err := c.pool.QueryRow(ctx, q, articleID).Scan(&text.Headline, &text.Body)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, storeErr("get approved text", err)
	}
	return &text, nil
}

func (c *Catalog) RawText(ctx context.Context, articleID int64) (*string, error) {
	const q = `
SELECT textForPdfReport
FROM ArticleApproveds
WHERE articleId = ?
LIMIT 1
`
	var text *string
	err := c.pool.QueryRow(ctx, q, articleID).Scan(&text)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, storeErr("get article content", err)
	}
	return text, nil
}

func (c *Catalog) ApprovedArticleIDs(ctx context.Context) ([]int64, error) {
	const q = `
SELECT articleId
FROM ArticleApproveds
WHERE isApproved = 1
ORDER BY articleId
`
	return c.queryIDs(ctx, "list approved article ids", q)
}

func (c *Catalog) ArticleIDsForReport(ctx context.Context, reportID int64) ([]int64, error) {
	const q = `
SELECT articleId
FROM ArticleReportContracts
WHERE reportId = ?
ORDER BY articleId
`
	return c.queryIDs(ctx, "list report article ids", q, reportID)
}

func (c *Catalog) queryIDs(ctx context.Context, op, query string, args ...any) ([]int64, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	ids := make([]int64, 0, 64)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return ids, nil
}
