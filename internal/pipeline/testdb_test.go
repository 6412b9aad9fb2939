package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"dupecheck/internal/db"
)

var catalogDDL = []string{
	`CREATE TABLE Articles (
		id INTEGER PRIMARY KEY,
		url TEXT,
		title TEXT,
		description TEXT,
		publishedDate TEXT
	)`,
	`CREATE TABLE ArticleApproveds (
		articleId INTEGER PRIMARY KEY,
		isApproved INTEGER DEFAULT 0,
		headlineForPdfReport TEXT,
		textForPdfReport TEXT
	)`,
	`CREATE TABLE ArticleReportContracts (
		articleId INTEGER,
		reportId INTEGER
	)`,
	`CREATE TABLE States (
		id INTEGER PRIMARY KEY,
		abbreviation TEXT
	)`,
	`CREATE TABLE ArticleStateContracts (
		articleId INTEGER,
		stateId INTEGER
	)`,
}

func newTestPool(t *testing.T) *db.Pool {
	t.Helper()

	ctx := context.Background()
	pool, err := db.NewPool(ctx, db.Options{
		Path:        filepath.Join(t.TempDir(), "dupecheck_test.db"),
		LogLevel:    "error",
		Environment: "test",
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })

	for _, ddl := range catalogDDL {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			t.Fatalf("create catalog table: %v", err)
		}
	}
	return pool
}

func exec(t *testing.T, pool *db.Pool, query string, args ...any) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func seedArticle(t *testing.T, pool *db.Pool, id int64, url string) {
	t.Helper()
	exec(t, pool, `INSERT INTO Articles (id, url, title) VALUES (?, ?, ?)`, id, url, "article")
}

func seedApproved(t *testing.T, pool *db.Pool, articleID int64, headline, text string) {
	t.Helper()
	exec(t, pool,
		`INSERT INTO ArticleApproveds (articleId, isApproved, headlineForPdfReport, textForPdfReport) VALUES (?, 1, ?, ?)`,
		articleID, headline, text)
}

func seedState(t *testing.T, pool *db.Pool, articleID int64, stateID int64, abbreviation string) {
	t.Helper()
	exec(t, pool, `INSERT OR IGNORE INTO States (id, abbreviation) VALUES (?, ?)`, stateID, abbreviation)
	exec(t, pool, `INSERT INTO ArticleStateContracts (articleId, stateId) VALUES (?, ?)`, articleID, stateID)
}

func seedReportContract(t *testing.T, pool *db.Pool, articleID, reportID int64) {
	t.Helper()
	exec(t, pool, `INSERT INTO ArticleReportContracts (articleId, reportId) VALUES (?, ?)`, articleID, reportID)
}

func countPairs(t *testing.T, pool *db.Pool) int64 {
	t.Helper()
	var count int64
	if err := pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM ArticleDuplicateAnalyses`).Scan(&count); err != nil {
		t.Fatalf("count pairs: %v", err)
	}
	return count
}
