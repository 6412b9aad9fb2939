package db

import (
	"context"
	"path/filepath"
	"testing"
)

func openPool(t *testing.T, path string) *Pool {
	t.Helper()
	pool, err := NewPool(context.Background(), Options{
		Path:        path,
		LogLevel:    "error",
		Environment: "test",
	})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	t.Cleanup(func() { _ = pool.Close() })
	return pool
}

func TestNewPoolCreatesSchema(t *testing.T) {
	t.Parallel()

	pool := openPool(t, filepath.Join(t.TempDir(), "schema_test.db"))
	ctx := context.Background()

	var count int64
	err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM ArticleDuplicateAnalyses`).Scan(&count)
	if err != nil {
		t.Fatalf("query analysis table: %v", err)
	}
	if count != 0 {
		t.Fatalf("fresh table count = %d, want 0", count)
	}

	var indexes int64
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_adr_%'`).Scan(&indexes)
	if err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	if indexes != 5 {
		t.Fatalf("indexes = %d, want 5", indexes)
	}
}

func TestNewPoolMigrationIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reopen_test.db")

	first := openPool(t, path)
	ctx := context.Background()
	if _, err := first.Exec(ctx,
		`INSERT INTO ArticleDuplicateAnalyses (articleIdNew, articleIdApproved, createdAt, updatedAt) VALUES (1, 2, 'now', 'now')`,
	); err != nil {
		t.Fatalf("insert row: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close pool: %v", err)
	}

	second := openPool(t, path)
	var count int64
	if err := second.QueryRow(ctx, `SELECT COUNT(*) FROM ArticleDuplicateAnalyses`).Scan(&count); err != nil {
		t.Fatalf("query after reopen: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows after reopen = %d, want 1", count)
	}
}

func TestPoolTransactionRollback(t *testing.T) {
	t.Parallel()

	pool := openPool(t, filepath.Join(t.TempDir(), "tx_test.db"))
	ctx := context.Background()

	tx, err := pool.BeginTx(ctx, TxOptions{})
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO ArticleDuplicateAnalyses (articleIdNew, articleIdApproved, createdAt, updatedAt) VALUES (1, 2, 'now', 'now')`,
	); err != nil {
		t.Fatalf("tx insert: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	var count int64
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM ArticleDuplicateAnalyses`).Scan(&count); err != nil {
		t.Fatalf("count after rollback: %v", err)
	}
	if count != 0 {
		t.Fatalf("rows after rollback = %d, want 0", count)
	}
}

func TestIsNoRows(t *testing.T) {
	t.Parallel()

	pool := openPool(t, filepath.Join(t.TempDir(), "norows_test.db"))

	var id int64
	err := pool.QueryRow(context.Background(),
		`SELECT id FROM ArticleDuplicateAnalyses WHERE id = 42`).Scan(&id)
	if err == nil {
		t.Fatal("expected no-rows error")
	}
	if !IsNoRows(err) {
		t.Fatalf("IsNoRows = false for %v", err)
	}
}
