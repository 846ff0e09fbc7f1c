package database_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/safar/agrimarket/internal/database"
	"github.com/safar/agrimarket/internal/testutil"
)

func TestWithTransactionRollsBackOnError(t *testing.T) {
	db := testutil.SetupDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO categories (name) VALUES ('Rolled back')`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected original error, got %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE name = 'Rolled back'`).Scan(&count); err != nil {
		t.Fatalf("Count categories: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected insert to be rolled back, found %d rows", count)
	}
}

func TestWithRetryReportsLockTimeout(t *testing.T) {
	db := testutil.SetupDB(t)
	ctx := context.Background()

	var id int64
	if err := db.QueryRowContext(ctx, `SELECT id FROM categories ORDER BY id LIMIT 1`).Scan(&id); err != nil {
		t.Fatalf("Select category: %v", err)
	}

	holder, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("Begin holder: %v", err)
	}
	defer holder.Rollback()
	if _, err := holder.ExecContext(ctx, `SELECT id FROM categories WHERE id = $1 FOR UPDATE`, id); err != nil {
		t.Fatalf("Lock row: %v", err)
	}

	opts := database.DefaultTxOptions()
	opts.MaxRetries = 1
	opts.LockTimeout = 50 * time.Millisecond

	attempts := 0
	err = database.WithRetry(ctx, db, opts, func(tx *sql.Tx) error {
		attempts++
		_, err := tx.ExecContext(ctx, `SELECT id FROM categories WHERE id = $1 FOR UPDATE`, id)
		return err
	})
	if !errors.Is(err, database.ErrLockTimeout) {
		t.Fatalf("Expected lock timeout, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}
