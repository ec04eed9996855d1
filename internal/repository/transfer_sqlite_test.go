package repository

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/bigkaa/quickshare/internal/database"
)

func newSQLiteRepo(t *testing.T) TransferRepository {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	path := filepath.Join(t.TempDir(), "transfers.db")

	if err := database.MigrateSQLite(path, logger); err != nil {
		t.Fatalf("MigrateSQLite: %v", err)
	}
	db, err := database.OpenSQLite(context.Background(), path, logger)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewTransferSQLiteRepository(db)
}

func TestTransferSQLiteRepository(t *testing.T) {
	runRepositoryContract(t, newSQLiteRepo)
}
