package testutil

import (
	"path/filepath"
	"testing"

	"karsync/internal/repository"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// SetupTestDBWithFile creates a file-based SQLite database in a temp dir
func SetupTestDBWithFile(t *testing.T) (*repository.Repository, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "karsync-test.db")
	repo, err := repository.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo, dbPath
}
