package auth

import (
	"testing"

	"github.com/fixline/bodyshop/internal/changelog"
	"github.com/fixline/bodyshop/internal/db"
)

func openAuthTestRepo(t *testing.T) *db.Repository {
	t.Helper()

	database, err := db.Open(t.TempDir(), "auth_test.db")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		t.Fatalf("migration error = %v", err)
	}

	repo := db.NewRepository(database.DB, changelog.NewWriter())
	t.Cleanup(func() { repo.Close() })
	return repo
}
