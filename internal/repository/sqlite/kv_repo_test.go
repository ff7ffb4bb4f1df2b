package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"vpms_console/internal/repository"
)

func openTestRepo(t *testing.T, path string) repository.KeyValueRepository {
	t.Helper()
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewKeyValueRepository(db)
}

func TestKeyValueRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t, filepath.Join(t.TempDir(), "session.db"))

	if _, err := repo.Get(ctx, repository.KeyToken); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty store, got %v", err)
	}

	err := repo.SetMany(ctx, map[string]string{
		repository.KeyToken: "abc",
		repository.KeyUser:  `{"id":1}`,
	})
	if err != nil {
		t.Fatalf("set many: %v", err)
	}
	if err := repo.Set(ctx, repository.KeyToken, "def"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	token, err := repo.Get(ctx, repository.KeyToken)
	if err != nil || token != "def" {
		t.Fatalf("expected overwritten token, got %q (%v)", token, err)
	}

	if err := repo.Delete(ctx, repository.KeyToken, repository.KeyUser); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, repository.KeyUser); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("user key should be gone, got %v", err)
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	first := openTestRepo(t, path)
	if err := first.Set(ctx, repository.KeyToken, "persisted"); err != nil {
		t.Fatalf("set: %v", err)
	}

	second := openTestRepo(t, path)
	got, err := second.Get(ctx, repository.KeyToken)
	if err != nil || got != "persisted" {
		t.Fatalf("expected value after reopen, got %q (%v)", got, err)
	}
}
