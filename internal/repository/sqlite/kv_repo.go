package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vpms_console/internal/repository"
)

type kvRepository struct {
	db *sql.DB
}

func NewKeyValueRepository(db *sql.DB) repository.KeyValueRepository {
	return &kvRepository{db: db}
}

const upsertQuery = `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

func (r *kvRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("KeyValueRepository.Get(%s): %w", key, err)
	}
	return value, nil
}

func (r *kvRepository) Set(ctx context.Context, key, value string) error {
	if _, err := r.db.ExecContext(ctx, upsertQuery, key, value); err != nil {
		return fmt.Errorf("KeyValueRepository.Set(%s): %w", key, err)
	}
	return nil
}

func (r *kvRepository) SetMany(ctx context.Context, pairs map[string]string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("KeyValueRepository.SetMany: begin: %w", err)
	}
	defer tx.Rollback()

	for k, v := range pairs {
		if _, err := tx.ExecContext(ctx, upsertQuery, k, v); err != nil {
			return fmt.Errorf("KeyValueRepository.SetMany(%s): %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("KeyValueRepository.SetMany: commit: %w", err)
	}
	return nil
}

func (r *kvRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	query := `DELETE FROM kv_store WHERE key IN (` + placeholders + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("KeyValueRepository.Delete: %w", err)
	}
	return nil
}
