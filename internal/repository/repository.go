package repository

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("record not found")

// Keys of the persisted session. The console never stores anything else.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// KeyValueRepository is the durable client-side store backing the session.
type KeyValueRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
	// SetMany writes all pairs atomically.
	SetMany(ctx context.Context, pairs map[string]string) error
}
