package memory

import (
	"context"
	"sync"

	"vpms_console/internal/repository"
)

// KeyValueRepository keeps the session in process memory. Used by the CLI's
// --ephemeral mode and by tests.
type KeyValueRepository struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewKeyValueRepository() *KeyValueRepository {
	return &KeyValueRepository{data: make(map[string]string)}
}

func (r *KeyValueRepository) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[key]
	if !ok {
		return "", repository.ErrNotFound
	}
	return v, nil
}

func (r *KeyValueRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	r.data[key] = value
	r.mu.Unlock()
	return nil
}

func (r *KeyValueRepository) SetMany(_ context.Context, pairs map[string]string) error {
	r.mu.Lock()
	for k, v := range pairs {
		r.data[k] = v
	}
	r.mu.Unlock()
	return nil
}

func (r *KeyValueRepository) Delete(_ context.Context, keys ...string) error {
	r.mu.Lock()
	for _, k := range keys {
		delete(r.data, k)
	}
	r.mu.Unlock()
	return nil
}

// Len reports how many keys are stored.
func (r *KeyValueRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
