// Package memorystorage provides an in-memory storage backend.
// It reuses the jsondb cache without a backing file and is the default
// when neither a database DSN nor a storage file is configured.
package memorystorage

import (
	"context"

	"github.com/shrturl/shrturl/internal/db/jsondb"
)

// MemoryStorage keeps all records in process memory only.
type MemoryStorage struct {
	*jsondb.JSONDB
}

// New returns an empty in-memory storage.
func New() (*MemoryStorage, error) {
	return &MemoryStorage{
		JSONDB: jsondb.NewEmpty(),
	}, nil
}

// Close is a no-op; nothing survives the process anyway.
func (theStorage *MemoryStorage) Close() error {
	return nil
}

// Ping is a no-op for the in-memory backend.
func (theStorage *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
