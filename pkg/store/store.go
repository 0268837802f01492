package store

import (
	"context"
	"fmt"
)

// Slot keys used by the application.
const (
	KeyCustomers = "customers"
	KeySession   = "session"
)

// Storage is a key-value slot store. Put replaces the whole value of a key
// atomically: a failed Put never leaves a partially written value behind.
type Storage interface {
	// Get returns models.ErrNotFound when the key has never been written.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	Close() error
}

// Open returns the Storage implementation for driver.
func Open(driver, dsn string) (Storage, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLiteStore(dsn)
	case "postgres":
		return NewPostgresStore(dsn)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
