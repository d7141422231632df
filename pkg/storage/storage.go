// Package storage provides the durable client-local key/value store the widget keeps
// its session identifier in.
package storage

import (
	"errors"
	"fmt"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/config"
)

// ErrUnavailable is returned when the backing store cannot be read or written.
var ErrUnavailable = errors.New("storage unavailable")

// Storage is a string key/value store. Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value for key and whether it was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Open returns the driver selected by cfg.Driver.
func Open(cfg config.StorageConfig, path string) (Storage, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(path)
	case "sqlite":
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
