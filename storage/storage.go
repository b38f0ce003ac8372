// Package storage provides the key/value persistence used for client-side
// credentials and the session record. Implementations mirror browser storage:
// Memory behaves like tab-scoped storage, the others survive a restart.
package storage

import (
	"github.com/jrsteele09/go-storefront-client/internal/errors"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.ErrNotFound
	// ErrUnavailable wraps failures of a remote store.
	ErrUnavailable = errors.ErrStorageUnavailable
)

// Storage is a string key/value store. Implementations must be safe for
// concurrent use.
type Storage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}
