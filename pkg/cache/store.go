// Package cache stores stage artifacts under content-derived keys.
//
// Backends are selected by kind through a registry; the sqlite, filestore
// and ttl subpackages register themselves when imported.
package cache

import (
	"context"
	"io"
	"time"
)

// Store is a key to payload store shared by concurrent runs. Operations on
// distinct keys never block each other. A Put is atomic and last-write-wins:
// readers observe either the previous payload or the new one, never a part.
type Store interface {
	// Get returns the payload stored under key. ok is false on a miss.
	Get(ctx context.Context, key string) (payload string, ok bool, err error)
	Put(ctx context.Context, key, payload string) error

	io.Closer
}

// Config selects and configures a backend.
type Config struct {
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Path is the database file for sqlite and the directory for file.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// TTL and MaxEntries apply to the ttl backend.
	TTL        time.Duration `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	MaxEntries int           `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
}

const (
	KindMemory = "memory"
	KindSQLite = "sqlite"
	KindFile   = "file"
	KindTTL    = "ttl"
)
