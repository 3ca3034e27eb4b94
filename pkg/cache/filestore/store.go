// Package filestore provides a cache.Store keeping one file per key.
package filestore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/docker/briefing/pkg/cache"
)

// Store writes each payload to its own file. Files are replaced with an
// atomic rename so readers see the old or the new payload, never a mix.
type Store struct {
	dir string
}

var _ cache.Store = (*Store)(nil)

type Factory struct{}

func (f *Factory) CreateStore(_ context.Context, cfg cache.Config) (cache.Store, error) {
	return Open(cfg.Path)
}

func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("file cache requires a path")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	buf, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading artifact: %w", err)
	}
	return string(buf), true, nil
}

func (s *Store) Put(ctx context.Context, key, payload string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := atomic.WriteFile(s.path(key), strings.NewReader(payload)); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

// path maps a key to a file name. Keys are hex-encoded since they may hold
// separators that are not valid in file names.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, hex.EncodeToString([]byte(key))+".txt")
}

func init() {
	cache.RegisterFactory(cache.KindFile, &Factory{})
}
