// Package ttl provides a bounded in-memory cache.Store whose entries expire.
package ttl

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/docker/briefing/pkg/cache"
)

const (
	DefaultTTL        = time.Hour
	DefaultMaxEntries = 1024
)

// Store evicts the least recently used entry once MaxEntries is reached and
// drops entries older than TTL.
type Store struct {
	lru *expirable.LRU[string, string]
}

var _ cache.Store = (*Store)(nil)

func New(maxEntries int, ttl time.Duration) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{lru: expirable.NewLRU[string, string](maxEntries, nil, ttl)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	payload, ok := s.lru.Get(key)
	return payload, ok, nil
}

func (s *Store) Put(_ context.Context, key, payload string) error {
	s.lru.Add(key, payload)
	return nil
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	return s.lru.Len()
}

func (s *Store) Close() error {
	s.lru.Purge()
	return nil
}

func init() {
	cache.RegisterFactory(cache.KindTTL, cache.FactoryFunc(func(_ context.Context, cfg cache.Config) (cache.Store, error) {
		return New(cfg.MaxEntries, cfg.TTL), nil
	}))
}
