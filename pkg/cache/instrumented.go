package cache

import (
	"context"
	"strings"
)

// Observer is notified of every lookup and failed write. Results are "hit",
// "miss" or "error".
type Observer interface {
	ObserveLookup(stage, result string)
	ObserveWriteError(stage string)
}

// Lookup results reported to an Observer.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

type instrumented struct {
	Store
	observer Observer
}

// Instrumented wraps s so that every operation is reported to o.
func Instrumented(s Store, o Observer) Store {
	if o == nil {
		return s
	}
	return &instrumented{Store: s, observer: o}
}

func (s *instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	payload, ok, err := s.Store.Get(ctx, key)
	switch {
	case err != nil:
		s.observer.ObserveLookup(stageOf(key), ResultError)
	case ok:
		s.observer.ObserveLookup(stageOf(key), ResultHit)
	default:
		s.observer.ObserveLookup(stageOf(key), ResultMiss)
	}
	return payload, ok, err
}

func (s *instrumented) Put(ctx context.Context, key, payload string) error {
	err := s.Store.Put(ctx, key, payload)
	if err != nil {
		s.observer.ObserveWriteError(stageOf(key))
	}
	return err
}

func stageOf(key string) string {
	stage, _, found := strings.Cut(key, ":")
	if !found {
		return "unknown"
	}
	return stage
}
