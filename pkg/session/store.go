// Package session tracks the runs made within a conversation thread so a
// client can resume it and inspect its history.
package session

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrNotOwned = errors.New("session belongs to another user")
)

// Run is one pipeline execution within a session.
type Run struct {
	Topic      string    `json:"topic"`
	Aspects    []string  `json:"aspects"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Runs      []Run     `json:"runs"`
}

func (s Session) clone() Session {
	s.Runs = slices.Clone(s.Runs)
	return s
}

// Store defines persistence for sessions.
type Store interface {
	// Get returns the session with id or ErrNotFound.
	Get(ctx context.Context, id string) (Session, error)
	// Ensure returns the session with id, creating it for userID when it
	// does not exist. A session created by another user is not returned.
	Ensure(ctx context.Context, id, userID string) (Session, error)
	AppendRun(ctx context.Context, id string, run Run) error
	// List returns the sessions of userID, most recently updated first. An
	// empty userID lists every session.
	List(ctx context.Context, userID string) ([]Session, error)
}

// MemoryStore keeps sessions for the life of the process.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess.clone(), nil
}

func (s *MemoryStore) Ensure(_ context.Context, id, userID string) (Session, error) {
	if id == "" {
		return Session{}, errors.New("session id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[id]; ok {
		if sess.UserID != "" && userID != "" && sess.UserID != userID {
			return Session{}, ErrNotOwned
		}
		return sess.clone(), nil
	}

	now := s.now()
	sess := &Session{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}
	s.sessions[id] = sess
	return sess.clone(), nil
}

func (s *MemoryStore) AppendRun(_ context.Context, id string, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	run.Aspects = slices.Clone(run.Aspects)
	sess.Runs = append(sess.Runs, run)
	sess.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Session
	for _, sess := range s.sessions {
		if userID != "" && sess.UserID != userID {
			continue
		}
		out = append(out, sess.clone())
	}
	slices.SortFunc(out, func(a, b Session) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

