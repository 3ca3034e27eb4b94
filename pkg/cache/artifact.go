package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Stage names the pipeline step that produced an artifact.
type Stage string

const (
	StageGathered Stage = "gathered"
	StageReport   Stage = "report"
)

// ErrEmptyPayload is returned when saving an artifact with no content.
var ErrEmptyPayload = errors.New("artifact payload is empty")

// Artifact is a fully formed stage output.
type Artifact struct {
	Key     Key
	Stage   Stage
	Payload string
}

// StoreKey returns the key the artifact is stored under.
func (a Artifact) StoreKey() string {
	return a.Key.For(a.Stage)
}

// Load returns the artifact of stage for key. ok is false on a miss; blank
// stored payloads are treated as misses.
func Load(ctx context.Context, s Store, key Key, stage Stage) (Artifact, bool, error) {
	payload, ok, err := s.Get(ctx, key.For(stage))
	if err != nil {
		return Artifact{}, false, fmt.Errorf("loading %s artifact: %w", stage, err)
	}
	if !ok || strings.TrimSpace(payload) == "" {
		return Artifact{}, false, nil
	}
	return Artifact{Key: key, Stage: stage, Payload: payload}, true, nil
}

// Save stores a. Blank payloads are refused so that a lookup never returns
// an unusable artifact.
func Save(ctx context.Context, s Store, a Artifact) error {
	if strings.TrimSpace(a.Payload) == "" {
		return ErrEmptyPayload
	}
	if err := s.Put(ctx, a.StoreKey(), a.Payload); err != nil {
		return fmt.Errorf("saving %s artifact: %w", a.Stage, err)
	}
	return nil
}
