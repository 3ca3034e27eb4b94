package pipeline

import (
	"github.com/docker/briefing/pkg/agent"
)

// UpdateKind identifies the shape of an Update.
type UpdateKind string

const (
	// UpdateStageStarted marks the start of a stage.
	UpdateStageStarted UpdateKind = "stage_started"
	// UpdatePrompt carries the input handed to a stage's agent.
	UpdatePrompt UpdateKind = "prompt"
	// UpdateAgentEvent relays one non-terminal agent event.
	UpdateAgentEvent UpdateKind = "agent_event"
	// UpdateCacheHit reports that a stage was served from cache.
	UpdateCacheHit UpdateKind = "cache_hit"
	// UpdateCompleted carries the final report.
	UpdateCompleted UpdateKind = "completed"
	// UpdateFailed carries the failure that ended the run.
	UpdateFailed UpdateKind = "failed"
)

// Update is one step of orchestrator progress. Completed and Failed are
// terminal: at most one of them is sent and nothing follows it.
type Update struct {
	Kind  UpdateKind
	Stage string

	// Text is the prompt for UpdatePrompt and the report for UpdateCompleted.
	Text string
	// Key is the store key served for UpdateCacheHit.
	Key   string
	Event agent.Event
	Err   Failure
}

func (u Update) IsTerminal() bool {
	return u.Kind == UpdateCompleted || u.Kind == UpdateFailed
}
