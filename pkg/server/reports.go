package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/docker/briefing/pkg/contextutil"
	"github.com/docker/briefing/pkg/pipeline"
	"github.com/docker/briefing/pkg/session"
	"github.com/docker/briefing/pkg/stream"
)

// ReportRequest is the body of POST /api/reports.
type ReportRequest struct {
	Topic    string   `json:"topic"`
	Aspects  []string `json:"aspects,omitempty"`
	ThreadID string   `json:"thread_id,omitempty"`
	UserID   string   `json:"user_id,omitempty"`
}

// createReport streams one run as server-sent events.
func (s *Server) createReport(c echo.Context) error {
	var body ReportRequest
	decodeErr := json.NewDecoder(c.Request().Body).Decode(&body)

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s.runReport(c.Request().Context(), body, decodeErr, stream.NewSSEWriter(w))
	return nil
}

// runReport runs one request and writes its events to sink. Every outcome,
// including a malformed request, is reported in-stream and ends with
// graph_end.
func (s *Server) runReport(ctx context.Context, body ReportRequest, decodeErr error, sink stream.Sink) {
	rt := s.runtime.Load()

	translator := stream.NewTranslator(body.ThreadID, stream.WithLogger(s.logger))
	log := s.logger.With("session_id", translator.SessionID())
	ctx = contextutil.WithSessionID(ctx, translator.SessionID())

	var updates <-chan pipeline.Update
	req := pipeline.NewRequest(body.Topic, body.Aspects, rt.DefaultAspects)
	switch {
	case decodeErr != nil:
		log.Debug("Rejecting malformed report request", "error", decodeErr)
		updates = failed(&pipeline.ValidationError{Field: "body", Err: decodeErr})
	case req.Validate() != nil:
		updates = rt.Orchestrator.Run(ctx, req)
	default:
		if _, err := s.sessions.Ensure(ctx, translator.SessionID(), body.UserID); err != nil {
			updates = failed(&pipeline.ValidationError{Field: "thread_id", Err: err})
			break
		}
		started := time.Now()
		outcome := new(string)
		updates = track(rt.Orchestrator.Run(ctx, req), outcome)
		defer func() {
			run := session.Run{Topic: req.Topic(), Aspects: req.Aspects(), Outcome: *outcome, StartedAt: started, FinishedAt: time.Now()}
			if err := s.sessions.AppendRun(context.WithoutCancel(ctx), translator.SessionID(), run); err != nil && !errors.Is(err, session.ErrNotFound) {
				log.Warn("Failed to record run", "error", err)
			}
		}()
	}

	if err := translator.Run(ctx, updates, sink); err != nil {
		log.Debug("Client stream ended early", "error", err)
	}
}

// failed yields a single Failed update.
func failed(err pipeline.Failure) <-chan pipeline.Update {
	ch := make(chan pipeline.Update, 1)
	ch <- pipeline.Update{Kind: pipeline.UpdateFailed, Err: err}
	close(ch)
	return ch
}

// track relays updates and records how the run ended in outcome, which is
// safe to read once the returned channel is closed.
func track(in <-chan pipeline.Update, outcome *string) <-chan pipeline.Update {
	out := make(chan pipeline.Update)
	*outcome = pipeline.OutcomeCancelled

	go func() {
		defer close(out)
		cacheHit := false
		for u := range in {
			switch u.Kind {
			case pipeline.UpdateCacheHit:
				cacheHit = true
			case pipeline.UpdateStageStarted:
				cacheHit = false
			case pipeline.UpdateCompleted:
				*outcome = pipeline.OutcomeCompleted
				if cacheHit {
					*outcome = pipeline.OutcomeCacheHit
				}
			case pipeline.UpdateFailed:
				*outcome = pipeline.OutcomeFailed
			}
			out <- u
		}
	}()

	return out
}
