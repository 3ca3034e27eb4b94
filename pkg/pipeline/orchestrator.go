// Package pipeline sequences the gather and report stages of a request,
// threading the gathered data into the report stage and short-circuiting
// through the artifact cache.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/docker/briefing/pkg/agent"
	"github.com/docker/briefing/pkg/cache"
	"github.com/docker/briefing/pkg/contextutil"
)

const tracerName = "github.com/docker/briefing/pkg/pipeline"

// Run outcomes reported in metrics.
const (
	OutcomeCompleted = "completed"
	OutcomeCacheHit  = "cache_hit"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// errCancelled marks a stage stopped because the caller went away.
var errCancelled = errors.New("run cancelled")

// Orchestrator runs requests through the gather and report stages. It holds
// no per-run state and is safe for concurrent use.
type Orchestrator struct {
	gather Stage
	report Stage
	store  cache.Store

	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

type Opt func(*Orchestrator)

func WithLogger(logger *slog.Logger) Opt {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records run, stage and cache metrics.
func WithMetrics(m *Metrics) Opt {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithTracerProvider(tp trace.TracerProvider) Opt {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// New returns an Orchestrator. A nil store selects an in-memory cache.
func New(gather, report Stage, store cache.Store, opts ...Opt) (*Orchestrator, error) {
	if err := gather.validate(); err != nil {
		return nil, err
	}
	if err := report.validate(); err != nil {
		return nil, err
	}
	if store == nil {
		store = cache.NewMemory()
	}

	o := &Orchestrator{
		gather: gather,
		report: report,
		logger: slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics != nil {
		store = cache.Instrumented(store, o.metrics)
	}
	o.store = store

	return o, nil
}

// Run executes req and streams its progress. The channel is always closed;
// when the run ends with Completed or Failed that update is the last one.
// Cancelling ctx stops the run without a Failed update and without caching
// anything. Callers must drain the channel.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan Update {
	out := make(chan Update)

	go func() {
		defer close(out)
		o.run(ctx, req, &emitter{ctx: ctx, out: out})
	}()

	return out
}

type emitter struct {
	ctx  context.Context
	out  chan<- Update
	done bool
}

// send delivers u unless the run already ended or the caller went away.
func (e *emitter) send(u Update) bool {
	if e.done {
		return false
	}
	select {
	case e.out <- u:
		e.done = u.IsTerminal()
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (o *Orchestrator) run(ctx context.Context, req Request, em *emitter) {
	r := newRun(req)

	ctx, span := o.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("pipeline.topic", req.Topic()),
		attribute.StringSlice("pipeline.aspects", req.Aspects()),
	))
	defer span.End()

	o.metrics.runStarted()
	outcome := OutcomeCancelled
	defer func() {
		o.metrics.runFinished(outcome)
		span.SetAttributes(attribute.String("pipeline.outcome", outcome))
	}()

	defer func() {
		if p := recover(); p != nil {
			o.logger.Error("Pipeline run panicked", "topic", req.Topic(), "state", r.State, "panic", p)
			outcome = OutcomeFailed
			r.State = Failed
			span.SetStatus(codes.Error, "panic")
			em.send(Update{Kind: UpdateFailed, Err: &AgentError{
				Type:    agent.ErrorTypeInternal,
				Message: fmt.Sprintf("internal error: %v", p),
			}})
		}
	}()

	if err := req.Validate(); err != nil {
		_ = r.Advance(Failed)
		outcome = OutcomeFailed
		span.SetStatus(codes.Error, err.Error())
		var f Failure
		if !errors.As(err, &f) {
			f = &ValidationError{Field: "request", Err: err}
		}
		em.send(Update{Kind: UpdateFailed, Err: f})
		return
	}

	key := req.Key()
	log := o.logger.With("topic", req.Topic(), "key", key.String())
	if id := contextutil.SessionID(ctx); id != "" {
		log = log.With("session_id", id)
		span.SetAttributes(attribute.String("pipeline.session_id", id))
	}

	gathered, gatherHit := o.lookup(ctx, log, key, cache.StageGathered)
	if gatherHit {
		if report, ok := o.lookup(ctx, log, key, cache.StageReport); ok {
			_ = r.Advance(Completed)
			r.Gathered, r.Report = gathered.Payload, report.Payload
			log.Debug("Serving report from cache")
			if em.send(Update{Kind: UpdateCacheHit, Stage: o.report.Name, Key: report.StoreKey()}) &&
				em.send(Update{Kind: UpdateCompleted, Stage: o.report.Name, Text: report.Payload}) {
				outcome = OutcomeCacheHit
			}
			return
		}

		_ = r.Advance(Writing)
		r.Gathered = gathered.Payload
		log.Debug("Reusing cached gathered data")
		if !em.send(Update{Kind: UpdateCacheHit, Stage: o.gather.Name, Key: gathered.StoreKey()}) {
			return
		}
	} else {
		_ = r.Advance(Gathering)
		out, err := o.runStage(ctx, log, r, o.gather, "", em)
		if err != nil {
			outcome = o.stop(log, r, span, o.gather, err, em)
			return
		}
		r.Gathered = out
		o.save(ctx, log, cache.Artifact{Key: key, Stage: cache.StageGathered, Payload: out})
		_ = r.Advance(Writing)
	}

	report, err := o.runStage(ctx, log, r, o.report, r.Gathered, em)
	if err != nil {
		outcome = o.stop(log, r, span, o.report, err, em)
		return
	}
	r.Report = report
	o.save(ctx, log, cache.Artifact{Key: key, Stage: cache.StageReport, Payload: report})
	_ = r.Advance(Completed)

	if em.send(Update{Kind: UpdateCompleted, Stage: o.report.Name, Text: report}) {
		outcome = OutcomeCompleted
	}
}

// runStage invokes the stage's agent, forwarding every non-terminal event
// before folding it into the aggregate, and returns the aggregate content.
func (o *Orchestrator) runStage(ctx context.Context, log *slog.Logger, r *Run, st Stage, input string, em *emitter) (string, error) {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(attribute.String("pipeline.stage", st.Name)))
	defer span.End()

	log = log.With("stage", st.Name)
	log.Debug("Stage started", "state", r.State)

	prompt := st.prompt(r.Request, input)
	em.send(Update{Kind: UpdateStageStarted, Stage: st.Name})
	em.send(Update{Kind: UpdatePrompt, Stage: st.Name, Text: prompt})

	stageCtx := ctx
	if st.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, st.Timeout)
		defer cancel()
	}

	var (
		aggregate strings.Builder
		failure   *agent.Failure
		completed bool
	)
	// The guard always ends with one terminal event, so this loop drains the
	// agent even when the caller is gone.
	for ev := range agent.Guard(st.Agent).Invoke(stageCtx, prompt, st.Instructions) {
		switch ev.Kind {
		case agent.KindCompleted:
			completed = true
		case agent.KindError:
			failure = ev.Failure
		default:
			em.send(Update{Kind: UpdateAgentEvent, Stage: st.Name, Event: ev})
			if ev.Kind == agent.KindContent {
				aggregate.WriteString(ev.Text)
			}
		}
	}

	var err error
	switch {
	case ctx.Err() != nil:
		err = errCancelled
	case failure != nil:
		err = &AgentError{Stage: st.Name, Type: failure.Type, Message: failure.Message}
	case !completed:
		err = &AgentError{Stage: st.Name, Type: agent.ErrorTypeAgent, Message: "agent ended without completing"}
	case strings.TrimSpace(aggregate.String()) == "":
		err = &AgentError{Stage: st.Name, Type: ErrorTypeEmptyOutput, Message: "stage produced no content"}
	}

	elapsed := time.Since(start)
	switch {
	case err == nil:
		o.metrics.observeStage(st.Name, "ok", elapsed)
		span.SetStatus(codes.Ok, "")
		log.Debug("Stage completed", "duration", elapsed, "bytes", aggregate.Len())
		return aggregate.String(), nil
	case errors.Is(err, errCancelled):
		o.metrics.observeStage(st.Name, OutcomeCancelled, elapsed)
		span.SetStatus(codes.Error, "cancelled")
	default:
		errType := ErrorType(err, agent.ErrorTypeAgent)
		o.metrics.observeStage(st.Name, "failed", elapsed)
		o.metrics.stageFailed(st.Name, errType)
		span.RecordError(err)
		span.SetStatus(codes.Error, errType)
	}
	return "", err
}

// stop ends a run after a stage error and returns the run outcome.
func (o *Orchestrator) stop(log *slog.Logger, r *Run, span trace.Span, st Stage, err error, em *emitter) string {
	if errors.Is(err, errCancelled) {
		log.Info("Run cancelled by caller", "stage", st.Name)
		return OutcomeCancelled
	}

	_ = r.Advance(Failed)
	log.Warn("Stage failed", "stage", st.Name, "error", err)
	span.SetStatus(codes.Error, err.Error())

	var f Failure
	if !errors.As(err, &f) {
		f = &AgentError{Stage: st.Name, Type: agent.ErrorTypeInternal, Message: err.Error()}
	}
	em.send(Update{Kind: UpdateFailed, Stage: st.Name, Err: f})
	return OutcomeFailed
}

// lookup treats any store error as a miss.
func (o *Orchestrator) lookup(ctx context.Context, log *slog.Logger, key cache.Key, stage cache.Stage) (cache.Artifact, bool) {
	a, ok, err := cache.Load(ctx, o.store, key, stage)
	if err != nil {
		log.Warn("Cache lookup failed, treating as miss", "stage", stage, "error", err)
		return cache.Artifact{}, false
	}
	return a, ok
}

func (o *Orchestrator) save(ctx context.Context, log *slog.Logger, a cache.Artifact) {
	if err := cache.Save(ctx, o.store, a); err != nil {
		log.Warn("Failed to cache artifact", "stage", a.Stage, "error", err)
	}
}
