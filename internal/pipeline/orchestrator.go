// Package pipeline orchestrates county weather report generation: a fixed
// sequence of stages that validates the submitted report, generates
// narratives, collects whatever maps exist, renders the document, and links
// the stored artifacts together.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/clima-scope/internal/domain"
	"github.com/couchcryptid/clima-scope/internal/mapstore"
	"github.com/couchcryptid/clima-scope/internal/observability"
)

// entry pairs one execution with its own lock. The registry lock only
// guards the map; per-execution state is guarded per entry so a long List
// cannot block a running pipeline.
type entry struct {
	mu   sync.Mutex
	exec domain.Execution
}

// Orchestrator runs report pipelines and tracks their executions in memory.
// Executions are never evicted; callers poll by id for as long as the
// process lives.
type Orchestrator struct {
	counties   domain.CountyStore
	reports    domain.ReportStore
	maps       mapstore.Store
	narratives domain.NarrativeGenerator
	renderer   domain.DocumentRenderer
	events     domain.EventPublisher // nil disables publishing
	logger     *slog.Logger
	metrics    *observability.Metrics

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an Orchestrator with the given collaborators and observability.
func New(
	counties domain.CountyStore,
	reports domain.ReportStore,
	maps mapstore.Store,
	narratives domain.NarrativeGenerator,
	renderer domain.DocumentRenderer,
	events domain.EventPublisher,
	logger *slog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	return &Orchestrator{
		counties:   counties,
		reports:    reports,
		maps:       maps,
		narratives: narratives,
		renderer:   renderer,
		events:     events,
		logger:     logger,
		metrics:    metrics,
		entries:    make(map[string]*entry),
	}
}

// Create registers a new pending execution for the submitted report and
// returns its initial status. Payload content is not validated here; a
// malformed report becomes a failure of the validating stage so that the
// caller can poll the reason like any other pipeline error.
func (o *Orchestrator) Create(ctx context.Context, raw domain.RawReport) domain.StatusPayload {
	countyID, _ := raw["county_id"].(string)
	periodStart, periodEnd := raw.Period()

	exec := domain.NewExecution(uuid.NewString(), countyID, periodStart, periodEnd, raw)
	ent := &entry{exec: exec}

	o.mu.Lock()
	o.entries[exec.ID] = ent
	o.mu.Unlock()

	o.logger.Info("pipeline created",
		"pipeline_id", exec.ID, "county_id", countyID,
		"period_start", periodStart, "period_end", periodEnd)
	o.publish(ctx, exec, domain.EventCreated)

	return exec.Payload()
}

func (o *Orchestrator) entry(id string) *entry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.entries[id]
}

// Get returns the current status of an execution, or nil when the id is
// unknown.
func (o *Orchestrator) Get(id string) *domain.StatusPayload {
	ent := o.entry(id)
	if ent == nil {
		return nil
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	p := ent.exec.Payload()
	return &p
}

// ListFilter narrows a List call. Zero values mean "no filter".
type ListFilter struct {
	Status   domain.Status
	CountyID string
}

// List returns execution statuses matching the filter, most recently
// started first. Executions that have not started yet sort last.
func (o *Orchestrator) List(filter ListFilter) []domain.StatusPayload {
	o.mu.RLock()
	entries := make([]*entry, 0, len(o.entries))
	for _, ent := range o.entries {
		entries = append(entries, ent)
	}
	o.mu.RUnlock()

	out := make([]domain.StatusPayload, 0, len(entries))
	for _, ent := range entries {
		ent.mu.Lock()
		exec := ent.exec.Clone()
		ent.mu.Unlock()
		if filter.Status != "" && exec.Status != filter.Status {
			continue
		}
		if filter.CountyID != "" && exec.CountyID != filter.CountyID {
			continue
		}
		out = append(out, exec.Payload())
	}

	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].StartedAt, out[j].StartedAt
		switch {
		case si == nil:
			return false
		case sj == nil:
			return true
		default:
			return si.After(*sj)
		}
	})
	return out
}

// Cancel requests cancellation of an execution. It returns false when the
// id is unknown or the execution already reached a terminal state,
// including an earlier cancellation. Cancellation is cooperative: an
// in-flight collaborator call is allowed to finish, and the run stops at
// its next stage boundary. The cancelled status is visible immediately.
func (o *Orchestrator) Cancel(ctx context.Context, id string) bool {
	ent := o.entry(id)
	if ent == nil {
		return false
	}

	ent.mu.Lock()
	if ent.exec.Status.Terminal() {
		ent.mu.Unlock()
		return false
	}
	ent.exec.MarkCancelled()
	exec := ent.exec.Clone()
	ent.mu.Unlock()

	o.logger.Info("pipeline cancelled", "pipeline_id", id, "stage", exec.Stage)
	o.metrics.ExecutionsCancelled.Inc()
	o.publish(ctx, exec, domain.EventCancelled)
	return true
}

// Execute runs a pending execution through all stages and returns the final
// status. A stage failure returns the terminal payload together with the
// wrapped stage error. It is a no-op for executions that already started or
// finished.
func (o *Orchestrator) Execute(ctx context.Context, id string) (domain.StatusPayload, error) {
	ent := o.entry(id)
	if ent == nil {
		return domain.StatusPayload{}, fmt.Errorf("pipeline %s not found", id)
	}

	ent.mu.Lock()
	if ent.exec.Status != domain.StatusPending {
		p := ent.exec.Payload()
		ent.mu.Unlock()
		return p, nil
	}
	ent.exec.Start()
	ent.mu.Unlock()

	o.metrics.ExecutionsStarted.Inc()
	o.metrics.ExecutionsActive.Inc()
	defer o.metrics.ExecutionsActive.Dec()

	o.logger.Info("pipeline started", "pipeline_id", id)
	start := time.Now()
	r := &run{}

	for _, stage := range domain.RunStages() {
		if p, stopped := o.checkpoint(ctx, ent); stopped {
			return p, nil
		}

		enter, exit := stageProgress(stage)
		o.advance(ent, stage, enter)

		stageStart := time.Now()
		err := o.runStage(ctx, ent, r, stage)
		o.metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(stageStart).Seconds())

		if err != nil {
			if p, stopped := o.checkpoint(ctx, ent); stopped {
				return p, nil
			}
			return o.fail(ctx, ent, stage, err)
		}
		o.advance(ent, stage, exit)
	}

	if p, stopped := o.checkpoint(ctx, ent); stopped {
		return p, nil
	}

	ent.mu.Lock()
	ent.exec.Complete()
	exec := ent.exec.Clone()
	ent.mu.Unlock()

	o.metrics.ExecutionsCompleted.Inc()
	o.metrics.ExecutionDuration.Observe(time.Since(start).Seconds())
	o.logger.Info("pipeline completed", "pipeline_id", id, "duration", time.Since(start))
	o.publish(ctx, exec, domain.EventCompleted)
	return exec.Payload(), nil
}

// ExecuteAsync runs the execution on its own goroutine, detached from the
// request that created it. Failures are recorded on the execution and
// logged by Execute; pollers pick up the outcome by id.
func (o *Orchestrator) ExecuteAsync(id string) {
	go func() {
		_, _ = o.Execute(context.Background(), id)
	}()
}

// checkpoint observes cancellation at a stage boundary. It returns the
// final payload and true when the execution should stop. A cancelled
// caller context (server shutdown) also lands in the cancelled state so
// pollers see a terminal status.
func (o *Orchestrator) checkpoint(ctx context.Context, ent *entry) (domain.StatusPayload, bool) {
	ent.mu.Lock()
	if ent.exec.Status.Terminal() {
		p := ent.exec.Payload()
		ent.mu.Unlock()
		return p, true
	}
	if ctx.Err() != nil {
		ent.exec.MarkCancelled()
		exec := ent.exec.Clone()
		ent.mu.Unlock()
		o.logger.Info("pipeline stopped by context", "pipeline_id", exec.ID, "stage", exec.Stage)
		o.metrics.ExecutionsCancelled.Inc()
		o.publish(ctx, exec, domain.EventCancelled)
		return exec.Payload(), true
	}
	ent.mu.Unlock()
	return domain.StatusPayload{}, false
}

func (o *Orchestrator) advance(ent *entry, stage domain.Stage, progress int) {
	ent.mu.Lock()
	ent.exec.Advance(stage, progress)
	ent.mu.Unlock()
}

// fail records the terminal failure, then returns the final payload along
// with the wrapped stage error. The terminal state is visible to pollers
// before the error reaches the Execute caller.
func (o *Orchestrator) fail(ctx context.Context, ent *entry, stage domain.Stage, err error) (domain.StatusPayload, error) {
	cause := fmt.Errorf("stage %s: %w", stage, err)

	ent.mu.Lock()
	ent.exec.Fail(cause.Error())
	exec := ent.exec.Clone()
	ent.mu.Unlock()

	o.logger.Error("pipeline failed", "pipeline_id", exec.ID, "stage", stage, "error", err)
	o.metrics.ExecutionsFailed.Inc()
	o.publish(ctx, exec, domain.EventFailed)
	return exec.Payload(), cause
}

// publish delivers a lifecycle event, best-effort. The event survives
// cancellation of the triggering request.
func (o *Orchestrator) publish(ctx context.Context, exec domain.Execution, typ domain.EventType) {
	if o.events == nil {
		return
	}
	ev := domain.Event{
		Type:       typ,
		PipelineID: exec.ID,
		CountyID:   exec.CountyID,
		Status:     exec.Status,
		Stage:      exec.Stage,
		Error:      exec.Error,
		OccurredAt: domain.Now(),
	}
	if err := o.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		o.logger.Warn("publish pipeline event failed", "pipeline_id", exec.ID, "event", typ, "error", err)
		o.metrics.EventPublishErrors.Inc()
	}
}

// stageProgress returns the progress values reported on entering and
// leaving a stage. They sit strictly inside the stage's published bounds
// so pollers can tell "about to start" from "about to finish".
func stageProgress(stage domain.Stage) (enter, exit int) {
	switch stage {
	case domain.StageValidating:
		return 5, 10
	case domain.StageGeneratingNarratives:
		return 15, 40
	case domain.StageAwaitingMaps:
		return 45, 50
	case domain.StageGeneratingPDF:
		return 55, 80
	case domain.StageStoringArtifacts:
		return 85, 95
	}
	return 0, 0
}
