package domain

import "time"

// Execution is one report-generation request and its mutable state. It is
// created by the orchestrator, mutated only by the orchestrator while the
// pipeline runs, and handed out to callers as value copies (Clone).
type Execution struct {
	ID          string
	CountyID    string
	PeriodStart string
	PeriodEnd   string
	RawInput    RawReport

	Status   Status
	Stage    Stage
	Progress int

	StartedAt   time.Time
	CompletedAt time.Time
	Error       string

	// Artifact references, populated as stages complete.
	WeatherReportID  *int64
	CompleteReportID *int64
	PDFReportID      *int64

	StagesCompleted []string
}

// NewExecution returns a pending execution positioned at the first stage.
func NewExecution(id, countyID, periodStart, periodEnd string, raw RawReport) Execution {
	return Execution{
		ID:          id,
		CountyID:    countyID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		RawInput:    raw,
		Status:      StatusPending,
		Stage:       StageValidating,
	}
}

// Start transitions pending → running and stamps StartedAt.
func (e *Execution) Start() {
	e.Status = StatusRunning
	e.StartedAt = Now()
	e.Progress = 0
}

// Advance moves the execution to a stage at the given progress value.
// Entering a new stage appends the previous stage to StagesCompleted;
// progress never decreases. Terminal executions are left untouched.
func (e *Execution) Advance(stage Stage, progress int) {
	if e.Status.Terminal() {
		return
	}
	if stage != e.Stage {
		e.StagesCompleted = append(e.StagesCompleted, string(e.Stage))
		e.Stage = stage
	}
	if progress > e.Progress {
		e.Progress = progress
	}
}

// Complete marks the terminal success state. The final stage is recorded
// as completed and progress pinned to 100.
func (e *Execution) Complete() {
	if e.Status.Terminal() {
		return
	}
	e.StagesCompleted = append(e.StagesCompleted, string(e.Stage))
	e.Status = StatusCompleted
	e.Stage = StageCompleted
	e.Progress = 100
	e.CompletedAt = Now()
}

// Fail marks the terminal failure state with a human-readable cause.
func (e *Execution) Fail(cause string) {
	if e.Status.Terminal() {
		return
	}
	e.Status = StatusFailed
	e.Stage = StageFailed
	e.Error = cause
	e.CompletedAt = Now()
}

// MarkCancelled marks the terminal cancelled state. The stage is left
// where the execution was when cancellation was observed.
func (e *Execution) MarkCancelled() {
	if e.Status.Terminal() {
		return
	}
	e.Status = StatusCancelled
	e.CompletedAt = Now()
}

// Clone returns a copy safe to hand outside the orchestrator's lock.
// RawInput is shared; it is immutable once the execution starts.
func (e *Execution) Clone() Execution {
	c := *e
	c.StagesCompleted = append([]string(nil), e.StagesCompleted...)
	c.WeatherReportID = cloneID(e.WeatherReportID)
	c.CompleteReportID = cloneID(e.CompleteReportID)
	c.PDFReportID = cloneID(e.PDFReportID)
	return c
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// ArtifactRefs identifies the outputs produced by a pipeline execution.
type ArtifactRefs struct {
	WeatherReportID  *int64 `json:"weather_report_id"`
	CompleteReportID *int64 `json:"complete_report_id"`
	PDFReportID      *int64 `json:"pdf_report_id"`
}

// StatusPayload is the wire form returned by status polling.
type StatusPayload struct {
	PipelineID      string       `json:"pipeline_id"`
	CountyID        string       `json:"county_id"`
	PeriodStart     string       `json:"period_start"`
	PeriodEnd       string       `json:"period_end"`
	Status          Status       `json:"status"`
	CurrentStage    Stage        `json:"current_stage"`
	Progress        int          `json:"progress"`
	StartedAt       *time.Time   `json:"started_at"`
	CompletedAt     *time.Time   `json:"completed_at"`
	Error           *string      `json:"error"`
	Artifacts       ArtifactRefs `json:"artifacts"`
	StagesCompleted []string     `json:"stages_completed"`
}

// Payload converts the execution to its status-polling wire form.
func (e *Execution) Payload() StatusPayload {
	p := StatusPayload{
		PipelineID:   e.ID,
		CountyID:     e.CountyID,
		PeriodStart:  e.PeriodStart,
		PeriodEnd:    e.PeriodEnd,
		Status:       e.Status,
		CurrentStage: e.Stage,
		Progress:     e.Progress,
		Artifacts: ArtifactRefs{
			WeatherReportID:  cloneID(e.WeatherReportID),
			CompleteReportID: cloneID(e.CompleteReportID),
			PDFReportID:      cloneID(e.PDFReportID),
		},
		StagesCompleted: append([]string{}, e.StagesCompleted...),
	}
	if !e.StartedAt.IsZero() {
		t := e.StartedAt
		p.StartedAt = &t
	}
	if !e.CompletedAt.IsZero() {
		t := e.CompletedAt
		p.CompletedAt = &t
	}
	if e.Error != "" {
		msg := e.Error
		p.Error = &msg
	}
	return p
}
