package domain

import (
	"context"
	"time"
)

// NarrativeSet is the prose produced for one report: an overview paragraph
// plus one section per weather variable.
type NarrativeSet struct {
	Overview string            `json:"overview"`
	Sections map[string]string `json:"sections"`
}

// NarrativeGenerator synthesizes narrative text from a raw report.
type NarrativeGenerator interface {
	Generate(ctx context.Context, report RawReport) (NarrativeSet, error)
}

// RenderRequest carries everything the document renderer needs. The map
// availability set is passed through exactly as the awaiting_maps stage
// recorded it; the renderer substitutes textual fallbacks for absent maps.
type RenderRequest struct {
	CountyID        string            `json:"county_id"`
	CountyName      string            `json:"county_name"`
	PeriodStart     string            `json:"period_start"`
	PeriodEnd       string            `json:"period_end"`
	WeatherReportID int64             `json:"weather_report_id"`
	Narratives      NarrativeSet      `json:"narratives"`
	MapsAvailable   map[string]bool   `json:"maps_available"`
	MapPaths        map[string]string `json:"map_paths"`
}

// RenderResult describes the rendered document.
type RenderResult struct {
	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`
}

// DocumentRenderer produces the finished report document.
type DocumentRenderer interface {
	Render(ctx context.Context, req RenderRequest) (RenderResult, error)
}

// County is a KNBS administrative unit.
type County struct {
	ID     string
	Name   string
	Region string
}

// CountyStore provides county reference data. GetCounty returns (nil, nil)
// for an unknown id; errors are reserved for store failures.
type CountyStore interface {
	GetCounty(ctx context.Context, id string) (*County, error)
}

// WeatherReportRecord is the persisted raw/narrative report produced by the
// generating_narratives stage.
type WeatherReportRecord struct {
	ID          int64
	CountyID    string
	PeriodStart string
	PeriodEnd   string
	Year        int
	WeekNumber  int
	RawData     []byte
	Narrative   []byte
	Status      string
	CreatedAt   time.Time
}

// PDFReportRecord is the persisted rendered-document reference produced by
// the generating_pdf stage.
type PDFReportRecord struct {
	ID              int64
	WeatherReportID int64
	CountyID        string
	FilePath        string
	MapsAvailable   map[string]bool
	FileSizeBytes   int64
	CreatedAt       time.Time
}

// CompleteReportRecord ties the weather report and rendered document
// together once the storing_artifacts stage finishes.
type CompleteReportRecord struct {
	ID              int64
	WeatherReportID int64
	PDFReportID     int64
	CountyID        string
	CreatedAt       time.Time
}

// ReportStore persists pipeline artifacts.
type ReportStore interface {
	CreateWeatherReport(ctx context.Context, rec *WeatherReportRecord) (int64, error)
	CreatePDFReport(ctx context.Context, rec *PDFReportRecord) (int64, error)
	CreateCompleteReport(ctx context.Context, rec *CompleteReportRecord) (int64, error)
	MarkWeatherReportProcessed(ctx context.Context, id int64) error
}

// EventType classifies a pipeline lifecycle event.
type EventType string

const (
	EventCreated   EventType = "created"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Event is a pipeline lifecycle notification for downstream consumers.
type Event struct {
	Type       EventType `json:"event"`
	PipelineID string    `json:"pipeline_id"`
	CountyID   string    `json:"county_id"`
	Status     Status    `json:"status"`
	Stage      Stage     `json:"stage"`
	Error      string    `json:"error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers lifecycle events. Publishing is best-effort from
// the orchestrator's point of view; failures are logged, never fatal.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
