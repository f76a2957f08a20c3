package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/clima-scope/internal/domain"
	"github.com/couchcryptid/clima-scope/internal/mapstore"
)

// run is scratch state threaded through the stages of one execution. It
// never leaves the executing goroutine; shared state lives on the entry.
type run struct {
	county          *domain.County
	narratives      domain.NarrativeSet
	maps            map[mapstore.Variable]*mapstore.Metadata
	render          domain.RenderResult
	weatherReportID int64
	pdfReportID     int64
}

const periodLayout = "2006-01-02"

func (o *Orchestrator) runStage(ctx context.Context, ent *entry, r *run, stage domain.Stage) error {
	ent.mu.Lock()
	exec := ent.exec.Clone()
	ent.mu.Unlock()

	switch stage {
	case domain.StageValidating:
		return o.validate(ctx, &exec, r)
	case domain.StageGeneratingNarratives:
		return o.generateNarratives(ctx, ent, &exec, r)
	case domain.StageAwaitingMaps:
		return o.collectMaps(ctx, &exec, r)
	case domain.StageGeneratingPDF:
		return o.renderDocument(ctx, ent, &exec, r)
	case domain.StageStoringArtifacts:
		return o.storeArtifacts(ctx, ent, &exec, r)
	}
	return fmt.Errorf("unknown stage %s", stage)
}

// validate checks the report structure, the period dates, and that the
// county exists. Everything it rejects wraps domain.ErrValidation.
func (o *Orchestrator) validate(ctx context.Context, exec *domain.Execution, r *run) error {
	if err := exec.RawInput.Validate(); err != nil {
		return err
	}
	if _, err := time.Parse(periodLayout, exec.PeriodStart); err != nil {
		return fmt.Errorf("%w: invalid period start %q", domain.ErrValidation, exec.PeriodStart)
	}
	if _, err := time.Parse(periodLayout, exec.PeriodEnd); err != nil {
		return fmt.Errorf("%w: invalid period end %q", domain.ErrValidation, exec.PeriodEnd)
	}

	county, err := o.counties.GetCounty(ctx, exec.CountyID)
	if err != nil {
		return fmt.Errorf("look up county: %w", err)
	}
	if county == nil {
		return fmt.Errorf("%w: unknown county %q", domain.ErrValidation, exec.CountyID)
	}
	r.county = county
	return nil
}

// generateNarratives produces the report prose and persists the weather
// report record that anchors all later artifacts.
func (o *Orchestrator) generateNarratives(ctx context.Context, ent *entry, exec *domain.Execution, r *run) error {
	narratives, err := o.narratives.Generate(ctx, exec.RawInput)
	if err != nil {
		return fmt.Errorf("generate narratives: %w", err)
	}
	r.narratives = narratives

	rawData, err := json.Marshal(exec.RawInput)
	if err != nil {
		return fmt.Errorf("encode raw report: %w", err)
	}
	narrative, err := json.Marshal(narratives)
	if err != nil {
		return fmt.Errorf("encode narratives: %w", err)
	}

	start, _ := time.Parse(periodLayout, exec.PeriodStart)
	_, week := start.ISOWeek()

	id, err := o.reports.CreateWeatherReport(ctx, &domain.WeatherReportRecord{
		CountyID:    exec.CountyID,
		PeriodStart: exec.PeriodStart,
		PeriodEnd:   exec.PeriodEnd,
		Year:        start.Year(),
		WeekNumber:  week,
		RawData:     rawData,
		Narrative:   narrative,
		Status:      "pending",
		CreatedAt:   domain.Now(),
	})
	if err != nil {
		return fmt.Errorf("store weather report: %w", err)
	}
	r.weatherReportID = id

	ent.mu.Lock()
	ent.exec.WeatherReportID = &id
	ent.mu.Unlock()

	o.logger.Info("narratives generated", "pipeline_id", exec.ID, "weather_report_id", id)
	return nil
}

// collectMaps checks which of the period's maps the geospatial producer has
// delivered. Absent maps are not an error; the renderer substitutes
// textual fallbacks.
func (o *Orchestrator) collectMaps(ctx context.Context, exec *domain.Execution, r *run) error {
	bundle, err := mapstore.Bundle(ctx, o.maps, exec.CountyID, exec.PeriodStart, exec.PeriodEnd)
	if err != nil {
		return fmt.Errorf("collect maps: %w", err)
	}
	r.maps = bundle

	available := 0
	for _, meta := range bundle {
		if meta != nil {
			available++
		}
	}
	o.logger.Info("maps collected", "pipeline_id", exec.ID,
		"available", available, "expected", len(mapstore.Variables))
	return nil
}

// renderDocument produces the finished report file and records it.
func (o *Orchestrator) renderDocument(ctx context.Context, ent *entry, exec *domain.Execution, r *run) error {
	mapsAvailable := make(map[string]bool, len(r.maps))
	mapPaths := make(map[string]string)
	for v, meta := range r.maps {
		mapsAvailable[string(v)] = meta != nil
		if meta != nil {
			mapPaths[string(v)] = meta.FilePath
		}
	}

	countyName := exec.RawInput.CountyName()
	if r.county != nil {
		countyName = r.county.Name
	}

	result, err := o.renderer.Render(ctx, domain.RenderRequest{
		CountyID:        exec.CountyID,
		CountyName:      countyName,
		PeriodStart:     exec.PeriodStart,
		PeriodEnd:       exec.PeriodEnd,
		WeatherReportID: r.weatherReportID,
		Narratives:      r.narratives,
		MapsAvailable:   mapsAvailable,
		MapPaths:        mapPaths,
	})
	if err != nil {
		return fmt.Errorf("render document: %w", err)
	}
	r.render = result

	id, err := o.reports.CreatePDFReport(ctx, &domain.PDFReportRecord{
		WeatherReportID: r.weatherReportID,
		CountyID:        exec.CountyID,
		FilePath:        result.FilePath,
		MapsAvailable:   mapsAvailable,
		FileSizeBytes:   result.SizeBytes,
		CreatedAt:       domain.Now(),
	})
	if err != nil {
		return fmt.Errorf("store pdf report: %w", err)
	}
	r.pdfReportID = id

	ent.mu.Lock()
	ent.exec.PDFReportID = &id
	ent.mu.Unlock()

	o.logger.Info("document rendered", "pipeline_id", exec.ID,
		"pdf_report_id", id, "file_path", result.FilePath, "size_bytes", result.SizeBytes)
	return nil
}

// storeArtifacts links the weather report and the rendered document into a
// complete report and marks the weather report processed.
func (o *Orchestrator) storeArtifacts(ctx context.Context, ent *entry, exec *domain.Execution, r *run) error {
	id, err := o.reports.CreateCompleteReport(ctx, &domain.CompleteReportRecord{
		WeatherReportID: r.weatherReportID,
		PDFReportID:     r.pdfReportID,
		CountyID:        exec.CountyID,
		CreatedAt:       domain.Now(),
	})
	if err != nil {
		return fmt.Errorf("store complete report: %w", err)
	}

	if err := o.reports.MarkWeatherReportProcessed(ctx, r.weatherReportID); err != nil {
		return fmt.Errorf("mark weather report processed: %w", err)
	}

	ent.mu.Lock()
	ent.exec.CompleteReportID = &id
	ent.mu.Unlock()

	o.logger.Info("artifacts stored", "pipeline_id", exec.ID, "complete_report_id", id)
	return nil
}
