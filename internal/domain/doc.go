// Package domain models the weekly county weather report pipeline.
//
// # Report flow
//
// The geospatial processing service aggregates GFS model output into one
// CountyWeatherReport JSON document per county per ISO week and submits it
// to this service. Each submission becomes an [Execution] that is driven
// through five ordered stages:
//
//	validating → generating_narratives → awaiting_maps →
//	generating_pdf → storing_artifacts
//
// Stage boundaries carry fixed progress percentage ranges (see
// [Stage.ProgressBounds]) that the frontend uses for progress estimation,
// so the bounds are part of the contract even though intermediate values
// within a stage are not.
//
// # Counties and periods
//
// Counties are identified by their KNBS 2-digit code ("47" = Nairobi).
// Reporting periods are Monday–Sunday weeks given as ISO dates
// (YYYY-MM-DD). Map images for a period are addressed by the
// (county, variable, period_start, period_end, format) tuple; see the
// mapstore package.
//
// # Terminal states
//
// completed, failed and cancelled are terminal: once entered, no further
// transition may change status, stage or progress. Cancellation is
// cooperative: it never interrupts an in-flight collaborator call; the
// next stage boundary observes it and stops.
package domain
