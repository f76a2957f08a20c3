package domain

import (
	"errors"
	"fmt"
)

// ErrValidation marks a submission rejected by the validating stage:
// a malformed payload or an unknown county. Never retried.
var ErrValidation = errors.New("validation failed")

// requiredReportKeys are the top-level keys every CountyWeatherReport
// document must carry. Anything beyond these passes through untouched.
var requiredReportKeys = []string{
	"county_id",
	"county_name",
	"period",
	"variables",
	"metadata",
}

// RawReport is the caller-supplied weekly measurement payload. It is kept
// as a generic document because the schema is owned by the geospatial
// producer; this service validates structure, not values.
type RawReport map[string]any

// Validate checks that all required top-level keys are present. It reports
// the first missing key so the caller sees exactly what to fix.
func (r RawReport) Validate() error {
	for _, key := range requiredReportKeys {
		if _, ok := r[key]; !ok {
			return fmt.Errorf("%w: missing required field: %s", ErrValidation, key)
		}
	}
	return nil
}

// CountyName returns the county_name field, or "" when absent or not a string.
func (r RawReport) CountyName() string {
	name, _ := r["county_name"].(string)
	return name
}

// Variables returns the per-variable measurement block, or nil when absent.
func (r RawReport) Variables() map[string]any {
	vars, _ := r["variables"].(map[string]any)
	return vars
}

// Period returns the start and end dates from the period block.
func (r RawReport) Period() (start, end string) {
	period, _ := r["period"].(map[string]any)
	start, _ = period["start"].(string)
	end, _ = period["end"].(string)
	return start, end
}
