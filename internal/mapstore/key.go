// Package mapstore stores and retrieves weather map images produced by the
// geospatial processing pipeline, keyed by the identity tuple
// (county, variable, period_start, period_end, format) rather than a
// content hash. Each image carries a JSON sidecar with descriptive
// metadata; the sidecar is best-effort while the binary is authoritative.
//
// On-disk layout (relied upon by report assembly, do not change):
//
//	{county_id}/{year}/{week:02d}/{county_id}_{variable}_{period_start}_{period_end}.{format}
//	{same path with the image extension replaced by .meta.json}
//
// Absence is an expected, common case throughout: maps legitimately may
// not exist yet when a report is generated, so every read path reports
// "not found" as nil or false, never as an error.
package mapstore

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// Variable is a weather variable that can be mapped.
type Variable string

const (
	VariableRainfall    Variable = "rainfall"
	VariableTemperature Variable = "temperature"
	VariableWind        Variable = "wind"
)

// Variables lists every mappable variable, in report section order.
var Variables = []Variable{VariableRainfall, VariableTemperature, VariableWind}

// Valid reports whether v is a known variable.
func (v Variable) Valid() bool {
	switch v {
	case VariableRainfall, VariableTemperature, VariableWind:
		return true
	}
	return false
}

// Format is a supported map image format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatSVG  Format = "svg"
	FormatJPEG Format = "jpeg"
)

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	switch f {
	case FormatPNG, FormatSVG, FormatJPEG:
		return true
	}
	return false
}

var (
	// ErrInvalidPeriod is returned when period_start does not parse as an
	// ISO date and the storage key cannot be derived.
	ErrInvalidPeriod = errors.New("invalid period start date")

	// ErrMetadataMissing is returned by Store when the binary already
	// exists but its sidecar does not: the store is corrupt, which is
	// different from ordinary absence.
	ErrMetadataMissing = errors.New("map exists but metadata sidecar is missing")

	// ErrEmptySource is returned by Store for an empty image.
	ErrEmptySource = errors.New("empty map image")
)

const dateLayout = "2006-01-02"

// Key is the identity tuple addressing one stored map. It plays the role a
// content hash would in a hash-addressed store.
type Key struct {
	CountyID    string
	Variable    Variable
	PeriodStart string
	PeriodEnd   string
	Format      Format
}

// RelPath derives the slash-separated storage location for the key.
// The directory is {county}/{calendar year}/{zero-padded ISO week}; the
// week number comes from ISO-8601 week numbering of period_start.
func (k Key) RelPath() (string, error) {
	date, err := time.Parse(dateLayout, k.PeriodStart)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, k.PeriodStart)
	}
	_, week := date.ISOWeek()
	name := fmt.Sprintf("%s_%s_%s_%s.%s", k.CountyID, k.Variable, k.PeriodStart, k.PeriodEnd, k.Format)
	return path.Join(k.CountyID, strconv.Itoa(date.Year()), fmt.Sprintf("%02d", week), name), nil
}

// SidecarPath returns the sidecar location for an image path: the image
// extension is replaced by .meta.json.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, path.Ext(imagePath)) + ".meta.json"
}

const sidecarSuffix = ".meta.json"
