package mapstore

import (
	"encoding/json"
	"time"

	"github.com/couchcryptid/clima-scope/internal/domain"
)

// Default descriptive values applied when the producer supplies none.
const (
	defaultResolutionDPI = 300
	defaultWidthPx       = 1200
	defaultHeightPx      = 900
)

// Metadata describes one stored map image. It round-trips through the JSON
// sidecar; caller-supplied keys beyond the known fields survive in Extra.
type Metadata struct {
	CountyID      string             `json:"county_id"`
	Variable      Variable           `json:"variable"`
	PeriodStart   string             `json:"period_start"`
	PeriodEnd     string             `json:"period_end"`
	FilePath      string             `json:"file_path"`
	Format        Format             `json:"format"`
	ResolutionDPI int                `json:"resolution_dpi"`
	WidthPx       int                `json:"width_px"`
	HeightPx      int                `json:"height_px"`
	GeneratedAt   time.Time          `json:"generated_at"`
	Bounds        map[string]float64 `json:"bounds"`
	QualityFlags  []string           `json:"quality_flags"`

	// Extra holds caller-supplied sidecar keys that are not part of the
	// fixed schema. They are written back verbatim.
	Extra map[string]any `json:"-"`
}

// metadataAlias avoids MarshalJSON/UnmarshalJSON recursion.
type metadataAlias Metadata

// identitySidecarKeys come from the storage key, never from caller extras.
var identitySidecarKeys = map[string]struct{}{
	"county_id": {}, "variable": {}, "period_start": {}, "period_end": {},
	"file_path": {}, "format": {},
}

var knownSidecarKeys = map[string]struct{}{
	"county_id": {}, "variable": {}, "period_start": {}, "period_end": {},
	"file_path": {}, "format": {}, "resolution_dpi": {}, "width_px": {},
	"height_px": {}, "generated_at": {}, "bounds": {}, "quality_flags": {},
}

// MarshalJSON emits the fixed fields plus Extra keys merged in verbatim.
// A fixed field always wins over an Extra key of the same name.
func (m Metadata) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(metadataAlias(m))
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return base, nil
	}
	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, known := knownSidecarKeys[k]; known {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON fills the fixed fields and collects unknown keys into Extra.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var alias metadataAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata(alias)
	for k, v := range raw {
		if _, known := knownSidecarKeys[k]; known {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		var value any
		if err := json.Unmarshal(v, &value); err != nil {
			return err
		}
		m.Extra[k] = value
	}
	return nil
}

// defaultMetadata builds metadata purely from the identity tuple, used when
// a binary exists without a sidecar.
func defaultMetadata(k Key, filePath string) Metadata {
	return Metadata{
		CountyID:      k.CountyID,
		Variable:      k.Variable,
		PeriodStart:   k.PeriodStart,
		PeriodEnd:     k.PeriodEnd,
		FilePath:      filePath,
		Format:        k.Format,
		ResolutionDPI: defaultResolutionDPI,
		WidthPx:       defaultWidthPx,
		HeightPx:      defaultHeightPx,
		GeneratedAt:   domain.Now(),
		Bounds:        map[string]float64{},
		QualityFlags:  []string{},
	}
}

// buildMetadata builds sidecar metadata for a fresh Store call. Keys in
// extra that name fixed fields (resolution_dpi, width_px, ...) override the
// defaults; everything else lands in Extra. Metadata is best-effort: an
// override that does not fit its field's type is dropped rather than
// failing the store call, keeping the unknown-key extras.
func buildMetadata(k Key, filePath string, extra map[string]any) Metadata {
	m := defaultMetadata(k, filePath)
	if len(extra) == 0 {
		return m
	}
	if merged, ok := mergeExtras(m, extra); ok {
		return merged
	}
	for key, v := range extra {
		if _, known := knownSidecarKeys[key]; known {
			continue
		}
		if m.Extra == nil {
			m.Extra = make(map[string]any)
		}
		m.Extra[key] = v
	}
	return m
}

func mergeExtras(m Metadata, extra map[string]any) (Metadata, bool) {
	base, err := json.Marshal(m)
	if err != nil {
		return Metadata{}, false
	}
	var merged map[string]any
	if err := json.Unmarshal(base, &merged); err != nil {
		return Metadata{}, false
	}
	for key, v := range extra {
		if _, identity := identitySidecarKeys[key]; identity {
			continue
		}
		merged[key] = v
	}
	buf, err := json.Marshal(merged)
	if err != nil {
		return Metadata{}, false
	}
	var out Metadata
	if err := json.Unmarshal(buf, &out); err != nil {
		return Metadata{}, false
	}
	return out, true
}
