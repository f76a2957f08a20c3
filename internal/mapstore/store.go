package mapstore

import (
	"context"
	"io"
)

// Filter narrows a List scan. Zero values mean "no filter". A fully
// specified (CountyID, Year, Week) filter scans a single directory;
// CountyID alone scans that county's subtree; otherwise the whole store
// is scanned.
type Filter struct {
	CountyID string
	Variable Variable
	Year     int
	Week     int
}

// Store is keyed, idempotent storage for map images plus sidecar metadata.
//
// Store semantics: when the key already exists and overwrite is false the
// call leaves storage untouched and returns the existing sidecar metadata
// (ErrMetadataMissing if the sidecar is gone). When overwrite is true, or
// nothing exists yet, the binary is written followed by the sidecar; a
// sidecar write failure is tolerated and the call still succeeds. This
// asymmetry is deliberate: the binary is authoritative, the metadata is
// best-effort.
type Store interface {
	Store(ctx context.Context, src io.Reader, key Key, extra map[string]any, overwrite bool) (Metadata, error)

	// Get returns nil with no error when no binary exists for the key.
	// A binary without a sidecar yields tuple-derived default metadata.
	Get(ctx context.Context, key Key) (*Metadata, error)

	// List returns stored maps matching the filter, most recently
	// generated first. Entries with unreadable sidecars are skipped.
	List(ctx context.Context, filter Filter) ([]Metadata, error)

	// Delete removes the binary and its sidecar. It returns false with
	// no error when the binary did not exist; a sidecar removal failure
	// after the binary is gone is logged, not surfaced.
	Delete(ctx context.Context, key Key) (bool, error)
}

// Bundle fetches the rainfall, temperature and wind maps for one report
// period in one call. Absent variables map to nil, never an error: the
// pipeline treats missing maps as a fact to pass forward.
func Bundle(ctx context.Context, s Store, countyID, periodStart, periodEnd string) (map[Variable]*Metadata, error) {
	out := make(map[Variable]*Metadata, len(Variables))
	for _, v := range Variables {
		meta, err := s.Get(ctx, Key{
			CountyID:    countyID,
			Variable:    v,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Format:      FormatPNG,
		})
		if err != nil {
			return nil, err
		}
		out[v] = meta
	}
	return out, nil
}
