package mapstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/clima-scope/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Filesystem {
	t.Helper()
	s, err := NewFilesystem(t.TempDir(), discardLogger())
	require.NoError(t, err)
	return s
}

func testKey() Key {
	return Key{
		CountyID:    "31",
		Variable:    VariableRainfall,
		PeriodStart: "2026-01-27",
		PeriodEnd:   "2026-02-02",
		Format:      FormatPNG,
	}
}

func TestFilesystem_StoreAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Store(ctx, bytes.NewReader([]byte("png-bytes")), testKey(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "31", meta.CountyID)
	assert.Equal(t, VariableRainfall, meta.Variable)
	assert.Equal(t, defaultResolutionDPI, meta.ResolutionDPI)
	assert.FileExists(t, meta.FilePath)
	assert.FileExists(t, SidecarPath(meta.FilePath))

	got, err := s.Get(ctx, testKey())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, meta.FilePath, got.FilePath)
}

func TestFilesystem_StoreIsIdempotentWithoutOverwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Store(ctx, bytes.NewReader([]byte("original")), testKey(),
		map[string]any{"resolution_dpi": 600}, false)
	require.NoError(t, err)

	second, err := s.Store(ctx, bytes.NewReader([]byte("different")), testKey(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, first.ResolutionDPI, second.ResolutionDPI)
	assert.Equal(t, first.GeneratedAt.Unix(), second.GeneratedAt.Unix())

	// The stored binary must be byte-for-byte unchanged.
	data, err := os.ReadFile(first.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data)
}

func TestFilesystem_OverwriteReplacesBinaryAndSidecar(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Store(ctx, bytes.NewReader([]byte("aaaa")), testKey(),
		map[string]any{"width_px": 800}, false)
	require.NoError(t, err)

	replaced, err := s.Store(ctx, bytes.NewReader([]byte("bbbb")), testKey(),
		map[string]any{"width_px": 1600}, true)
	require.NoError(t, err)
	assert.Equal(t, 1600, replaced.WidthPx)

	data, err := os.ReadFile(replaced.FilePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("bbbb"), data)

	got, err := s.Get(ctx, testKey())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1600, got.WidthPx)
}

func TestFilesystem_StoreRejectsEmptySource(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Store(context.Background(), bytes.NewReader(nil), testKey(), nil, false)
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestFilesystem_StoreRejectsInvalidPeriod(t *testing.T) {
	s := newTestStore(t)
	key := testKey()
	key.PeriodStart = "not-a-date"
	_, err := s.Store(context.Background(), bytes.NewReader([]byte("x")), key, nil, false)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestFilesystem_StoreBinaryWithoutSidecarIsMetadataMissing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Store(ctx, bytes.NewReader([]byte("x")), testKey(), nil, false)
	require.NoError(t, err)
	require.NoError(t, os.Remove(SidecarPath(meta.FilePath)))

	_, err = s.Store(ctx, bytes.NewReader([]byte("y")), testKey(), nil, false)
	assert.ErrorIs(t, err, ErrMetadataMissing)
}

func TestFilesystem_StoreToleratesMistypedExtraField(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// bounds is a typed field; string coordinates cannot fill it.
	meta, err := s.Store(ctx, bytes.NewReader([]byte("png-bytes")), testKey(), map[string]any{
		"bounds":       map[string]any{"north": "1.29"},
		"source_model": "GFS v16",
	}, false)
	require.NoError(t, err, "a bad metadata override must not fail the store call")
	assert.Empty(t, meta.Bounds, "the unusable override is dropped")
	assert.Equal(t, "GFS v16", meta.Extra["source_model"])
	assert.FileExists(t, SidecarPath(meta.FilePath))

	// The key stays usable: a retry sees the stored entry, not corruption.
	again, err := s.Store(ctx, bytes.NewReader([]byte("other")), testKey(), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "GFS v16", again.Extra["source_model"])
}

func TestFilesystem_StoreSurfacesStatFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A regular file where the county directory should be makes the
	// existence check fail with something other than not-exist.
	require.NoError(t, os.WriteFile(filepath.Join(s.base, "31"), []byte("in the way"), 0o644))

	_, err := s.Store(ctx, bytes.NewReader([]byte("x")), testKey(), nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stat map file")
}

func TestFilesystem_SidecarWriteFailureIsNonFatal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Occupy the sidecar path with a directory so the metadata write fails.
	rel, err := testKey().RelPath()
	require.NoError(t, err)
	dest := filepath.Join(s.base, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(SidecarPath(dest), 0o755))

	meta, err := s.Store(ctx, bytes.NewReader([]byte("binary")), testKey(), nil, false)
	require.NoError(t, err, "binary write succeeded, sidecar failure must be tolerated")
	assert.FileExists(t, meta.FilePath)
}

func TestFilesystem_GetAbsenceIsNotError(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get(context.Background(), testKey())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFilesystem_GetWithoutSidecarReturnsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Store(ctx, bytes.NewReader([]byte("x")), testKey(), nil, false)
	require.NoError(t, err)
	require.NoError(t, os.Remove(SidecarPath(meta.FilePath)))

	got, err := s.Get(ctx, testKey())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "31", got.CountyID)
	assert.Equal(t, defaultWidthPx, got.WidthPx)
	assert.Equal(t, []string{}, got.QualityFlags)
}

func TestFilesystem_DeleteAbsenceIsNotError(t *testing.T) {
	s := newTestStore(t)
	deleted, err := s.Delete(context.Background(), testKey())
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestFilesystem_DeleteRemovesBinaryAndSidecar(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Store(ctx, bytes.NewReader([]byte("x")), testKey(), nil, false)
	require.NoError(t, err)

	deleted, err := s.Delete(ctx, testKey())
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoFileExists(t, meta.FilePath)
	assert.NoFileExists(t, SidecarPath(meta.FilePath))

	got, err := s.Get(ctx, testKey())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFilesystem_ListFiltersAndOrdering(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2026, time.January, 28, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	s := newTestStore(t)
	ctx := context.Background()

	store := func(county string, v Variable, start, end string) {
		t.Helper()
		_, err := s.Store(ctx, bytes.NewReader([]byte("img")), Key{
			CountyID: county, Variable: v, PeriodStart: start, PeriodEnd: end, Format: FormatPNG,
		}, nil, false)
		require.NoError(t, err)
		fake.Advance(time.Minute)
	}

	store("31", VariableRainfall, "2026-01-27", "2026-02-02")
	store("31", VariableTemperature, "2026-01-27", "2026-02-02")
	store("31", VariableWind, "2026-01-20", "2026-01-26") // week 4
	store("47", VariableRainfall, "2026-01-27", "2026-02-02")

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i-1].GeneratedAt.Before(all[i].GeneratedAt), "must be sorted newest first")
	}

	county, err := s.List(ctx, Filter{CountyID: "31"})
	require.NoError(t, err)
	assert.Len(t, county, 3)

	week, err := s.List(ctx, Filter{CountyID: "31", Year: 2026, Week: 5})
	require.NoError(t, err)
	assert.Len(t, week, 2)

	rain, err := s.List(ctx, Filter{Variable: VariableRainfall})
	require.NoError(t, err)
	assert.Len(t, rain, 2)
}

func TestFilesystem_ListSkipsUnreadableSidecars(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	meta, err := s.Store(ctx, bytes.NewReader([]byte("x")), testKey(), nil, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(SidecarPath(meta.FilePath), []byte("{broken"), 0o644))

	got, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBundle_CollectsAllThreeVariables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, v := range []Variable{VariableRainfall, VariableWind} {
		_, err := s.Store(ctx, bytes.NewReader([]byte("img")), Key{
			CountyID: "31", Variable: v,
			PeriodStart: "2026-01-27", PeriodEnd: "2026-02-02", Format: FormatPNG,
		}, nil, false)
		require.NoError(t, err)
	}

	bundle, err := Bundle(ctx, s, "31", "2026-01-27", "2026-02-02")
	require.NoError(t, err)
	require.Len(t, bundle, 3)
	assert.NotNil(t, bundle[VariableRainfall])
	assert.NotNil(t, bundle[VariableWind])
	assert.Nil(t, bundle[VariableTemperature], "absent variable must be nil, not an error")
}

func TestMetadata_ExtraKeysRoundTrip(t *testing.T) {
	meta := buildMetadata(testKey(), "/maps/x.png", map[string]any{
		"resolution_dpi": 600,
		"source_model":   "GFS v16",
		"county_id":      "99", // identity keys must not be overridable
	})
	assert.Equal(t, 600, meta.ResolutionDPI)
	assert.Equal(t, "31", meta.CountyID)
	assert.Equal(t, "GFS v16", meta.Extra["source_model"])

	buf, err := json.Marshal(meta)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf, &decoded))
	assert.Equal(t, "GFS v16", decoded["source_model"])
	assert.Equal(t, float64(600), decoded["resolution_dpi"])

	var roundtrip Metadata
	require.NoError(t, json.Unmarshal(buf, &roundtrip))
	assert.Equal(t, meta.Extra["source_model"], roundtrip.Extra["source_model"])
	assert.Equal(t, meta.CountyID, roundtrip.CountyID)
}
