package renderer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/clima-scope/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRequest() domain.RenderRequest {
	return domain.RenderRequest{
		CountyID:        "31",
		CountyName:      "Laikipia",
		PeriodStart:     "2026-01-27",
		PeriodEnd:       "2026-02-02",
		WeatherReportID: 7,
		Narratives: domain.NarrativeSet{
			Overview: "A wet week across the county.",
			Sections: map[string]string{
				"rainfall":    "Heavy rain on Tuesday.",
				"temperature": "Cool nights.",
			},
		},
		MapsAvailable: map[string]bool{"rainfall": true, "temperature": false, "wind": false},
		MapPaths:      map[string]string{"rainfall": "/maps/31_rainfall.png"},
	}
}

func TestClient_Render(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/render", r.URL.Path)

		var req domain.RenderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Laikipia", req.CountyName)
		assert.True(t, req.MapsAvailable["rainfall"])

		_ = json.NewEncoder(w).Encode(domain.RenderResult{
			FilePath:  "/reports/31_weekly.pdf",
			SizeBytes: 4096,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger())
	result, err := c.Render(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "/reports/31_weekly.pdf", result.FilePath)
	assert.Equal(t, int64(4096), result.SizeBytes)
}

func TestClient_Render_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "out of disk", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger())
	_, err := c.Render(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestClient_Render_EmptyFilePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.RenderResult{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger())
	_, err := c.Render(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no file path")
}

func TestLocal_Render(t *testing.T) {
	l, err := NewLocal(t.TempDir(), testLogger())
	require.NoError(t, err)

	result, err := l.Render(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.FileExists(t, result.FilePath)

	content, err := os.ReadFile(result.FilePath)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), result.SizeBytes)

	text := string(content)
	assert.Contains(t, text, "Laikipia")
	assert.Contains(t, text, "A wet week across the county.")
	assert.Contains(t, text, "Heavy rain on Tuesday.")
	assert.Contains(t, text, "/maps/31_rainfall.png")
	assert.Contains(t, text, "wind: map not available for this period")
}
