package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/clima-scope/internal/mapstore"
)

// mapKeyFromForm builds the storage key from request values, applying the
// png default format.
func mapKeyFromForm(get func(string) string) (mapstore.Key, string) {
	key := mapstore.Key{
		CountyID:    get("county_id"),
		Variable:    mapstore.Variable(get("variable")),
		PeriodStart: get("period_start"),
		PeriodEnd:   get("period_end"),
		Format:      mapstore.Format(get("format")),
	}
	if key.Format == "" {
		key.Format = mapstore.FormatPNG
	}

	if !countyIDPattern.MatchString(key.CountyID) {
		return key, "county_id must be a two-digit code"
	}
	if !key.Variable.Valid() {
		return key, "variable must be one of rainfall, temperature, wind"
	}
	if !key.Format.Valid() {
		return key, "format must be one of png, svg, jpeg"
	}
	for _, date := range []string{key.PeriodStart, key.PeriodEnd} {
		if _, err := time.Parse(dateLayout, date); err != nil {
			return key, "period dates must be ISO dates (YYYY-MM-DD)"
		}
	}
	return key, ""
}

// handleUploadMap stores a map image delivered by the geospatial producer.
func (s *Server) handleUploadMap(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.metrics.MapOperations.WithLabelValues("store", "error").Inc()
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	key, problem := mapKeyFromForm(r.FormValue)
	if problem != "" {
		s.metrics.MapOperations.WithLabelValues("store", "error").Inc()
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	var extra map[string]any
	if raw := r.FormValue("metadata"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &extra); err != nil {
			s.metrics.MapOperations.WithLabelValues("store", "error").Inc()
			writeError(w, http.StatusBadRequest, "metadata must be a JSON object")
			return
		}
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.metrics.MapOperations.WithLabelValues("store", "error").Inc()
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	overwrite := r.FormValue("overwrite") == "true"

	meta, err := s.maps.Store(r.Context(), file, key, extra, overwrite)
	if err != nil {
		s.metrics.MapOperations.WithLabelValues("store", "error").Inc()
		switch {
		case errors.Is(err, mapstore.ErrInvalidPeriod), errors.Is(err, mapstore.ErrEmptySource):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, mapstore.ErrMetadataMissing):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.logger.Error("map upload failed", "error", err)
			writeError(w, http.StatusInternalServerError, "map upload failed")
		}
		return
	}

	s.metrics.MapOperations.WithLabelValues("store", "success").Inc()
	writeJSON(w, http.StatusCreated, meta)
}

func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := mapstore.Filter{
		CountyID: q.Get("county_id"),
		Variable: mapstore.Variable(q.Get("variable")),
	}
	if filter.CountyID != "" && !countyIDPattern.MatchString(filter.CountyID) {
		writeError(w, http.StatusBadRequest, "county_id must be a two-digit code")
		return
	}
	if filter.Variable != "" && !filter.Variable.Valid() {
		writeError(w, http.StatusBadRequest, "variable must be one of rainfall, temperature, wind")
		return
	}
	for param, dst := range map[string]*int{"year": &filter.Year, "week": &filter.Week} {
		if v := q.Get(param); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, param+" must be a non-negative integer")
				return
			}
			*dst = n
		}
	}

	maps, err := s.maps.List(r.Context(), filter)
	if err != nil {
		s.metrics.MapOperations.WithLabelValues("list", "error").Inc()
		s.logger.Error("map list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "map list failed")
		return
	}

	s.metrics.MapOperations.WithLabelValues("list", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"maps":  maps,
		"count": len(maps),
	})
}

// handleMapBundle reports, per variable, whether the period's map exists.
func (s *Server) handleMapBundle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	countyID := q.Get("county_id")
	periodStart := q.Get("period_start")
	periodEnd := q.Get("period_end")

	if !countyIDPattern.MatchString(countyID) {
		writeError(w, http.StatusBadRequest, "county_id must be a two-digit code")
		return
	}
	for _, date := range []string{periodStart, periodEnd} {
		if _, err := time.Parse(dateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "period dates must be ISO dates (YYYY-MM-DD)")
			return
		}
	}

	bundle, err := mapstore.Bundle(r.Context(), s.maps, countyID, periodStart, periodEnd)
	if err != nil {
		s.metrics.MapOperations.WithLabelValues("get", "error").Inc()
		s.logger.Error("map bundle failed", "error", err)
		writeError(w, http.StatusInternalServerError, "map bundle failed")
		return
	}

	s.metrics.MapOperations.WithLabelValues("get", "success").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"county_id":    countyID,
		"period_start": periodStart,
		"period_end":   periodEnd,
		"maps":         bundle,
	})
}

func (s *Server) handleDeleteMap(w http.ResponseWriter, r *http.Request) {
	key, problem := mapKeyFromForm(r.URL.Query().Get)
	if problem != "" {
		writeError(w, http.StatusBadRequest, problem)
		return
	}

	deleted, err := s.maps.Delete(r.Context(), key)
	if err != nil {
		s.metrics.MapOperations.WithLabelValues("delete", "error").Inc()
		s.logger.Error("map delete failed", "error", err)
		writeError(w, http.StatusInternalServerError, "map delete failed")
		return
	}

	s.metrics.MapOperations.WithLabelValues("delete", "success").Inc()
	if !deleted {
		writeError(w, http.StatusNotFound, "map not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
