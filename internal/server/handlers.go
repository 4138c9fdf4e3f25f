package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/skydash/skydash/internal/dataset"
	"github.com/skydash/skydash/internal/geo"
	"github.com/skydash/skydash/internal/stats"
)

// HandleIndex serves the assembled dashboard page.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && strings.Contains(r.URL.Path, ".") {
		http.NotFound(w, r)
		return
	}

	etag := fmt.Sprintf(`"%x"`, len(s.IndexHTML))

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// uploadResponse describes a successfully parsed dataset to the client.
type uploadResponse struct {
	ID           string   `json:"id"`
	Rows         int      `json:"rows"`
	Columns      int      `json:"columns"`
	Cities       []string `json:"cities"`
	HeightColumn string   `json:"height_column"`
	MaxHeight    float64  `json:"max_height"`
	Warnings     []string `json:"warnings"`
}

// HandleUpload parses an uploaded spreadsheet. Byte-identical re-uploads
// hit the dataset cache instead of re-parsing.
func (s *ServerContext) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Config.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file exceeds the %d byte upload limit", s.Config.MaxUploadBytes))
			return
		}
		s.respondError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "read upload: "+err.Error())
		return
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])[:16]

	ds, err := s.Cache.GetOrParse(r.Context(), key, func(context.Context) (*dataset.Dataset, error) {
		return dataset.Parse(header.Filename, data)
	})
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, dataset.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		log.Warn().Err(err).Str("filename", header.Filename).Msg("Upload rejected")
		s.respondError(w, status, "Error loading dataset: "+err.Error())
		return
	}

	log.Info().
		Str("dataset", ds.ID).
		Str("filename", header.Filename).
		Int("rows", ds.SourceRows).
		Int("buildings", len(ds.Buildings)).
		Msg("Dataset loaded")

	s.respondJSON(w, uploadResponse{
		ID:           ds.ID,
		Rows:         ds.SourceRows,
		Columns:      ds.SourceCols,
		Cities:       ds.Cities(),
		HeightColumn: ds.HeightColumn,
		MaxHeight:    ds.MaxHeight(),
		Warnings:     ds.Warnings,
	})
}

// buildingsResponse carries table rows plus an optional degradation note.
type buildingsResponse struct {
	Rows    []dataset.Building `json:"rows"`
	Count   int                `json:"count"`
	Warning string             `json:"warning,omitempty"`
}

// HandleBuildings returns the city-filtered rows, optionally restricted
// by minimum height and ordered by the detected height column.
func (s *ServerContext) HandleBuildings(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.lookupDataset(w, r)
	if !ok {
		return
	}

	rows := s.filteredRows(ds, r)

	warning := ""
	if ds.HeightColumn == "" {
		warning = "Height column not found, skipping sorting."
	} else {
		rows = dataset.SortByHeight(rows, queryOrder(r) == "asc")
	}

	s.respondJSON(w, buildingsResponse{Rows: rows, Count: len(rows), Warning: warning})
}

// HandleSummary returns the metric panel values for the filtered set.
func (s *ServerContext) HandleSummary(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.lookupDataset(w, r)
	if !ok {
		return
	}

	s.respondJSON(w, stats.Summarize(s.filteredRows(ds, r)))
}

// HandleCityMeans returns the per-city mean height over the full table.
func (s *ServerContext) HandleCityMeans(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.lookupDataset(w, r)
	if !ok {
		return
	}

	type response struct {
		Rows    []stats.CityMean `json:"rows"`
		Warning string           `json:"warning,omitempty"`
	}

	if ds.HeightColumn == "" {
		s.respondJSON(w, response{Rows: []stats.CityMean{}, Warning: "Height column not found, skipping averages."})
		return
	}

	s.respondJSON(w, response{Rows: stats.CityMeans(ds.Buildings)})
}

// HandleLocations serves the filtered rows as GeoJSON point features.
// The collection carries the mean center as a foreign member so the map
// knows where to look first.
func (s *ServerContext) HandleLocations(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.lookupDataset(w, r)
	if !ok {
		return
	}

	rows := s.filteredRows(ds, r)
	fc := geo.FromBuildings(rows)

	payload := struct {
		geo.FeatureCollection
		Center []float64 `json:"center,omitempty"`
	}{FeatureCollection: fc}

	if lat, lon, ok := geo.Center(rows); ok {
		payload.Center = []float64{lat, lon}
	}

	w.Header().Set("Content-Type", "application/geo+json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode GeoJSON")
	}
}

// HandleHistogram renders the height distribution of the filtered set.
func (s *ServerContext) HandleHistogram(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.lookupDataset(w, r)
	if !ok {
		return
	}

	if ds.HeightColumn == "" {
		s.respondError(w, http.StatusNotFound, "no column containing 'height' found")
		return
	}

	city := r.URL.Query().Get("city")
	if city == "" {
		city = "All Cities"
	}

	bins := stats.Histogram(s.filteredRows(ds, r), s.Config.Charts.HistogramBins)
	img := s.Charts.Histogram(bins, fmt.Sprintf("Height Distribution in %s (Filtered)", city))
	s.respondWebP(w, img)
}

// HandlePie renders the top-cities distribution over the full table.
func (s *ServerContext) HandlePie(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.lookupDataset(w, r)
	if !ok {
		return
	}

	limit := s.Config.Charts.TopCities
	counts := stats.TopCities(ds.Buildings, limit)
	img := s.Charts.Pie(counts, fmt.Sprintf("Top %d Cities by Number of Skyscrapers", limit))
	s.respondWebP(w, img)
}

// lookupDataset resolves the {id} path segment against the cache.
func (s *ServerContext) lookupDataset(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, bool) {
	ds, err := s.Cache.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "dataset not found, upload the file again")
		return nil, false
	}
	return ds, true
}

// filteredRows applies the city and min_height query parameters.
func (s *ServerContext) filteredRows(ds *dataset.Dataset, r *http.Request) []dataset.Building {
	q := r.URL.Query()

	rows := dataset.FilterCity(ds.Buildings, q.Get("city"))

	if raw := q.Get("min_height"); raw != "" && ds.HeightColumn != "" {
		if min, err := strconv.ParseFloat(raw, 64); err == nil {
			rows = dataset.FilterMinHeight(rows, min)
		}
	}

	return rows
}

func queryOrder(r *http.Request) string {
	if r.URL.Query().Get("order") == "desc" {
		return "desc"
	}
	return "asc"
}

func (s *ServerContext) respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *ServerContext) respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// respondWebP encodes and serves a rendered chart. Charts for a given
// dataset id and parameter set never change, so clients may cache them.
func (s *ServerContext) respondWebP(w http.ResponseWriter, img image.Image) {
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if err := s.Charts.EncodeWebP(w, img); err != nil {
		log.Error().Err(err).Msg("Failed to encode webp")
	}
}
