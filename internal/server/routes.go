package server

import "net/http"

// Handler returns the full routing table wrapped in request logging.
func (s *ServerContext) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.HandleUpload)
	mux.HandleFunc("GET /api/datasets/{id}/buildings", s.HandleBuildings)
	mux.HandleFunc("GET /api/datasets/{id}/summary", s.HandleSummary)
	mux.HandleFunc("GET /api/datasets/{id}/city-means", s.HandleCityMeans)
	mux.HandleFunc("GET /api/datasets/{id}/locations.geojson", s.HandleLocations)
	mux.HandleFunc("GET /api/datasets/{id}/charts/histogram.webp", s.HandleHistogram)
	mux.HandleFunc("GET /api/datasets/{id}/charts/cities.webp", s.HandlePie)
	mux.HandleFunc("/", s.HandleIndex)

	return RequestLogger(mux)
}
