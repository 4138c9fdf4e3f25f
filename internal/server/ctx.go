// Package server handles HTTP requests and middleware.
package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/rs/zerolog/log"
	"github.com/skydash/skydash/assets"
	"github.com/skydash/skydash/internal/charts"
	"github.com/skydash/skydash/internal/config"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
)

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config    *config.Config
	Cache     *DatasetCache
	Charts    *charts.Renderer
	IndexHTML []byte
}

// pageData feeds the index template with minified assets and the page
// configuration consumed by the client script.
type pageData struct {
	Title  string
	CSS    string
	JS     string
	Config string
}

// NewServerContext initializes the context and assembles the dashboard
// page from the embedded assets.
func NewServerContext(cfg *config.Config) (*ServerContext, error) {
	index, err := buildIndexHTML(cfg)
	if err != nil {
		return nil, fmt.Errorf("build index page: %w", err)
	}

	log.Info().
		Int("index_bytes", len(index)).
		Int("histogram_bins", cfg.Charts.HistogramBins).
		Int("top_cities", cfg.Charts.TopCities).
		Msg("Server context initialized")

	return &ServerContext{
		Config:    cfg,
		Cache:     NewDatasetCache(cfg.DatasetTTL()),
		Charts:    charts.New(cfg),
		IndexHTML: index,
	}, nil
}

// buildIndexHTML minifies the embedded CSS/JS, renders the page template,
// and minifies the assembled document.
func buildIndexHTML(cfg *config.Config) ([]byte, error) {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)

	cssMin, err := m.String("text/css", string(assets.StyleCSS))
	if err != nil {
		return nil, fmt.Errorf("minify css: %w", err)
	}

	jsMin, err := m.String("text/javascript", string(assets.ScriptJS))
	if err != nil {
		return nil, fmt.Errorf("minify js: %w", err)
	}

	pageCfg, err := json.Marshal(map[string]any{
		"theme":              cfg.Theme,
		"marker":             cfg.Marker,
		"default_min_height": cfg.DefaultMinHeight,
	})
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("index").Parse(string(assets.IndexTpl))
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, pageData{
		Title:  cfg.Title,
		CSS:    cssMin,
		JS:     jsMin,
		Config: string(pageCfg),
	})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	final, err := m.String("text/html", buf.String())
	if err != nil {
		return nil, fmt.Errorf("minify html: %w", err)
	}

	return []byte(final), nil
}

// Close releases the dataset cache goroutine.
func (s *ServerContext) Close() {
	s.Cache.Close()
}
