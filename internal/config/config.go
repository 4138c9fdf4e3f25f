// Package config handles configuration loading and shared data structures.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Theme holds the dashboard color palette. Defaults reproduce the
// original skyscraper dashboard look.
type Theme struct {
	Background       string `yaml:"background,omitempty" json:"background"`
	BarColor         string `yaml:"bar_color,omitempty" json:"bar_color"`
	Highlight        string `yaml:"highlight,omitempty" json:"highlight"`
	TextColor        string `yaml:"text_color,omitempty" json:"text_color"`
	MetricText       string `yaml:"metric_text,omitempty" json:"metric_text"`
	MetricBackground string `yaml:"metric_background,omitempty" json:"metric_background"`
}

// Marker holds fixed map marker appearance.
type Marker struct {
	Color   string  `yaml:"color,omitempty" json:"color"`
	Opacity float64 `yaml:"opacity,omitempty" json:"opacity"`
	Radius  int     `yaml:"radius,omitempty" json:"radius"`
}

// Charts holds chart rendering constants.
type Charts struct {
	HistogramBins int `yaml:"histogram_bins,omitempty" json:"histogram_bins"`
	TopCities     int `yaml:"top_cities,omitempty" json:"top_cities"`
	Width         int `yaml:"width,omitempty" json:"-"`
	Height        int `yaml:"height,omitempty" json:"-"`
}

// Config represents the root configuration file structure.
type Config struct {
	Title             string `yaml:"title,omitempty" json:"title"`
	Theme             Theme  `yaml:"theme,omitempty" json:"theme"`
	Marker            Marker `yaml:"marker,omitempty" json:"marker"`
	Charts            Charts `yaml:"charts,omitempty" json:"charts"`
	DefaultMinHeight  int    `yaml:"default_min_height,omitempty" json:"default_min_height"`
	MaxUploadBytes    int64  `yaml:"max_upload_bytes,omitempty" json:"-"`
	DatasetTTLSeconds int    `yaml:"dataset_ttl_seconds,omitempty" json:"-"`
}

// DatasetTTL returns the session lifetime of a cached dataset.
func (c *Config) DatasetTTL() time.Duration {
	return time.Duration(c.DatasetTTLSeconds) * time.Second
}

// Default returns the built-in configuration used when no file is given.
func Default() *Config {
	return &Config{
		Title: "Skyscrapers Around the United States",
		Theme: Theme{
			Background:       "#FFF0F5",
			BarColor:         "#FFB6C1",
			Highlight:        "#FF69B4",
			TextColor:        "#8B008B",
			MetricText:       "#FF1493",
			MetricBackground: "#FFD1DC",
		},
		Marker: Marker{
			Color:   "#FF69B4",
			Opacity: 0.63,
			Radius:  8,
		},
		Charts: Charts{
			HistogramBins: 10,
			TopCities:     10,
			Width:         640,
			Height:        420,
		},
		DefaultMinHeight:  100,
		MaxUploadBytes:    32 << 20,
		DatasetTTLSeconds: 3600,
	}
}

// Load reads and parses the YAML configuration file from the specified path.
// A missing file is not an error: the defaults apply unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

// normalize clamps user-provided values back into usable ranges.
func (c *Config) normalize() {
	d := Default()

	if c.Charts.HistogramBins <= 0 {
		c.Charts.HistogramBins = d.Charts.HistogramBins
	}
	if c.Charts.TopCities <= 0 {
		c.Charts.TopCities = d.Charts.TopCities
	}
	if c.Charts.Width <= 0 {
		c.Charts.Width = d.Charts.Width
	}
	if c.Charts.Height <= 0 {
		c.Charts.Height = d.Charts.Height
	}
	if c.Marker.Radius <= 0 {
		c.Marker.Radius = d.Marker.Radius
	}
	if c.Marker.Opacity <= 0 || c.Marker.Opacity > 1 {
		c.Marker.Opacity = d.Marker.Opacity
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.DatasetTTLSeconds <= 0 {
		c.DatasetTTLSeconds = d.DatasetTTLSeconds
	}
	if c.DefaultMinHeight < 0 {
		c.DefaultMinHeight = 0
	}
}
