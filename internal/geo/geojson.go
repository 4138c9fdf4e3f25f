// Package geo builds the GeoJSON payload that drives the dashboard map.
package geo

import "github.com/skydash/skydash/internal/dataset"

// FeatureCollection represents a collection of geographic features.
// It follows the standard GeoJSON structure.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature represents a single geographic feature with geometry and properties.
type Feature struct {
	Properties map[string]interface{} `json:"properties"`
	Type       string                 `json:"type"`
	Geometry   Geometry               `json:"geometry"`
}

// Geometry represents the geometry of a feature (Point here).
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [Lon, Lat]
}

// FromBuildings converts building rows into point features. Rows without
// a usable height carry no height property rather than a bogus zero.
func FromBuildings(rows []dataset.Building) FeatureCollection {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Features: make([]Feature, 0, len(rows)),
	}

	for _, b := range rows {
		props := map[string]interface{}{
			"name": b.Name,
			"city": b.City,
		}
		if b.HasHeight() {
			props["height"] = b.Height
		}

		fc.Features = append(fc.Features, Feature{
			Type:       "Feature",
			Properties: props,
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{b.Longitude, b.Latitude},
			},
		})
	}

	return fc
}
