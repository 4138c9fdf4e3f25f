package geo

import "github.com/skydash/skydash/internal/dataset"

// Center returns the mean latitude and longitude of the rows, the point
// the map view starts from. ok is false when there are no rows.
func Center(rows []dataset.Building) (lat, lon float64, ok bool) {
	if len(rows) == 0 {
		return 0, 0, false
	}

	for _, b := range rows {
		lat += b.Latitude
		lon += b.Longitude
	}

	n := float64(len(rows))
	return lat / n, lon / n, true
}
