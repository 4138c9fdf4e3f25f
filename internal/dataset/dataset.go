// Package dataset parses uploaded spreadsheets into an in-memory table of
// building records and provides the filter and sort operations the
// dashboard is built from.
package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Required column headers, matched case-insensitively.
const (
	ColName      = "name"
	ColLatitude  = "location.latitude"
	ColLongitude = "location.longitude"
	ColCity      = "location.city"
)

// heightSubstring identifies the measurement column by name.
const heightSubstring = "height"

// ErrUnsupportedFormat is returned for uploads that are not spreadsheets.
var ErrUnsupportedFormat = fmt.Errorf("unsupported file format, expected .xlsx or .csv")

// Building is a single normalized record. Height is NaN when the cell is
// missing or not numeric; such rows are excluded from numeric operations
// but still shown on the map and in tables.
type Building struct {
	Name      string
	City      string
	Latitude  float64
	Longitude float64
	Height    float64
}

// HasHeight reports whether the record carries a usable height value.
func (b Building) HasHeight() bool {
	return !math.IsNaN(b.Height)
}

// MarshalJSON emits a missing height as null; NaN is not valid JSON.
func (b Building) MarshalJSON() ([]byte, error) {
	var height *float64
	if b.HasHeight() {
		height = &b.Height
	}
	return json.Marshal(struct {
		Name      string   `json:"name"`
		City      string   `json:"city"`
		Latitude  float64  `json:"latitude"`
		Longitude float64  `json:"longitude"`
		Height    *float64 `json:"height"`
	}{b.Name, b.City, b.Latitude, b.Longitude, height})
}

// Dataset is one parsed upload. Buildings holds only rows that carried
// both coordinates; SourceRows/SourceCols describe the file as uploaded.
type Dataset struct {
	ID           string
	SourceRows   int
	SourceCols   int
	HeightColumn string
	Warnings     []string
	Buildings    []Building
}

// Parse reads spreadsheet content into a Dataset. The format is chosen by
// the file extension. Identical content always yields the same ID, which
// callers use as the memoization key.
func Parse(filename string, data []byte) (*Dataset, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		header, rows, err = parseXLSX(data)
	case ".csv":
		header, rows, err = parseCSV(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	ds, err := fromTable(header, rows)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	ds.ID = hex.EncodeToString(sum[:])[:16]

	return ds, nil
}

// fromTable normalizes a raw header+rows grid. Rows without latitude or
// longitude are dropped here, before anything else sees them.
func fromTable(header []string, rows [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("empty file: no header row")
	}

	nameIdx := findColumn(header, ColName)
	latIdx := findColumn(header, ColLatitude)
	lonIdx := findColumn(header, ColLongitude)
	cityIdx := findColumn(header, ColCity)
	heightIdx, heightName := findHeightColumn(header)

	// Without a name or coordinates nothing can be displayed at all.
	for col, idx := range map[string]int{ColName: nameIdx, ColLatitude: latIdx, ColLongitude: lonIdx} {
		if idx < 0 {
			return nil, fmt.Errorf("required column %q not found", col)
		}
	}

	ds := &Dataset{
		SourceRows:   len(rows),
		SourceCols:   len(header),
		HeightColumn: heightName,
	}

	if heightIdx < 0 {
		ds.Warnings = append(ds.Warnings, "no column containing 'height' found")
	}
	if cityIdx < 0 {
		ds.Warnings = append(ds.Warnings, fmt.Sprintf("column %q not found", ColCity))
	}

	for _, row := range rows {
		lat, okLat := parseFloat(cell(row, latIdx))
		lon, okLon := parseFloat(cell(row, lonIdx))
		if !okLat || !okLon {
			continue
		}

		b := Building{
			Name:      cell(row, nameIdx),
			Latitude:  lat,
			Longitude: lon,
			Height:    math.NaN(),
		}
		if cityIdx >= 0 {
			b.City = cell(row, cityIdx)
		}
		if heightIdx >= 0 {
			if h, ok := parseFloat(cell(row, heightIdx)); ok {
				b.Height = h
			}
		}

		ds.Buildings = append(ds.Buildings, b)
	}

	return ds, nil
}

// Cities returns the distinct city names in first-seen order, matching
// the order the original select box presented them in.
func (d *Dataset) Cities() []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range d.Buildings {
		if b.City == "" || seen[b.City] {
			continue
		}
		seen[b.City] = true
		out = append(out, b.City)
	}
	return out
}

// MaxHeight returns the largest observed height, or 0 when no row has one.
// It bounds the minimum-height slider.
func (d *Dataset) MaxHeight() float64 {
	max := 0.0
	for _, b := range d.Buildings {
		if b.HasHeight() && b.Height > max {
			max = b.Height
		}
	}
	return max
}

// FilterCity returns the rows matching the selected city. An empty city
// selects everything.
func FilterCity(rows []Building, city string) []Building {
	if city == "" {
		return rows
	}
	out := make([]Building, 0, len(rows))
	for _, b := range rows {
		if b.City == city {
			out = append(out, b)
		}
	}
	return out
}

// FilterMinHeight returns rows whose height meets the minimum. Rows
// without a height never pass a positive threshold.
func FilterMinHeight(rows []Building, min float64) []Building {
	if min <= 0 {
		return rows
	}
	out := make([]Building, 0, len(rows))
	for _, b := range rows {
		if b.HasHeight() && b.Height >= min {
			out = append(out, b)
		}
	}
	return out
}

// SortByHeight returns a copy ordered by height. Rows with a missing
// height always sort last, regardless of direction.
func SortByHeight(rows []Building, ascending bool) []Building {
	out := make([]Building, len(rows))
	copy(out, rows)

	sort.SliceStable(out, func(i, j int) bool {
		hi, hj := out[i], out[j]
		switch {
		case !hi.HasHeight():
			return false
		case !hj.HasHeight():
			return true
		case ascending:
			return hi.Height < hj.Height
		default:
			return hi.Height > hj.Height
		}
	})

	return out
}

// findColumn locates a header by case-insensitive exact match.
func findColumn(header []string, name string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// findHeightColumn locates the first header containing the height
// substring, case-insensitively, and returns its original name.
func findHeightColumn(header []string) (int, string) {
	for i, h := range header {
		if strings.Contains(strings.ToLower(h), heightSubstring) {
			return i, strings.TrimSpace(h)
		}
	}
	return -1, ""
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloat(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
