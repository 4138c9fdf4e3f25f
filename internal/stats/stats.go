// Package stats computes the aggregates shown on the dashboard: the
// metric panel, per-city averages, city frequencies, and histogram bins.
package stats

import (
	"sort"

	"github.com/skydash/skydash/internal/dataset"
)

// Summary backs the three-row metric panel for a filtered set.
type Summary struct {
	Count         int     `json:"count" yaml:"count"`
	TallestName   string  `json:"tallest_name" yaml:"tallest_name"`
	TallestHeight float64 `json:"tallest_height" yaml:"tallest_height"`
	AverageHeight float64 `json:"average_height" yaml:"average_height"`
	HasHeights    bool    `json:"has_heights" yaml:"has_heights"`
}

// Summarize reports count, tallest row, and mean height. Ties on maximum
// height keep the first occurrence. Rows without a height count toward
// the total but not toward the maximum or the mean.
func Summarize(rows []dataset.Building) Summary {
	s := Summary{Count: len(rows)}

	var sum float64
	var n int
	for _, b := range rows {
		if !b.HasHeight() {
			continue
		}
		sum += b.Height
		n++
		if !s.HasHeights || b.Height > s.TallestHeight {
			s.HasHeights = true
			s.TallestName = b.Name
			s.TallestHeight = b.Height
		}
	}
	if n > 0 {
		s.AverageHeight = sum / float64(n)
	}

	return s
}

// CityMean is one row of the per-city average table.
type CityMean struct {
	City       string  `json:"city" yaml:"city"`
	MeanHeight float64 `json:"mean_height" yaml:"mean_height"`
	Count      int     `json:"count" yaml:"count"`
}

// CityMeans groups rows by city and averages the height per group,
// cities ascending. Rows without a city or a height are skipped.
func CityMeans(rows []dataset.Building) []CityMean {
	type acc struct {
		sum float64
		n   int
	}
	groups := make(map[string]*acc)
	for _, b := range rows {
		if b.City == "" || !b.HasHeight() {
			continue
		}
		g, ok := groups[b.City]
		if !ok {
			g = &acc{}
			groups[b.City] = g
		}
		g.sum += b.Height
		g.n++
	}

	out := make([]CityMean, 0, len(groups))
	for city, g := range groups {
		out = append(out, CityMean{City: city, MeanHeight: g.sum / float64(g.n), Count: g.n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].City < out[j].City })

	return out
}

// CityCount is one slice of the distribution pie.
type CityCount struct {
	City  string `json:"city" yaml:"city"`
	Count int    `json:"count" yaml:"count"`
}

// TopCities returns rows-per-city frequencies truncated to the limit
// largest, count descending with city name breaking ties.
func TopCities(rows []dataset.Building, limit int) []CityCount {
	counts := make(map[string]int)
	for _, b := range rows {
		if b.City == "" {
			continue
		}
		counts[b.City]++
	}

	out := make([]CityCount, 0, len(counts))
	for city, n := range counts {
		out = append(out, CityCount{City: city, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].City < out[j].City
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Bin is one histogram bucket over [From, To). The final bucket includes
// its upper edge so the maximum value is counted.
type Bin struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

// Histogram splits the height values into equal-width bins spanning the
// observed range. A single distinct value collapses to one bin.
func Histogram(rows []dataset.Building, bins int) []Bin {
	var values []float64
	for _, b := range rows {
		if b.HasHeight() {
			values = append(values, b.Height)
		}
	}
	if len(values) == 0 || bins <= 0 {
		return nil
	}

	min, max := values[0], values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	if min == max {
		return []Bin{{From: min, To: max, Count: len(values)}}
	}

	width := (max - min) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].From = min + float64(i)*width
		out[i].To = min + float64(i+1)*width
	}
	out[bins-1].To = max

	for _, v := range values {
		idx := int((v - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}

	return out
}
