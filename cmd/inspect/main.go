// Command inspect parses a spreadsheet of building records and prints
// its summary without starting the dashboard server.
package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/skydash/skydash/internal/dataset"
	"github.com/skydash/skydash/internal/logger"
	"github.com/skydash/skydash/internal/stats"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	Input  string `short:"i" long:"in" description:"Input spreadsheet path (.xlsx or .csv)" required:"true"`
	Output string `short:"o" long:"out" description:"Output file path. Writes to stdout if empty"`
	Format string `short:"f" long:"format" description:"Output format" choice:"json" choice:"yaml" default:"json"`
	City   string `long:"city" description:"Limit the summary block to one city"`
	Top    int    `long:"top" description:"How many cities to keep in the distribution" default:"10"`
}

// report is the printable shape of one parsed dataset.
type report struct {
	ID           string            `json:"id" yaml:"id"`
	Rows         int               `json:"rows" yaml:"rows"`
	Columns      int               `json:"columns" yaml:"columns"`
	Buildings    int               `json:"buildings" yaml:"buildings"`
	HeightColumn string            `json:"height_column,omitempty" yaml:"height_column,omitempty"`
	Warnings     []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Cities       []string          `json:"cities" yaml:"cities"`
	Summary      stats.Summary     `json:"summary" yaml:"summary"`
	CityMeans    []stats.CityMean  `json:"city_means,omitempty" yaml:"city_means,omitempty"`
	TopCities    []stats.CityCount `json:"top_cities,omitempty" yaml:"top_cities,omitempty"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	data, err := os.ReadFile(opts.Input)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read input")
	}

	ds, err := dataset.Parse(opts.Input, data)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse dataset")
	}

	rep := report{
		ID:           ds.ID,
		Rows:         ds.SourceRows,
		Columns:      ds.SourceCols,
		Buildings:    len(ds.Buildings),
		HeightColumn: ds.HeightColumn,
		Warnings:     ds.Warnings,
		Cities:       ds.Cities(),
		Summary:      stats.Summarize(dataset.FilterCity(ds.Buildings, opts.City)),
	}
	if ds.HeightColumn != "" {
		rep.CityMeans = stats.CityMeans(ds.Buildings)
	}
	rep.TopCities = stats.TopCities(ds.Buildings, opts.Top)

	var out io.Writer = os.Stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	switch opts.Format {
	case "yaml":
		enc := yaml.NewEncoder(out)
		if err := enc.Encode(rep); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode yaml")
		}
		_ = enc.Close()
	default:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode json")
		}
	}
}
