package export

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/cityair/cityair-export/internal/atmos"
	"github.com/cityair/cityair-export/internal/catalog"
	"github.com/cityair/cityair-export/internal/pollutant"
)

// SeriesFetcher abstracts the remote series source.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, req atmos.SeriesRequest) (atmos.Series, error)
}

// PipelineConfig holds the collaborators for a Pipeline.
type PipelineConfig struct {
	Fetcher    SeriesFetcher
	Catalog    *catalog.Catalog
	Pollutants *pollutant.Registry
	Logger     zerolog.Logger
}

// Pipeline builds one report per request: it resolves cities to
// stations, fetches and aggregates their series, and writes the
// multi-sheet workbook.
type Pipeline struct {
	fetcher    SeriesFetcher
	catalog    *catalog.Catalog
	pollutants *pollutant.Registry
	logger     zerolog.Logger
}

// NewPipeline creates a pipeline from its collaborators.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	return &Pipeline{
		fetcher:    cfg.Fetcher,
		catalog:    cfg.Catalog,
		pollutants: cfg.Pollutants,
		logger:     cfg.Logger,
	}
}

// PlannedFetches returns the total station fetches the request implies:
// the per-city station count times the pollutant count. Computed once up
// front so progress can be reported as a fraction of a fixed total.
func (p *Pipeline) PlannedFetches(req Request) int {
	total := 0
	for _, city := range req.Cities {
		total += len(p.catalog.SitesForCity(city)) * len(req.Pollutants)
	}
	return total
}

// Run executes the request and writes the workbook to outPath. Station
// fetches are sequential and deterministic: pollutants, then cities,
// then stations, in request order. onProgress is invoked after every
// fetch. Fetch failures degrade to missing data; only workbook I/O
// failures abort the job.
func (p *Pipeline) Run(ctx context.Context, req Request, outPath string, onProgress ProgressFunc) error {
	total := p.PlannedFetches(req)
	completed := 0
	tick := func() {
		completed++
		if onProgress != nil {
			onProgress(completed, total)
		}
	}

	p.logger.Info().
		Str("aggregation", req.Aggregation).
		Int("cities", len(req.Cities)).
		Int("pollutants", len(req.Pollutants)).
		Int("planned_fetches", total).
		Msg("starting export")

	f := excelize.NewFile()
	defer f.Close()

	if err := writeInfoSheet(f, req, p.catalog); err != nil {
		return err
	}

	for _, code := range req.Pollutants {
		series := make(map[string]CitySeries)
		uptime := make(map[string][]StationUptime)
		cityOrder := make([]string, 0, len(req.Cities))

		for _, label := range req.Cities {
			city := catalog.CleanCityName(label)
			sites := p.catalog.SitesForCity(label)
			if len(sites) == 0 {
				continue
			}

			result := p.aggregateCity(ctx, city, sites, code, req, tick)
			if result.contributing == 0 {
				// Every station came back empty: the city is absent
				// from both sheets for this pollutant.
				continue
			}

			series[city] = result.series
			uptime[city] = result.uptime
			cityOrder = append(cityOrder, city)
		}

		if len(cityOrder) == 0 {
			p.logger.Debug().Str("pollutant", code).Msg("no city produced data, sheets omitted")
			continue
		}

		table := BuildWideTable(series, cityOrder)
		if err := writeConcentrationSheet(f, p.pollutants.SheetName(code), table); err != nil {
			return err
		}
		if err := writeUptimeSheet(f, p.pollutants.UptimeSheetName(code), uptime, cityOrder); err != nil {
			return err
		}
	}

	if err := f.SaveAs(outPath); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	p.logger.Info().
		Str("path", outPath).
		Int("completed_fetches", completed).
		Msg("export finished")
	return nil
}
