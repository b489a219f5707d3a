package export

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/cityair/cityair-export/internal/atmos"
	"github.com/cityair/cityair-export/internal/catalog"
)

// timestampLayouts are tried in order when coercing source timestamps.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// cityResult is the outcome of aggregating one (city, pollutant) unit.
type cityResult struct {
	series CitySeries
	uptime []StationUptime

	// contributing counts stations that yielded rows with a matching
	// pollutant column. Zero means the city is omitted from both the
	// concentration and uptime outputs.
	contributing int
}

// aggregateCity fetches every station's series for one pollutant and
// merges them into a single city series plus per-station uptime records.
// Fetch failures are collapsed into "no data" after the client's bounded
// retry; they never fail the job. tick is called once per station fetch,
// completed or failed alike.
func (p *Pipeline) aggregateCity(ctx context.Context, city string, sites []catalog.Station, code string, req Request, tick func()) cityResult {
	var result cityResult
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	var fetchErrs *multierror.Error

	for _, site := range sites {
		series, err := p.fetcher.FetchSeries(ctx, atmos.SeriesRequest{
			StationID:   site.ID,
			Pollutant:   code,
			Start:       req.Start,
			End:         req.End,
			Aggregation: atmos.Aggregation(req.Aggregation),
			Gaps:        req.Gaps,
			GapValue:    req.GapValue,
		})
		tick()
		if err != nil {
			fetchErrs = multierror.Append(fetchErrs, fmt.Errorf("station %s: %w", site.ID, err))
			series = atmos.Series{}
		}
		if series.Empty() {
			// No data after the bounded retry: the station is listed at
			// zero completeness but does not count as contributing.
			result.uptime = append(result.uptime, StationUptime{Station: site.Name})
			continue
		}

		valueCol := p.pollutants.ColumnIndex(series.Columns, code)
		if valueCol < 0 {
			// Response lacks the requested pollutant: the station
			// contributes neither rows nor an uptime record.
			continue
		}
		timeCol := timestampColumn(series.Columns)

		valid := 0
		for _, record := range series.Records {
			value, ok := parseValue(record, valueCol)
			if !ok {
				continue
			}
			valid++
			if ts, ok := parseTimestamp(record, timeCol); ok {
				sums[ts] += value
				counts[ts]++
			}
		}

		// Unparsable timestamps and non-numeric values count toward the
		// denominator but never toward valid.
		total := len(series.Records)
		pct := 0.0
		if total > 0 {
			pct = round(100*float64(valid)/float64(total), 2)
		}
		result.uptime = append(result.uptime, StationUptime{
			Station:       site.Name,
			UptimePercent: pct,
		})
		result.contributing++
	}

	if err := fetchErrs.ErrorOrNil(); err != nil {
		p.logger.Warn().
			Str("city", city).
			Str("pollutant", code).
			Err(err).
			Msg("some station fetches returned no data")
	}

	result.series = make(CitySeries, len(sums))
	for ts, sum := range sums {
		result.series[ts] = round(sum/float64(counts[ts]), 3)
	}
	return result
}

// timestampColumn locates the source's dt_time column, -1 if absent.
func timestampColumn(header []string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), "dt_time") {
			return i
		}
	}
	return -1
}

func parseValue(record []string, col int) (float64, bool) {
	if col < 0 || col >= len(record) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func parseTimestamp(record []string, col int) (time.Time, bool) {
	if col < 0 || col >= len(record) {
		return time.Time{}, false
	}
	raw := strings.TrimSpace(record[col])
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
