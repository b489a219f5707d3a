// Package export implements the report pipeline: per-station series
// fetching, per-city aggregation, cross-city merging and XLSX layout.
package export

import (
	"time"
)

// TimeLayout is the wire format for request start/end timestamps.
const TimeLayout = "2006-01-02T15:04"

// Default gap policy applied when a request leaves the fields unset.
const (
	DefaultGaps     = 1
	DefaultGapValue = "NULL"
)

// Request describes one export job: the window, granularity, cities and
// pollutants to report on, and the gap policy forwarded to the source.
type Request struct {
	Start       string
	End         string
	Aggregation string
	Cities      []string
	Pollutants  []string
	Gaps        int
	GapValue    string
}

// StationUptime is the data-completeness record for one station and
// pollutant: the share of sample slots carrying a usable value.
type StationUptime struct {
	Station       string
	UptimePercent float64
}

// CitySeries is a city's merged concentration series for one pollutant.
// Timestamps are unique; concurrent station readings were averaged.
type CitySeries map[time.Time]float64

// ProgressFunc receives the completed and total planned fetch counts
// after every individual station fetch.
type ProgressFunc func(completed, total int)
