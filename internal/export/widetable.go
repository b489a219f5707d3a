package export

import (
	"sort"
	"time"
)

// WideTable is the per-pollutant concentration table: one column per
// city, indexed by the union of every city's timestamps (full outer
// join). A city absent at a timestamp leaves that cell empty.
type WideTable struct {
	cities []string
	index  []time.Time
	cells  map[time.Time]map[string]float64
}

// BuildWideTable merges per-city series into a wide table in one pass
// over a sparse (timestamp, city) map, then sorts the index ascending.
// cityOrder fixes the column order; cities without a series are skipped.
func BuildWideTable(series map[string]CitySeries, cityOrder []string) *WideTable {
	cells := make(map[time.Time]map[string]float64)
	cities := make([]string, 0, len(series))

	for _, city := range cityOrder {
		s, ok := series[city]
		if !ok {
			continue
		}
		cities = append(cities, city)
		for ts, v := range s {
			row := cells[ts]
			if row == nil {
				row = make(map[string]float64, len(series))
				cells[ts] = row
			}
			row[city] = v
		}
	}

	index := make([]time.Time, 0, len(cells))
	for ts := range cells {
		index = append(index, ts)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })

	return &WideTable{cities: cities, index: index, cells: cells}
}

// Cities returns the column order.
func (t *WideTable) Cities() []string {
	return t.cities
}

// Timestamps returns the sorted join index.
func (t *WideTable) Timestamps() []time.Time {
	return t.index
}

// Value returns the cell for (ts, city); ok is false for empty cells.
func (t *WideTable) Value(ts time.Time, city string) (float64, bool) {
	v, ok := t.cells[ts][city]
	return v, ok
}

// Len returns the number of rows.
func (t *WideTable) Len() int {
	return len(t.index)
}
