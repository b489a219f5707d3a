// Package catalog provides the station directory: a static lookup from
// city to its air-quality monitoring stations, loaded from an XLSX
// workbook at startup and read-only afterwards.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Station is a single monitoring site as listed in the directory.
type Station struct {
	// ID is the remote-source device identifier (workbook column "site_id").
	ID string

	// Name is the station display name (workbook column "Location").
	Name string

	// City the station belongs to.
	City string

	// State is an optional region qualifier.
	State string
}

// CityInfo identifies a city for the metadata API.
type CityInfo struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// Catalog maps cities to their ordered station lists.
type Catalog struct {
	stations []Station
	byCity   map[string][]Station
}

// New builds a catalog from an in-memory station list, preserving order.
func New(stations []Station) *Catalog {
	byCity := make(map[string][]Station)
	kept := make([]Station, 0, len(stations))
	for _, s := range stations {
		s.ID = strings.TrimSpace(s.ID)
		s.Name = strings.TrimSpace(s.Name)
		s.City = strings.TrimSpace(s.City)
		s.State = strings.TrimSpace(s.State)
		if s.ID == "" || s.City == "" {
			continue
		}
		key := strings.ToLower(s.City)
		byCity[key] = append(byCity[key], s)
		kept = append(kept, s)
	}
	return &Catalog{stations: kept, byCity: byCity}
}

// LoadWorkbook reads the station directory from an XLSX workbook. The
// first sheet must carry a header row with columns site_id, City and
// Location; State is optional.
func LoadWorkbook(path string) (*Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open station workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read station workbook: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("station workbook %q: empty sheet %q", path, sheet)
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"site_id", "city", "location"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("station workbook %q: missing required column %q", path, required)
		}
	}

	stations := make([]Station, 0, len(rows)-1)
	for _, row := range rows[1:] {
		stations = append(stations, Station{
			ID:    cell(row, cols["site_id"]),
			Name:  cell(row, cols["location"]),
			City:  cell(row, cols["city"]),
			State: cell(row, cols["state"]),
		})
	}

	return New(stations), nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// CleanCityName strips a parenthesized qualifier from a city label:
// "Delhi (Delhi)" becomes "Delhi". Case is preserved for display.
func CleanCityName(label string) string {
	name, _, _ := strings.Cut(label, "(")
	return strings.TrimSpace(name)
}

// SitesForCity returns the stations for a city label in directory order.
// The label may carry a parenthesized qualifier and matching is
// case-insensitive. Unknown cities yield an empty list, never an error.
func (c *Catalog) SitesForCity(label string) []Station {
	return c.byCity[strings.ToLower(CleanCityName(label))]
}

// Cities returns the distinct (city, state) pairs sorted by city name.
func (c *Catalog) Cities() []CityInfo {
	seen := make(map[CityInfo]struct{}, len(c.stations))
	cities := make([]CityInfo, 0, len(c.stations))
	for _, s := range c.stations {
		info := CityInfo{City: s.City, State: s.State}
		if _, ok := seen[info]; ok {
			continue
		}
		seen[info] = struct{}{}
		cities = append(cities, info)
	}
	sort.Slice(cities, func(i, j int) bool {
		if cities[i].City != cities[j].City {
			return cities[i].City < cities[j].City
		}
		return cities[i].State < cities[j].State
	})
	return cities
}

// Len returns the number of stations in the directory.
func (c *Catalog) Len() int {
	return len(c.stations)
}
