package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/cityair/cityair-export/internal/catalog"
)

// infoSheetName is the first sheet of every report, carrying the request
// parameters and the station inventory per requested city.
const infoSheetName = "INFO"

// timestampCellLayout formats the wide-table index for the sheet.
const timestampCellLayout = "2006-01-02 15:04:05"

// writeInfoSheet lays out the INFO sheet: request parameters, a
// city/station-count table, then per-city station name columns padded to
// equal length.
func writeInfoSheet(f *excelize.File, req Request, cat *catalog.Catalog) error {
	if err := f.SetSheetName(f.GetSheetName(0), infoSheetName); err != nil {
		return fmt.Errorf("rename info sheet: %w", err)
	}

	if err := setRow(f, infoSheetName, 1, []interface{}{"Parameter", "Value"}); err != nil {
		return err
	}
	params := [][]interface{}{
		{"Start Date", req.Start},
		{"End Date", req.End},
		{"Aggregation", req.Aggregation},
	}
	for i, row := range params {
		if err := setRow(f, infoSheetName, 2+i, row); err != nil {
			return err
		}
	}

	// City and station-count table, one blank row below the parameters.
	countHeader := 6
	if err := setRow(f, infoSheetName, countHeader, []interface{}{"City", "Station Count"}); err != nil {
		return err
	}

	stationNames := make([][]string, len(req.Cities))
	maxStations := 0
	for i, label := range req.Cities {
		sites := cat.SitesForCity(label)
		if err := setRow(f, infoSheetName, countHeader+1+i, []interface{}{
			catalog.CleanCityName(label), len(sites),
		}); err != nil {
			return err
		}
		names := make([]string, len(sites))
		for j, s := range sites {
			names[j] = s.Name
		}
		stationNames[i] = names
		if len(names) > maxStations {
			maxStations = len(names)
		}
	}

	// Station name columns, two blank rows below the count table.
	stationHeader := countHeader + len(req.Cities) + 3
	header := make([]interface{}, len(req.Cities))
	for i, label := range req.Cities {
		header[i] = catalog.CleanCityName(label) + " Stations"
	}
	if err := setRow(f, infoSheetName, stationHeader, header); err != nil {
		return err
	}
	for rowIdx := 0; rowIdx < maxStations; rowIdx++ {
		row := make([]interface{}, len(req.Cities))
		for col, names := range stationNames {
			if rowIdx < len(names) {
				row[col] = names[rowIdx]
			} else {
				row[col] = ""
			}
		}
		if err := setRow(f, infoSheetName, stationHeader+1+rowIdx, row); err != nil {
			return err
		}
	}

	return nil
}

// writeConcentrationSheet writes the wide table for one pollutant:
// Timestamp first, one column per city, rows ascending by timestamp.
func writeConcentrationSheet(f *excelize.File, name string, table *WideTable) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}

	cities := table.Cities()
	header := make([]interface{}, 0, len(cities)+1)
	header = append(header, "Timestamp")
	for _, city := range cities {
		header = append(header, city)
	}
	if err := setRow(f, name, 1, header); err != nil {
		return err
	}

	for i, ts := range table.Timestamps() {
		row := make([]interface{}, len(cities)+1)
		row[0] = ts.Format(timestampCellLayout)
		for j, city := range cities {
			if v, ok := table.Value(ts, city); ok {
				row[j+1] = v
			}
			// Absent cells stay nil: an empty cell, never a zero.
		}
		if err := setRow(f, name, 2+i, row); err != nil {
			return err
		}
	}

	return nil
}

// writeUptimeSheet writes two adjacent columns per city (station name
// and uptime percent), row-padded to the city with the most stations.
func writeUptimeSheet(f *excelize.File, name string, uptime map[string][]StationUptime, cityOrder []string) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}

	cities := make([]string, 0, len(uptime))
	maxLen := 0
	for _, city := range cityOrder {
		rows, ok := uptime[city]
		if !ok {
			continue
		}
		cities = append(cities, city)
		if len(rows) > maxLen {
			maxLen = len(rows)
		}
	}

	header := make([]interface{}, 0, 2*len(cities))
	for _, city := range cities {
		header = append(header, city+" Station", city+" Uptime (%)")
	}
	if err := setRow(f, name, 1, header); err != nil {
		return err
	}

	for rowIdx := 0; rowIdx < maxLen; rowIdx++ {
		row := make([]interface{}, 2*len(cities))
		for col, city := range cities {
			if rowIdx < len(uptime[city]) {
				entry := uptime[city][rowIdx]
				row[2*col] = entry.Station
				row[2*col+1] = entry.UptimePercent
			} else {
				row[2*col] = ""
				row[2*col+1] = ""
			}
		}
		if err := setRow(f, name, 2+rowIdx, row); err != nil {
			return err
		}
	}

	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("sheet %q row %d: %w", sheet, row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("sheet %q row %d: %w", sheet, row, err)
	}
	return nil
}
