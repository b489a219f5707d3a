package export

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cityair/cityair-export/internal/atmos"
	"github.com/cityair/cityair-export/internal/catalog"
)

func testRequest() Request {
	return Request{
		Start:       "2024-01-01T00:00",
		End:         "2024-01-03T00:00",
		Aggregation: "daily",
		Cities:      []string{"Delhi (Delhi)", "Noida"},
		Pollutants:  []string{"pm2.5cnc"},
		Gaps:        DefaultGaps,
		GapValue:    DefaultGapValue,
	}
}

func TestPipeline_PlannedFetches(t *testing.T) {
	stations := []catalog.Station{
		{ID: "site_1", Name: "A", City: "Delhi"},
		{ID: "site_2", Name: "B", City: "Delhi"},
		{ID: "site_3", Name: "C", City: "Noida"},
	}
	p := newTestPipeline(&stubFetcher{}, stations)

	req := testRequest()
	assert.Equal(t, 3, p.PlannedFetches(req))

	req.Pollutants = []string{"pm2.5cnc", "pm10cnc"}
	assert.Equal(t, 6, p.PlannedFetches(req))

	req.Cities = []string{"Atlantis"}
	assert.Equal(t, 0, p.PlannedFetches(req))
}

func TestPipeline_Run(t *testing.T) {
	fetcher := &stubFetcher{series: map[string]atmos.Series{
		"site_1": csvSeries(
			[]string{"2024-01-01 00:00:00", "80"},
			[]string{"2024-01-02 00:00:00", "90"},
		),
		"site_2": csvSeries(
			[]string{"2024-01-01 00:00:00", "100"},
			[]string{"2024-01-02 00:00:00", "NULL"},
		),
		"site_3": csvSeries(
			[]string{"2024-01-03 00:00:00", "55.5"},
		),
	}}
	stations := []catalog.Station{
		{ID: "site_1", Name: "Anand Vihar", City: "Delhi", State: "Delhi"},
		{ID: "site_2", Name: "R.K. Puram", City: "Delhi", State: "Delhi"},
		{ID: "site_3", Name: "Sector 62", City: "Noida", State: "Uttar Pradesh"},
	}
	p := newTestPipeline(fetcher, stations)

	outPath := filepath.Join(t.TempDir(), "report.xlsx")

	var progress []int
	err := p.Run(context.Background(), testRequest(), outPath, func(completed, total int) {
		require.Equal(t, 3, total)
		progress = append(progress, 100*completed/total)
	})
	require.NoError(t, err)

	// Progress advanced after every fetch and ended complete.
	assert.Equal(t, []int{33, 66, 100}, progress)

	f, err := excelize.OpenFile(outPath)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"INFO", "PM2.5", "PM2.5_UPTIME"}, f.GetSheetList())

	// INFO: parameters, city counts, station columns.
	assert.Equal(t, "Start Date", cellValue(t, f, "INFO", "A2"))
	assert.Equal(t, "2024-01-01T00:00", cellValue(t, f, "INFO", "B2"))
	assert.Equal(t, "daily", cellValue(t, f, "INFO", "B4"))

	assert.Equal(t, "City", cellValue(t, f, "INFO", "A6"))
	assert.Equal(t, "Delhi", cellValue(t, f, "INFO", "A7"))
	assert.Equal(t, "2", cellValue(t, f, "INFO", "B7"))
	assert.Equal(t, "Noida", cellValue(t, f, "INFO", "A8"))
	assert.Equal(t, "1", cellValue(t, f, "INFO", "B8"))

	assert.Equal(t, "Delhi Stations", cellValue(t, f, "INFO", "A11"))
	assert.Equal(t, "Noida Stations", cellValue(t, f, "INFO", "B11"))
	assert.Equal(t, "Anand Vihar", cellValue(t, f, "INFO", "A12"))
	assert.Equal(t, "Sector 62", cellValue(t, f, "INFO", "B12"))
	assert.Equal(t, "R.K. Puram", cellValue(t, f, "INFO", "A13"))
	assert.Equal(t, "", cellValue(t, f, "INFO", "B13"))

	// Concentration: outer join of Delhi and Noida timestamps.
	assert.Equal(t, "Timestamp", cellValue(t, f, "PM2.5", "A1"))
	assert.Equal(t, "Delhi", cellValue(t, f, "PM2.5", "B1"))
	assert.Equal(t, "Noida", cellValue(t, f, "PM2.5", "C1"))

	assert.Equal(t, "2024-01-01 00:00:00", cellValue(t, f, "PM2.5", "A2"))
	assert.Equal(t, "90", cellValue(t, f, "PM2.5", "B2"))
	assert.Equal(t, "", cellValue(t, f, "PM2.5", "C2"))

	assert.Equal(t, "2024-01-02 00:00:00", cellValue(t, f, "PM2.5", "A3"))
	assert.Equal(t, "90", cellValue(t, f, "PM2.5", "B3"))

	assert.Equal(t, "2024-01-03 00:00:00", cellValue(t, f, "PM2.5", "A4"))
	assert.Equal(t, "", cellValue(t, f, "PM2.5", "B4"))
	assert.Equal(t, "55.5", cellValue(t, f, "PM2.5", "C4"))

	// Uptime: two columns per city, padded to the larger city.
	assert.Equal(t, "Delhi Station", cellValue(t, f, "PM2.5_UPTIME", "A1"))
	assert.Equal(t, "Delhi Uptime (%)", cellValue(t, f, "PM2.5_UPTIME", "B1"))
	assert.Equal(t, "Noida Station", cellValue(t, f, "PM2.5_UPTIME", "C1"))
	assert.Equal(t, "Noida Uptime (%)", cellValue(t, f, "PM2.5_UPTIME", "D1"))

	assert.Equal(t, "Anand Vihar", cellValue(t, f, "PM2.5_UPTIME", "A2"))
	assert.Equal(t, "100", cellValue(t, f, "PM2.5_UPTIME", "B2"))
	assert.Equal(t, "R.K. Puram", cellValue(t, f, "PM2.5_UPTIME", "A3"))
	assert.Equal(t, "50", cellValue(t, f, "PM2.5_UPTIME", "B3"))
	assert.Equal(t, "Sector 62", cellValue(t, f, "PM2.5_UPTIME", "C2"))
	assert.Equal(t, "100", cellValue(t, f, "PM2.5_UPTIME", "D2"))
	assert.Equal(t, "", cellValue(t, f, "PM2.5_UPTIME", "C3"))
}

func TestPipeline_Run_PartialCoverage(t *testing.T) {
	// Two stations, one with full daily coverage and one with no data at
	// all: the concentration sheet carries the reporting station's
	// values and the uptime sheet lists both stations.
	fetcher := &stubFetcher{series: map[string]atmos.Series{
		"site_1": csvSeries(
			[]string{"2024-01-01 00:00:00", "81.2"},
			[]string{"2024-01-02 00:00:00", "77.5"},
		),
	}}
	stations := []catalog.Station{
		{ID: "site_1", Name: "Anand Vihar", City: "Delhi"},
		{ID: "site_2", Name: "R.K. Puram", City: "Delhi"},
	}
	p := newTestPipeline(fetcher, stations)

	req := testRequest()
	req.Cities = []string{"Delhi (Delhi)"}

	outPath := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, p.Run(context.Background(), req, outPath, nil))

	f, err := excelize.OpenFile(outPath)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "81.2", cellValue(t, f, "PM2.5", "B2"))
	assert.Equal(t, "77.5", cellValue(t, f, "PM2.5", "B3"))

	assert.Equal(t, "Anand Vihar", cellValue(t, f, "PM2.5_UPTIME", "A2"))
	assert.Equal(t, "100", cellValue(t, f, "PM2.5_UPTIME", "B2"))
	assert.Equal(t, "R.K. Puram", cellValue(t, f, "PM2.5_UPTIME", "A3"))
	assert.Equal(t, "0", cellValue(t, f, "PM2.5_UPTIME", "B3"))
}

func TestPipeline_Run_CityWithNoData(t *testing.T) {
	fetcher := &stubFetcher{series: map[string]atmos.Series{
		"site_1": csvSeries([]string{"2024-01-01 00:00:00", "80"}),
		// site_3 has no canned series: Noida comes back empty.
	}}
	stations := []catalog.Station{
		{ID: "site_1", Name: "Anand Vihar", City: "Delhi"},
		{ID: "site_3", Name: "Sector 62", City: "Noida"},
	}
	p := newTestPipeline(fetcher, stations)

	outPath := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, p.Run(context.Background(), testRequest(), outPath, nil))

	f, err := excelize.OpenFile(outPath)
	require.NoError(t, err)
	defer f.Close()

	// Noida is absent from both data sheets but still listed in INFO.
	assert.Equal(t, "Delhi", cellValue(t, f, "PM2.5", "B1"))
	cols, err := f.GetCols("PM2.5")
	require.NoError(t, err)
	assert.Len(t, cols, 2)

	assert.Equal(t, "Noida", cellValue(t, f, "INFO", "A8"))
}

func TestPipeline_Run_NoDataAtAll(t *testing.T) {
	fetcher := &stubFetcher{}
	stations := []catalog.Station{{ID: "site_1", Name: "A", City: "Delhi"}}
	p := newTestPipeline(fetcher, stations)

	outPath := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, p.Run(context.Background(), testRequest(), outPath, nil))

	f, err := excelize.OpenFile(outPath)
	require.NoError(t, err)
	defer f.Close()

	// Only the INFO sheet is written when no city produced data.
	assert.Equal(t, []string{"INFO"}, f.GetSheetList())
}

func cellValue(t *testing.T, f *excelize.File, sheet, cell string) string {
	t.Helper()
	v, err := f.GetCellValue(sheet, cell)
	require.NoError(t, err)
	return v
}
