package catalog_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/cityair/cityair-export/internal/catalog"
)

func testStations() []catalog.Station {
	return []catalog.Station{
		{ID: "site_104", Name: "Anand Vihar", City: "Delhi", State: "Delhi"},
		{ID: "site_106", Name: "R.K. Puram", City: "Delhi", State: "Delhi"},
		{ID: "site_301", Name: "Sector 62", City: "Noida", State: "Uttar Pradesh"},
		{ID: "site_401", Name: "Nehru Nagar", City: "Kanpur", State: "Uttar Pradesh"},
	}
}

func TestNew_SkipsIncompleteRows(t *testing.T) {
	cat := catalog.New([]catalog.Station{
		{ID: "site_1", Name: "Valid", City: "Delhi"},
		{ID: "", Name: "No ID", City: "Delhi"},
		{ID: "site_2", Name: "No City", City: "  "},
	})

	assert.Equal(t, 1, cat.Len())
	require.Len(t, cat.SitesForCity("Delhi"), 1)
	assert.Equal(t, "site_1", cat.SitesForCity("Delhi")[0].ID)
}

func TestCleanCityName(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Delhi (Delhi)", "Delhi"},
		{"Delhi", "Delhi"},
		{"  Noida (Uttar Pradesh)  ", "Noida"},
		{"Greater Noida", "Greater Noida"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, catalog.CleanCityName(tt.label), "label %q", tt.label)
	}
}

func TestSitesForCity(t *testing.T) {
	cat := catalog.New(testStations())

	delhi := cat.SitesForCity("Delhi")
	require.Len(t, delhi, 2)
	// Directory order is preserved.
	assert.Equal(t, "Anand Vihar", delhi[0].Name)
	assert.Equal(t, "R.K. Puram", delhi[1].Name)

	// Qualified labels and case variants resolve to the same city.
	assert.Len(t, cat.SitesForCity("Delhi (Delhi)"), 2)
	assert.Len(t, cat.SitesForCity("delhi"), 2)

	// Unknown cities yield an empty list, never an error.
	assert.Empty(t, cat.SitesForCity("Atlantis"))
}

func TestCities_SortedAndDistinct(t *testing.T) {
	cat := catalog.New(testStations())

	cities := cat.Cities()
	require.Len(t, cities, 3)
	assert.Equal(t, catalog.CityInfo{City: "Delhi", State: "Delhi"}, cities[0])
	assert.Equal(t, catalog.CityInfo{City: "Kanpur", State: "Uttar Pradesh"}, cities[1])
	assert.Equal(t, catalog.CityInfo{City: "Noida", State: "Uttar Pradesh"}, cities[2])
}

func TestLoadWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"site_id", "City", "State", "Location"},
		{"site_104", "Delhi", "Delhi", "Anand Vihar"},
		{"site_301", "Noida", "Uttar Pradesh", "Sector 62"},
		{"", "Delhi", "Delhi", "blank id is skipped"},
	})

	cat, err := catalog.LoadWorkbook(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cat.Len())

	delhi := cat.SitesForCity("Delhi")
	require.Len(t, delhi, 1)
	assert.Equal(t, "site_104", delhi[0].ID)
	assert.Equal(t, "Anand Vihar", delhi[0].Name)
	assert.Equal(t, "Delhi", delhi[0].State)
}

func TestLoadWorkbook_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.xlsx")
	writeWorkbook(t, path, [][]interface{}{
		{"site_id", "Location"},
		{"site_104", "Anand Vihar"},
	})

	_, err := catalog.LoadWorkbook(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city")
}

func TestLoadWorkbook_MissingFile(t *testing.T) {
	_, err := catalog.LoadWorkbook(filepath.Join(t.TempDir(), "absent.xlsx"))
	assert.Error(t, err)
}

func writeWorkbook(t *testing.T, path string, rows [][]interface{}) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}
