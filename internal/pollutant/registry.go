// Package pollutant defines the fixed set of pollutant codes the export
// pipeline accepts and how they map onto remote-source CSV columns and
// spreadsheet sheet names.
package pollutant

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxSheetNameLength is the sheet-name bound imposed by the XLSX format.
const MaxSheetNameLength = 31

// Pollutant describes a single supported pollutant code.
type Pollutant struct {
	// Code is the remote-source parameter code (e.g. "pm2.5cnc").
	Code string `yaml:"code"`

	// Label is the human-readable name shown to API clients (e.g. "PM2.5").
	Label string `yaml:"label"`

	// ColumnPrefix matches the CSV column carrying this pollutant's
	// values. Column naming is source-controlled, so matching is a
	// case-insensitive prefix test. Defaults to Code.
	ColumnPrefix string `yaml:"columnPrefix"`
}

// Registry is the validated allow-list of pollutants. Requests carrying
// codes outside the registry are rejected before any fetch is issued.
type Registry struct {
	entries []Pollutant
	byCode  map[string]Pollutant
}

// Default returns the registry with the built-in pollutant set.
func Default() *Registry {
	r, err := NewRegistry(defaultEntries())
	if err != nil {
		// The built-in set is validated by tests; this is unreachable.
		panic(err)
	}
	return r
}

// NewRegistry builds a registry from the given entries and validates it.
func NewRegistry(entries []Pollutant) (*Registry, error) {
	byCode := make(map[string]Pollutant, len(entries))
	normalized := make([]Pollutant, 0, len(entries))

	for _, e := range entries {
		e.Code = strings.ToLower(strings.TrimSpace(e.Code))
		if e.Code == "" {
			return nil, fmt.Errorf("pollutant entry %q: empty code", e.Label)
		}
		if e.Label == "" {
			return nil, fmt.Errorf("pollutant %q: empty label", e.Code)
		}
		if _, exists := byCode[e.Code]; exists {
			return nil, fmt.Errorf("pollutant %q: duplicate code", e.Code)
		}
		if e.ColumnPrefix == "" {
			e.ColumnPrefix = e.Code
		}
		byCode[e.Code] = e
		normalized = append(normalized, e)
	}

	return &Registry{entries: normalized, byCode: byCode}, nil
}

// overrideFile is the YAML shape accepted by Load.
type overrideFile struct {
	Pollutants []Pollutant `yaml:"pollutants"`
}

// Load reads a YAML override file and merges it over the built-in set.
// Entries with a known code replace the default; new codes are appended.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pollutant config: %w", err)
	}

	var file overrideFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse pollutant config: %w", err)
	}

	entries := defaultEntries()
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		index[e.Code] = i
	}

	for _, o := range file.Pollutants {
		code := strings.ToLower(strings.TrimSpace(o.Code))
		if i, ok := index[code]; ok {
			merged := entries[i]
			if o.Label != "" {
				merged.Label = o.Label
			}
			if o.ColumnPrefix != "" {
				merged.ColumnPrefix = o.ColumnPrefix
			}
			entries[i] = merged
			continue
		}
		entries = append(entries, o)
	}

	return NewRegistry(entries)
}

// Supported reports whether code is in the allow-list.
func (r *Registry) Supported(code string) bool {
	_, ok := r.byCode[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

// Get returns the entry for code.
func (r *Registry) Get(code string) (Pollutant, bool) {
	p, ok := r.byCode[strings.ToLower(strings.TrimSpace(code))]
	return p, ok
}

// Codes returns the supported codes in registry order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		codes = append(codes, e.Code)
	}
	return codes
}

// Labels returns the label-to-code mapping served by the metadata API.
func (r *Registry) Labels() map[string]string {
	labels := make(map[string]string, len(r.entries))
	for _, e := range r.entries {
		labels[e.Label] = e.Code
	}
	return labels
}

// ColumnIndex locates the CSV column for code within header, matching the
// registered prefix case-insensitively. Returns -1 when no column matches.
func (r *Registry) ColumnIndex(header []string, code string) int {
	p, ok := r.Get(code)
	if !ok {
		return -1
	}
	prefix := strings.ToLower(p.ColumnPrefix)
	for i, col := range header {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(col)), prefix) {
			return i
		}
	}
	return -1
}

// cleaner strips unit suffixes and expands the meteorological shorthands
// before sheet names are uppercased.
var cleaner = strings.NewReplacer(
	"cnc", "",
	"ppb", "",
	"tempc", "Temp",
	"rh", "RH",
	"ws", "WS",
	"wd", "WD",
)

// cleanName derives the display form of a pollutant code: "pm2.5cnc"
// becomes "PM2.5", "tempc" becomes "TEMP".
func cleanName(code string) string {
	return strings.ToUpper(cleaner.Replace(strings.ToLower(strings.TrimSpace(code))))
}

// SheetName returns the concentration sheet name for code, bounded to
// the XLSX maximum.
func (r *Registry) SheetName(code string) string {
	return truncate(cleanName(code), MaxSheetNameLength)
}

// UptimeSheetName returns the uptime sheet name for code. The suffix is
// applied before truncation so both variants stay within the bound.
func (r *Registry) UptimeSheetName(code string) string {
	return truncate(cleanName(code)+"_UPTIME", MaxSheetNameLength)
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func defaultEntries() []Pollutant {
	return []Pollutant{
		{Code: "pm10cnc", Label: "PM10"},
		{Code: "pm2.5cnc", Label: "PM2.5"},
		{Code: "no2ppb", Label: "NO2"},
		{Code: "co", Label: "CO"},
		{Code: "o3ppb", Label: "Ozone"},
		{Code: "so2", Label: "SO2"},
		{Code: "nh3", Label: "NH3"},
		{Code: "benzene", Label: "Benzene"},
		{Code: "ethbenzene", Label: "Eth-Benzene"},
		{Code: "toluene", Label: "Toluene"},
		{Code: "xylene", Label: "Xylene"},
		{Code: "rh", Label: "RH"},
		{Code: "tempc", Label: "Temp"},
		{Code: "ws", Label: "WS"},
		{Code: "wd", Label: "WD"},
		{Code: "ch4", Label: "CH4"},
		{Code: "co2", Label: "CO2"},
		{Code: "at", Label: "AT"},
	}
}
