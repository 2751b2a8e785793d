// core/dataset_loader.go
package core

import (
	"bytes"
	"embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/signalsfoundry/libya-atlas/kb"
	"github.com/signalsfoundry/libya-atlas/model"
)

//go:embed data/fallback_municipalities.csv
var fallbackFS embed.FS

const fallbackPath = "data/fallback_municipalities.csv"

// Column layout of the municipality CSV: name,population,lat,lon,region.
const (
	colName = iota
	colPopulation
	colLat
	colLon
	colRegion
	minColumns
)

// RowError describes a CSV row that was dropped during loading.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// LoadOptions tunes how loosely a dataset is interpreted.
type LoadOptions struct {
	// InferRegions assigns a region from coordinates when the region
	// column is missing or unrecognised.
	InferRegions bool
}

// MunicipalityDataset is the result of parsing a municipality CSV.
type MunicipalityDataset struct {
	Municipalities []model.Municipality
	Skipped        []RowError
}

// ParseMunicipalitiesCSV reads name,population,lat,lon,region rows after a
// header line. Rows with too few columns or without usable coordinates are
// dropped and reported in Skipped; a missing population reads as 0 and an
// unrecognised region as RegionUnknown. Later rows repeating a name are
// dropped. Only I/O failures are returned as errors.
func ParseMunicipalitiesCSV(r io.Reader, opts LoadOptions) (*MunicipalityDataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	out := &MunicipalityDataset{}
	seen := make(map[string]struct{})
	header := true

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			if !header {
				out.Skipped = append(out.Skipped, RowError{Line: perr.StartLine, Reason: perr.Err.Error()})
			}
			header = false
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("ParseMunicipalitiesCSV: read failed: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if header {
			header = false
			continue
		}
		if isBlankRecord(record) {
			continue
		}

		m, reason := parseMunicipalityRecord(record, opts)
		if reason != "" {
			out.Skipped = append(out.Skipped, RowError{Line: line, Reason: reason})
			continue
		}
		if _, dup := seen[m.Name]; dup {
			out.Skipped = append(out.Skipped, RowError{Line: line, Reason: fmt.Sprintf("duplicate name %q", m.Name)})
			continue
		}
		seen[m.Name] = struct{}{}
		m.Order = len(out.Municipalities)
		out.Municipalities = append(out.Municipalities, m)
	}
	return out, nil
}

func parseMunicipalityRecord(record []string, opts LoadOptions) (model.Municipality, string) {
	if len(record) < minColumns {
		return model.Municipality{}, fmt.Sprintf("expected %d columns, got %d", minColumns, len(record))
	}
	name := strings.TrimSpace(record[colName])
	if name == "" {
		return model.Municipality{}, "empty name"
	}
	lat, okLat := parseCoordinate(record[colLat])
	lon, okLon := parseCoordinate(record[colLon])
	if !okLat || !okLon {
		return model.Municipality{}, "missing or unparseable coordinates"
	}

	region := model.ParseRegion(record[colRegion])
	if region == model.RegionUnknown && opts.InferRegions {
		region = model.InferRegion(lat, lon)
	}

	return model.Municipality{
		Name:       name,
		Population: parsePopulation(record[colPopulation]),
		Region:     region,
		Lat:        lat,
		Lon:        lon,
	}, ""
}

// parseCoordinate treats zero as missing: no municipality sits on the
// equator or the prime meridian.
func parseCoordinate(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

// parsePopulation reads the leading digits of s, so "1200 (est.)" is 1200.
// Anything without leading digits reads as 0.
func parsePopulation(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return v
}

func isBlankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Property keys tried, in order, for a district's display name.
var districtNameKeys = []string{"name", "NAME", "name_ar", "shapeName", "ADM1_AR", "ADM1_EN"}

// ParseDistrictsGeoJSON decodes a FeatureCollection of district boundaries.
// Features without geometry are ignored.
func ParseDistrictsGeoJSON(r io.Reader) ([]model.District, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ParseDistrictsGeoJSON: read failed: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("ParseDistrictsGeoJSON: decode failed: %w", err)
	}

	districts := make([]model.District, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		districts = append(districts, model.District{
			Name:     districtName(f, i),
			Geometry: f.Geometry,
		})
	}
	return districts, nil
}

func districtName(f *geojson.Feature, index int) string {
	for _, key := range districtNameKeys {
		if v, ok := f.Properties[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return fmt.Sprintf("district-%d", index+1)
}

// FallbackMunicipalities returns the embedded three-city dataset used when
// the configured dataset cannot be loaded.
func FallbackMunicipalities() []model.Municipality {
	data, err := fallbackFS.ReadFile(fallbackPath)
	if err != nil {
		panic(fmt.Sprintf("core: embedded fallback dataset missing: %v", err))
	}
	ds, err := ParseMunicipalitiesCSV(bytes.NewReader(data), LoadOptions{})
	if err != nil {
		panic(fmt.Sprintf("core: embedded fallback dataset unreadable: %v", err))
	}
	return ds.Municipalities
}

// DatasetSummary reports what LoadDataset put into the store.
type DatasetSummary struct {
	Municipalities int
	Districts      int
	Skipped        []RowError
}

// LoadDataset parses a municipality CSV and an optional district GeoJSON
// and replaces the store contents with them. A nil geo reader loads no
// districts.
func LoadDataset(store *kb.KnowledgeBase, csvData, geo io.Reader, opts LoadOptions) (*DatasetSummary, error) {
	if store == nil {
		return nil, fmt.Errorf("LoadDataset: store is nil")
	}
	ds, err := ParseMunicipalitiesCSV(csvData, opts)
	if err != nil {
		return nil, err
	}

	var districts []model.District
	if geo != nil {
		districts, err = ParseDistrictsGeoJSON(geo)
		if err != nil {
			return nil, err
		}
	}

	if err := store.Load(ds.Municipalities, districts); err != nil {
		return nil, fmt.Errorf("LoadDataset: %w", err)
	}
	return &DatasetSummary{
		Municipalities: len(ds.Municipalities),
		Districts:      len(districts),
		Skipped:        ds.Skipped,
	}, nil
}
