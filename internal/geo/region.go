package geo

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alanyoungcy/pasarmalam/internal/domain"
)

//go:embed regions.yaml
var defaultRegions []byte

// Region is a named latitude/longitude bounding box.
type Region struct {
	Name   string  `yaml:"name" json:"name"`
	MinLat float64 `yaml:"min_lat" json:"min_lat"`
	MinLng float64 `yaml:"min_lng" json:"min_lng"`
	MaxLat float64 `yaml:"max_lat" json:"max_lat"`
	MaxLng float64 `yaml:"max_lng" json:"max_lng"`
}

// Contains reports whether c lies inside the box, edges included.
func (r Region) Contains(c domain.Coordinate) bool {
	return c.Latitude >= r.MinLat && c.Latitude <= r.MaxLat &&
		c.Longitude >= r.MinLng && c.Longitude <= r.MaxLng
}

// RegionTable is an ordered list of regions. Boxes may overlap; Locate
// returns the first one that contains the point.
type RegionTable struct {
	regions []Region
}

type regionFile struct {
	Regions []Region `yaml:"regions"`
}

// NewRegionTable builds a table from regions in the given order.
func NewRegionTable(regions []Region) *RegionTable {
	cp := make([]Region, len(regions))
	copy(cp, regions)
	return &RegionTable{regions: cp}
}

// DefaultRegions returns the built-in table for Malaysian states and
// federal territories.
func DefaultRegions() *RegionTable {
	t, err := decodeRegions(defaultRegions)
	if err != nil {
		panic(fmt.Sprintf("geo: embedded regions: %v", err))
	}
	return t
}

// LoadRegions reads a YAML region table from path. An empty path returns the
// built-in table.
func LoadRegions(path string) (*RegionTable, error) {
	if path == "" {
		return DefaultRegions(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open regions %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("geo: read regions %s: %w", path, err)
	}
	return decodeRegions(data)
}

func decodeRegions(data []byte) (*RegionTable, error) {
	var rf regionFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("geo: decode regions: %w", err)
	}
	for i, r := range rf.Regions {
		if r.Name == "" {
			return nil, fmt.Errorf("geo: region %d has no name", i)
		}
		if r.MinLat > r.MaxLat || r.MinLng > r.MaxLng {
			return nil, fmt.Errorf("geo: region %q has inverted bounds", r.Name)
		}
	}
	return NewRegionTable(rf.Regions), nil
}

// Locate returns the name of the first region containing c. Coordinates
// outside the legal lat/lng ranges, or outside every box, report false.
func (t *RegionTable) Locate(c domain.Coordinate) (string, bool) {
	if !ValidCoordinate(c) {
		return "", false
	}
	for _, r := range t.regions {
		if r.Contains(c) {
			return r.Name, true
		}
	}
	return "", false
}

// Names lists the region names in table order.
func (t *RegionTable) Names() []string {
	names := make([]string, len(t.regions))
	for i, r := range t.regions {
		names[i] = r.Name
	}
	return names
}

// Regions returns a copy of the table.
func (t *RegionTable) Regions() []Region {
	cp := make([]Region, len(t.regions))
	copy(cp, t.regions)
	return cp
}
