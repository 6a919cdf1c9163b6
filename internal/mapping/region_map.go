package mapping

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultRegion is used for records whose log carried no region header
const DefaultRegion = "Unknown"

// RegionInfo contains region metadata
type RegionInfo struct {
	Name  string `yaml:"name"`
	Notes string `yaml:"notes"`
}

// RegionMap maps region names found in logs to display names
type RegionMap struct {
	DefaultRegion string                `yaml:"default_region"`
	Regions       map[string]RegionInfo `yaml:"regions"`

	index map[string]string // lowercased alias -> display name
}

// NewRegionMap creates an empty region map
func NewRegionMap() *RegionMap {
	rm := &RegionMap{Regions: make(map[string]RegionInfo)}
	rm.buildIndex()
	return rm
}

// LoadRegionMap loads region_map.yaml
// A missing file is not an error: an empty map is returned
func LoadRegionMap(path string) (*RegionMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().
				Str("path", path).
				Str("default_region", DefaultRegion).
				Msg("Region map not found, region names are used as logged")
			return NewRegionMap(), nil
		}
		return nil, fmt.Errorf("failed to read region map: %w", err)
	}

	return ParseRegionMap(data)
}

// ParseRegionMap parses region map YAML
func ParseRegionMap(data []byte) (*RegionMap, error) {
	var rm RegionMap
	if err := yaml.Unmarshal(data, &rm); err != nil {
		return nil, fmt.Errorf("failed to parse region map: %w", err)
	}

	if rm.Regions == nil {
		rm.Regions = make(map[string]RegionInfo)
	}
	rm.buildIndex()

	return &rm, nil
}

// Resolve returns the display name for a region found in a log
// Empty regions resolve to the default region, unmapped ones are returned trimmed
func (rm *RegionMap) Resolve(region string) string {
	region = strings.TrimSpace(region)
	if region == "" {
		if rm.DefaultRegion != "" {
			return rm.DefaultRegion
		}
		return DefaultRegion
	}

	if name, ok := rm.index[strings.ToLower(region)]; ok {
		return name
	}
	return region
}

func (rm *RegionMap) buildIndex() {
	rm.index = make(map[string]string, len(rm.Regions))
	for alias, info := range rm.Regions {
		name := strings.TrimSpace(info.Name)
		if name == "" {
			continue
		}
		rm.index[strings.ToLower(strings.TrimSpace(alias))] = name
	}
}
