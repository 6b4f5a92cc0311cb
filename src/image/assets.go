package image

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed data/assets.toml
var defaultAssetsTOML []byte

const (
	fallbackGender = "nonbinary"
	fallbackStyle  = "default"
)

// Assets maps gender and art style to a curated portrait path.
type Assets map[string]map[string]string

var (
	defaultAssets     Assets
	defaultAssetsOnce sync.Once
)

// DefaultAssets returns the embedded asset table.
func DefaultAssets() Assets {
	defaultAssetsOnce.Do(func() {
		a, err := ParseAssets(defaultAssetsTOML)
		if err != nil {
			panic(fmt.Sprintf("embedded asset table is invalid: %v", err))
		}
		defaultAssets = a
	})
	return defaultAssets
}

// ParseAssets decodes an asset table. The nonbinary table and every
// default entry are required since lookups fall back to them.
func ParseAssets(data []byte) (Assets, error) {
	var a Assets
	if _, err := toml.Decode(string(data), &a); err != nil {
		return nil, fmt.Errorf("failed to parse asset table: %w", err)
	}
	if _, ok := a[fallbackGender]; !ok {
		return nil, fmt.Errorf("asset table is missing [%s]", fallbackGender)
	}
	for gender, styles := range a {
		if styles[fallbackStyle] == "" {
			return nil, fmt.Errorf("asset table [%s] is missing %q", gender, fallbackStyle)
		}
	}
	return a, nil
}

// Lookup never misses: unknown genders use the nonbinary table and unknown
// styles use the gender's default.
func (a Assets) Lookup(gender, style string) string {
	styles, ok := a[strings.ToLower(strings.TrimSpace(gender))]
	if !ok {
		styles = a[fallbackGender]
	}
	if path, ok := styles[canonicalStyle(style)]; ok {
		return path
	}
	return styles[fallbackStyle]
}
