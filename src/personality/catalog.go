package personality

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed data/traits.toml
var embeddedCatalog embed.FS

// TraitInfo describes one known personality trait.
type TraitInfo struct {
	Name             string   `toml:"name"`
	Description      string   `toml:"description"`
	Expression       string   `toml:"expression"`
	Backstory        string   `toml:"backstory"`
	KnowledgeDomains []string `toml:"knowledge_domains"`
}

// Catalog is the ordered trait table. Order is precedence.
type Catalog struct {
	DefaultBackstory string      `toml:"default_backstory"`
	Traits           []TraitInfo `toml:"trait"`

	index map[string]int
}

var (
	defaultCatalog     *Catalog
	defaultCatalogErr  error
	defaultCatalogOnce sync.Once
)

// DefaultCatalog returns the embedded catalogue, parsed once.
func DefaultCatalog() *Catalog {
	defaultCatalogOnce.Do(func() {
		data, err := embeddedCatalog.ReadFile("data/traits.toml")
		if err != nil {
			defaultCatalogErr = err
			return
		}
		defaultCatalog, defaultCatalogErr = ParseCatalog(data)
	})
	if defaultCatalogErr != nil {
		// The embedded file ships with the binary; failing here is a build defect.
		panic(fmt.Sprintf("embedded trait catalogue: %v", defaultCatalogErr))
	}
	return defaultCatalog
}

// LoadCatalogFile reads a user-supplied catalogue from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if _, err := toml.Decode(string(data), &c); err != nil {
		return nil, fmt.Errorf("failed to parse trait catalogue: %w", err)
	}
	c.index = make(map[string]int, len(c.Traits))
	for i, t := range c.Traits {
		name := normalize(t.Name)
		if name == "" {
			return nil, fmt.Errorf("trait %d has no name", i)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("trait %q listed twice", name)
		}
		c.Traits[i].Name = name
		c.index[name] = i
	}
	return &c, nil
}

// Lookup finds a trait by name, ignoring case and surrounding space.
func (c *Catalog) Lookup(name string) (TraitInfo, bool) {
	i, ok := c.index[normalize(name)]
	if !ok {
		return TraitInfo{}, false
	}
	return c.Traits[i], true
}

// inOrder yields the catalogue entries present in traits, in catalogue order.
func (c *Catalog) inOrder(traits []string) []TraitInfo {
	var out []TraitInfo
	for _, t := range c.Traits {
		if contains(traits, t.Name) {
			out = append(out, t)
		}
	}
	return out
}

// Expressions returns up to limit image expression clauses for traits, in
// the character's own trait order.
func (c *Catalog) Expressions(traits []string, limit int) []string {
	var out []string
	for _, t := range NormalizeTraits(traits) {
		info, ok := c.Lookup(t)
		if !ok || info.Expression == "" {
			continue
		}
		out = append(out, info.Expression)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Backstory fills the first matching trait template, or the default one.
func (c *Catalog) Backstory(name, gender string, traits []string) string {
	template := c.DefaultBackstory
	for _, t := range c.inOrder(traits) {
		if t.Backstory != "" {
			template = t.Backstory
			break
		}
	}
	if name == "" {
		name = "This companion"
	}
	return strings.NewReplacer("{name}", name, "{noun}", genderNoun(gender)).Replace(template)
}

func genderNoun(gender string) string {
	switch normalize(gender) {
	case "female", "woman":
		return "woman"
	case "male", "man":
		return "man"
	default:
		return "soul"
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeTraits trims, lowercases and deduplicates, keeping first occurrence.
func NormalizeTraits(traits []string) []string {
	out := make([]string, 0, len(traits))
	for _, t := range traits {
		n := normalize(t)
		if n == "" || contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}
