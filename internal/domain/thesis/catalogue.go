package thesis

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var catalogueYAML []byte

// CatalogueEntry describes one known section
type CatalogueEntry struct {
	Name     string `yaml:"name"`
	Title    string `yaml:"title"`
	Guidance string `yaml:"guidance"`
}

// Catalogue is the ordered list of known sections
type Catalogue struct {
	entries []CatalogueEntry
	index   map[string]int
}

type catalogueFile struct {
	Sections []CatalogueEntry `yaml:"sections"`
}

// LoadCatalogue parses a catalogue document. Names are normalised and must be unique.
func LoadCatalogue(data []byte) (*Catalogue, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse section catalogue: %w", err)
	}
	if len(f.Sections) == 0 {
		return nil, fmt.Errorf("section catalogue is empty")
	}

	c := &Catalogue{
		entries: make([]CatalogueEntry, 0, len(f.Sections)),
		index:   make(map[string]int, len(f.Sections)),
	}
	for _, e := range f.Sections {
		name := NormalizeSectionName(e.Name)
		if !ValidSectionName(name) {
			return nil, fmt.Errorf("invalid section name %q in catalogue", e.Name)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("duplicate section %q in catalogue", name)
		}
		e.Name = name
		if e.Title == "" {
			e.Title = TitleFromName(name)
		}
		c.index[name] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

var defaultCatalogue = sync.OnceValue(func() *Catalogue {
	c, err := LoadCatalogue(catalogueYAML)
	if err != nil {
		panic(err)
	}
	return c
})

// DefaultCatalogue returns the embedded catalogue
func DefaultCatalogue() *Catalogue {
	return defaultCatalogue()
}

// Entries returns a copy of the entries in order
func (c *Catalogue) Entries() []CatalogueEntry {
	out := make([]CatalogueEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns the section names in order
func (c *Catalogue) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.Name
	}
	return names
}

// Lookup finds an entry by (normalised) name
func (c *Catalogue) Lookup(name string) (CatalogueEntry, bool) {
	i, ok := c.index[NormalizeSectionName(name)]
	if !ok {
		return CatalogueEntry{}, false
	}
	return c.entries[i], true
}

// Len returns the number of known sections
func (c *Catalogue) Len() int {
	return len(c.entries)
}
