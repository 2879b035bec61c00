package achievement

import (
	"embed"
	"fmt"
	"io/fs"

	yaml "gopkg.in/yaml.v3"
)

//go:embed achievements.yaml
var defaultFiles embed.FS

// CatalogEntry describes one achievement for display purposes. Unlock
// state lives in the repository; the catalog is static metadata.
type CatalogEntry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
}

// Catalog holds the embedded achievement definitions.
type Catalog struct {
	byID  map[string]CatalogEntry
	order []string
}

// NewCatalog loads the embedded default definitions.
func NewCatalog() (*Catalog, error) {
	raw, err := fs.ReadFile(defaultFiles, "achievements.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded achievements: %w", err)
	}
	var doc struct {
		Achievements []CatalogEntry `yaml:"achievements"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse achievements: %w", err)
	}
	c := &Catalog{byID: make(map[string]CatalogEntry, len(doc.Achievements))}
	for _, e := range doc.Achievements {
		if e.ID == "" {
			return nil, fmt.Errorf("achievement entry without id")
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate achievement id %q", e.ID)
		}
		c.byID[e.ID] = e
		c.order = append(c.order, e.ID)
	}
	return c, nil
}

// Get returns the catalog entry for id, if defined.
func (c *Catalog) Get(id string) (CatalogEntry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// All returns entries in catalog order.
func (c *Catalog) All() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
