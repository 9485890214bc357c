// Package plans is the static catalog of grove tiers and the upgrade ladder
// between them.
package plans

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed plans.toml
var embeddedCatalog string

// Plan is one tier of the catalog.
type Plan struct {
	ID         string `toml:"id" json:"id"`
	Name       string `toml:"name" json:"name"`
	TreeLimit  int    `toml:"tree_limit" json:"tree_limit"`
	PriceCents int64  `toml:"price_cents" json:"price_cents"`
}

type catalogFile struct {
	Ladder []string `toml:"ladder"`
	Plans  []Plan   `toml:"plan"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	plans  map[string]Plan
	ladder []string
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Read(strings.NewReader(embeddedCatalog))
	if err != nil {
		panic(fmt.Sprintf("embedded plan catalog is invalid: %v", err))
	}
	return c
}

// Load returns the embedded catalog, or the one at path when path is set.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan catalog: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes and validates a catalog document.
func Read(r io.Reader) (*Catalog, error) {
	var doc catalogFile
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode plan catalog: %w", err)
	}

	c := &Catalog{plans: make(map[string]Plan, len(doc.Plans))}
	for _, p := range doc.Plans {
		p.ID = normalizeID(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("plan without id")
		}
		if p.TreeLimit < 0 {
			return nil, fmt.Errorf("plan %s: tree_limit must not be negative", p.ID)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("plan %s declared twice", p.ID)
		}
		c.plans[p.ID] = p
	}
	for _, id := range doc.Ladder {
		id = normalizeID(id)
		if _, ok := c.plans[id]; !ok {
			return nil, fmt.Errorf("ladder references unknown plan %q", id)
		}
		c.ladder = append(c.ladder, id)
	}
	return c, nil
}

// GetPlan looks up a tier. The id is matched case-insensitively.
func (c *Catalog) GetPlan(id string) (Plan, bool) {
	p, ok := c.plans[normalizeID(id)]
	return p, ok
}

// Next returns the tier above id on the ladder. ok is false when id is the
// top tier or is not on the ladder.
func (c *Catalog) Next(id string) (Plan, bool) {
	id = normalizeID(id)
	for i, step := range c.ladder {
		if step != id {
			continue
		}
		if i+1 >= len(c.ladder) {
			return Plan{}, false
		}
		return c.plans[c.ladder[i+1]], true
	}
	return Plan{}, false
}

// Ladder returns the tier ids in upgrade order.
func (c *Catalog) Ladder() []string {
	return append([]string(nil), c.ladder...)
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
