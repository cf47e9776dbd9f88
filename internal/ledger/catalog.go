package ledger

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultBaseAttack is used for card names the catalog does not know.
const DefaultBaseAttack = 100

// Template is one entry of the card catalog: the printable card identity and
// the base attack used to derive a card's stored attack stat.
type Template struct {
	Name       string `yaml:"name"`
	Rarity     Rarity `yaml:"rarity"`
	BaseAttack int    `yaml:"base_attack"`
}

// Catalog maps card names to their templates.
type Catalog struct {
	templates   map[string]Template
	defaultBase int
}

// catalogFile is the top-level YAML structure.
type catalogFile struct {
	DefaultBaseAttack int        `yaml:"default_base_attack"`
	Cards             []Template `yaml:"cards"`
}

// NewCatalog builds a catalog from templates, for tests and embedding.
func NewCatalog(templates ...Template) *Catalog {
	c := &Catalog{templates: make(map[string]Template), defaultBase: DefaultBaseAttack}
	for _, t := range templates {
		c.templates[t.Name] = t
	}
	return c
}

// LoadCatalog parses a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse catalog YAML: %w", err)
	}

	c := NewCatalog(cf.Cards...)
	if cf.DefaultBaseAttack > 0 {
		c.defaultBase = cf.DefaultBaseAttack
	}
	return c, nil
}

// BaseAttack returns the base attack for a card name, falling back to the
// catalog default for unknown names.
func (c *Catalog) BaseAttack(name string) int {
	if t, ok := c.templates[name]; ok && t.BaseAttack > 0 {
		return t.BaseAttack
	}
	return c.defaultBase
}

// Template looks up a template by name.
func (c *Catalog) Template(name string) (Template, bool) {
	t, ok := c.templates[name]
	return t, ok
}

// Templates returns all templates sorted by name.
func (c *Catalog) Templates() []Template {
	out := make([]Template, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
