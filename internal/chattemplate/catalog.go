package chattemplate

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// Entry describes one chat template and the model ids it applies to.
type Entry struct {
	Name          string   `yaml:"name"`
	Match         []string `yaml:"match"`
	DefaultSystem string   `yaml:"default_system"`
	Source        string   `yaml:"source"`
}

// Catalog is an ordered list of template entries. The first match wins.
type Catalog struct {
	Templates []Entry `yaml:"templates"`
}

// Builtin returns the catalog shipped with the binary.
func Builtin() (*Catalog, error) {
	return Parse(builtinCatalog)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse chat template catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads a catalog file from disk.
func Load(path string) (*Catalog, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve chat template catalog path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read chat template catalog %q: %w", absPath, err)
	}
	return Parse(data)
}

// Merge returns a catalog whose entries are searched before the receiver's.
func (c *Catalog) Merge(override *Catalog) *Catalog {
	if override == nil {
		return c
	}
	merged := make([]Entry, 0, len(override.Templates)+len(c.Templates))
	merged = append(merged, override.Templates...)
	merged = append(merged, c.Templates...)
	return &Catalog{Templates: merged}
}

// Lookup compiles the first template whose match list fits modelID.
func (c *Catalog) Lookup(modelID string) (*Template, error) {
	id := strings.ToLower(strings.TrimSpace(modelID))
	for _, entry := range c.Templates {
		if !entry.matches(id) {
			continue
		}
		return Compile(entry.Name, entry.Source, entry.DefaultSystem)
	}
	return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, modelID)
}

func (c *Catalog) validate() error {
	for i, entry := range c.Templates {
		if strings.TrimSpace(entry.Name) == "" {
			return fmt.Errorf("templates[%d]: name must not be empty", i)
		}
		if len(entry.Match) == 0 {
			return fmt.Errorf("template %s: at least one match pattern is required", entry.Name)
		}
		if strings.TrimSpace(entry.Source) == "" {
			return fmt.Errorf("template %s: source must not be empty", entry.Name)
		}
	}
	return nil
}

func (e Entry) matches(modelID string) bool {
	for _, pattern := range e.Match {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if strings.Contains(modelID, pattern) {
			return true
		}
	}
	return false
}
