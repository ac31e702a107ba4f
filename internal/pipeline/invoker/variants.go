package invoker

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/microbrsoil-backend/internal/domain/pipeline"
)

//go:embed variants.yaml
var defaultVariants []byte

// Variant is one R entry point.
type Variant struct {
	Name     string            `yaml:"-"`
	Script   string            `yaml:"script"`
	Function string            `yaml:"function"`
	Type     string            `yaml:"type"`
	Args     map[string]string `yaml:"args"`
}

type catalogFile struct {
	Variants map[string]Variant `yaml:"variants"`
}

// Catalog maps canonical pipeline types to variants.
type Catalog struct {
	variants map[string]Variant
}

// LoadCatalog reads the variant table from path, or the built-in table when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return ParseCatalog(defaultVariants)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline variants %s: %w", path, err)
	}
	return ParseCatalog(raw)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse pipeline variants: %w", err)
	}
	if len(f.Variants) == 0 {
		return nil, fmt.Errorf("pipeline variants: no variants defined")
	}
	c := &Catalog{variants: make(map[string]Variant, len(f.Variants))}
	for name, v := range f.Variants {
		canonical, err := pipeline.ParseType(name)
		if err != nil {
			return nil, fmt.Errorf("pipeline variants: %w", err)
		}
		if v.Script == "" || v.Function == "" {
			return nil, fmt.Errorf("pipeline variant %q: script and function are required", name)
		}
		if v.Type == "" {
			v.Type = canonical
		}
		v.Name = canonical
		c.variants[canonical] = v
	}
	return c, nil
}

// Lookup resolves a pipeline type or alias.
func (c *Catalog) Lookup(pipelineType string) (Variant, error) {
	canonical, err := pipeline.ParseType(pipelineType)
	if err != nil {
		return Variant{}, err
	}
	v, ok := c.variants[canonical]
	if !ok {
		return Variant{}, &pipeline.UnknownTypeError{Type: pipelineType}
	}
	return v, nil
}

func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.variants))
	for name := range c.variants {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
