// Package catalog loads the hierarchical tag catalog from a YAML file and
// keeps the database in step with it.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/inbox/internal/apperr"
	"github.com/starford/inbox/internal/models"
)

// Node is one tag in the catalog file. A bare scalar is shorthand for a
// leaf: "- errands" equals "- name: errands".
type Node struct {
	Name     string `yaml:"name"`
	Children []Node `yaml:"children"`
}

// UnmarshalYAML accepts both the mapping and the scalar form.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		n.Name = value.Value
		return nil
	}
	type plain Node
	return value.Decode((*plain)(n))
}

type document struct {
	Tags []Node `yaml:"tags"`
}

var noSlash = validation.By(func(v any) error {
	if strings.Contains(v.(string), "/") {
		return errors.New("must not contain '/'")
	}
	return nil
})

// Parse decodes a catalog file into entries ordered parent-first, depth
// first in file order. An empty document yields an empty catalog.
func Parse(data []byte) ([]models.CatalogEntry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Invalid("catalog", fmt.Errorf("decode yaml: %w", err))
	}
	var out []models.CatalogEntry
	if err := flatten(doc.Tags, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(nodes []Node, parent string, out *[]models.CatalogEntry) error {
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		name := strings.TrimSpace(n.Name)
		if err := validation.Validate(name, validation.Required, noSlash); err != nil {
			return apperr.Invalid("catalog", fmt.Errorf("tag under %q: %w", rootLabel(parent), err))
		}
		if _, dup := seen[name]; dup {
			return apperr.Invalid("catalog", fmt.Errorf("duplicate tag %q under %q", name, rootLabel(parent)))
		}
		seen[name] = struct{}{}

		path := name
		if parent != "" {
			path = parent + "/" + name
		}
		*out = append(*out, models.CatalogEntry{Name: name, Path: path, ParentPath: parent})
		if err := flatten(n.Children, path, out); err != nil {
			return err
		}
	}
	return nil
}

func rootLabel(parent string) string {
	if parent == "" {
		return "<root>"
	}
	return parent
}
