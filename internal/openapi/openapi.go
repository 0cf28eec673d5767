// Package openapi reads an external API description and derives the
// navigation and search entries shown for it.
package openapi

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultTag groups operations that declare no tag. It always sorts last.
const DefaultTag = "Default"

var httpMethods = []string{"get", "post", "put", "delete", "patch"}

// ErrNotMapping indicates the document root is not an object.
var ErrNotMapping = errors.New("api description is not an object")

// Operation is one HTTP operation.
type Operation struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Summary     string `json:"summary"`
	Description string `json:"description,omitempty"`
	OperationID string `json:"operationId,omitempty"`
}

// TagGroup is the set of operations sharing a first tag.
type TagGroup struct {
	Tag         string      `json:"tag"`
	Description string      `json:"description,omitempty"`
	Operations  []Operation `json:"operations"`
}

// Spec is the subset of an API description the site renders.
type Spec struct {
	Title       string     `json:"title"`
	Version     string     `json:"version,omitempty"`
	Description string     `json:"description,omitempty"`
	Groups      []TagGroup `json:"groups"`
}

// Load reads and parses an API description (YAML or JSON).
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read api description: %w", err)
	}
	spec, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// Parse decodes an API description. Path order from the document is kept for
// operations sharing a path; otherwise operations are ordered by path.
func Parse(data []byte) (*Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse api description: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}

	spec := &Spec{}
	if info := mapGet(root, "info"); info != nil {
		spec.Title = scalar(mapGet(info, "title"))
		spec.Version = scalar(mapGet(info, "version"))
		spec.Description = scalar(mapGet(info, "description"))
	}

	tagDescriptions := map[string]string{}
	if tags := mapGet(root, "tags"); tags != nil && tags.Kind == yaml.SequenceNode {
		for _, t := range tags.Content {
			name, desc := scalar(mapGet(t, "name")), scalar(mapGet(t, "description"))
			if name != "" && desc != "" {
				tagDescriptions[name] = desc
			}
		}
	}

	var order []string
	byTag := map[string][]Operation{}
	if paths := mapGet(root, "paths"); paths != nil && paths.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(paths.Content); i += 2 {
			p, item := paths.Content[i].Value, paths.Content[i+1]
			if item.Kind != yaml.MappingNode {
				continue
			}
			for _, m := range httpMethods {
				opNode := mapGet(item, m)
				if opNode == nil || opNode.Kind != yaml.MappingNode {
					continue
				}
				tag := DefaultTag
				if tags := mapGet(opNode, "tags"); tags != nil && tags.Kind == yaml.SequenceNode && len(tags.Content) > 0 {
					if first := scalar(tags.Content[0]); first != "" {
						tag = first
					}
				}
				op := Operation{
					Method:      strings.ToUpper(m),
					Path:        p,
					Description: scalar(mapGet(opNode, "description")),
					OperationID: scalar(mapGet(opNode, "operationId")),
				}
				op.Summary = firstNonEmpty(scalar(mapGet(opNode, "summary")), op.Description, op.Method+" "+p)
				if _, seen := byTag[tag]; !seen {
					order = append(order, tag)
				}
				byTag[tag] = append(byTag[tag], op)
			}
		}
	}

	for _, tag := range order {
		ops := byTag[tag]
		sort.SliceStable(ops, func(i, j int) bool { return ops[i].Path < ops[j].Path })
		spec.Groups = append(spec.Groups, TagGroup{Tag: tag, Description: tagDescriptions[tag], Operations: ops})
	}
	sort.SliceStable(spec.Groups, func(i, j int) bool {
		a, b := spec.Groups[i].Tag, spec.Groups[j].Tag
		if a == DefaultTag || b == DefaultTag {
			return b == DefaultTag && a != DefaultTag
		}
		return a < b
	})
	return spec, nil
}

func mapGet(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func scalar(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode {
		return ""
	}
	return strings.TrimSpace(n.Value)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
