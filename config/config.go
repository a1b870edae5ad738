// Package config loads the three YAML documents the Mapping Compiler
// consumes (spec §6): field-mapping, defaults, and per-attribute filter
// specs. First-match-wins precedence among a Filter's regex rules
// depends on document order (§4.2), so loading goes through yaml.v3's Node API
// rather than a plain map[string]string, which Go does not iterate in
// insertion order.
package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// OrderedMap is a string-to-string mapping that preserves the key order
// of the YAML document it was decoded from.
type OrderedMap struct {
	Keys   []string
	Values map[string]string
}

// Value looks up a key, reporting whether it was present. The "~" YAML
// null literal is stored as NullLiteral and mapped to filter.Absent by
// the caller comparing against NullLiteral, not here: OrderedMap only
// deals in strings.
func (m *OrderedMap) Value(key string) (string, bool) {
	v, ok := m.Values[key]
	return v, ok
}

// UnmarshalYAML decodes a YAML mapping node while recording key order.
func (m *OrderedMap) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("config: expected a YAML mapping, got %v", node.Kind)
	}
	m.Values = make(map[string]string, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		key := keyNode.Value
		var val string
		if valNode.Tag == "!!null" {
			val = NullLiteral
		} else {
			val = valNode.Value
		}
		m.Keys = append(m.Keys, key)
		m.Values[key] = val
	}
	return nil
}

// NullLiteral is the sentinel OrderedMap stores for a YAML "~"/null
// scalar, so callers can map it onto filter.Absent without this
// package importing filter.
const NullLiteral = "\x00yaml-null\x00"

// FieldMapping is the field-mapping config (§6): source header string
// to comma-separated attribute paths.
type FieldMapping struct{ OrderedMap }

// LoadFieldMapping decodes a field-mapping document.
func LoadFieldMapping(r io.Reader) (*FieldMapping, error) {
	fm := &FieldMapping{}
	if err := yaml.NewDecoder(r).Decode(&fm.OrderedMap); err != nil {
		return nil, fmt.Errorf("config: field mapping: %w", err)
	}
	return fm, nil
}

// Defaults is the defaults config (§6): attribute path to literal.
type Defaults struct{ OrderedMap }

// LoadDefaults decodes a defaults document.
func LoadDefaults(r io.Reader) (*Defaults, error) {
	d := &Defaults{}
	if err := yaml.NewDecoder(r).Decode(&d.OrderedMap); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	return d, nil
}

// FilterSpec is the filter config (§6): attribute path to a nested
// literal/regex rule map.
type FilterSpec struct {
	Paths  []string
	Rules  map[string]*OrderedMap
}

// LoadFilterSpec decodes a filter-spec document.
func LoadFilterSpec(r io.Reader) (*FilterSpec, error) {
	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil {
		if err == io.EOF {
			return &FilterSpec{Rules: map[string]*OrderedMap{}}, nil
		}
		return nil, fmt.Errorf("config: filter spec: %w", err)
	}
	doc := &root
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return &FilterSpec{Rules: map[string]*OrderedMap{}}, nil
		}
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config: filter spec: expected a YAML mapping, got %v", doc.Kind)
	}
	fs := &FilterSpec{Rules: map[string]*OrderedMap{}}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		path := doc.Content[i].Value
		rules := &OrderedMap{}
		if err := rules.UnmarshalYAML(doc.Content[i+1]); err != nil {
			return nil, fmt.Errorf("config: filter spec: attribute %q: %w", path, err)
		}
		fs.Paths = append(fs.Paths, path)
		fs.Rules[path] = rules
	}
	return fs, nil
}
