// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kbfile

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// ErrEmptyDocument is returned when a YAML file holds no document.
var ErrEmptyDocument = errors.New("empty YAML document")

// Document is a parsed YAML file whose top level is a mapping. Edits made
// through the helpers below keep key order, comments, and unknown fields.
type Document struct {
	root yaml.Node
}

// ReadDocument parses path into a Document.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDocument(data)
}

// ParseDocument parses data into a Document. The top level must be a mapping.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d.root); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if d.root.Kind != yaml.DocumentNode || len(d.root.Content) == 0 {
		return nil, ErrEmptyDocument
	}
	top := d.root.Content[0]
	if top.Tag == "!!null" {
		return nil, ErrEmptyDocument
	}
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level is not a mapping")
	}
	return &d, nil
}

// Root returns the top-level mapping node.
func (d *Document) Root() *yaml.Node {
	return d.root.Content[0]
}

// Lookup walks a chain of mapping keys from the root and returns the node
// found, or nil.
func (d *Document) Lookup(keys ...string) *yaml.Node {
	n := d.Root()
	for _, k := range keys {
		n = MappingValue(n, k)
		if n == nil {
			return nil
		}
	}
	return n
}

// String returns the scalar value at keys, or "" when absent or not a scalar.
func (d *Document) String(keys ...string) string {
	n := d.Lookup(keys...)
	if n == nil || n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return ""
	}
	return n.Value
}

// Decode decodes the whole document into v.
func (d *Document) Decode(v any) error {
	return d.Root().Decode(v)
}

// Bytes encodes the document with two-space indentation.
func (d *Document) Bytes() ([]byte, error) {
	return Marshal(&d.root)
}

// MappingValue returns the value node for key in mapping m, or nil.
func MappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// SetMappingValue replaces the value for key in mapping m, appending the
// pair when key is absent.
func SetMappingValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		value,
	)
}

// EnsureMapping returns the mapping stored at key in m, creating an empty
// one when key is absent or holds a non-mapping value.
func EnsureMapping(m *yaml.Node, key string) *yaml.Node {
	if v := MappingValue(m, key); v != nil && v.Kind == yaml.MappingNode {
		return v
	}
	v := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	SetMappingValue(m, key, v)
	return v
}

// SetString sets key in mapping m to a string scalar.
func SetString(m *yaml.Node, key, value string) {
	SetMappingValue(m, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

// NodeOf encodes v into a standalone node.
func NodeOf(v any) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return &n, nil
}

// IsEmpty reports whether n is absent or holds no content: null, an empty
// string, or an empty mapping or sequence.
func IsEmpty(n *yaml.Node) bool {
	if n == nil {
		return true
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Tag == "!!null" || n.Value == ""
	case yaml.MappingNode, yaml.SequenceNode:
		return len(n.Content) == 0
	case yaml.AliasNode:
		return IsEmpty(n.Alias)
	}
	return false
}
