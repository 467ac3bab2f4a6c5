// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EntryKind classifies an indexed knowledge-base document.
type EntryKind string

const (
	KindInstruction EntryKind = "instruction"
	KindMethod      EntryKind = "method"
	KindObject      EntryKind = "object"
	KindDocument    EntryKind = "document"
)

// Entry is one YAML document in the search index.
type Entry struct {
	// ID is the document path relative to the knowledge-base root.
	ID string `json:"id" yaml:"id"`

	Kind EntryKind `json:"kind" yaml:"kind"`

	// Name is the mnemonic, method name, or object title.
	Name string `json:"name" yaml:"name"`

	// Group is the instruction group or method category, when known.
	Group string `json:"group,omitempty" yaml:"group,omitempty"`

	// Content is the flattened scalar text of the document.
	Content string `json:"content" yaml:"content"`
}
