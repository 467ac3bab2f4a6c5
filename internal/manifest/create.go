// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/p2kb/internal/kbfile"
)

// Output names of the generated manifests.
const (
	InstructionManifestFile = "instruction_manifest.yaml"
	Spin2ManifestFile       = "method_manifest.yaml"
)

const manifestVersion = "2.0.0"

// InstructionGroup lists the files that share a first letter.
type InstructionGroup struct {
	Description  string   `yaml:"description"`
	Instructions []string `yaml:"instructions"`
}

// InstructionManifest indexes the instruction directory.
type InstructionManifest struct {
	ManifestType      string                      `yaml:"manifest_type"`
	Version           string                      `yaml:"version"`
	Description       string                      `yaml:"description"`
	TotalInstructions int                         `yaml:"total_instructions"`
	InstructionGroups map[string]InstructionGroup `yaml:"instruction_groups"`
	SpecialGroups     SpecialGroups               `yaml:"special_groups"`
}

// SpecialGroups points at the non-instruction subtrees.
type SpecialGroups struct {
	Concepts string `yaml:"concepts"`
	Idioms   string `yaml:"idioms"`
	Groups   string `yaml:"groups"`
	Patterns string `yaml:"patterns"`
}

// listRecords returns the YAML files of dir, excluding manifests and
// indexes.
func listRecords(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || filepath.Ext(n) != ".yaml" {
			continue
		}
		if strings.HasSuffix(n, "_manifest.yaml") || strings.HasSuffix(n, "-index.yaml") {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// BuildInstructionManifest groups the record files of dir by first letter.
func BuildInstructionManifest(dir string) (InstructionManifest, error) {
	files, err := listRecords(dir)
	if err != nil {
		return InstructionManifest{}, err
	}
	m := InstructionManifest{
		ManifestType:      "instruction_index",
		Version:           manifestVersion,
		Description:       "P2 PASM2 instruction set manifest",
		TotalInstructions: len(files),
		InstructionGroups: map[string]InstructionGroup{},
		SpecialGroups: SpecialGroups{
			Concepts: "concepts/",
			Idioms:   "idioms/",
			Groups:   "groups/",
			Patterns: "patterns/pattern_manifest.yaml",
		},
	}
	for _, f := range files {
		letter := "_"
		if !strings.HasPrefix(f, "_") {
			letter = strings.ToUpper(f[:1])
		}
		key := "group_" + letter
		g := m.InstructionGroups[key]
		g.Description = fmt.Sprintf("Instructions starting with '%s'", letter)
		g.Instructions = append(g.Instructions, f)
		m.InstructionGroups[key] = g
	}
	return m, nil
}

// CreateInstructionManifest writes instruction_manifest.yaml into dir and
// returns the number of instructions listed.
func CreateInstructionManifest(dir string, snap kbfile.Snapshotter) (int, error) {
	m, err := BuildInstructionManifest(dir)
	if err != nil {
		return 0, err
	}
	if err := kbfile.WriteYAML(filepath.Join(dir, InstructionManifestFile), m, snap, "create-manifest"); err != nil {
		return 0, fmt.Errorf("writing instruction manifest: %w", err)
	}
	return m.TotalInstructions, nil
}

// Component is one part of the Spin2 language tree.
type Component struct {
	Name        string   `yaml:"-"`
	Description string   `yaml:"description"`
	Path        string   `yaml:"path"`
	Files       []string `yaml:"files,omitempty"`
}

// Spin2Manifest indexes the Spin2 language tree.
type Spin2Manifest struct {
	ManifestType       string      `yaml:"manifest_type"`
	Version            string      `yaml:"version"`
	Description        string      `yaml:"description"`
	TotalMethods       int         `yaml:"total_methods"`
	LanguageComponents []Component `yaml:"-"`
}

// MarshalYAML writes the components as a mapping keyed by name, in order.
func (m Spin2Manifest) MarshalYAML() (any, error) {
	type header struct {
		ManifestType string `yaml:"manifest_type"`
		Version      string `yaml:"version"`
		Description  string `yaml:"description"`
		TotalMethods int    `yaml:"total_methods"`
	}
	n, err := kbfile.NodeOf(header{m.ManifestType, m.Version, m.Description, m.TotalMethods})
	if err != nil {
		return nil, err
	}
	comps := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, c := range m.LanguageComponents {
		cn, err := kbfile.NodeOf(c)
		if err != nil {
			return nil, err
		}
		kbfile.SetMappingValue(comps, c.Name, cn)
	}
	kbfile.SetMappingValue(n, "language_components", comps)
	return n, nil
}

// spin2Components lists the fixed parts of the language tree, in order.
var spin2Components = []Component{
	{Name: "keywords", Description: "Spin2 language keywords", Path: "keywords/"},
	{Name: "operators", Description: "Spin2 operators", Path: "operators/"},
	{Name: "registers", Description: "Spin2 accessible registers", Path: "registers/"},
	{Name: "special_symbols", Description: "Special symbols and directives", Path: "special-symbols/"},
	{Name: "debug_commands", Description: "Debug system commands", Path: "debug-commands/"},
	{Name: "debug_displays", Description: "Debug display modes", Path: "debug-displays/"},
	{Name: "assembly_directives", Description: "Inline assembly directives", Path: "assembly-directives/"},
	{Name: "system_variables", Description: "System variables", Path: "system-variables/"},
	{Name: "constants", Description: "Built-in constants", Path: "constants/"},
	{Name: "constructs", Description: "Language constructs", Path: "constructs/"},
	{Name: "concepts", Description: "Language concepts", Path: "concepts/"},
	{Name: "idioms", Description: "Common Spin2 idioms", Path: "idioms/"},
	{Name: "patterns", Description: "Code patterns", Path: "patterns/pattern-index.yaml"},
}

// BuildSpin2Manifest lists the method files under dir/methods.
func BuildSpin2Manifest(dir string) (Spin2Manifest, error) {
	var methods []string
	if _, err := os.Stat(filepath.Join(dir, "methods")); err == nil {
		if methods, err = listRecords(filepath.Join(dir, "methods")); err != nil {
			return Spin2Manifest{}, err
		}
	}
	comps := append([]Component{{
		Name:        "methods",
		Description: "Built-in Spin2 methods",
		Path:        "methods/",
		Files:       methods,
	}}, spin2Components...)
	return Spin2Manifest{
		ManifestType:       "spin2_language_manifest",
		Version:            manifestVersion,
		Description:        "P2 Spin2 language complete manifest",
		TotalMethods:       len(methods),
		LanguageComponents: comps,
	}, nil
}

// CreateSpin2Manifest writes method_manifest.yaml into dir and returns the
// number of methods listed.
func CreateSpin2Manifest(dir string, snap kbfile.Snapshotter) (int, error) {
	m, err := BuildSpin2Manifest(dir)
	if err != nil {
		return 0, err
	}
	if err := kbfile.WriteYAML(filepath.Join(dir, Spin2ManifestFile), m, snap, "create-manifest"); err != nil {
		return 0, fmt.Errorf("writing spin2 manifest: %w", err)
	}
	return m.TotalMethods, nil
}
