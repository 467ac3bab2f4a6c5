// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lookup answers read-only queries against the knowledge-base tree:
// instruction records, instruction categories, smart pin modes, Spin2
// methods, and pattern notes.
package lookup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
	"golang.org/x/text/cases"

	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
	"github.com/pdiddy/p2kb/pkg/types"
)

// ErrNotFound is returned when a query matches no record.
var ErrNotFound = errors.New("not found")

// manifestFile lists instruction categories under the manifests directory.
const manifestFile = "pasm2-manifest.yaml"

// maxPatternMatches bounds the lines returned per pattern file.
const maxPatternMatches = 5

var (
	binaryModeRe  = regexp.MustCompile(`^\d{5}$`)
	decimalModeRe = regexp.MustCompile(`^\d+$`)
)

// KB resolves queries against one knowledge-base root.
type KB struct {
	cfg types.KnowledgeBaseConfig
}

// New returns a KB for cfg.
func New(cfg types.KnowledgeBaseConfig) *KB {
	return &KB{cfg: cfg}
}

// Root is the knowledge-base root.
func (kb *KB) Root() string { return kb.cfg.Root }

// Instruction returns the record for mnemonic. When category is set, that
// subdirectory is searched first; the whole instructions tree is searched
// after. Both <m>.yaml and pasm2_<m>.yaml match, ignoring case.
func (kb *KB) Instruction(mnemonic, category string) (map[string]any, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, errors.New("mnemonic is required")
	}
	dir := kb.cfg.Resolve(kb.cfg.InstructionsDir)
	want := []string{
		fold(mnemonic + ".yaml"),
		fold("pasm2_" + mnemonic + ".yaml"),
	}

	if category != "" {
		if path, ok := findFile(filepath.Join(dir, category), want); ok {
			return loadYAML(path)
		}
	}
	if path, ok := findFile(dir, want); ok {
		return loadYAML(path)
	}
	return nil, fmt.Errorf("instruction %q: %w", mnemonic, ErrNotFound)
}

// findFile walks dir in lexical order and returns the first file whose
// case-folded name is one of want.
func findFile(dir string, want []string) (string, bool) {
	var found string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := fold(d.Name())
		for _, w := range want {
			if name == w {
				found = path
				return filepath.SkipAll
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		l := kblog.WithComponent("lookup")
		l.Debug().Err(err).Str("dir", dir).Msg("walk instructions")
	}
	return found, found != ""
}

// Category is one entry of the instruction manifest.
type Category struct {
	Name         string   `json:"category" yaml:"name"`
	Path         string   `json:"-" yaml:"path"`
	Description  string   `json:"description" yaml:"description"`
	Instructions []string `json:"instructions" yaml:"instructions"`
}

type instructionManifest struct {
	Categories []Category `yaml:"categories"`
}

// InstructionList returns the category whose name (ignoring case) or path
// equals category. An unknown category yields an error naming the
// available ones.
func (kb *KB) InstructionList(category string) (Category, error) {
	path := filepath.Join(kb.cfg.Resolve(kb.cfg.ManifestsDir), manifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Category{}, fmt.Errorf("loading instruction manifest: %w", err)
	}
	var m instructionManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Category{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(m.Categories) == 0 {
		return Category{}, fmt.Errorf("%s lists no categories", path)
	}

	want := fold(category)
	names := make([]string, 0, len(m.Categories))
	for _, c := range m.Categories {
		if fold(c.Name) == want || c.Path == category {
			return c, nil
		}
		names = append(names, c.Name)
	}
	return Category{}, fmt.Errorf("category %q: %w; available categories: %s",
		category, ErrNotFound, strings.Join(names, ", "))
}

// SmartPinMode returns the record for mode, given as a 5-digit binary
// pattern, a decimal mode number, or a mode name.
func (kb *KB) SmartPinMode(mode string) (map[string]any, error) {
	mode = strings.TrimSpace(mode)
	if mode == "" {
		return nil, errors.New("mode is required")
	}
	pattern, err := smartPinPattern(mode)
	if err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(kb.cfg.Resolve(kb.cfg.SmartPinsDir), pattern))
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("smart pin mode %q: %w", mode, ErrNotFound)
	}
	sort.Strings(matches)
	return loadYAML(matches[0])
}

// smartPinPattern maps a mode query onto a file glob.
func smartPinPattern(mode string) (string, error) {
	switch {
	case binaryModeRe.MatchString(mode):
		return mode + "_*.yaml", nil
	case decimalModeRe.MatchString(mode):
		n, err := strconv.Atoi(mode)
		if err != nil || n > 31 {
			return "", fmt.Errorf("smart pin mode %q: %w", mode, ErrNotFound)
		}
		return fmt.Sprintf("%05b_*.yaml", n), nil
	default:
		return "*_" + mode + ".yaml", nil
	}
}

// PinMode summarizes one smart pin mode file.
type PinMode struct {
	Binary      string `json:"binary"`
	Decimal     int    `json:"decimal"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SmartPinModes lists every mode file named <binary>_<name>.yaml, ordered by
// mode number.
func (kb *KB) SmartPinModes() ([]PinMode, error) {
	matches, err := filepath.Glob(filepath.Join(kb.cfg.Resolve(kb.cfg.SmartPinsDir), "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	l := kblog.WithComponent("lookup")
	modes := make([]PinMode, 0, len(matches))
	for _, path := range matches {
		stem := strings.TrimSuffix(filepath.Base(path), ".yaml")
		binary, name, _ := strings.Cut(stem, "_")
		decimal, err := strconv.ParseInt(binary, 2, 32)
		if err != nil {
			l.Debug().Str("file", path).Msg("not a mode file")
			continue
		}
		mode := PinMode{Binary: binary, Decimal: int(decimal), Name: name}
		if data, err := loadYAML(path); err == nil {
			if d, ok := data["description"].(string); ok {
				mode.Description = d
			}
		} else {
			l.Warn().Err(err).Str("file", path).Msg("reading mode")
		}
		modes = append(modes, mode)
	}
	sort.SliceStable(modes, func(i, j int) bool { return modes[i].Decimal < modes[j].Decimal })
	return modes, nil
}

// Spin2Method returns the record for a Spin2 method, trying
// methods/<name>.yaml and then spin2_<name>.yaml.
func (kb *KB) Spin2Method(name string) (map[string]any, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, errors.New("method is required")
	}
	dir := kb.cfg.Resolve(kb.cfg.Spin2Dir)
	for _, path := range []string{
		filepath.Join(dir, "methods", name+".yaml"),
		filepath.Join(dir, "spin2_"+name+".yaml"),
	} {
		data, err := loadYAML(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		return data, err
	}
	return nil, fmt.Errorf("spin2 method %q: %w", name, ErrNotFound)
}

// PatternMatch is one pattern note and its first matching lines.
type PatternMatch struct {
	File    string   `json:"file"`
	Matches []string `json:"matches"`
}

// SearchPatterns finds project notes whose file name contains pattern and
// returns the lines of each that mention it, ignoring case.
func (kb *KB) SearchPatterns(pattern string) ([]PatternMatch, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return nil, errors.New("pattern is required")
	}
	glob := filepath.Join(kb.cfg.Resolve(kb.cfg.PatternsDir), "*", "*"+pattern+"*.md")
	files, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", glob, err)
	}
	sort.Strings(files)

	want := fold(pattern)
	results := []PatternMatch{}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		var lines []string
		for _, line := range strings.Split(string(data), "\n") {
			if strings.Contains(fold(line), want) {
				lines = append(lines, strings.TrimRight(line, "\r"))
				if len(lines) == maxPatternMatches {
					break
				}
			}
		}
		if len(lines) == 0 {
			continue
		}
		rel, err := filepath.Rel(kb.cfg.Root, path)
		if err != nil {
			rel = path
		}
		results = append(results, PatternMatch{File: filepath.ToSlash(rel), Matches: lines})
	}
	return results, nil
}

// fold case-folds s. A Caser keeps state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// loadYAML decodes path into a generic mapping whose nested maps are all
// keyed by string.
func loadYAML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return kbfile.PlainMap(out), nil
}
