// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"path/filepath"
	"time"
)

// KnowledgeBaseConfig locates the knowledge-base tree on disk. Every
// directory except Root is relative to Root.
type KnowledgeBaseConfig struct {
	// Root is the knowledge-base root (P2KB_PATH).
	Root string `json:"root" yaml:"root"`

	// InstructionsDir holds one YAML record per PASM2 instruction.
	InstructionsDir string `json:"instructions_dir" yaml:"instructions_dir"`

	// Spin2Dir holds Spin2 method records (spin2_<name>.yaml and methods/).
	Spin2Dir string `json:"spin2_dir" yaml:"spin2_dir"`

	// SmartPinsDir holds smart pin mode records named <binary>_<name>.yaml.
	SmartPinsDir string `json:"smart_pins_dir" yaml:"smart_pins_dir"`

	// ObexDir holds OBEX object records named <object_id>.yaml.
	ObexDir string `json:"obex_dir" yaml:"obex_dir"`

	// ManifestsDir holds top-level manifests such as pasm2-manifest.yaml.
	ManifestsDir string `json:"manifests_dir" yaml:"manifests_dir"`

	// PatternsDir holds per-project Markdown pattern notes (<project>/*.md).
	PatternsDir string `json:"patterns_dir" yaml:"patterns_dir"`

	// IndexDir holds the SQLite search index and its exports.
	IndexDir string `json:"index_dir" yaml:"index_dir"`

	// BackupDB is the bbolt snapshot database.
	BackupDB string `json:"backup_db" yaml:"backup_db"`

	// MaxResults is the default number of search results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// DefaultKnowledgeBaseConfig returns the standard layout rooted at root.
func DefaultKnowledgeBaseConfig(root string) KnowledgeBaseConfig {
	if root == "" {
		root = "."
	}
	return KnowledgeBaseConfig{
		Root:            root,
		InstructionsDir: "instructions/pasm2",
		Spin2Dir:        "language/spin2",
		SmartPinsDir:    "hardware/smart-pins/modes",
		ObexDir:         "external-resources/obex/objects",
		ManifestsDir:    "manifests",
		PatternsDir:     "external-projects",
		IndexDir:        "index",
		BackupDB:        "update-tracking/backups.db",
		MaxResults:      20,
	}
}

// Resolve joins rel onto Root unless rel is already absolute.
func (c KnowledgeBaseConfig) Resolve(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Root, rel)
}

// AuditConfig holds thresholds for the audit commands.
type AuditConfig struct {
	// ExpectedInstructions is the instruction count the layer audit measures
	// coverage against (default 491).
	ExpectedInstructions int `json:"expected_instructions" yaml:"expected_instructions"`
}

// ImageConfig holds settings for image checks.
type ImageConfig struct {
	// BlackThreshold is the mean grayscale brightness below which an image
	// counts as a failed (black) extraction (default 5).
	BlackThreshold float64 `json:"black_threshold" yaml:"black_threshold"`

	// Workers bounds concurrent decodes. Zero uses GOMAXPROCS.
	Workers int `json:"workers" yaml:"workers"`
}

// AuthorRename maps one archiver-imported author name to its OBEX account name.
type AuthorRename struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// ObexConfig holds settings for OBEX record maintenance.
type ObexConfig struct {
	// AuthorMap replaces the built-in author mapping when non-empty. It is a
	// list rather than a mapping because author names are not valid config keys.
	AuthorMap []AuthorRename `json:"author_map,omitempty" yaml:"author_map,omitempty"`

	// TopAuthors is how many authors the statistics report lists (default 15).
	TopAuthors int `json:"top_authors" yaml:"top_authors"`
}

// BackupConfig holds snapshot retention settings.
type BackupConfig struct {
	// Enabled snapshots every file before it is rewritten.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Retention is how long snapshots are kept by prune (default 30 days).
	Retention time.Duration `json:"retention" yaml:"retention"`
}

// Config groups all settings read from p2kb.yaml.
type Config struct {
	KnowledgeBase KnowledgeBaseConfig `json:"knowledge_base" yaml:"knowledge_base"`
	Audit         AuditConfig         `json:"audit" yaml:"audit"`
	Images        ImageConfig         `json:"images" yaml:"images"`
	Obex          ObexConfig          `json:"obex" yaml:"obex"`
	Backup        BackupConfig        `json:"backup" yaml:"backup"`
}
