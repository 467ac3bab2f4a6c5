// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/p2kb/internal/images"
	"github.com/pdiddy/p2kb/internal/layers"
	kblog "github.com/pdiddy/p2kb/internal/log"
	"github.com/pdiddy/p2kb/internal/obex"
	"github.com/pdiddy/p2kb/pkg/types"
)

const (
	defaultTopAuthors = 15
	defaultRetention  = 30 * 24 * time.Hour
)

func setDefaults() {
	kb := types.DefaultKnowledgeBaseConfig("")
	viper.SetDefault("knowledge_base.root", kb.Root)
	viper.SetDefault("knowledge_base.instructions_dir", kb.InstructionsDir)
	viper.SetDefault("knowledge_base.spin2_dir", kb.Spin2Dir)
	viper.SetDefault("knowledge_base.smart_pins_dir", kb.SmartPinsDir)
	viper.SetDefault("knowledge_base.obex_dir", kb.ObexDir)
	viper.SetDefault("knowledge_base.manifests_dir", kb.ManifestsDir)
	viper.SetDefault("knowledge_base.patterns_dir", kb.PatternsDir)
	viper.SetDefault("knowledge_base.index_dir", kb.IndexDir)
	viper.SetDefault("knowledge_base.backup_db", kb.BackupDB)
	viper.SetDefault("knowledge_base.max_results", kb.MaxResults)

	viper.SetDefault("audit.expected_instructions", layers.DefaultExpectedInstructions)
	viper.SetDefault("images.black_threshold", images.DefaultBlackThreshold)
	viper.SetDefault("images.workers", 0)
	viper.SetDefault("obex.top_authors", defaultTopAuthors)
	viper.SetDefault("backup.retention", defaultRetention)
}

// loadConfig assembles the effective configuration from defaults, the
// config file, P2KB_* environment variables, and bound flags.
func loadConfig() types.Config {
	cfg := types.Config{
		KnowledgeBase: types.KnowledgeBaseConfig{
			Root:            viper.GetString("knowledge_base.root"),
			InstructionsDir: viper.GetString("knowledge_base.instructions_dir"),
			Spin2Dir:        viper.GetString("knowledge_base.spin2_dir"),
			SmartPinsDir:    viper.GetString("knowledge_base.smart_pins_dir"),
			ObexDir:         viper.GetString("knowledge_base.obex_dir"),
			ManifestsDir:    viper.GetString("knowledge_base.manifests_dir"),
			PatternsDir:     viper.GetString("knowledge_base.patterns_dir"),
			IndexDir:        viper.GetString("knowledge_base.index_dir"),
			BackupDB:        viper.GetString("knowledge_base.backup_db"),
			MaxResults:      viper.GetInt("knowledge_base.max_results"),
		},
		Audit: types.AuditConfig{
			ExpectedInstructions: viper.GetInt("audit.expected_instructions"),
		},
		Images: types.ImageConfig{
			BlackThreshold: viper.GetFloat64("images.black_threshold"),
			Workers:        viper.GetInt("images.workers"),
		},
		Obex: types.ObexConfig{
			TopAuthors: viper.GetInt("obex.top_authors"),
		},
		Backup: types.BackupConfig{
			Enabled:   viper.GetBool("backup.enabled"),
			Retention: viper.GetDuration("backup.retention"),
		},
	}
	if cfg.KnowledgeBase.Root == "" {
		cfg.KnowledgeBase.Root = "."
	}
	if err := viper.UnmarshalKey("obex.author_map", &cfg.Obex.AuthorMap); err != nil {
		l := kblog.WithComponent("config")
		l.Warn().Err(err).Msg("ignoring obex.author_map")
	}
	return cfg
}

// authorMap returns the configured author mapping, or the built-in one.
func authorMap(cfg types.ObexConfig) map[string]string {
	if len(cfg.AuthorMap) == 0 {
		return obex.DefaultAuthorMap()
	}
	m := make(map[string]string, len(cfg.AuthorMap))
	for _, r := range cfg.AuthorMap {
		if r.From != "" && r.To != "" {
			m[r.From] = r.To
		}
	}
	return m
}
