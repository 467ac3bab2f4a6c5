// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the p2kb CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/p2kb/internal/backup"
	"github.com/pdiddy/p2kb/internal/kbfile"
	kblog "github.com/pdiddy/p2kb/internal/log"
)

// version is set at build time via ldflags.
var version = "dev"

// backupStore is opened on first use and closed after the command runs.
var backupStore *backup.Store

// rootCmd is the base command for the p2kb CLI.
var rootCmd = &cobra.Command{
	Use:   "p2kb",
	Short: "Maintenance tooling for the P2 PASM2/Spin2 knowledge base",
	Long: `p2kb builds and maintains the P2 knowledge base: it extracts instruction
records from the instruction spreadsheet, merges datasheet timing and
clarifications into them, extracts code samples and Spin2 methods, cleans
OBEX object records, checks LaTeX and images, audits the YAML tree, and
serves read-only lookups over MCP.

Each job is a subcommand that reads its input, writes files or a report,
and prints a summary. Pass --backup to snapshot every file before it is
rewritten; "p2kb backup rollback" restores them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		kblog.Configure(kblog.Config{Level: level})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeBackupStore()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./p2kb.yaml or ~/.config/p2kb/config.yaml)")
	rootCmd.PersistentFlags().String("kb", "", "knowledge-base root (default: $P2KB_PATH or the current directory)")
	rootCmd.PersistentFlags().Bool("backup", false, "snapshot every file before it is rewritten")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default: info)")

	_ = viper.BindPFlag("knowledge_base.root", rootCmd.PersistentFlags().Lookup("kb"))
	_ = viper.BindPFlag("backup.enabled", rootCmd.PersistentFlags().Lookup("backup"))
	_ = viper.BindEnv("knowledge_base.root", "P2KB_PATH")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("p2kb")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "p2kb"))
		}
	}

	viper.SetEnvPrefix("P2KB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// openBackupStore returns the snapshot store, opening it on first use.
func openBackupStore() (*backup.Store, error) {
	if backupStore != nil {
		return backupStore, nil
	}
	cfg := loadConfig()
	s, err := backup.Open(cfg.KnowledgeBase.Resolve(cfg.KnowledgeBase.BackupDB))
	if err != nil {
		return nil, err
	}
	backupStore = s
	return s, nil
}

func closeBackupStore() error {
	if backupStore == nil {
		return nil
	}
	err := backupStore.Close()
	backupStore = nil
	return err
}

// snapshotter returns the store used for pre-write snapshots, or nil when
// backups are disabled.
func snapshotter() (kbfile.Snapshotter, error) {
	if !loadConfig().Backup.Enabled {
		return nil, nil
	}
	s, err := openBackupStore()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
