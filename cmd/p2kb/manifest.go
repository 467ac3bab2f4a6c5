// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/manifest"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Check manifest links and regenerate manifests",
}

var manifestLinksCmd = &cobra.Command{
	Use:   "check-links",
	Short: "Follow manifest references and report missing and orphaned files",
	Long: `Check-links walks every .yaml reference reachable from
root_manifest.yaml and reports references to files that do not exist and
YAML files that no manifest reaches.`,
	Args: cobra.NoArgs,
	RunE: runManifestLinks,
}

var manifestInstructionsCmd = &cobra.Command{
	Use:   "instructions",
	Short: "Write instruction_manifest.yaml for the instruction records",
	Args:  cobra.NoArgs,
	RunE:  runManifestInstructions,
}

var manifestSpin2Cmd = &cobra.Command{
	Use:   "spin2",
	Short: "Write method_manifest.yaml for the Spin2 language tree",
	Args:  cobra.NoArgs,
	RunE:  runManifestSpin2,
}

func init() {
	manifestInstructionsCmd.Flags().String("dir", "", "record directory (default: instructions_dir)")
	manifestSpin2Cmd.Flags().String("dir", "", "Spin2 directory (default: spin2_dir)")

	manifestCmd.AddCommand(manifestLinksCmd)
	manifestCmd.AddCommand(manifestInstructionsCmd)
	manifestCmd.AddCommand(manifestSpin2Cmd)
	rootCmd.AddCommand(manifestCmd)
}

func runManifestLinks(cmd *cobra.Command, args []string) error {
	r, err := manifest.CheckLinks(loadConfig().KnowledgeBase.Root)
	if err != nil {
		return err
	}
	r.WriteText(os.Stdout)
	if len(r.Missing) > 0 {
		return fmt.Errorf("%d missing reference(s)", len(r.Missing))
	}
	return nil
}

func runManifestInstructions(cmd *cobra.Command, args []string) error {
	snap, err := snapshotter()
	if err != nil {
		return err
	}
	dir := instructionsDir(cmd)
	n, err := manifest.CreateInstructionManifest(dir, snap)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s/%s (%d instructions)\n", dir, manifest.InstructionManifestFile, n)
	return nil
}

func runManifestSpin2(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		kb := loadConfig().KnowledgeBase
		dir = kb.Resolve(kb.Spin2Dir)
	}
	snap, err := snapshotter()
	if err != nil {
		return err
	}
	n, err := manifest.CreateSpin2Manifest(dir, snap)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s/%s (%d methods)\n", dir, manifest.Spin2ManifestFile, n)
	return nil
}
