// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit record fields and validate records against the schema",
}

var auditFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Count top-level fields and flag inconsistent names",
	Long: `Fields counts the top-level keys of every YAML record under --dir,
lists near-duplicate key names, reports coverage of the core fields for
--core (instructions or directives), and suggests renames to standard
names.`,
	Args: cobra.NoArgs,
	RunE: runAuditFields,
}

var auditSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Validate instruction records against the embedded JSON schema",
	Args:  cobra.NoArgs,
	RunE:  runAuditSchema,
}

func init() {
	auditFieldsCmd.Flags().String("dir", "", "record directory (default: instructions_dir)")
	auditFieldsCmd.Flags().String("core", "instructions", "core field set: instructions or directives")
	auditFieldsCmd.Flags().StringSlice("skip", audit.DefaultSkip, "subdirectories to skip")
	auditSchemaCmd.Flags().String("dir", "", "record directory (default: instructions_dir)")

	auditCmd.AddCommand(auditFieldsCmd)
	auditCmd.AddCommand(auditSchemaCmd)
	rootCmd.AddCommand(auditCmd)
}

func runAuditFields(cmd *cobra.Command, args []string) error {
	coreName, _ := cmd.Flags().GetString("core")
	skip, _ := cmd.Flags().GetStringSlice("skip")

	var (
		core  []string
		title string
	)
	switch coreName {
	case "instructions":
		core, title = audit.CoreInstructionFields, "Instruction"
	case "directives":
		core, title = audit.CoreDirectiveFields, "Directive"
	default:
		return fmt.Errorf("unknown core field set %q: use instructions or directives", coreName)
	}

	r, err := audit.FieldUsage(instructionsDir(cmd), skip)
	if err != nil {
		return err
	}
	r.WriteText(os.Stdout, title, core)
	return nil
}

func runAuditSchema(cmd *cobra.Command, args []string) error {
	r, err := audit.Schema(instructionsDir(cmd))
	if err != nil {
		return err
	}
	r.WriteText(os.Stdout)
	if r.HasFailures() {
		return fmt.Errorf("%d record(s) failed schema validation", len(r.Invalid))
	}
	return nil
}
