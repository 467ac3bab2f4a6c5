// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "List, restore, and prune file snapshots",
	Long: `Backup manages the snapshots taken when a command runs with --backup.
Every snapshot is the content a file had just before it was rewritten or
removed.`,
}

var backupListCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "List snapshots, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBackupList,
}

var backupRollbackCmd = &cobra.Command{
	Use:   "rollback [path]",
	Short: "Restore a file, or every file changed since a time",
	Long: `Rollback restores path from its newest snapshot, or from the newest one
taken at or before --at. With --since and no path, every file under --dir
changed after that time is restored to its state at that time. The
current content is snapshotted before it is replaced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBackupRollback,
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete snapshots older than the retention period",
	Args:  cobra.NoArgs,
	RunE:  runBackupPrune,
}

var backupLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the rollback history",
	Args:  cobra.NoArgs,
	RunE:  runBackupLog,
}

func init() {
	backupRollbackCmd.Flags().String("at", "", "restore the newest snapshot at or before this RFC 3339 time")
	backupRollbackCmd.Flags().String("since", "", "restore every file changed after this RFC 3339 time")
	backupRollbackCmd.Flags().String("dir", "", "limit --since to files under this directory")
	backupRollbackCmd.Flags().String("reason", "manual rollback", "reason recorded in the rollback log")
	backupPruneCmd.Flags().Duration("older-than", 0, "age cutoff (default: backup.retention)")

	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRollbackCmd)
	backupCmd.AddCommand(backupPruneCmd)
	backupCmd.AddCommand(backupLogCmd)
	rootCmd.AddCommand(backupCmd)
}

func runBackupList(cmd *cobra.Command, args []string) error {
	s, err := openBackupStore()
	if err != nil {
		return err
	}
	var path string
	if len(args) == 1 {
		path = args[0]
	}
	snaps, err := s.List(path)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("No snapshots.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TAKEN\tSIZE\tREASON\tPATH")
	for _, sn := range snaps {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", sn.TakenAt.Local().Format(time.RFC3339), sn.Size, sn.Reason, sn.Path)
	}
	return tw.Flush()
}

func runBackupRollback(cmd *cobra.Command, args []string) error {
	atFlag, _ := cmd.Flags().GetString("at")
	sinceFlag, _ := cmd.Flags().GetString("since")
	dir, _ := cmd.Flags().GetString("dir")
	reason, _ := cmd.Flags().GetString("reason")

	s, err := openBackupStore()
	if err != nil {
		return err
	}

	if sinceFlag != "" {
		if len(args) > 0 {
			return fmt.Errorf("--since restores many files: use --dir instead of a path")
		}
		since, err := time.Parse(time.RFC3339, sinceFlag)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}
		res, err := s.RollbackSince(dir, since, reason)
		if err != nil {
			return err
		}
		for _, p := range res.RolledBack {
			fmt.Printf("restored %s\n", p)
		}
		for _, p := range res.Failed {
			fmt.Printf("failed  %s\n", p)
		}
		fmt.Printf("%d restored, %d failed\n", len(res.RolledBack), len(res.Failed))
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d file(s) could not be restored", len(res.Failed))
		}
		return nil
	}

	if len(args) == 0 {
		return fmt.Errorf("provide a path, or --since for a multi-file rollback")
	}
	var at time.Time
	if atFlag != "" {
		if at, err = time.Parse(time.RFC3339, atFlag); err != nil {
			return fmt.Errorf("parsing --at: %w", err)
		}
	}
	rec, err := s.Rollback(args[0], at, reason)
	if err != nil {
		return err
	}
	fmt.Printf("restored %s from %s\n", rec.Path, rec.SnapshotAt.Local().Format(time.RFC3339))
	return nil
}

func runBackupPrune(cmd *cobra.Command, args []string) error {
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	if olderThan <= 0 {
		olderThan = loadConfig().Backup.Retention
	}

	s, err := openBackupStore()
	if err != nil {
		return err
	}
	res, err := s.Prune(time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d snapshot(s), kept %d, freed %d bytes\n", res.Deleted, res.Kept, res.BytesFreed)
	return nil
}

func runBackupLog(cmd *cobra.Command, args []string) error {
	s, err := openBackupStore()
	if err != nil {
		return err
	}
	log, err := s.Log()
	if err != nil {
		return err
	}
	if len(log) == 0 {
		fmt.Println("No rollbacks.")
		return nil
	}
	for _, r := range log {
		fmt.Printf("%s  %s  (snapshot %s) %s\n",
			r.Time.Local().Format(time.RFC3339), r.Path, r.SnapshotAt.Local().Format(time.RFC3339), r.Reason)
	}
	return nil
}
