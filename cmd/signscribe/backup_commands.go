package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"signscribe/internal/backup"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot every collection to JSON files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := backup.Backup(cmd.Context(), store, cfg.Paths.BackupDir, time.Now(), ctx.log())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			names := make([]string, 0, len(snap.Collections))
			for name := range snap.Collections {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "Backed up %d documents from %s\n", snap.Collections[name], name)
			}
			for _, name := range snap.Skipped {
				fmt.Fprintf(out, "Skipped empty collection %s\n", name)
			}
			fmt.Fprintf(out, "Backup completed: %s\n", snap.Path)
			return nil
		},
	}
}

func newRestoreCommand(ctx *commandContext) *cobra.Command {
	var snapshotName string
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore collections from a backup snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			prompt := newPrompter(cmd.InOrStdin(), out)

			name := strings.TrimSpace(snapshotName)
			if name == "" {
				snapshots, err := backup.List(cfg.Paths.BackupDir)
				if err != nil {
					return err
				}
				if len(snapshots) == 0 {
					fmt.Fprintf(out, "No backups found in %s\n", cfg.Paths.BackupDir)
					return nil
				}
				options := make([]string, len(snapshots))
				for i, s := range snapshots {
					options[i] = s.Name
				}
				fmt.Fprintln(out, "Available backups:")
				idx, err := prompt.choose("Enter the number of the backup to restore: ", options)
				if err != nil {
					return err
				}
				name = snapshots[idx].Name
			}
			if _, err := backup.Resolve(cfg.Paths.BackupDir, name); err != nil {
				return err
			}

			if !assumeYes {
				ok, err := prompt.confirm(fmt.Sprintf("Restore %s? This will overwrite existing documents.", name))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Restore cancelled")
					return nil
				}
			}

			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			report, err := backup.Restore(cmd.Context(), store, cfg.Paths.BackupDir, name, cfg.Backup.BatchSize, ctx.log())
			if err != nil {
				return err
			}

			names := make([]string, 0, len(report.Restored))
			for collection := range report.Restored {
				names = append(names, collection)
			}
			sort.Strings(names)
			for _, collection := range names {
				fmt.Fprintf(out, "Restored %d documents to %s\n", report.Restored[collection], collection)
			}
			failed := make([]string, 0, len(report.Failed))
			for collection := range report.Failed {
				failed = append(failed, collection)
			}
			sort.Strings(failed)
			for _, collection := range failed {
				fmt.Fprintf(out, "Failed to restore %s: %v\n", collection, report.Failed[collection])
			}
			fmt.Fprintf(out, "Restore completed in %d batches\n", report.Batches)
			if len(failed) > 0 {
				return fmt.Errorf("%d collections failed to restore", len(failed))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&snapshotName, "snapshot", "s", "", "Snapshot folder name (prompts when omitted)")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newSnapshotsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List backup snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snapshots, err := backup.List(cfg.Paths.BackupDir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(snapshots) == 0 {
				fmt.Fprintf(out, "No backups found in %s\n", cfg.Paths.BackupDir)
				return nil
			}
			rows := make([][]string, 0, len(snapshots))
			for i, s := range snapshots {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					s.Name,
					strconv.Itoa(s.Files),
					formatBytes(s.Bytes),
					formatAge(s.Modified),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Snapshot", "Collections", "Size", "Created"}, rows))
			return nil
		},
	}
}
