package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/tesis/backend/internal/infrastructure/storage"
)

var cleanupOlderThan time.Duration

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "Manage archived exports",
}

var exportsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove archived exports older than a given age",
	Long: `Remove archived documents whose modification time is older than
--older-than. Only the file system driver supports cleanup; S3 buckets
should use a lifecycle rule instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log, err := newLogger()
		if err != nil {
			return err
		}
		objects, err := storage.New(cmd.Context(), &cfg.Storage, log)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		return cleanupExports(cmd.Context(), objects, cleanupOlderThan, cmd.OutOrStdout())
	},
}

func init() {
	exportsCleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "minimum age of removed exports")
	exportsCmd.AddCommand(exportsCleanupCmd)
}

func cleanupExports(ctx context.Context, objects storage.ObjectStorage, age time.Duration, out io.Writer) error {
	if age <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	cleaner, ok := objects.(storage.Cleaner)
	if !ok {
		return fmt.Errorf("storage driver does not support cleanup")
	}
	n, err := cleaner.CleanupOlderThan(ctx, age)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Removed %d export(s) older than %s.\n", n, age)
	return nil
}
