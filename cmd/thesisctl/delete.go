package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tesis/backend/internal/domain/shared"
	"github.com/tesis/backend/internal/infrastructure/persistence"
)

var deleteYes bool

var deleteThesisCmd = &cobra.Command{
	Use:   "delete-thesis <id>",
	Short: "Delete a thesis and its sections",
	Long: `Delete a thesis and all of its sections from the database,
regardless of owner. Archived exports are left in storage.

Without --yes the command asks for confirmation on stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeleteThesisCmd,
}

func init() {
	deleteThesisCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
}

type thesisDeleter interface {
	Delete(ctx context.Context, id uuid.UUID) error
}

func runDeleteThesisCmd(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid thesis id %q: %w", args[0], err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	repo := persistence.NewGormThesisRepository(db.DB)
	return deleteThesis(cmd.Context(), repo, id, deleteYes, cmd.InOrStdin(), cmd.OutOrStdout())
}

func deleteThesis(ctx context.Context, repo thesisDeleter, id uuid.UUID, yes bool, in io.Reader, out io.Writer) error {
	if !yes {
		fmt.Fprintf(out, "Delete thesis %s? [y/N]: ", id)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	err := repo.Delete(ctx, id)
	if errors.Is(err, shared.ErrNotFound) {
		fmt.Fprintf(out, "Thesis %s not found, nothing deleted.\n", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete thesis: %w", err)
	}
	fmt.Fprintf(out, "Deleted thesis %s.\n", id)
	return nil
}
