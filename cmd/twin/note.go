package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/digitaltwin/internal/types"
	"github.com/hyperengineering/digitaltwin/internal/validation"
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Record free-text notes used in narratives",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <user-id> <text>",
	Short: "Add a note",
	Args:  cobra.ExactArgs(2),
	RunE:  runNoteAdd,
}

func init() {
	noteCmd.AddCommand(noteAddCmd)
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	userID, text := args[0], args[1]
	if errs := validation.ValidateSummary(0, types.NarrativeSummary{Text: text}); len(errs) > 0 {
		return errs[0]
	}

	db, _, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rec, err := db.RecordSummary(context.Background(), userID, text)
	if err != nil {
		return fmt.Errorf("record note: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), rec)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded note %s\n", rec.ID)
	return nil
}
