package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/digitaltwin/internal/scales"
	"github.com/hyperengineering/digitaltwin/internal/store"
	"github.com/hyperengineering/digitaltwin/internal/types"
	"github.com/hyperengineering/digitaltwin/internal/validation"
)

var (
	baselineScores []string
	baselineAt     string
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Record baseline assessments",
}

var baselineRecordCmd = &cobra.Command{
	Use:   "record <user-id>",
	Short: "Record a completed assessment",
	Long:  "Record one assessment from scale scores, e.g. --score GAD7=12 --score PHQ9=15. Known scales: GAD7, PHQ9, ISI, PSS10.",
	Args:  cobra.ExactArgs(1),
	RunE:  runBaselineRecord,
}

func init() {
	baselineRecordCmd.Flags().StringArrayVar(&baselineScores, "score", nil,
		"Scale score as SCALE=VALUE (repeatable)")
	baselineRecordCmd.Flags().StringVar(&baselineAt, "at", "",
		"Assessment time, RFC 3339 or YYYY-MM-DD (default: now)")
	baselineRecordCmd.MarkFlagRequired("score")

	baselineCmd.AddCommand(baselineRecordCmd)
}

func runBaselineRecord(cmd *cobra.Command, args []string) error {
	userID := args[0]

	assessedAt, err := parseTimeFlag(baselineAt)
	if err != nil {
		return err
	}
	scores, err := parseScores(scales.DefaultTable(), baselineScores)
	if err != nil {
		return err
	}

	db, _, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	a, err := db.RecordAssessment(context.Background(), userID, assessedAt, scores)
	if err != nil {
		return fmt.Errorf("record assessment: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"assessment": a,
			"scores":     scores,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded assessment %s with %d scores\n", a.ID, len(scores))
	return nil
}

// parseScores parses SCALE=VALUE pairs and validates each against table.
// A scale may appear only once.
func parseScores(table scales.Table, pairs []string) ([]store.ScoreRecord, error) {
	seen := make(map[string]bool)
	var out []store.ScoreRecord
	for _, pair := range pairs {
		id, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid score %q: want SCALE=VALUE", pair)
		}
		id = strings.ToUpper(strings.TrimSpace(id))
		score, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid score %q: %w", pair, err)
		}

		sc, ok := table.ByID(id)
		if !ok {
			return nil, fmt.Errorf("unknown scale %q", id)
		}
		if seen[id] {
			return nil, fmt.Errorf("scale %s given more than once", id)
		}
		seen[id] = true

		if errs := validation.ValidateScaleScore(table, sc.Metric, types.ScaleScore{Scale: id, Score: score}); len(errs) > 0 {
			return nil, errs[0]
		}
		out = append(out, store.ScoreRecord{Metric: string(sc.Metric), Scale: id, Score: score})
	}
	return out, nil
}

// parseTimeFlag accepts RFC 3339 or a calendar date. Empty means now.
func parseTimeFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(types.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}
