package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

var curveDashboard bool

var curveCmd = &cobra.Command{
	Use:   "curve <user-id>",
	Short: "Show a user's projected curves",
	Args:  cobra.ExactArgs(1),
	RunE:  runCurve,
}

func init() {
	curveCmd.Flags().BoolVar(&curveDashboard, "dashboard", false,
		"Print the dashboard view instead of the report (implies --json)")
}

func runCurve(cmd *cobra.Command, args []string) error {
	userID := args[0]
	ctx := context.Background()

	db, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	svc, closeService, err := buildService(ctx, cfg, db, nil)
	if err != nil {
		return err
	}
	defer closeService()

	if curveDashboard {
		d, err := svc.Dashboard(ctx, userID)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), d)
	}

	out, err := svc.Curve(ctx, userID)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), out)
	}
	printReport(cmd.OutOrStdout(), out)
	return nil
}

func printReport(w io.Writer, out *types.DigitalTwinCurveOutput) {
	q := out.Meta.DataQuality
	fmt.Fprintf(w, "Data quality: %s (%d check-ins)\n", q.Level, q.CalibrationCount)
	for _, issue := range q.Issues {
		fmt.Fprintf(w, "  - %s\n", issue.Detail)
	}
	if !out.HasPredictions() {
		return
	}

	fmt.Fprintln(w)
	tw := newTabWriter(w)
	fmt.Fprintln(tw, "METRIC\tNOW\tWEEK\tPROJECTED\tRANGE\tCHANGE")
	for _, m := range types.AllMetrics {
		ep, ok := out.Endpoints[m]
		if !ok {
			continue
		}
		now := "-"
		if out.Baseline != nil {
			if bm, ok := out.Baseline.Metrics[m]; ok {
				now = bm.Interpretation
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%.1f-%.1f\t%+.1f\n",
			m, now, ep.Week, ep.Interpretation, ep.ConfidenceLow, ep.ConfidenceHigh, ep.Delta)
	}
	tw.Flush()

	if len(out.Timeline) > 0 {
		fmt.Fprintln(w, "\nMilestones:")
		for _, ms := range out.Timeline {
			fmt.Fprintf(w, "  week %d: %s %s -> %s\n", ms.Week, ms.Metric, ms.FromLabel, ms.ToLabel)
		}
	}
	if s := out.Summary; s != nil {
		fmt.Fprintf(w, "\nOverall improvement: %+.1f points, consistency %.0f/100\n",
			s.OverallImprovement, s.ConsistencyScore)
	}
	if text, ok := out.Narrative.Text(); ok {
		fmt.Fprintf(w, "\n%s\n", text)
	}
}
