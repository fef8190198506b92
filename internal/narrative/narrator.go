// Package narrative produces the optional free-text annex of a curve report.
// Narrative text never feeds back into the numeric model; it is validated at
// this boundary and attached as a present/absent sum type.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/hyperengineering/digitaltwin/internal/types"
	"github.com/hyperengineering/digitaltwin/internal/validation"
)

var (
	// ErrDisabled is returned by narrators that are not configured.
	ErrDisabled = errors.New("narrative generation disabled")
	// ErrEmpty is returned when the backend produced no text.
	ErrEmpty = errors.New("narrative generation returned no text")
)

// Outcome labels a narration attempt for metrics and logs.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeDisabled Outcome = "disabled"
	OutcomeError    Outcome = "error"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeSkipped  Outcome = "skipped"
)

// Request is the input to a narrator. Report must not be mutated.
type Request struct {
	Report    *types.DigitalTwinCurveOutput
	Summaries []types.NarrativeSummary
}

// Narrator turns a report into a short plain-language summary.
type Narrator interface {
	Narrate(ctx context.Context, req Request) (string, error)
}

// Noop is the narrator used when no backend is configured.
type Noop struct{}

// Narrate always returns ErrDisabled.
func (Noop) Narrate(context.Context, Request) (string, error) {
	return "", ErrDisabled
}

// Resolve runs n for req and returns the validated annex. Reports without
// predictions are not narrated. Any failure yields an absent narrative.
func Resolve(ctx context.Context, n Narrator, req Request) (types.Narrative, Outcome) {
	if n == nil || req.Report == nil || !req.Report.HasPredictions() {
		return types.NarrativeAbsent(), OutcomeSkipped
	}

	text, err := n.Narrate(ctx, req)
	if errors.Is(err, ErrDisabled) {
		return types.NarrativeAbsent(), OutcomeDisabled
	}
	if err != nil {
		slog.Warn("narrative generation failed",
			"component", "narrative",
			"error", err,
		)
		return types.NarrativeAbsent(), OutcomeError
	}

	text = strings.TrimSpace(text)
	if errs := validation.ValidateNarrative(text); len(errs) > 0 {
		slog.Warn("narrative rejected",
			"component", "narrative",
			"field", errs[0].Field,
			"reason", errs[0].Message,
		)
		return types.NarrativeAbsent(), OutcomeInvalid
	}
	return types.NarrativePresent(text), OutcomeOK
}

// BuildPrompt renders the report facts a narrator may describe. It carries
// no user identifiers.
func BuildPrompt(req Request) string {
	var b strings.Builder
	r := req.Report
	if r == nil {
		return ""
	}

	fmt.Fprintf(&b, "Data quality: %s.\n", r.Meta.DataQuality.Level)
	for _, m := range types.AllMetrics {
		ep, ok := r.Endpoints[m]
		if !ok {
			continue
		}
		from := ""
		if r.Baseline != nil {
			from = r.Baseline.Metrics[m].Interpretation
		}
		fmt.Fprintf(&b, "%s: currently %s, projected %s by week %d (change %+.1f points, range %.1f-%.1f).\n",
			m, from, ep.Interpretation, ep.Week, ep.Delta, ep.ConfidenceLow, ep.ConfidenceHigh)
	}
	for _, ms := range r.Timeline {
		fmt.Fprintf(&b, "Milestone: %s moves from %s to %s around week %d.\n", ms.Metric, ms.FromLabel, ms.ToLabel, ms.Week)
	}
	if s := r.Summary; s != nil {
		fmt.Fprintf(&b, "Check-in consistency: %.0f/100.\n", s.ConsistencyScore)
	}

	if len(req.Summaries) > 0 {
		summaries := make([]types.NarrativeSummary, len(req.Summaries))
		copy(summaries, req.Summaries)
		sort.SliceStable(summaries, func(i, j int) bool {
			return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
		})
		b.WriteString("Recent notes:\n")
		for i, s := range summaries {
			if i == maxSummaries {
				break
			}
			fmt.Fprintf(&b, "- %s\n", s.Text)
		}
	}
	return b.String()
}

const maxSummaries = 3
