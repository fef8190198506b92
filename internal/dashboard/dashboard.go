// Package dashboard turns a curve report into the presentation-ready view
// consumed by clients: metric cards, headline numbers, readable timeline
// entries, chart series, and the narrative annex.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/digitaltwin/internal/types"
	"github.com/hyperengineering/digitaltwin/internal/validation"
)

// Status is the overall state shown to the user.
type Status string

const (
	StatusReady      Status = "ready"
	StatusPartial    Status = "partial"
	StatusCollecting Status = "collecting"
)

// Card trend labels.
const (
	TrendImproving = "improving"
	TrendSteady    = "steady"
	TrendWorsening = "worsening"
)

// steadyBand is the endpoint delta, in normalized points, treated as no
// change.
const steadyBand = 0.5

// MetricCard summarizes one metric.
type MetricCard struct {
	Metric         types.Metric `json:"metric"`
	Scale          string       `json:"scale"`
	RawScore       *float64     `json:"raw_score,omitempty"`
	CurrentLabel   string       `json:"current_label"`
	CurrentValue   float64      `json:"current_value"`
	ProjectedLabel string       `json:"projected_label,omitempty"`
	ProjectedValue float64      `json:"projected_value,omitempty"`
	ProjectedWeek  int          `json:"projected_week,omitempty"`
	ConfidenceLow  float64      `json:"confidence_low,omitempty"`
	ConfidenceHigh float64      `json:"confidence_high,omitempty"`
	Delta          float64      `json:"delta"`
	Trend          string       `json:"trend,omitempty"`
}

// Headline holds the top-line numbers.
type Headline struct {
	OverallImprovement float64 `json:"overall_improvement"`
	DaysToFirstResult  *int    `json:"days_to_first_result"`
	ConsistencyScore   float64 `json:"consistency_score"`
	Message            string  `json:"message"`
}

// TimelineItem is one milestone rendered as a sentence.
type TimelineItem struct {
	Week   int          `json:"week"`
	Metric types.Metric `json:"metric"`
	Text   string       `json:"text"`
}

// Dashboard is the client-facing view of a report.
type Dashboard struct {
	UserID        string                                  `json:"user_id"`
	GeneratedAt   time.Time                               `json:"generated_at"`
	SchemaVersion string                                  `json:"schema_version"`
	Status        Status                                  `json:"status"`
	NeedMore      []string                                `json:"need_more,omitempty"`
	Quality       types.DataQuality                       `json:"quality"`
	Headline      *Headline                               `json:"headline,omitempty"`
	Cards         []MetricCard                            `json:"cards"`
	Timeline      []TimelineItem                          `json:"timeline,omitempty"`
	Series        map[types.Metric][]types.ChartDataPoint `json:"series,omitempty"`
	Narrative     types.Narrative                         `json:"narrative"`
}

// Generator builds dashboards from reports.
type Generator struct{}

// NewGenerator creates a dashboard generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate builds the dashboard for userID from report.
func (g *Generator) Generate(userID string, report *types.DigitalTwinCurveOutput) *Dashboard {
	d := &Dashboard{
		UserID:        userID,
		GeneratedAt:   report.Meta.GeneratedAt,
		SchemaVersion: report.Meta.SchemaVersion,
		Quality:       report.Meta.DataQuality,
		Cards:         []MetricCard{},
		Series:        report.Series,
		Narrative:     annex(report.Narrative),
	}

	switch {
	case !report.HasPredictions():
		d.Status = StatusCollecting
	case report.Meta.DataQuality.Level == types.QualitySufficient:
		d.Status = StatusReady
	default:
		d.Status = StatusPartial
	}
	for _, issue := range report.Meta.DataQuality.Issues {
		if issue.Code == types.IssueNoBaseline || issue.Code == types.IssueTooFewCalibrations {
			d.NeedMore = append(d.NeedMore, needMoreMessage(issue))
		}
	}

	if report.Baseline != nil {
		for _, m := range types.AllMetrics {
			bm, ok := report.Baseline.Metrics[m]
			if !ok {
				continue
			}
			d.Cards = append(d.Cards, card(m, bm, report.Endpoints))
		}
	}

	for _, ms := range report.Timeline {
		d.Timeline = append(d.Timeline, TimelineItem{
			Week:   ms.Week,
			Metric: ms.Metric,
			Text:   milestoneText(ms),
		})
	}

	if s := report.Summary; s != nil {
		d.Headline = &Headline{
			OverallImprovement: s.OverallImprovement,
			DaysToFirstResult:  s.DaysToFirstResult,
			ConsistencyScore:   s.ConsistencyScore,
			Message:            headlineMessage(s),
		}
	}
	return d
}

func card(m types.Metric, bm types.BaselineMetric, endpoints map[types.Metric]types.Endpoint) MetricCard {
	c := MetricCard{
		Metric:       m,
		Scale:        bm.Scale,
		RawScore:     bm.RawScore,
		CurrentLabel: bm.Interpretation,
		CurrentValue: bm.Week0Value,
	}
	ep, ok := endpoints[m]
	if !ok {
		return c
	}
	c.ProjectedLabel = ep.Interpretation
	c.ProjectedValue = ep.Value
	c.ProjectedWeek = ep.Week
	c.ConfidenceLow = ep.ConfidenceLow
	c.ConfidenceHigh = ep.ConfidenceHigh
	c.Delta = ep.Delta
	switch {
	case ep.Delta > steadyBand:
		c.Trend = TrendImproving
	case ep.Delta < -steadyBand:
		c.Trend = TrendWorsening
	default:
		c.Trend = TrendSteady
	}
	return c
}

func milestoneText(ms types.TreatmentMilestone) string {
	return fmt.Sprintf("By week %d, your %s is projected to move from %s to %s.",
		ms.Week, ms.Metric, ms.FromLabel, ms.ToLabel)
}

func headlineMessage(s *types.Summary) string {
	switch {
	case s.DaysToFirstResult != nil:
		return fmt.Sprintf("You could notice a change in about %d days.", *s.DaysToFirstResult)
	case s.OverallImprovement > steadyBand:
		return "Your scores are projected to improve gradually."
	case s.OverallImprovement < -steadyBand:
		return "Your recent check-ins point to a harder stretch. Keep checking in."
	default:
		return "Your scores are projected to hold steady."
	}
}

func needMoreMessage(issue types.QualityIssue) string {
	if issue.Code == types.IssueNoBaseline {
		return "Complete the baseline assessment to see your projection."
	}
	return strings.TrimSpace(fmt.Sprintf("Keep checking in daily: %s.", issue.Detail))
}

// annex re-validates a narrative before display. Reports read back from the
// cache or archive pass through here too.
func annex(n types.Narrative) types.Narrative {
	text, ok := n.Text()
	if !ok {
		return types.NarrativeAbsent()
	}
	if errs := validation.ValidateNarrative(text); len(errs) > 0 {
		return types.NarrativeAbsent()
	}
	return n
}
