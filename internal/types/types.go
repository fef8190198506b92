package types

import (
	"time"
)

// Metric identifies a tracked psychometric dimension.
type Metric string

const (
	MetricAnxiety    Metric = "anxiety"
	MetricDepression Metric = "depression"
	MetricInsomnia   Metric = "insomnia"
	MetricStress     Metric = "stress"
)

// AllMetrics is the canonical metric order. Every view that iterates metrics
// uses this order so reports are reproducible.
var AllMetrics = []Metric{MetricAnxiety, MetricDepression, MetricInsomnia, MetricStress}

// DateLayout is the calendar-date format used for calibration entries.
const DateLayout = "2006-01-02"

// --- Input data ---

// ScaleScore is a single questionnaire result.
type ScaleScore struct {
	Scale      string    `json:"scale"`
	Score      float64   `json:"score"`
	RecordedAt time.Time `json:"recorded_at"`
}

// BaselineData is a user's starting psychometric state from one completed
// assessment. A new assessment produces a new BaselineData.
type BaselineData struct {
	AssessmentID string                `json:"assessment_id"`
	AssessedAt   time.Time             `json:"assessed_at"`
	Scores       map[Metric]ScaleScore `json:"scores"`
}

// Has reports whether the baseline carries a score for m.
func (b *BaselineData) Has(m Metric) bool {
	if b == nil {
		return false
	}
	_, ok := b.Scores[m]
	return ok
}

// CalibrationEntry is one daily self-report. Signals are on a 0-10 scale.
type CalibrationEntry struct {
	Date         time.Time `json:"date"`
	Mood         float64   `json:"mood"`
	Stress       float64   `json:"stress"`
	SleepQuality float64   `json:"sleep_quality"`
	Energy       float64   `json:"energy"`
}

// NarrativeSummary is free text stored alongside a user's history. It only
// feeds the narrative path, never the numeric model.
type NarrativeSummary struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// MissingRequirement codes.
const (
	RequirementBaseline     = "no_baseline"
	RequirementCalibrations = "too_few_calibrations"
)

// MissingRequirement names one unmet sufficiency requirement.
type MissingRequirement struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Have   int    `json:"have,omitempty"`
	Need   int    `json:"need,omitempty"`
}

// DataCollectionStatus is the sufficiency verdict for an aggregated snapshot.
type DataCollectionStatus struct {
	Sufficient bool                 `json:"sufficient"`
	Missing    []MissingRequirement `json:"missing,omitempty"`
}

// MalformedCounts tallies stored records skipped during aggregation.
type MalformedCounts struct {
	Baseline     int `json:"baseline"`
	Calibrations int `json:"calibrations"`
	Summaries    int `json:"summaries"`
}

// Total returns the number of skipped records across all kinds.
func (m MalformedCounts) Total() int {
	return m.Baseline + m.Calibrations + m.Summaries
}

// AggregatedUserData is the read-only per-request snapshot the engines
// consume. It is never persisted.
type AggregatedUserData struct {
	UserID       string               `json:"user_id"`
	AsOf         time.Time            `json:"as_of"`
	Baseline     *BaselineData        `json:"baseline,omitempty"`
	Calibrations []CalibrationEntry   `json:"calibrations"`
	Summaries    []NarrativeSummary   `json:"summaries,omitempty"`
	Malformed    MalformedCounts      `json:"malformed"`
	Status       DataCollectionStatus `json:"status"`
}

// --- Curve model ---

// Week0Values maps each metric to its normalized (0-100, higher is better)
// starting value.
type Week0Values map[Metric]float64

// TrendDirection classifies a trend slope.
type TrendDirection string

const (
	TrendImproving TrendDirection = "improving"
	TrendFlat      TrendDirection = "flat"
	TrendWorsening TrendDirection = "worsening"
)

// TrendInputs are the per-metric signals extracted from calibration history.
type TrendInputs struct {
	Metric      Metric         `json:"metric"`
	Slope       float64        `json:"slope"` // normalized units per week
	Direction   TrendDirection `json:"direction"`
	SampleCount int            `json:"sample_count"`
	RecencyDays float64        `json:"recency_days"`
	Variance    float64        `json:"variance"`
	LastValue   float64        `json:"last_value"`
}

// ShockDirection is the sign of a shock event.
type ShockDirection string

const (
	ShockNegative ShockDirection = "negative"
	ShockPositive ShockDirection = "positive"
)

// ShockEvent is a short-lived discontinuity in calibration history.
// Detected per analysis, never stored.
type ShockEvent struct {
	Date      time.Time      `json:"date"`
	Metric    Metric         `json:"metric"`
	Magnitude float64        `json:"magnitude"` // normalized units, always >= 0
	Direction ShockDirection `json:"direction"`
}

// Signed returns the magnitude with the shock's sign applied.
func (s ShockEvent) Signed() float64 {
	if s.Direction == ShockNegative {
		return -s.Magnitude
	}
	return s.Magnitude
}

// ShockOffset places a shock on the curve's week axis.
type ShockOffset struct {
	Week      float64 `json:"week"`
	Magnitude float64 `json:"magnitude"` // signed
}

// CurveParams are the fitted parameters of one metric's exponential-approach
// curve plus the inputs that scale its uncertainty.
type CurveParams struct {
	Metric      Metric        `json:"metric"`
	Week0       float64       `json:"week0"`
	Target      float64       `json:"target"`
	Rate        float64       `json:"rate"`
	SampleCount int           `json:"sample_count"`
	RecencyDays float64       `json:"recency_days"`
	Variance    float64       `json:"variance"`
	Shocks      []ShockOffset `json:"shocks,omitempty"`
}

// MetricPrediction is one sampled point of a curve.
type MetricPrediction struct {
	Metric         Metric   `json:"metric"`
	Week           int      `json:"week"`
	Value          float64  `json:"value"`
	RawScore       *float64 `json:"raw_score,omitempty"`
	ConfidenceLow  float64  `json:"confidence_low"`
	ConfidenceHigh float64  `json:"confidence_high"`
	Interpretation string   `json:"interpretation"`
	SeverityLevel  int      `json:"severity_level"`
}

// Width returns the confidence interval width.
func (p MetricPrediction) Width() float64 {
	return p.ConfidenceHigh - p.ConfidenceLow
}

// RawScore returns a pointer to a questionnaire score. Raw scores are
// optional so they can be withheld from published reports.
func RawScore(v float64) *float64 {
	return &v
}

// PredictionTimepoint is a MetricPrediction at one of the configured
// forecast weeks.
type PredictionTimepoint = MetricPrediction

// TreatmentMilestone is the first predicted week at which a metric improves
// by at least one severity level.
type TreatmentMilestone struct {
	Week      int    `json:"week"`
	Metric    Metric `json:"metric"`
	FromLabel string `json:"from_label"`
	ToLabel   string `json:"to_label"`
}

// LongitudinalPredictions holds the forecast for every tracked metric.
type LongitudinalPredictions struct {
	Weeks     []int                            `json:"weeks"`
	Metrics   []Metric                         `json:"metrics"`
	Baseline  map[Metric]MetricPrediction      `json:"baseline"`
	Timepoint map[Metric][]PredictionTimepoint `json:"timepoints"`
}

// --- Output contract ---

// SchemaVersion identifies the DigitalTwinCurveOutput layout.
const SchemaVersion = "1.0"

// QualityLevel grades the data behind a report.
type QualityLevel string

const (
	QualitySufficient   QualityLevel = "sufficient"
	QualityPartial      QualityLevel = "partial"
	QualityInsufficient QualityLevel = "insufficient"
)

// Quality issue codes.
const (
	IssueNoBaseline         = RequirementBaseline
	IssueTooFewCalibrations = RequirementCalibrations
	IssueMalformedRecords   = "malformed_records"
	IssueMissingMetric      = "missing_metric"
	IssueSparseHistory      = "sparse_history"
	IssueComputationError   = "computation_error"
)

// QualityIssue explains why a report is not fully sufficient.
type QualityIssue struct {
	Code   string `json:"code"`
	Metric Metric `json:"metric,omitempty"`
	Detail string `json:"detail"`
}

// DataQuality is the quality metadata attached to every report.
type DataQuality struct {
	Level            QualityLevel   `json:"level"`
	Issues           []QualityIssue `json:"issues,omitempty"`
	CalibrationCount int            `json:"calibration_count"`
	MalformedRecords int            `json:"malformed_records"`
	TrackedMetrics   []Metric       `json:"tracked_metrics"`
}

// OutputMeta is the report metadata.
type OutputMeta struct {
	GeneratedAt       time.Time   `json:"generated_at"`
	AsOf              time.Time   `json:"as_of"`
	SchemaVersion     string      `json:"schema_version"`
	DataQuality       DataQuality `json:"data_quality"`
	PredictionWeeks   []int       `json:"prediction_weeks"`
	ChartHorizonWeeks int         `json:"chart_horizon_weeks"`
}

// BaselineMetric is one metric in the baseline view.
type BaselineMetric struct {
	Scale          string   `json:"scale"`
	RawScore       *float64 `json:"raw_score,omitempty"`
	Week0Value     float64  `json:"week0_value"`
	Interpretation string   `json:"interpretation"`
}

// BaselineView is the week-0 snapshot.
type BaselineView struct {
	AssessmentID string                    `json:"assessment_id,omitempty"`
	AssessedAt   time.Time                 `json:"assessed_at"`
	Metrics      map[Metric]BaselineMetric `json:"metrics"`
}

// Endpoint is a metric's predicted value at the final forecast week.
type Endpoint struct {
	Week           int      `json:"week"`
	Value          float64  `json:"value"`
	RawScore       *float64 `json:"raw_score,omitempty"`
	ConfidenceLow  float64  `json:"confidence_low"`
	ConfidenceHigh float64  `json:"confidence_high"`
	Interpretation string   `json:"interpretation"`
	Delta          float64  `json:"delta"`
}

// ChartDataPoint is one chart-ready sample.
type ChartDataPoint struct {
	Week           int     `json:"week"`
	Value          float64 `json:"value"`
	ConfidenceLow  float64 `json:"confidence_low"`
	ConfidenceHigh float64 `json:"confidence_high"`
}

// Summary holds the scalar roll-ups across all curves.
type Summary struct {
	OverallImprovement float64 `json:"overall_improvement"`
	DaysToFirstResult  *int    `json:"days_to_first_result"`
	ConsistencyScore   float64 `json:"consistency_score"`
}

// DigitalTwinCurveOutput is the report surfaced to the dashboard layer.
// Predictive views are omitted when data is insufficient.
type DigitalTwinCurveOutput struct {
	Meta        OutputMeta                       `json:"meta"`
	Baseline    *BaselineView                    `json:"baseline,omitempty"`
	Endpoints   map[Metric]Endpoint              `json:"endpoints,omitempty"`
	Timeline    []TreatmentMilestone             `json:"timeline,omitempty"`
	Series      map[Metric][]ChartDataPoint      `json:"series,omitempty"`
	Checkpoints map[Metric][]PredictionTimepoint `json:"checkpoints,omitempty"`
	Summary     *Summary                         `json:"summary,omitempty"`
	Narrative   Narrative                        `json:"narrative"`
}

// HasPredictions reports whether the predictive views were produced.
func (o *DigitalTwinCurveOutput) HasPredictions() bool {
	return len(o.Series) > 0
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UserCount     int64  `json:"user_count"`
	SchemaVersion string `json:"schema_version"`
}
