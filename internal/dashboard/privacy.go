package dashboard

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`)

	// Phone candidates holding these are dates or measurements.
	datePattern    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	decimalPattern = regexp.MustCompile(`\d\.\d{1,2}(?:\D|$)`)
)

const (
	redactedEmail  = "[email]"
	redactedPhone  = "[phone]"
	minPhoneDigits = 7
)

// PrivacyFilter strips identifying details from dashboards and curve
// reports before they leave the service.
type PrivacyFilter struct {
	salt             string
	includeRawScores bool
}

// NewPrivacyFilter creates a filter. salt keys the user pseudonym;
// includeRawScores keeps questionnaire scores on cards and reports.
func NewPrivacyFilter(salt string, includeRawScores bool) *PrivacyFilter {
	return &PrivacyFilter{salt: salt, includeRawScores: includeRawScores}
}

// Pseudonym returns the stable pseudonymous id for userID.
func (f *PrivacyFilter) Pseudonym(userID string) string {
	sum := sha256.Sum256([]byte(f.salt + ":" + userID))
	return "u_" + hex.EncodeToString(sum[:8])
}

// Apply returns a filtered copy of d. d is not modified.
func (f *PrivacyFilter) Apply(d *Dashboard) *Dashboard {
	out := *d
	out.UserID = f.Pseudonym(d.UserID)

	out.Cards = make([]MetricCard, len(d.Cards))
	for i, c := range d.Cards {
		if !f.includeRawScores {
			c.RawScore = nil
		}
		out.Cards[i] = c
	}

	if text, ok := d.Narrative.Text(); ok {
		out.Narrative = types.NarrativePresent(Redact(text))
	}
	return &out
}

// ApplyReport returns a filtered copy of out: the narrative is redacted and,
// unless raw scores are allowed, questionnaire scores are dropped from the
// baseline, endpoints and checkpoints. out is not modified.
func (f *PrivacyFilter) ApplyReport(out *types.DigitalTwinCurveOutput) *types.DigitalTwinCurveOutput {
	r := *out
	if text, ok := out.Narrative.Text(); ok {
		r.Narrative = types.NarrativePresent(Redact(text))
	}
	if f.includeRawScores {
		return &r
	}

	if out.Baseline != nil {
		b := *out.Baseline
		b.Metrics = make(map[types.Metric]types.BaselineMetric, len(out.Baseline.Metrics))
		for m, bm := range out.Baseline.Metrics {
			bm.RawScore = nil
			b.Metrics[m] = bm
		}
		r.Baseline = &b
	}

	if out.Endpoints != nil {
		r.Endpoints = make(map[types.Metric]types.Endpoint, len(out.Endpoints))
		for m, ep := range out.Endpoints {
			ep.RawScore = nil
			r.Endpoints[m] = ep
		}
	}

	if out.Checkpoints != nil {
		r.Checkpoints = make(map[types.Metric][]types.PredictionTimepoint, len(out.Checkpoints))
		for m, pts := range out.Checkpoints {
			cp := make([]types.PredictionTimepoint, len(pts))
			for i, p := range pts {
				p.RawScore = nil
				cp[i] = p
			}
			r.Checkpoints[m] = cp
		}
	}
	return &r
}

// Redact replaces e-mail addresses and phone numbers in text. Dates and
// decimal ranges are left alone.
func Redact(text string) string {
	return redactPhones(emailPattern.ReplaceAllString(text, redactedEmail))
}

func redactPhones(text string) string {
	return phonePattern.ReplaceAllStringFunc(text, redactPhone)
}

// redactPhone redacts a phone candidate. A date inside the candidate is kept
// and the text around it is checked on its own.
func redactPhone(m string) string {
	if loc := datePattern.FindStringIndex(m); loc != nil {
		return redactPhones(m[:loc[0]]) + m[loc[0]:loc[1]] + redactPhones(m[loc[1]:])
	}
	if decimalPattern.MatchString(m) {
		return m
	}
	var digits int
	for _, r := range m {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < minPhoneDigits {
		return m
	}
	return redactedPhone
}
