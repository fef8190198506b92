package scales

import (
	"math"
	"testing"

	"github.com/hyperengineering/digitaltwin/internal/types"
)

func TestAdaptiveNormalize_Endpoints(t *testing.T) {
	for _, s := range []Scale{GAD7, PHQ9, ISI, PSS10} {
		t.Run(s.ID, func(t *testing.T) {
			if got := AdaptiveNormalize(s.Min, s.Min, s.Max); got != 100 {
				t.Errorf("AdaptiveNormalize(min) = %v, want 100", got)
			}
			if got := AdaptiveNormalize(s.Max, s.Min, s.Max); got != 0 {
				t.Errorf("AdaptiveNormalize(max) = %v, want 0", got)
			}
		})
	}
}

func TestAdaptiveNormalize_BoundedAndMonotonic(t *testing.T) {
	for _, s := range []Scale{GAD7, PHQ9, ISI, PSS10} {
		t.Run(s.ID, func(t *testing.T) {
			prev := math.Inf(1)
			for raw := s.Min; raw <= s.Max; raw += 0.25 {
				got := AdaptiveNormalize(raw, s.Min, s.Max)
				if got < 0 || got > 100 {
					t.Fatalf("AdaptiveNormalize(%v) = %v, outside [0,100]", raw, got)
				}
				if got > prev {
					t.Fatalf("AdaptiveNormalize not monotonic at raw=%v: %v > %v", raw, got, prev)
				}
				prev = got
			}
		})
	}
}

func TestAdaptiveNormalize_ClampsOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"below min", -5, 100},
		{"above max", 30, 0},
		{"nan", math.NaN(), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AdaptiveNormalize(tt.raw, 0, 21); got != tt.want {
				t.Errorf("AdaptiveNormalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDenormalize_InvertsNormalize(t *testing.T) {
	for raw := 0.0; raw <= 27; raw++ {
		v := PHQ9.Normalize(raw)
		back := PHQ9.Denormalize(v)
		if math.Abs(back-raw) > 1e-9 {
			t.Errorf("Denormalize(Normalize(%v)) = %v", raw, back)
		}
	}
}

func TestDenormalize_StaysWithinScale(t *testing.T) {
	for _, v := range []float64{-10, 0, 50, 100, 140} {
		raw := PSS10.Denormalize(v)
		if !PSS10.Contains(raw) {
			t.Errorf("Denormalize(%v) = %v, outside [0,40]", v, raw)
		}
	}
}

func TestInterpretGAD7(t *testing.T) {
	tests := []struct {
		raw  float64
		want string
	}{
		{0, "minimal"}, {4, "minimal"}, {5, "mild"}, {9, "mild"},
		{10, "moderate"}, {14, "moderate"}, {15, "severe"}, {21, "severe"},
	}
	for _, tt := range tests {
		if got := InterpretGAD7(tt.raw); got != tt.want {
			t.Errorf("InterpretGAD7(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestInterpretPHQ9(t *testing.T) {
	tests := []struct {
		raw  float64
		want string
	}{
		{3, "minimal"}, {7, "mild"}, {12, "moderate"}, {19, "moderately severe"}, {20, "severe"},
	}
	for _, tt := range tests {
		if got := InterpretPHQ9(tt.raw); got != tt.want {
			t.Errorf("InterpretPHQ9(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestInterpretISI(t *testing.T) {
	tests := []struct {
		raw  float64
		want string
	}{
		{7, "no clinically significant insomnia"}, {8, "subthreshold insomnia"},
		{15, "moderate insomnia"}, {28, "severe insomnia"},
	}
	for _, tt := range tests {
		if got := InterpretISI(tt.raw); got != tt.want {
			t.Errorf("InterpretISI(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestInterpretPSS10(t *testing.T) {
	tests := []struct {
		raw  float64
		want string
	}{
		{13, "low stress"}, {14, "moderate stress"}, {26, "moderate stress"}, {27, "high stress"},
	}
	for _, tt := range tests {
		if got := InterpretPSS10(tt.raw); got != tt.want {
			t.Errorf("InterpretPSS10(%v) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestInterpret_RoundsFractionalScores(t *testing.T) {
	// 4.4 rounds to 4 (minimal), 4.6 rounds to 5 (mild)
	if got := GAD7.Interpret(4.4).Label; got != "minimal" {
		t.Errorf("Interpret(4.4) = %q, want minimal", got)
	}
	if got := GAD7.Interpret(4.6).Label; got != "mild" {
		t.Errorf("Interpret(4.6) = %q, want mild", got)
	}
}

func TestTable_ByID(t *testing.T) {
	table := DefaultTable()
	s, ok := table.ByID("ISI")
	if !ok {
		t.Fatal("ByID(ISI) not found")
	}
	if s.Metric != types.MetricInsomnia {
		t.Errorf("ByID(ISI).Metric = %q, want insomnia", s.Metric)
	}
	if _, ok := table.ByID("BDI"); ok {
		t.Error("ByID(BDI) found, want missing")
	}
}
