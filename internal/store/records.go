package store

import "time"

// User is a tracked person.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Assessment is one completed baseline questionnaire session.
type Assessment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AssessedAt time.Time `json:"assessed_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoreRecord is one stored scale score joined with its assessment. Rows are
// returned as stored; callers validate them.
type ScoreRecord struct {
	AssessmentID string    `json:"assessment_id"`
	AssessedAt   time.Time `json:"assessed_at"`
	Metric       string    `json:"metric"`
	Scale        string    `json:"scale"`
	Score        float64   `json:"score"`
}

// CalibrationRecord is one stored daily check-in. Date is the stored
// calendar date string.
type CalibrationRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Date         string    `json:"date"`
	Mood         float64   `json:"mood"`
	Stress       float64   `json:"stress"`
	SleepQuality float64   `json:"sleep_quality"`
	Energy       float64   `json:"energy"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SummaryRecord is one stored narrative summary.
type SummaryRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
