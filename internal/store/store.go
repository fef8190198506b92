package store

import (
	"context"
	"time"
)

// Store defines the persistence contract for users and their records.
type Store interface {
	CreateUser(ctx context.Context, name string) (*User, error)
	GetUser(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	CountUsers(ctx context.Context) (int64, error)

	RecordAssessment(ctx context.Context, userID string, assessedAt time.Time, scores []ScoreRecord) (*Assessment, error)
	RecordCalibration(ctx context.Context, userID string, rec CalibrationRecord) (*CalibrationRecord, error)
	RecordSummary(ctx context.Context, userID, text string) (*SummaryRecord, error)

	LatestAssessmentScores(ctx context.Context, userID string) ([]ScoreRecord, error)
	ListCalibrations(ctx context.Context, userID string, limit int) ([]CalibrationRecord, error)
	ListSummaries(ctx context.Context, userID string) ([]SummaryRecord, error)

	Close() error
}
