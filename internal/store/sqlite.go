package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite-backed Store.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens the database at dbPath, applies pragmas, and runs
// migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// pragmas and :memory: databases are per connection
	db.SetMaxOpenConns(1)

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// enablePragmas sets SQLite pragmas for performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, name string) (*User, error) {
	u := &User{ID: ulid.Make().String(), Name: name, CreatedAt: s.timestamp()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Name, u.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUser returns the user with id or ErrNotFound.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// ListUsers returns every user ordered by id.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt = parseTime(createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

// ListUserIDs returns every user id ordered by id.
func (s *SQLiteStore) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountUsers returns the number of users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// RecordAssessment stores a completed assessment and its scores in one
// transaction. Only Metric, Scale, and Score are read from scores.
func (s *SQLiteStore) RecordAssessment(ctx context.Context, userID string, assessedAt time.Time, scores []ScoreRecord) (*Assessment, error) {
	if len(scores) == 0 {
		return nil, ErrEmptyAssessment
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	a := &Assessment{
		ID:         ulid.Make().String(),
		UserID:     userID,
		AssessedAt: assessedAt.UTC().Truncate(time.Second),
		CreatedAt:  s.timestamp(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO assessments (id, user_id, assessed_at, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.UserID, a.AssessedAt.Format(time.RFC3339), a.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert assessment: %w", err)
	}

	for _, sc := range scores {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO baseline_scores (assessment_id, metric, scale, score) VALUES (?, ?, ?, ?)`,
			a.ID, sc.Metric, sc.Scale, sc.Score)
		if err != nil {
			return nil, fmt.Errorf("insert score %s: %w", sc.Metric, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assessment: %w", err)
	}
	return a, nil
}

// RecordCalibration stores a check-in. A second check-in for the same user
// and date replaces the first.
func (s *SQLiteStore) RecordCalibration(ctx context.Context, userID string, rec CalibrationRecord) (*CalibrationRecord, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	rec.ID = ulid.Make().String()
	rec.UserID = userID
	rec.UpdatedAt = s.timestamp()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calibrations (id, user_id, date, mood, stress, sleep_quality, energy, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			mood = excluded.mood,
			stress = excluded.stress,
			sleep_quality = excluded.sleep_quality,
			energy = excluded.energy,
			updated_at = excluded.updated_at
	`, rec.ID, rec.UserID, rec.Date, rec.Mood, rec.Stress, rec.SleepQuality, rec.Energy, rec.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("upsert calibration: %w", err)
	}

	// the conflict path keeps the original id
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM calibrations WHERE user_id = ? AND date = ?`, userID, rec.Date,
	).Scan(&rec.ID); err != nil {
		return nil, fmt.Errorf("read calibration id: %w", err)
	}
	return &rec, nil
}

// RecordSummary stores a narrative summary.
func (s *SQLiteStore) RecordSummary(ctx context.Context, userID, text string) (*SummaryRecord, error) {
	if _, err := s.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	rec := &SummaryRecord{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Text:      text,
		CreatedAt: s.timestamp(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO narrative_summaries (id, user_id, text, created_at) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.Text, rec.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert summary: %w", err)
	}
	return rec, nil
}

// LatestAssessmentScores returns the scores of the user's most recent
// assessment in metric order, or nil when there is none.
func (s *SQLiteStore) LatestAssessmentScores(ctx context.Context, userID string) ([]ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.assessed_at, b.metric, b.scale, b.score
		FROM baseline_scores b
		JOIN assessments a ON a.id = b.assessment_id
		WHERE a.id = (
			SELECT id FROM assessments
			WHERE user_id = ?
			ORDER BY assessed_at DESC, id DESC
			LIMIT 1
		)
		ORDER BY b.metric
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query baseline scores: %w", err)
	}
	defer rows.Close()

	var out []ScoreRecord
	for rows.Next() {
		var r ScoreRecord
		var assessedAt string
		if err := rows.Scan(&r.AssessmentID, &assessedAt, &r.Metric, &r.Scale, &r.Score); err != nil {
			return nil, fmt.Errorf("scan baseline score: %w", err)
		}
		r.AssessedAt = parseTime(assessedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListCalibrations returns up to limit of the user's most recent check-ins,
// oldest first.
func (s *SQLiteStore) ListCalibrations(ctx context.Context, userID string, limit int) ([]CalibrationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, date, mood, stress, sleep_quality, energy, updated_at
		FROM calibrations
		WHERE user_id = ?
		ORDER BY date DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query calibrations: %w", err)
	}
	defer rows.Close()

	var out []CalibrationRecord
	for rows.Next() {
		var r CalibrationRecord
		var updatedAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Date, &r.Mood, &r.Stress, &r.SleepQuality, &r.Energy, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan calibration: %w", err)
		}
		r.UpdatedAt = parseTime(updatedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ListSummaries returns the user's narrative summaries, oldest first.
func (s *SQLiteStore) ListSummaries(ctx context.Context, userID string) ([]SummaryRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, created_at
		FROM narrative_summaries
		WHERE user_id = ?
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []SummaryRecord
	for rows.Next() {
		var r SummaryRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		r.CreatedAt = parseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// parseTime reads a stored RFC 3339 timestamp. Unparseable values yield the
// zero time so validation upstream can reject the row.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
