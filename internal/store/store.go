// Package store keeps an audit ledger of evaluation verdicts in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/talentproof/internal/model"

	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != MemoryDSN {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == MemoryDSN {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		topic TEXT NOT NULL,
		correct_answers INTEGER NOT NULL,
		total_questions INTEGER NOT NULL,
		score_percentage REAL NOT NULL,
		passed BOOLEAN NOT NULL,
		level INTEGER NOT NULL,
		cheating_likelihood REAL NOT NULL,
		is_flagged BOOLEAN NOT NULL,
		certificate_id TEXT NOT NULL,
		average_time REAL NOT NULL DEFAULT 0,
		time_consistency REAL NOT NULL DEFAULT 0,
		switch_frequency REAL NOT NULL DEFAULT 0,
		pattern_deviation REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_created ON evaluations(created_at);
	CREATE INDEX IF NOT EXISTS idx_evaluations_topic ON evaluations(topic);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordEvaluation stores a verdict for a session and returns the new record.
func (s *Store) RecordEvaluation(sess model.Session, v model.Verdict) (model.EvaluationRecord, error) {
	rec := model.EvaluationRecord{
		ID:                 uuid.NewString(),
		SessionID:          sess.ID,
		UserID:             sess.UserID,
		Topic:              v.Topic,
		CorrectAnswers:     v.CorrectAnswers,
		TotalQuestions:     v.TotalQuestions,
		ScorePercentage:    v.ScorePercentage,
		Passed:             v.Passed,
		Level:              v.Level,
		CheatingLikelihood: v.CheatingLikelihood,
		IsFlagged:          v.IsFlagged,
		CertificateID:      v.CertificateID,
		AverageTime:        v.BehaviorAnalysis.AverageTime,
		TimeConsistency:    v.BehaviorAnalysis.TimeConsistency,
		SwitchFrequency:    v.BehaviorAnalysis.SwitchFrequency,
		PatternDeviation:   v.BehaviorAnalysis.PatternDeviation,
		CreatedAt:          s.now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO evaluations (id, session_id, user_id, topic, correct_answers, total_questions,
			score_percentage, passed, level, cheating_likelihood, is_flagged, certificate_id,
			average_time, time_consistency, switch_frequency, pattern_deviation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.UserID, rec.Topic, rec.CorrectAnswers, rec.TotalQuestions,
		rec.ScorePercentage, rec.Passed, rec.Level, rec.CheatingLikelihood, rec.IsFlagged, rec.CertificateID,
		rec.AverageTime, rec.TimeConsistency, rec.SwitchFrequency, rec.PatternDeviation, rec.CreatedAt,
	)
	if err != nil {
		return model.EvaluationRecord{}, fmt.Errorf("insert evaluation: %w", err)
	}
	return rec, nil
}

const evaluationColumns = `id, session_id, user_id, topic, correct_answers, total_questions,
	score_percentage, passed, level, cheating_likelihood, is_flagged, certificate_id,
	average_time, time_consistency, switch_frequency, pattern_deviation, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (model.EvaluationRecord, error) {
	var r model.EvaluationRecord
	err := row.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Topic, &r.CorrectAnswers, &r.TotalQuestions,
		&r.ScorePercentage, &r.Passed, &r.Level, &r.CheatingLikelihood, &r.IsFlagged, &r.CertificateID,
		&r.AverageTime, &r.TimeConsistency, &r.SwitchFrequency, &r.PatternDeviation, &r.CreatedAt)
	return r, err
}

// ListEvaluations returns the newest records first. An empty topic matches
// every topic; limit <= 0 means no limit.
func (s *Store) ListEvaluations(topic model.Topic, limit int) ([]model.EvaluationRecord, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE 1=1`
	var args []any
	if topic != "" {
		query += ` AND topic = ?`
		args = append(args, topic)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.EvaluationRecord
	for rows.Next() {
		r, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetEvaluation returns a record by ID, or nil if there is none.
func (s *Store) GetEvaluation(id string) (*model.EvaluationRecord, error) {
	r, err := scanEvaluation(s.db.QueryRow(
		`SELECT `+evaluationColumns+` FROM evaluations WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// EvaluationCount returns the number of stored records.
func (s *Store) EvaluationCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM evaluations`).Scan(&count)
	return count, err
}
