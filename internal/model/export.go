package model

import "time"

// EvaluationRecord is one verdict as stored in the results ledger.
type EvaluationRecord struct {
	ID                 string    `json:"id"`
	SessionID          string    `json:"session_id"`
	UserID             string    `json:"user_id"`
	Topic              Topic     `json:"quiz_type"`
	CorrectAnswers     int       `json:"correct_answers"`
	TotalQuestions     int       `json:"total_questions"`
	ScorePercentage    float64   `json:"score_percentage"`
	Passed             bool      `json:"passed"`
	Level              int       `json:"level"`
	CheatingLikelihood float64   `json:"cheating_likelihood"`
	IsFlagged          bool      `json:"is_flagged"`
	CertificateID      string    `json:"certificate_id"`
	AverageTime        float64   `json:"average_time"`
	TimeConsistency    float64   `json:"time_consistency"`
	SwitchFrequency    float64   `json:"switch_frequency"`
	PatternDeviation   float64   `json:"pattern_deviation"`
	CreatedAt          time.Time `json:"created_at"`
}

// ResultsExport is the top-level JSON structure for ledger export.
type ResultsExport struct {
	BackendVersion string             `json:"backend_version"`
	GeneratedAt    time.Time          `json:"generated_at"`
	Count          int                `json:"count"`
	Results        []EvaluationRecord `json:"results"`
}
