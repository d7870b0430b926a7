package model

import (
	"maps"
	"slices"
	"time"
)

// Topic is a quiz subject category.
type Topic string

const (
	TopicMath        Topic = "math"
	TopicProgramming Topic = "programming"
	TopicBlockchain  Topic = "blockchain"
	TopicSecurity    Topic = "security"
)

// Question is a generated multiple-choice question. It is never mutated after generation.
type Question struct {
	ID           string            `json:"question_id"`
	Text         string            `json:"question_text"`
	Options      []string          `json:"options"`
	CorrectIndex int               `json:"correct_answer"`
	Parameters   map[string]string `json:"parameters"`
	Difficulty   float64           `json:"difficulty"`
	ExpectedTime int               `json:"expected_time"` // seconds
}

// CorrectOption returns the text of the correct option, or "" if the index is out of range.
func (q Question) CorrectOption() string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectIndex]
}

// View returns the client-facing projection of the question.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:           q.ID,
		Text:         q.Text,
		Options:      slices.Clone(q.Options),
		Difficulty:   q.Difficulty,
		ExpectedTime: q.ExpectedTime,
	}
}

// QuestionView is what clients see: the correct index is withheld.
type QuestionView struct {
	ID           string   `json:"question_id"`
	Text         string   `json:"question_text"`
	Options      []string `json:"options"`
	Difficulty   float64  `json:"difficulty"`
	ExpectedTime int      `json:"expected_time"`
}

// Telemetry is the client-reported behavior data sent with a submission.
type Telemetry struct {
	AnswerTimes  []uint32 `json:"answer_times"`
	SwitchCounts []uint32 `json:"switch_counts"`
	StartTime    uint64   `json:"start_time"`
	EndTime      uint64   `json:"end_time"`
}

// BehaviorRecord accumulates telemetry across submissions for one session.
type BehaviorRecord struct {
	AnswerTimes []uint32 `json:"answer_times"`
	SwitchCount uint32   `json:"switch_count"`
}

// Session is a user's quiz attempt. The question list is fixed at creation.
type Session struct {
	ID        string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	Topic     Topic          `json:"quiz_type"`
	Questions []Question     `json:"questions"`
	StartedAt time.Time      `json:"started_at"`
	Behavior  BehaviorRecord `json:"behavior"`
}

// Clone returns a deep copy safe to hand out of the session store.
func (s Session) Clone() Session {
	out := s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Options = slices.Clone(q.Options)
		q.Parameters = maps.Clone(q.Parameters)
		out.Questions[i] = q
	}
	out.Behavior.AnswerTimes = slices.Clone(s.Behavior.AnswerTimes)
	return out
}

// BehaviorAnalysis holds descriptive statistics over submitted telemetry.
type BehaviorAnalysis struct {
	AverageTime      float64 `json:"average_time"`
	TimeConsistency  float64 `json:"time_consistency"`
	SwitchFrequency  float64 `json:"switch_frequency"`
	PatternDeviation float64 `json:"pattern_deviation"`
}

// Verdict is the result of evaluating a submission.
type Verdict struct {
	Passed             bool               `json:"passed"`
	EncryptedScore     string             `json:"encrypted_score"`
	Level              int                `json:"level"`
	CorrectAnswers     int                `json:"correct_answers"`
	TotalQuestions     int                `json:"total_questions"`
	ScorePercentage    float64            `json:"score_percentage"`
	Topic              Topic              `json:"quiz_type"`
	CertificateID      string             `json:"certificate_id"`
	CheatingLikelihood float64            `json:"cheating_likelihood"`
	CheatingSignals    map[string]float64 `json:"cheating_signals,omitempty"`
	BehaviorAnalysis   BehaviorAnalysis   `json:"behavior_analysis"`
	IsFlagged          bool               `json:"is_flagged"`
}

// CanonicalQuestion is a fixed fallback question bundled with a topic.
type CanonicalQuestion struct {
	ID           int      `json:"id"`
	Text         string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_answer"`
}

// TopicConfig is the static configuration of a quiz topic.
type TopicConfig struct {
	Name         Topic               `json:"quiz_type"`
	PassingScore float64             `json:"passing_score"`
	ExpectedTime int                 `json:"expected_time"`
	Questions    []CanonicalQuestion `json:"questions"`
}

// ServiceConfig holds runtime parameters set via CLI flags.
type ServiceConfig struct {
	Version         string
	Lang            string
	NumQuestions    int           // 0 means the topic's canonical question count
	SessionTTL      time.Duration // 0 disables expiry
	MaxSessions     int           // 0 means unbounded
	CleanupInterval time.Duration
	SeedPerUser     bool   // derive question content from the user id
	Verifier        string // length, option, llm
	PromptVariant   string
	CORSOrigins     []string
}
