// Package event publishes quiz lifecycle events to a message broker.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/talentproof/internal/model"
)

// Routing keys.
const (
	SessionCreated = "session.created"
	QuizEvaluated  = "quiz.evaluated"
	QuizFlagged    = "quiz.flagged"
)

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// Envelope wraps every published payload.
type Envelope struct {
	ID         string    `json:"event_id"`
	Type       string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

func newEnvelope(routingKey string, payload any, now time.Time) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       routingKey,
		OccurredAt: now.UTC(),
		Data:       payload,
	}
}

// SessionCreatedData is the payload of SessionCreated.
type SessionCreatedData struct {
	SessionID     string      `json:"session_id"`
	UserID        string      `json:"user_id"`
	Topic         model.Topic `json:"quiz_type"`
	QuestionCount int         `json:"question_count"`
}

// QuizEvaluatedData is the payload of QuizEvaluated and QuizFlagged.
type QuizEvaluatedData struct {
	EvaluationID       string             `json:"evaluation_id,omitempty"`
	SessionID          string             `json:"session_id"`
	UserID             string             `json:"user_id"`
	Topic              model.Topic        `json:"quiz_type"`
	Passed             bool               `json:"passed"`
	Level              int                `json:"level"`
	CorrectAnswers     int                `json:"correct_answers"`
	TotalQuestions     int                `json:"total_questions"`
	CheatingLikelihood float64            `json:"cheating_likelihood"`
	CheatingSignals    map[string]float64 `json:"cheating_signals,omitempty"`
	IsFlagged          bool               `json:"is_flagged"`
	CertificateID      string             `json:"certificate_id"`
}

// NewQuizEvaluated builds the evaluation payload for a verdict.
func NewQuizEvaluated(evaluationID string, sess model.Session, v model.Verdict) QuizEvaluatedData {
	return QuizEvaluatedData{
		EvaluationID:       evaluationID,
		SessionID:          sess.ID,
		UserID:             sess.UserID,
		Topic:              v.Topic,
		Passed:             v.Passed,
		Level:              v.Level,
		CorrectAnswers:     v.CorrectAnswers,
		TotalQuestions:     v.TotalQuestions,
		CheatingLikelihood: v.CheatingLikelihood,
		CheatingSignals:    v.CheatingSignals,
		IsFlagged:          v.IsFlagged,
		CertificateID:      v.CertificateID,
	}
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }
