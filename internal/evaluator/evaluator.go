// Package evaluator scores quiz submissions.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/pavelanni/talentproof/internal/behavior"
	"github.com/pavelanni/talentproof/internal/model"
	"github.com/pavelanni/talentproof/internal/topics"
)

// FlagThreshold is the cheating likelihood above which a verdict is flagged.
const FlagThreshold = 0.6

// SessionStore is the part of the session store the evaluator needs.
// RecordTelemetry merges telemetry and returns the updated session.
type SessionStore interface {
	Get(id string) (model.Session, error)
	RecordTelemetry(id string, t model.Telemetry) (model.Session, error)
}

// VerifyError reports a verifier failure for one answer.
type VerifyError struct {
	Index int
	Err   error
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("verify answer %d: %v", e.Index, e.Err)
}

func (e *VerifyError) Unwrap() error { return e.Err }

// Evaluator turns a submission into a Verdict.
type Evaluator struct {
	sessions SessionStore
	topics   *topics.Registry
	verifier Verifier
}

// New creates an Evaluator. A nil verifier means LengthVerifier.
func New(sessions SessionStore, registry *topics.Registry, verifier Verifier) *Evaluator {
	if verifier == nil {
		verifier = LengthVerifier{}
	}
	return &Evaluator{sessions: sessions, topics: registry, verifier: verifier}
}

// Evaluate is Submit without the session snapshot.
func (e *Evaluator) Evaluate(ctx context.Context, sessionID string, answers []string, t model.Telemetry) (model.Verdict, error) {
	v, _, err := e.Submit(ctx, sessionID, answers, t)
	return v, err
}

// Submit checks the answers, merges the telemetry into the session, and
// builds the verdict. It also returns the session as merged, so callers see
// the same behavior record the verdict was computed from. Telemetry is only
// merged once every answer has been verified. Unknown sessions yield
// session.ErrSessionNotFound from the store unchanged.
func (e *Evaluator) Submit(ctx context.Context, sessionID string, answers []string, t model.Telemetry) (model.Verdict, model.Session, error) {
	snap, err := e.sessions.Get(sessionID)
	if err != nil {
		return model.Verdict{}, model.Session{}, err
	}

	total := len(snap.Questions)
	correct := 0
	for i, answer := range answers {
		if i >= total {
			break
		}
		ok, err := e.verifier.Verify(ctx, answer, snap.Questions[i])
		if err != nil {
			return model.Verdict{}, model.Session{}, &VerifyError{Index: i, Err: err}
		}
		if ok {
			correct++
		}
	}

	sess, err := e.sessions.RecordTelemetry(sessionID, t)
	if err != nil {
		return model.Verdict{}, model.Session{}, err
	}

	var pct float64
	if total > 0 {
		pct = float64(correct) / float64(total)
	}
	passed := pct >= e.topics.PassingScore(sess.Topic)

	assessment := behavior.Classify(sess.Behavior, total)
	flagged := assessment.Score > FlagThreshold

	v := model.Verdict{
		Passed:             passed && !flagged,
		EncryptedScore:     scoreToken(sess.Topic, correct),
		Level:              levelFor(pct, flagged),
		CorrectAnswers:     correct,
		TotalQuestions:     total,
		ScorePercentage:    pct,
		Topic:              sess.Topic,
		CertificateID:      certificateID(sess.Topic, correct, assessment.Score),
		CheatingLikelihood: assessment.Score,
		CheatingSignals:    assessment.Signals,
		BehaviorAnalysis:   behavior.Analyze(t, total),
		IsFlagged:          flagged,
	}
	if flagged {
		slog.Warn("submission flagged",
			"session_id", sessionID,
			"topic", sess.Topic,
			"cheating_likelihood", assessment.Score,
		)
	}
	return v, sess, nil
}

// levelFor maps a score fraction to a level from 1 to 5.
func levelFor(pct float64, flagged bool) int {
	switch {
	case flagged:
		return 1
	case pct >= 0.9:
		return 5
	case pct >= 0.7:
		return 4
	case pct >= 0.6:
		return 3
	case pct >= 0.5:
		return 2
	default:
		return 1
	}
}

func scoreToken(topic model.Topic, correct int) string {
	return fmt.Sprintf("enc_%s_%d_%x", topic, correct, rand.Uint32())
}

// severityCode truncates likelihood*100; the small bias keeps products that
// land just under an integer from rounding down.
func severityCode(likelihood float64) int {
	return int(likelihood*100 + 1e-9)
}

func certificateID(topic model.Topic, correct int, likelihood float64) string {
	return fmt.Sprintf("CERT_%s_%d_%03d_%08x",
		strings.ToUpper(string(topic)), correct, severityCode(likelihood), rand.Uint32())
}
