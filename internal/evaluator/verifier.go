package evaluator

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/pavelanni/talentproof/internal/model"
)

// Verifier decides whether a submitted answer is correct for a question.
type Verifier interface {
	Verify(ctx context.Context, answer string, q model.Question) (bool, error)
}

// VerifierFunc adapts a plain function to the Verifier interface.
type VerifierFunc func(ctx context.Context, answer string, q model.Question) (bool, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, answer string, q model.Question) (bool, error) {
	return f(ctx, answer, q)
}

// LengthVerifier accepts any answer longer than five characters. It does not
// look at the question at all; it stands in for an encrypted equality check
// that clients expect but the service does not perform.
type LengthVerifier struct{}

// Verify implements Verifier.
func (LengthVerifier) Verify(_ context.Context, answer string, _ model.Question) (bool, error) {
	return len(answer) > 5, nil
}

// OptionVerifier compares the answer with the question's correct option.
// Answers may be the option text, the option index, or an envelope of the
// form enc_<index>_<salt> as produced by the web client.
type OptionVerifier struct{}

// Verify implements Verifier.
func (OptionVerifier) Verify(_ context.Context, answer string, q model.Question) (bool, error) {
	answer = strings.TrimSpace(unwrapEnvelope(answer))
	if answer == "" {
		return false, nil
	}
	// Option text wins over index so numeric options are not misread.
	if slices.Contains(q.Options, answer) {
		return answer == q.CorrectOption(), nil
	}
	idx, err := strconv.Atoi(answer)
	if err != nil {
		return false, nil
	}
	return idx == q.CorrectIndex, nil
}

// unwrapEnvelope strips the enc_ prefix and the trailing salt, if present.
func unwrapEnvelope(s string) string {
	rest, ok := strings.CutPrefix(s, "enc_")
	if !ok {
		return s
	}
	if i := strings.LastIndex(rest, "_"); i >= 0 {
		return rest[:i]
	}
	return rest
}
