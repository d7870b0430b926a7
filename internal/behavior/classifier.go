package behavior

import "github.com/pavelanni/talentproof/internal/model"

// Signal names reported in an Assessment.
const (
	SignalFastAnswers   = "fast_answers"
	SignalUniformTiming = "uniform_timing"
	SignalSwitching     = "excessive_switching"
	SignalPerfectFast   = "perfect_fast_completion"
)

const (
	fastAnswerSeconds   = 3   // an answer faster than this counts as fast
	fastAnswerShare     = 0.5 // more than this share of fast answers triggers
	uniformVariance     = 1.0 // variance below this looks bot-like
	switchRatioLimit    = 0.8
	perfectFastAvgLimit = 5.0

	// Weights are in hundredths so sums stay exact.
	weightFastAnswers   = 40
	weightUniformTiming = 30
	weightSwitching     = 20
	weightPerfectFast   = 30
	weightMax           = 100
)

// Assessment is the classifier output: a score in [0, 1] and the signals that fired.
type Assessment struct {
	Score   float64            `json:"score"`
	Signals map[string]float64 `json:"signals"`
}

// Classify scores a session's accumulated behavior against four independent
// signals. questionCount is the number of questions in the session.
func Classify(rec model.BehaviorRecord, questionCount int) Assessment {
	out := Assessment{Signals: map[string]float64{}}
	times := rec.AnswerTimes
	if len(times) == 0 {
		return out
	}

	total := 0
	fire := func(signal string, weight int) {
		out.Signals[signal] = float64(weight) / weightMax
		total += weight
	}

	fast := 0
	for _, t := range times {
		if t < fastAnswerSeconds {
			fast++
		}
	}
	if float64(fast) > float64(len(times))*fastAnswerShare {
		fire(SignalFastAnswers, weightFastAnswers)
	}

	avg := mean(times)
	if variance(times, avg) < uniformVariance {
		fire(SignalUniformTiming, weightUniformTiming)
	}

	if questionCount > 0 && float64(rec.SwitchCount)/float64(questionCount) > switchRatioLimit {
		fire(SignalSwitching, weightSwitching)
	}

	if avg < perfectFastAvgLimit && len(times) == questionCount {
		fire(SignalPerfectFast, weightPerfectFast)
	}

	out.Score = float64(min(total, weightMax)) / weightMax
	return out
}

// CheatingLikelihood returns only the score from Classify.
func CheatingLikelihood(rec model.BehaviorRecord, questionCount int) float64 {
	return Classify(rec, questionCount).Score
}
