// Package behavior turns answer-timing telemetry into statistics and a
// cheating-likelihood score. Everything here is pure and safe on empty input.
package behavior

import (
	"slices"

	"github.com/pavelanni/talentproof/internal/model"
)

// Analyze summarizes one submission's telemetry. With no answer times the
// time-derived fields are zero; with questionCount <= 0 switch frequency is zero.
func Analyze(t model.Telemetry, questionCount int) model.BehaviorAnalysis {
	var a model.BehaviorAnalysis

	if questionCount > 0 {
		var switches uint64
		for _, s := range t.SwitchCounts {
			switches += uint64(s)
		}
		a.SwitchFrequency = float64(switches) / float64(questionCount)
	}

	if len(t.AnswerTimes) == 0 {
		return a
	}

	avg := mean(t.AnswerTimes)
	a.AverageTime = avg
	a.TimeConsistency = min(1/(1+variance(t.AnswerTimes, avg)), 1)

	if len(t.AnswerTimes) > 1 && avg > 0 {
		lo, hi := slices.Min(t.AnswerTimes), slices.Max(t.AnswerTimes)
		a.PatternDeviation = float64(hi-lo) / avg
	}
	return a
}

func mean(times []uint32) float64 {
	if len(times) == 0 {
		return 0
	}
	var sum uint64
	for _, t := range times {
		sum += uint64(t)
	}
	return float64(sum) / float64(len(times))
}

// variance is the population variance around avg.
func variance(times []uint32, avg float64) float64 {
	if len(times) == 0 {
		return 0
	}
	var sum float64
	for _, t := range times {
		d := float64(t) - avg
		sum += d * d
	}
	return sum / float64(len(times))
}
