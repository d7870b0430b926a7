package generator

import (
	"fmt"
	"math/rand/v2"
)

// Operation names recorded in the "type" parameter of math questions.
const (
	OpAddition       = "addition"
	OpSubtraction    = "subtraction"
	OpMultiplication = "multiplication"
	OpDivision       = "division"
)

var mathOps = []string{OpAddition, OpSubtraction, OpMultiplication, OpDivision}

func mathDraft(rng *rand.Rand) draft {
	op := mathOps[rng.IntN(len(mathOps))]

	var a, b, answer int
	var symbol string
	var mistake int // a distractor modelled on a plausible slip

	switch op {
	case OpAddition:
		a, b = between(rng, 1, 100), between(rng, 1, 100)
		answer = a + b
		symbol = "+"
		mistake = answer + 1
	case OpSubtraction:
		a = between(rng, 50, 200)
		b = between(rng, 1, a)
		answer = a - b
		symbol = "-"
		mistake = a + b
	case OpMultiplication:
		a, b = between(rng, 2, 20), between(rng, 2, 12)
		answer = a * b
		symbol = "×"
		mistake = (a + 1) * b
	case OpDivision:
		b = between(rng, 2, 12)
		answer = between(rng, 2, 20)
		a = answer * b
		symbol = "÷"
		mistake = max(a/(b+1), 1)
	}

	var distractors []string
	if op == OpDivision {
		distractors = []string{itoa(answer + 1), itoa(answer - 1), itoa(mistake)}
	} else {
		distractors = []string{
			itoa(answer + between(rng, 5, 15)),
			itoa(answer - between(rng, 5, 15)),
			itoa(mistake),
		}
	}

	return draft{
		prefix:      "math",
		text:        fmt.Sprintf("What is %d %s %d?", a, symbol, b),
		correct:     itoa(answer),
		distractors: distractors,
		params: map[string]string{
			"a":    itoa(a),
			"b":    itoa(b),
			"type": op,
		},
		expectedTime: 30,
	}
}
