package generator

import (
	"fmt"
	"math/rand/v2"
)

var firstPrimes = []int{2, 3, 5, 7, 11, 13, 17, 19, 23, 29}

func programmingDraft(rng *rand.Rand) draft {
	var text, kind, key string
	var n, answer int

	switch rng.IntN(3) {
	case 0:
		n = between(rng, 5, 15)
		answer = fibonacci(n)
		kind, key = "fibonacci", "n"
		text = fmt.Sprintf("What is the %s number in the Fibonacci sequence? (Start: 0, 1)", ordinal(n))
	case 1:
		n = between(rng, 4, 8)
		answer = factorial(n)
		kind, key = "factorial", "n"
		text = fmt.Sprintf("What is %d! (factorial)?", n)
	default:
		n = rng.IntN(len(firstPrimes))
		answer = firstPrimes[n]
		kind, key = "prime", "prime_index"
		text = fmt.Sprintf("What is the %s prime number?", ordinal(n+1))
	}

	return draft{
		prefix:      "prog",
		text:        text,
		correct:     itoa(answer),
		distractors: []string{itoa(answer + 1), itoa(answer - 1), itoa(answer * 2)},
		params: map[string]string{
			key:    itoa(n),
			"type": kind,
		},
		expectedTime: 45,
	}
}

// fibonacci returns F(n) with F(0)=0, F(1)=1.
func fibonacci(n int) int {
	a, b := 0, 1
	for range n {
		a, b = b, a+b
	}
	return a
}

func factorial(n int) int {
	f := 1
	for i := 2; i <= n; i++ {
		f *= i
	}
	return f
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
