package generator

import "math/rand/v2"

// cannedPool is a fixed set of prompts sharing one answer key.
type cannedPool struct {
	prefix       string
	prompts      []string
	correct      string
	distractors  []string
	expectedTime int
}

var blockchainPool = cannedPool{
	prefix: "bc",
	prompts: []string{
		"What is the main purpose of a smart contract?",
		"Which consensus mechanism does Ethereum currently use?",
		"What does 'gas' represent in Ethereum?",
		"What is a blockchain fork?",
		"What is the role of miners/validators?",
	},
	correct:      "Self-executing contract with code",
	distractors:  []string{"Legal document on blockchain", "Cryptocurrency wallet", "Network node"},
	expectedTime: 40,
}

var securityPool = cannedPool{
	prefix: "sec",
	prompts: []string{
		"What is the primary goal of encryption?",
		"What does 2FA help protect against?",
		"What is a common phishing attack method?",
		"Why should passwords be hashed?",
		"What is social engineering?",
	},
	correct:      "Protect data confidentiality",
	distractors:  []string{"Increase data size", "Speed up data transfer", "Make data public"},
	expectedTime: 35,
}

func cannedDraft(rng *rand.Rand, pool cannedPool) draft {
	distractors := make([]string, len(pool.distractors))
	copy(distractors, pool.distractors)
	return draft{
		prefix:       pool.prefix,
		text:         pool.prompts[rng.IntN(len(pool.prompts))],
		correct:      pool.correct,
		distractors:  distractors,
		expectedTime: pool.expectedTime,
	}
}
