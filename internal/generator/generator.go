// Package generator synthesizes randomized multiple-choice questions per topic.
//
// Each question is built from a topic-specific recipe, its options are shuffled,
// and the post-shuffle position of the correct value is recorded. Difficulty is
// carried through to the question unchanged; it does not influence content.
package generator

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strconv"

	"github.com/pavelanni/talentproof/internal/model"
)

// Source returns the random generator used for one user's question set.
type Source func(userID string) *rand.Rand

// RandomSource ignores the user id and returns an independently seeded generator.
func RandomSource(string) *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// PerUserSource derives the seed from the user id, so the same user always
// receives the same question content for a given topic and count.
func PerUserSource(userID string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generator produces question sets.
type Generator struct {
	source Source
}

// New creates a Generator. With seedPerUser the question content is a
// function of the user id; otherwise every set is freshly random.
func New(seedPerUser bool) *Generator {
	if seedPerUser {
		return &Generator{source: PerUserSource}
	}
	return &Generator{source: RandomSource}
}

// NewWithSource creates a Generator with a custom source.
func NewWithSource(src Source) *Generator {
	return &Generator{source: src}
}

// NewSet generates count questions with increasing difficulty (0.3, 0.5, 0.7, ...).
func (g *Generator) NewSet(userID string, topic model.Topic, count int) []model.Question {
	rng := g.source(userID)
	questions := make([]model.Question, 0, count)
	for i := range count {
		difficulty := 0.3 + 0.2*float64(i)
		questions = append(questions, Generate(rng, topic, userID, difficulty))
	}
	return questions
}

// Generate builds one question for the topic. Unknown topics get a math question.
func Generate(rng *rand.Rand, topic model.Topic, userID string, difficulty float64) model.Question {
	var d draft
	switch topic {
	case model.TopicProgramming:
		d = programmingDraft(rng)
	case model.TopicBlockchain:
		d = cannedDraft(rng, blockchainPool)
	case model.TopicSecurity:
		d = cannedDraft(rng, securityPool)
	default:
		d = mathDraft(rng)
	}
	return d.finish(rng, userID, difficulty)
}

// draft is a question before option shuffling.
type draft struct {
	prefix       string
	text         string
	correct      string
	distractors  []string
	params       map[string]string
	expectedTime int
}

func (d draft) finish(rng *rand.Rand, userID string, difficulty float64) model.Question {
	options := make([]string, 0, 1+len(d.distractors))
	options = append(options, d.correct)
	options = append(options, d.distractors...)
	shuffle(rng, options)

	idx, ok := locate(options, d.correct)
	if !ok {
		// Unreachable: the correct value is always one of the options.
		idx = 0
	}

	params := d.params
	if params == nil {
		params = map[string]string{}
	}

	return model.Question{
		// The id suffix comes from the global source so per-user seeding
		// does not repeat question ids across sessions.
		ID:           fmt.Sprintf("%s_%s_%d", d.prefix, userID, rand.Uint32()),
		Text:         d.text,
		Options:      options,
		CorrectIndex: idx,
		Parameters:   params,
		Difficulty:   difficulty,
		ExpectedTime: d.expectedTime,
	}
}

// shuffle is a Fisher-Yates pass: position i swaps with a uniform j in [i, n).
func shuffle(rng *rand.Rand, options []string) {
	for i := range options {
		j := i + rng.IntN(len(options)-i)
		options[i], options[j] = options[j], options[i]
	}
}

// locate returns the index of the first option equal to want.
func locate(options []string, want string) (int, bool) {
	for i, o := range options {
		if o == want {
			return i, true
		}
	}
	return 0, false
}

// between returns a uniform integer in [lo, hi).
func between(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
