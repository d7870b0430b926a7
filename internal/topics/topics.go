// Package topics holds the static quiz topic configuration.
package topics

import (
	"slices"

	"github.com/pavelanni/talentproof/internal/model"
)

// DefaultQuestionCount is used for topics without a canonical question set.
const DefaultQuestionCount = 3

// FallbackTopic supplies the passing threshold for unknown topics.
const FallbackTopic = model.TopicMath

// Registry is a read-only set of topic configurations.
type Registry struct {
	topics map[model.Topic]model.TopicConfig
}

// NewRegistry builds a registry from the given configurations.
func NewRegistry(configs ...model.TopicConfig) *Registry {
	r := &Registry{topics: make(map[model.Topic]model.TopicConfig, len(configs))}
	for _, c := range configs {
		r.topics[c.Name] = c
	}
	return r
}

// Default returns the registry with the four built-in topics.
func Default() *Registry {
	return NewRegistry(mathTopic(), programmingTopic(), blockchainTopic(), securityTopic())
}

// Names returns the topic names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, string(name))
	}
	slices.Sort(names)
	return names
}

// Len returns the number of configured topics.
func (r *Registry) Len() int {
	return len(r.topics)
}

// Lookup returns the configuration for a topic.
func (r *Registry) Lookup(t model.Topic) (model.TopicConfig, bool) {
	c, ok := r.topics[t]
	return c, ok
}

// PassingScore returns the topic's threshold, falling back to the math topic.
// It returns 0 only if neither the topic nor the fallback is configured.
func (r *Registry) PassingScore(t model.Topic) float64 {
	if c, ok := r.topics[t]; ok {
		return c.PassingScore
	}
	if c, ok := r.topics[FallbackTopic]; ok {
		return c.PassingScore
	}
	return 0
}

// QuestionCount returns how many questions a session on this topic gets.
func (r *Registry) QuestionCount(t model.Topic) int {
	if c, ok := r.topics[t]; ok && len(c.Questions) > 0 {
		return len(c.Questions)
	}
	return DefaultQuestionCount
}

func mathTopic() model.TopicConfig {
	return model.TopicConfig{
		Name:         model.TopicMath,
		PassingScore: 0.7,
		ExpectedTime: 30,
		Questions: []model.CanonicalQuestion{
			{ID: 1, Text: "What is 15 + 27?", Options: []string{"42", "32", "52"}},
			{ID: 2, Text: "Solve: 8 × 7", Options: []string{"56", "54", "64"}},
			{ID: 3, Text: "What is 144 ÷ 12?", Options: []string{"12", "11", "13"}},
		},
	}
}

func programmingTopic() model.TopicConfig {
	return model.TopicConfig{
		Name:         model.TopicProgramming,
		PassingScore: 0.6,
		ExpectedTime: 45,
		Questions: []model.CanonicalQuestion{
			{ID: 1, Text: "What does FHE stand for?", Options: []string{
				"Fully Homomorphic Encryption", "Federated Hardware Encryption", "Fast Hash Encryption",
			}},
			{ID: 2, Text: "Which language is best for FHE?", Options: []string{"Rust", "Python", "JavaScript"}},
			{ID: 3, Text: "What is Zero-Knowledge Proof?", Options: []string{
				"Proving something without revealing details", "A type of encryption", "A blockchain consensus",
			}},
		},
	}
}

func blockchainTopic() model.TopicConfig {
	return model.TopicConfig{
		Name:         model.TopicBlockchain,
		PassingScore: 0.6,
		ExpectedTime: 40,
		Questions: []model.CanonicalQuestion{
			{ID: 1, Text: "What is a smart contract?", Options: []string{
				"Self-executing contract with code", "Legal document on blockchain", "Cryptocurrency wallet",
			}},
			{ID: 2, Text: "Which consensus mechanism does Ethereum use?", Options: []string{
				"Proof of Stake", "Proof of Work", "Delegated Proof of Stake",
			}},
			{ID: 3, Text: "What is gas fee in Ethereum?", Options: []string{
				"Transaction execution cost", "Mining reward", "Network subscription",
			}},
		},
	}
}

func securityTopic() model.TopicConfig {
	return model.TopicConfig{
		Name:         model.TopicSecurity,
		PassingScore: 0.8,
		ExpectedTime: 35,
		Questions: []model.CanonicalQuestion{
			{ID: 1, Text: "What is phishing?", Options: []string{
				"Fraudulent attempt to obtain sensitive information", "Type of encryption", "Blockchain attack",
			}},
			{ID: 2, Text: "What is 2FA?", Options: []string{
				"Two-Factor Authentication", "Two-File Archive", "Two-Function Algorithm",
			}},
			{ID: 3, Text: "What's a common password best practice?", Options: []string{
				"Use long, complex passwords", "Use same password everywhere", "Use personal information",
			}},
		},
	}
}
