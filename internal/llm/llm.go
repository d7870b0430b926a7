// Package llm verifies quiz answers with an OpenAI-compatible chat model.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/talentproof/internal/llm/prompts"
	"github.com/pavelanni/talentproof/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Judgement is the model's decision on one answer.
type Judgement struct {
	Correct bool   `json:"correct"`
	Reason  string `json:"reason"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	prompts *prompts.Set
	variant prompts.Variant
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string, set *prompts.Set, variant prompts.Variant) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		prompts: set,
		variant: variant,
	}
}

// Judge asks the model whether answer is correct for q.
func (c *Client) Judge(ctx context.Context, answer string, q model.Question) (*Judgement, error) {
	system, err := c.prompts.BuildVerifyPrompt(c.variant, q, answer)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "question_id", q.ID, "raw", raw)
	return parseJudgement(raw)
}

// Verify implements evaluator.Verifier.
func (c *Client) Verify(ctx context.Context, answer string, q model.Question) (bool, error) {
	j, err := c.Judge(ctx, answer, q)
	if err != nil {
		return false, err
	}
	return j.Correct, nil
}

// Ping checks that the API is reachable by listing models.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func parseJudgement(raw string) (*Judgement, error) {
	var j Judgement
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return &j, nil
}
