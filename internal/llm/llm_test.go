package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/pavelanni/talentproof/internal/llm/prompts"
	"github.com/pavelanni/talentproof/internal/model"
)

// newTestClient starts a fake chat completions endpoint that answers every
// request with content and records the system prompt it received.
func newTestClient(t *testing.T, status int, content string) (*Client, func() string) {
	t.Helper()
	var (
		mu        sync.Mutex
		gotPrompt string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/models":
			io.WriteString(w, `{"object":"list","data":[{"id":"test-model","object":"model"}]}`)
		case "/v1/chat/completions":
			var req struct {
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Messages) > 0 {
				mu.Lock()
				gotPrompt = req.Messages[0].Content
				mu.Unlock()
			}
			if status != http.StatusOK {
				w.WriteHeader(status)
				io.WriteString(w, `{"error":{"message":"boom","type":"server_error"}}`)
				return
			}
			body, _ := json.Marshal(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"model":  "test-model",
				"choices": []map[string]any{{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]string{"role": "assistant", "content": content},
				}},
			})
			w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	set, err := prompts.Embedded()
	if err != nil {
		t.Fatalf("prompts.Embedded: %v", err)
	}
	return New(srv.URL+"/v1", "test-key", "test-model", set, prompts.Standard), func() string {
		mu.Lock()
		defer mu.Unlock()
		return gotPrompt
	}
}

var question = model.Question{
	ID:           "math_tester_1",
	Text:         "What is 9 + 3?",
	Options:      []string{"11", "12", "21", "93"},
	CorrectIndex: 1,
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"correct", `{"correct": true, "reason": "matches option 1"}`, true},
		{"incorrect", `{"correct": false, "reason": "wrong value"}`, false},
		{"missing field", `{"reason": "unsure"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, prompt := newTestClient(t, http.StatusOK, tt.content)
			got, err := c.Verify(context.Background(), "twelve", question)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
			if p := prompt(); !strings.Contains(p, question.Text) || !strings.Contains(p, "twelve") {
				t.Errorf("prompt does not carry question and answer: %q", p)
			}
		})
	}
}

func TestVerifyBadJSON(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, "yes, it is correct")
	if _, err := c.Verify(context.Background(), "12", question); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestVerifyAPIError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusInternalServerError, "")
	if _, err := c.Verify(context.Background(), "12", question); err == nil {
		t.Fatal("expected API error")
	}
}

func TestPing(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, "{}")
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestParseJudgement(t *testing.T) {
	j, err := parseJudgement(`{"correct": true, "reason": "ok"}`)
	if err != nil {
		t.Fatalf("parseJudgement: %v", err)
	}
	if !j.Correct || j.Reason != "ok" {
		t.Errorf("unexpected judgement %+v", j)
	}
	if _, err := parseJudgement("not json"); err == nil {
		t.Error("expected error for non-JSON input")
	}
}
