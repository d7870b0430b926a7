package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/talentproof/internal/evaluator"
	"github.com/pavelanni/talentproof/internal/event"
	"github.com/pavelanni/talentproof/internal/generator"
	"github.com/pavelanni/talentproof/internal/i18n"
	"github.com/pavelanni/talentproof/internal/metrics"
	"github.com/pavelanni/talentproof/internal/model"
	"github.com/pavelanni/talentproof/internal/session"
	"github.com/pavelanni/talentproof/internal/store"
	"github.com/pavelanni/talentproof/internal/topics"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type testEnv struct {
	router   http.Handler
	sessions *session.Store
	results  *store.Store
	events   *recordingPublisher
}

func newTestEnv(t *testing.T, v evaluator.Verifier) *testEnv {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	results, err := store.New(store.MemoryDSN)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { results.Close() })

	registry := topics.Default()
	sessions := session.New(generator.New(false), session.Options{})
	events := &recordingPublisher{}
	h, err := New(Deps{
		Sessions:  sessions,
		Topics:    registry,
		Evaluator: evaluator.New(sessions, registry, v),
		Results:   results,
		Events:    events,
		Metrics:   metrics.New(sessions.Len),
		Config:    model.ServiceConfig{Version: "3.0.0"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := chi.NewRouter()
	r.Use(i18n.Middleware)
	h.Routes(r)
	return &testEnv{router: r, sessions: sessions, results: results, events: events}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createSession(t *testing.T, user, topic string) createSessionResponse {
	t.Helper()
	rec := e.do(t, "POST", "/create-session", `{"user_id":"`+user+`","quiz_type":"`+topic+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create-session status %d: %s", rec.Code, rec.Body.String())
	}
	var resp createSessionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode create-session: %v", err)
	}
	return resp
}

func TestCreateSession(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "POST", "/create-session", `{"user_id":"alice","quiz_type":"programming"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "correct_answer") {
		t.Error("response must not expose the correct answer index")
	}

	var resp createSessionResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.SessionID, "alice_programming_") {
		t.Errorf("unexpected session id %q", resp.SessionID)
	}
	if len(resp.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(resp.Questions))
	}
	for _, q := range resp.Questions {
		if q.ID == "" || q.Text == "" || len(q.Options) != 4 {
			t.Errorf("incomplete question view %+v", q)
		}
	}
	if env.sessions.Len() != 1 {
		t.Errorf("active sessions = %d, want 1", env.sessions.Len())
	}
	if keys := env.events.Keys(); len(keys) != 1 || keys[0] != event.SessionCreated {
		t.Errorf("events = %v", keys)
	}
}

func TestCreateSessionDefaultsTopic(t *testing.T) {
	env := newTestEnv(t, nil)
	resp := env.createSession(t, "bob", "")
	if resp.Topic != model.TopicMath {
		t.Errorf("topic = %q, want math", resp.Topic)
	}
}

func TestCreateSessionBadRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed", `{"user_id":`, "Request body is not valid JSON"},
		{"missing user", `{"quiz_type":"math"}`, "user_id is required"},
		{"blank user", `{"user_id":"   "}`, "user_id is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/create-session", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status %d, want 400", rec.Code)
			}
			var resp errorResponse
			json.Unmarshal(rec.Body.Bytes(), &resp)
			if resp.Error != tt.want {
				t.Errorf("error = %q, want %q", resp.Error, tt.want)
			}
		})
	}
}

func TestEvaluateEndToEnd(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.createSession(t, "carol", "math")

	body := `{"session_id":"` + sess.SessionID + `",
		"encrypted_answers":["enc_1_aaaa","enc_2_bbbb","enc_0_cccc"],
		"behavior_data":{"answer_times":[12,20,31],"switch_counts":[0,1,0],"start_time":1,"end_time":64}}`
	rec := env.do(t, "POST", "/evaluate-quiz", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var v model.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if v.CorrectAnswers != 3 || v.TotalQuestions != 3 || !v.Passed || v.Level != 5 {
		t.Errorf("unexpected verdict %+v", v)
	}
	if v.Topic != model.TopicMath || v.IsFlagged {
		t.Errorf("unexpected verdict %+v", v)
	}
	if !strings.HasPrefix(v.EncryptedScore, "enc_math_3_") || !strings.HasPrefix(v.CertificateID, "CERT_MATH_3_000_") {
		t.Errorf("unexpected tokens %q %q", v.EncryptedScore, v.CertificateID)
	}

	count, err := env.results.EvaluationCount()
	if err != nil {
		t.Fatalf("EvaluationCount: %v", err)
	}
	if count != 1 {
		t.Errorf("ledger count = %d, want 1", count)
	}
	records, err := env.results.ListEvaluations("", 10)
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if len(records) != 1 || records[0].UserID != "carol" || records[0].SessionID != sess.SessionID {
		t.Errorf("unexpected ledger rows %+v", records)
	}

	hrec := env.do(t, "GET", "/health", "")
	var h healthResponse
	if err := json.Unmarshal(hrec.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if h.Evaluations != 1 {
		t.Errorf("health recorded_evaluations = %d, want 1", h.Evaluations)
	}
	keys := env.events.Keys()
	if len(keys) != 2 || keys[1] != event.QuizEvaluated {
		t.Errorf("events = %v", keys)
	}
}

func TestEvaluateLegacyFields(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.createSession(t, "dave", "blockchain")

	body := `{"user_id":"` + sess.SessionID + `","quiz_type":"blockchain",
		"encryptedAnswers":["enc_1_aaaa","enc_2_bbbb","x"],
		"behavior_data":{"answer_times":[9,15,40],"switch_counts":[0,0,0],"start_time":0,"end_time":0}}`
	rec := env.do(t, "POST", "/evaluate-quiz", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var v model.Verdict
	json.Unmarshal(rec.Body.Bytes(), &v)
	if v.CorrectAnswers != 2 || !v.Passed || v.Level != 3 {
		t.Errorf("unexpected verdict %+v", v)
	}
}

func TestEvaluateFlaggedPublishes(t *testing.T) {
	env := newTestEnv(t, nil)
	sess := env.createSession(t, "eve", "security")

	body := `{"session_id":"` + sess.SessionID + `",
		"encrypted_answers":["enc_1_aaaa","enc_2_bbbb","enc_3_cccc"],
		"behavior_data":{"answer_times":[1,1,1],"switch_counts":[1,1,1],"start_time":0,"end_time":3}}`
	rec := env.do(t, "POST", "/evaluate-quiz", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var v model.Verdict
	json.Unmarshal(rec.Body.Bytes(), &v)
	if !v.IsFlagged || v.Passed || v.Level != 1 {
		t.Errorf("expected flagged failing verdict, got %+v", v)
	}
	keys := env.events.Keys()
	if len(keys) != 3 || keys[2] != event.QuizFlagged {
		t.Errorf("events = %v", keys)
	}
}

func TestEvaluateErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"unknown session", `{"session_id":"ghost","encrypted_answers":["enc_1_aaaa"]}`, http.StatusNotFound},
		{"missing session", `{"encrypted_answers":["enc_1_aaaa"]}`, http.StatusBadRequest},
		{"malformed", `not json`, http.StatusBadRequest},
		{"wrong types", `{"session_id":"x","behavior_data":{"answer_times":["a"]}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/evaluate-quiz", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestEvaluateVerifierFailure(t *testing.T) {
	env := newTestEnv(t, evaluator.VerifierFunc(func(context.Context, string, model.Question) (bool, error) {
		return false, context.DeadlineExceeded
	}))
	sess := env.createSession(t, "frank", "math")
	rec := env.do(t, "POST", "/evaluate-quiz", `{"session_id":"`+sess.SessionID+`","encrypted_answers":["enc_1_aaaa"]}`)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status %d, want 502", rec.Code)
	}
}

func TestNotFoundLocalized(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest("POST", "/evaluate-quiz", strings.NewReader(`{"session_id":"ghost"}`))
	req.Header.Set("Accept-Language", "ru")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	var resp errorResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec.Code != http.StatusNotFound || resp.Error != "Сессия не найдена" {
		t.Errorf("got %d %q", rec.Code, resp.Error)
	}
}

func TestQuizzesAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	for range 2 {
		rec := env.do(t, "GET", "/quizzes", "")
		var names []string
		json.Unmarshal(rec.Body.Bytes(), &names)
		want := []string{"blockchain", "math", "programming", "security"}
		if strings.Join(names, ",") != strings.Join(want, ",") {
			t.Errorf("quizzes = %v, want %v", names, want)
		}
	}

	env.createSession(t, "gina", "math")
	rec := env.do(t, "GET", "/health", "")
	var h healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if h.Status != "OK" || h.BackendVersion != "3.0.0" || h.AvailableQuizzes != 4 || h.ActiveSessions != 1 || h.Evaluations != 0 {
		t.Errorf("unexpected health %+v", h)
	}
	if h.Architecture == "" {
		t.Error("architecture should be reported")
	}
}

func TestIndex(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, "GET", "/", "")
	body := rec.Body.String()
	if !strings.Contains(body, "v3.0.0") || !strings.Contains(body, "4 quiz topics available") {
		t.Errorf("unexpected banner %q", body)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("content type %q", rec.Header().Get("Content-Type"))
	}
}

func TestResults(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, "GET", "/results", "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty ledger: %d %q", rec.Code, rec.Body.String())
	}

	for _, topic := range []string{"math", "programming"} {
		sess := env.createSession(t, "henry", topic)
		env.do(t, "POST", "/evaluate-quiz", `{"session_id":"`+sess.SessionID+`","encrypted_answers":["enc_1_aaaa"]}`)
	}

	rec = env.do(t, "GET", "/results?quiz_type=programming", "")
	var records []model.EvaluationRecord
	json.Unmarshal(rec.Body.Bytes(), &records)
	if len(records) != 1 || records[0].Topic != model.TopicProgramming || records[0].UserID != "henry" {
		t.Fatalf("filtered results = %+v", records)
	}

	rec = env.do(t, "GET", "/results/"+records[0].ID, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get result status %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/results/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing result status %d", rec.Code)
	}
	if rec := env.do(t, "GET", "/results?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit status %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	env.createSession(t, "ivy", "security")
	rec := env.do(t, "GET", "/metrics", "")
	if !strings.Contains(rec.Body.String(), `talentproof_sessions_created_total{topic="security"} 1`) {
		t.Error("metrics should count created sessions")
	}
}
