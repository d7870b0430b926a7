// Package handler serves the quiz API over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/talentproof/internal/evaluator"
	"github.com/pavelanni/talentproof/internal/event"
	"github.com/pavelanni/talentproof/internal/i18n"
	"github.com/pavelanni/talentproof/internal/metrics"
	"github.com/pavelanni/talentproof/internal/model"
	"github.com/pavelanni/talentproof/internal/session"
	"github.com/pavelanni/talentproof/internal/store"
	"github.com/pavelanni/talentproof/internal/topics"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators a Handler needs. Results, Events and Metrics
// are optional.
type Deps struct {
	Sessions  *session.Store
	Topics    *topics.Registry
	Evaluator *evaluator.Evaluator
	Results   *store.Store
	Events    event.Publisher
	Metrics   *metrics.Metrics
	Config    model.ServiceConfig
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	sessions *session.Store
	topics   *topics.Registry
	eval     *evaluator.Evaluator
	results  *store.Store
	events   event.Publisher
	metrics  *metrics.Metrics
	config   model.ServiceConfig
}

// New creates a new Handler.
func New(d Deps) (*Handler, error) {
	if d.Sessions == nil || d.Topics == nil || d.Evaluator == nil {
		return nil, errors.New("sessions, topics and evaluator are required")
	}
	events := d.Events
	if events == nil {
		events = event.NopPublisher{}
	}
	return &Handler{
		sessions: d.Sessions,
		topics:   d.Topics,
		eval:     d.Evaluator,
		results:  d.Results,
		events:   events,
		metrics:  d.Metrics,
		config:   d.Config,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/create-session", h.handleCreateSession)
	r.Post("/evaluate-quiz", h.handleEvaluate)
	r.Get("/quizzes", h.handleQuizzes)
	r.Get("/health", h.handleHealth)
	r.Get("/results", h.handleResults)
	r.Get("/results/{id}", h.handleResult)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var sb strings.Builder
	sb.WriteString(i18n.Td(ctx, "Banner", map[string]any{"Version": h.config.Version}) + "\n")
	sb.WriteString(i18n.Tp(ctx, "TopicsAvailable", h.topics.Len()) + "\n\n")
	sb.WriteString("POST /create-session  create an assessment session\n")
	sb.WriteString("POST /evaluate-quiz   evaluate answers with behavior analysis\n")
	sb.WriteString("GET  /quizzes         list quiz topics\n")
	sb.WriteString("GET  /health          service status\n")
	sb.WriteString("GET  /results         evaluation ledger\n")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, sb.String())
}

type createSessionRequest struct {
	UserID string      `json:"user_id"`
	Topic  model.Topic `json:"quiz_type"`
}

type createSessionResponse struct {
	SessionID string               `json:"session_id"`
	Topic     model.Topic          `json:"quiz_type"`
	Questions []model.QuestionView `json:"questions"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		h.writeError(w, r, http.StatusBadRequest, "MissingUserID")
		return
	}
	if req.Topic == "" {
		req.Topic = topics.FallbackTopic
	}

	count := h.config.NumQuestions
	if count <= 0 {
		count = h.topics.QuestionCount(req.Topic)
	}

	id, err := h.sessions.Create(req.UserID, req.Topic, count)
	if err != nil {
		slog.Error("create session failed", "user_id", req.UserID, "topic", req.Topic, "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "InternalError")
		return
	}
	questions, ok := h.sessions.Questions(id)
	if !ok {
		h.writeError(w, r, http.StatusNotFound, "SessionNotFound")
		return
	}

	views := make([]model.QuestionView, len(questions))
	for i, q := range questions {
		views[i] = q.View()
	}
	slog.Info("session created", "session_id", id, "user_id", req.UserID, "topic", req.Topic, "questions", count)

	if h.metrics != nil {
		h.metrics.SessionCreated(req.Topic)
	}
	h.publish(r, event.SessionCreated, event.SessionCreatedData{
		SessionID:     id,
		UserID:        req.UserID,
		Topic:         req.Topic,
		QuestionCount: len(views),
	})

	writeJSON(w, http.StatusOK, createSessionResponse{SessionID: id, Topic: req.Topic, Questions: views})
}

type evaluateRequest struct {
	SessionID string `json:"session_id"`
	// Older clients send the session id as user_id.
	UserID           string          `json:"user_id"`
	Topic            model.Topic     `json:"quiz_type"`
	EncryptedAnswers []string        `json:"encrypted_answers"`
	AnswersCamel     []string        `json:"encryptedAnswers"`
	BehaviorData     model.Telemetry `json:"behavior_data"`
}

func (req evaluateRequest) sessionID() string {
	if req.SessionID != "" {
		return req.SessionID
	}
	return req.UserID
}

func (req evaluateRequest) answers() []string {
	if req.EncryptedAnswers != nil {
		return req.EncryptedAnswers
	}
	return req.AnswersCamel
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.sessionID())
	if id == "" {
		h.writeError(w, r, http.StatusBadRequest, "MissingSessionID")
		return
	}

	start := time.Now()
	v, sess, err := h.eval.Submit(r.Context(), id, req.answers(), req.BehaviorData)
	if err != nil {
		var verr *evaluator.VerifyError
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			slog.Info("evaluation for unknown session", "session_id", id)
			h.writeError(w, r, http.StatusNotFound, "SessionNotFound")
		case errors.As(err, &verr):
			slog.Error("answer verification failed", "session_id", id, "error", err)
			h.writeError(w, r, http.StatusBadGateway, "VerificationFailed")
		default:
			slog.Error("evaluation failed", "session_id", id, "error", err)
			h.writeError(w, r, http.StatusInternalServerError, "InternalError")
		}
		return
	}
	took := time.Since(start)

	slog.Info("evaluation complete",
		"session_id", id,
		"topic", v.Topic,
		"passed", v.Passed,
		"correct", v.CorrectAnswers,
		"total", v.TotalQuestions,
		"cheating_likelihood", v.CheatingLikelihood,
		"flagged", v.IsFlagged,
	)

	var evaluationID string
	if h.results != nil {
		rec, err := h.results.RecordEvaluation(sess, v)
		if err != nil {
			slog.Error("record evaluation failed", "session_id", id, "error", err)
		} else {
			evaluationID = rec.ID
		}
	}
	if h.metrics != nil {
		h.metrics.Evaluated(v, took)
	}
	payload := event.NewQuizEvaluated(evaluationID, sess, v)
	h.publish(r, event.QuizEvaluated, payload)
	if v.IsFlagged {
		h.publish(r, event.QuizFlagged, payload)
	}

	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleQuizzes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.topics.Names())
}

type healthResponse struct {
	Status           string `json:"status"`
	Architecture     string `json:"architecture"`
	BackendVersion   string `json:"backend_version"`
	AvailableQuizzes int    `json:"available_quizzes"`
	ActiveSessions   int    `json:"active_sessions"`
	Evaluations      int    `json:"recorded_evaluations"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:           "OK",
		Architecture:     runtime.GOARCH,
		BackendVersion:   h.config.Version,
		AvailableQuizzes: h.topics.Len(),
		ActiveSessions:   h.sessions.Len(),
	}
	if h.results != nil {
		n, err := h.results.EvaluationCount()
		if err != nil {
			slog.Error("count evaluations failed", "error", err)
		}
		resp.Evaluations = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "ResultsUnavailable")
		return
	}
	limit := 100
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	records, err := h.results.ListEvaluations(model.Topic(r.URL.Query().Get("quiz_type")), limit)
	if err != nil {
		slog.Error("list evaluations failed", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "InternalError")
		return
	}
	if records == nil {
		records = []model.EvaluationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "ResultsUnavailable")
		return
	}
	rec, err := h.results.GetEvaluation(chi.URLParam(r, "id"))
	if err != nil {
		slog.Error("get evaluation failed", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "InternalError")
		return
	}
	if rec == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// decode reads a JSON body into dst, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Debug("malformed request body", "path", r.URL.Path, "error", err)
		h.writeError(w, r, http.StatusBadRequest, "InvalidJSON")
		return false
	}
	return true
}

func (h *Handler) publish(r *http.Request, routingKey string, payload any) {
	if err := h.events.Publish(r.Context(), routingKey, payload); err != nil {
		slog.Warn("publish event failed", "routing_key", routingKey, "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, msgID string) {
	writeJSON(w, status, errorResponse{Error: i18n.T(r.Context(), msgID)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
