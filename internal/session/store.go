// Package session keeps quiz sessions in memory.
//
// All access to the session table goes through a single mutex: reads,
// telemetry merges, and evictions serialize against each other. Sessions
// expire after a TTL and the table is capped; the oldest session is evicted
// when a new one would exceed the cap.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pavelanni/talentproof/internal/generator"
	"github.com/pavelanni/talentproof/internal/model"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// Options configures a Store.
type Options struct {
	TTL         time.Duration // 0 disables expiry
	MaxSessions int           // 0 means unbounded
	Now         func() time.Time
}

type entry struct {
	session   *model.Session
	expiresAt time.Time
}

// Store is a concurrency-safe in-memory session table.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry

	gen         *generator.Generator
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
}

// New creates a Store that generates questions with gen.
func New(gen *generator.Generator, opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions:    make(map[string]*entry),
		gen:         gen,
		ttl:         opts.TTL,
		maxSessions: opts.MaxSessions,
		now:         now,
	}
}

// Create generates count questions for the topic and stores a new session.
func (s *Store) Create(userID string, topic model.Topic, count int) (string, error) {
	if count < 1 {
		return "", fmt.Errorf("question count must be positive, got %d", count)
	}
	questions := s.gen.NewSet(userID, topic, count)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := s.newIDLocked(userID, topic)
	if s.maxSessions > 0 {
		for len(s.sessions) >= s.maxSessions {
			s.evictOldestLocked()
		}
	}

	e := &entry{
		session: &model.Session{
			ID:        id,
			UserID:    userID,
			Topic:     topic,
			Questions: questions,
			StartedAt: now,
		},
	}
	if s.ttl > 0 {
		e.expiresAt = now.Add(s.ttl)
	}
	s.sessions[id] = e
	return id, nil
}

// newIDLocked returns an unused id of the form user_topic_suffix.
func (s *Store) newIDLocked(userID string, topic model.Topic) string {
	for {
		id := fmt.Sprintf("%s_%s_%d", userID, topic, rand.Uint32())
		if _, taken := s.sessions[id]; !taken {
			return id
		}
	}
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.sessions {
		if oldestID == "" || e.session.StartedAt.Before(oldest) {
			oldestID, oldest = id, e.session.StartedAt
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
		slog.Debug("evicted session at capacity", "session_id", oldestID, "max_sessions", s.maxSessions)
	}
}

// lookupLocked returns a live entry, dropping it if it has expired.
func (s *Store) lookupLocked(id string) (*entry, bool) {
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.sessions, id)
		return nil, false
	}
	return e, true
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookupLocked(id)
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// Questions returns a copy of the session's questions.
func (s *Store) Questions(id string) ([]model.Question, bool) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, false
	}
	return sess.Questions, true
}

// RecordTelemetry appends the submitted answer times and bumps the switch
// counter once per question with a nonzero switch count. It returns a copy of
// the session as it stands right after the merge.
func (s *Store) RecordTelemetry(id string, t model.Telemetry) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookupLocked(id)
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}

	b := &e.session.Behavior
	b.AnswerTimes = append(b.AnswerTimes, t.AnswerTimes...)
	for _, sw := range t.SwitchCounts {
		if sw > 0 {
			b.SwitchCount++
		}
	}
	return e.session.Clone(), nil
}

// Len returns the number of stored sessions. Expired sessions count until they
// are touched or cleaned up.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes expired sessions and reports how many were removed.
func (s *Store) Cleanup() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if s.ttl <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := s.Cleanup(); n > 0 {
				slog.Debug("removed expired sessions", "count", n)
			}
		}
	}
}
