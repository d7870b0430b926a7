package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/pavelanni/talentproof/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(MemoryDSN)
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// tick makes the store clock advance one second per call.
func tick(s *Store) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func recordTestEvaluation(t *testing.T, s *Store, user string, topic model.Topic, correct int, flagged bool) model.EvaluationRecord {
	t.Helper()
	sess := model.Session{ID: user + "_" + string(topic) + "_1", UserID: user, Topic: topic}
	v := model.Verdict{
		Passed:             correct == 3 && !flagged,
		Level:              5,
		CorrectAnswers:     correct,
		TotalQuestions:     3,
		ScorePercentage:    float64(correct) / 3,
		Topic:              topic,
		CertificateID:      "CERT_TEST",
		CheatingLikelihood: 0.2,
		IsFlagged:          flagged,
		BehaviorAnalysis:   model.BehaviorAnalysis{AverageTime: 12.5, PatternDeviation: 0.4},
	}
	rec, err := s.RecordEvaluation(sess, v)
	if err != nil {
		t.Fatalf("RecordEvaluation: %v", err)
	}
	return rec
}

func TestRecordAndGetEvaluation(t *testing.T) {
	s := newTestStore(t)
	tick(s)

	count, err := s.EvaluationCount()
	if err != nil {
		t.Fatalf("EvaluationCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 evaluations, got %d", count)
	}

	rec := recordTestEvaluation(t, s, "alice", model.TopicMath, 3, false)
	if rec.ID == "" {
		t.Fatal("expected generated id")
	}

	got, err := s.GetEvaluation(rec.ID)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if got == nil {
		t.Fatal("expected record, got nil")
	}
	if got.UserID != "alice" || got.Topic != model.TopicMath || got.SessionID != "alice_math_1" {
		t.Errorf("unexpected record %+v", got)
	}
	if !got.Passed || got.IsFlagged || got.CorrectAnswers != 3 || got.Level != 5 {
		t.Errorf("verdict fields not round-tripped: %+v", got)
	}
	if got.AverageTime != 12.5 || got.PatternDeviation != 0.4 {
		t.Errorf("behavior fields not round-tripped: %+v", got)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, rec.CreatedAt)
	}

	missing, err := s.GetEvaluation("no-such-id")
	if err != nil {
		t.Fatalf("GetEvaluation missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing record, got %+v", missing)
	}
}

func TestListEvaluations(t *testing.T) {
	s := newTestStore(t)
	tick(s)

	first := recordTestEvaluation(t, s, "u1", model.TopicMath, 1, false)
	recordTestEvaluation(t, s, "u2", model.TopicSecurity, 2, true)
	last := recordTestEvaluation(t, s, "u3", model.TopicMath, 3, false)

	all, err := s.ListEvaluations("", 0)
	if err != nil {
		t.Fatalf("ListEvaluations: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	if all[0].ID != last.ID || all[2].ID != first.ID {
		t.Errorf("expected newest first, got %s ... %s", all[0].UserID, all[2].UserID)
	}

	limited, err := s.ListEvaluations("", 2)
	if err != nil {
		t.Fatalf("ListEvaluations limit: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 records with limit, got %d", len(limited))
	}

	math, err := s.ListEvaluations(model.TopicMath, 0)
	if err != nil {
		t.Fatalf("ListEvaluations topic: %v", err)
	}
	if len(math) != 2 {
		t.Errorf("expected 2 math records, got %d", len(math))
	}
	for _, r := range math {
		if r.Topic != model.TopicMath {
			t.Errorf("unexpected topic %q in filtered list", r.Topic)
		}
	}

	count, _ := s.EvaluationCount()
	if count != 3 {
		t.Errorf("EvaluationCount() = %d, want 3", count)
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata(KeyBackendVersion)
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if v != "" {
		t.Errorf("expected empty value for missing key, got %q", v)
	}

	if err := s.SetMetadata(KeyBackendVersion, "3.0.0"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	if err := s.SetMetadata(KeyBackendVersion, "3.0.1"); err != nil {
		t.Fatalf("SetMetadata overwrite: %v", err)
	}
	v, _ = s.GetMetadata(KeyBackendVersion)
	if v != "3.0.1" {
		t.Errorf("GetMetadata() = %q, want 3.0.1", v)
	}
}

func TestExportAll(t *testing.T) {
	s := newTestStore(t)
	tick(s)

	empty, err := s.ExportAll()
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if empty.Count != 0 || empty.Results == nil {
		t.Errorf("expected empty non-nil results, got %+v", empty)
	}

	s.SetMetadata(KeyBackendVersion, "3.0.0")
	recordTestEvaluation(t, s, "u1", model.TopicBlockchain, 2, false)
	recordTestEvaluation(t, s, "u2", model.TopicProgramming, 3, false)

	out, err := s.ExportAll()
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if out.BackendVersion != "3.0.0" {
		t.Errorf("backend version = %q", out.BackendVersion)
	}
	if out.Count != 2 || len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got count=%d len=%d", out.Count, len(out.Results))
	}
	if out.Results[0].UserID != "u2" {
		t.Errorf("expected newest first, got %q", out.Results[0].UserID)
	}
}

func TestFileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := recordTestEvaluation(t, s, "persist", model.TopicMath, 3, false)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { s2.Close() })
	got, err := s2.GetEvaluation(rec.ID)
	if err != nil {
		t.Fatalf("GetEvaluation: %v", err)
	}
	if got == nil || got.UserID != "persist" {
		t.Errorf("record not persisted: %+v", got)
	}
}
