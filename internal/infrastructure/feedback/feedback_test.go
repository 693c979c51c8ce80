package feedback

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"prepd-server/services/realtime-api/internal/domain/session"
	"prepd-server/services/realtime-api/internal/infrastructure/store"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"choices": [
		{
			"index": 0,
			"message": {
				"role": "assistant",
				"content": "Strong structure. Work on pacing your answers."
			},
			"finish_reason": "stop"
		}
	]
}`

func endedSession(id string) *session.Session {
	now := time.Now().UTC()
	return &session.Session{
		ID:           id,
		UserID:       "user-1",
		Model:        "gpt-4o-realtime-preview",
		Status:       session.StatusCompleted,
		StartedAt:    now.Add(-2 * time.Minute),
		EndedAt:      now,
		LastActivity: now,
		MessageCount: 12,
	}
}

func waitForFeedback(t *testing.T, s session.Store, id string) *session.Session {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := s.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if sess.Feedback != "" {
			return sess
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("feedback never persisted")
	return nil
}

func TestGeneratePersistsFeedback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q, want chat completions endpoint", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "sess_fb") {
			t.Errorf("request does not reference the session: %s", body)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completionBody)
	}))
	defer server.Close()

	s := store.NewMemoryStore(zerolog.Nop())
	sess := endedSession("sess_fb")
	if err := s.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	g := New("sk-feedback", server.URL+"/v1", "gpt-4o-mini", s, zerolog.Nop())
	if g == nil {
		t.Fatal("New() returned nil with a key set")
	}

	g.Generate(sess, "https://storage.example.com/transcripts/sess_fb.json")

	got := waitForFeedback(t, s, "sess_fb")
	if got.Feedback != "Strong structure. Work on pacing your answers." {
		t.Errorf("feedback = %q", got.Feedback)
	}
	// The write must not clobber the rest of the row.
	if got.Status != session.StatusCompleted || got.MessageCount != 12 {
		t.Errorf("session row mutated beyond feedback: %+v", got)
	}
}

func TestGenerate_ProviderFailureLeavesSessionUntouched(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"overloaded"}}`)
	}))
	defer server.Close()

	s := store.NewMemoryStore(zerolog.Nop())
	sess := endedSession("sess_fail")
	if err := s.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	g := New("sk-feedback", server.URL+"/v1", "gpt-4o-mini", s, zerolog.Nop())
	g.Generate(sess, "https://storage.example.com/transcripts/sess_fail.json")

	// Best-effort: the failure must never surface on the row.
	time.Sleep(100 * time.Millisecond)
	got, err := s.Get(context.Background(), "sess_fail")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Feedback != "" {
		t.Errorf("feedback = %q, want empty after provider failure", got.Feedback)
	}
}

func TestNew_DisabledWithoutKey(t *testing.T) {
	if g := New("", "", "gpt-4o-mini", store.NewMemoryStore(zerolog.Nop()), zerolog.Nop()); g != nil {
		t.Fatal("New() with empty key should return nil")
	}
}
