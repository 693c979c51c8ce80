package session

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"prepd-server/services/realtime-api/internal/utils/platformerrors"
)

// mockStore is an in-memory Store for testing.
type mockStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	failNext error
}

func newMockStore() *mockStore {
	return &mockStore{sessions: make(map[string]*Session)}
}

func (m *mockStore) Create(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	if _, ok := m.sessions[sess.ID]; ok {
		return ErrAlreadyExists
	}
	cp := *sess
	m.sessions[sess.ID] = &cp
	return nil
}

func (m *mockStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

func (m *mockStore) Update(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	if _, ok := m.sessions[sess.ID]; !ok {
		return ErrNotFound
	}
	cp := *sess
	m.sessions[sess.ID] = &cp
	return nil
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *mockStore) List(ctx context.Context) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		cp := *sess
		out = append(out, &cp)
	}
	return out, nil
}

// mockChannel records what was relayed through it.
type mockChannel struct {
	mu        sync.Mutex
	audio     [][]byte
	texts     []string
	closed    bool
	sendErr   error
	closeErr  error
	lastSeq   int64
	lastStamp int64
}

func (m *mockChannel) SendAudio(ctx context.Context, audio []byte, timestamp, sequence int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.audio = append(m.audio, audio)
	m.lastStamp = timestamp
	m.lastSeq = sequence
	return nil
}

func (m *mockChannel) SendText(ctx context.Context, text string, timestamp, sequence int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.texts = append(m.texts, text)
	m.lastStamp = timestamp
	m.lastSeq = sequence
	return nil
}

func (m *mockChannel) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

// mockRegistry is a map-backed Registry.
type mockRegistry struct {
	mu       sync.Mutex
	channels map[string]Channel
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{channels: make(map[string]Channel)}
}

func (m *mockRegistry) Register(sessionID string, ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[sessionID] = ch
}

func (m *mockRegistry) Lookup(sessionID string) (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[sessionID]
	return ch, ok
}

func (m *mockRegistry) Deregister(sessionID string) (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.channels[sessionID]
	delete(m.channels, sessionID)
	return ch, ok
}

func (m *mockRegistry) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.channels)
}

type mockOpener struct {
	ch    *mockChannel
	err   error
	delay time.Duration
}

func (m *mockOpener) Open(ctx context.Context, sessionID, model string) (Channel, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.ch, nil
}

type mockIssuer struct {
	secret *ClientSecret
	err    error
	delay  time.Duration
}

func (m *mockIssuer) Issue(ctx context.Context, model string) (*ClientSecret, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.secret, nil
}

type mockNegotiator struct {
	result *NegotiationResult
	err    error
}

func (m *mockNegotiator) Negotiate(ctx context.Context, offerSDP, model, clientSecret string) (*NegotiationResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type testDeps struct {
	store      *mockStore
	registry   *mockRegistry
	opener     *mockOpener
	issuer     *mockIssuer
	negotiator *mockNegotiator
}

func newTestService(t *testing.T, deps *testDeps) Service {
	t.Helper()
	if deps.store == nil {
		deps.store = newMockStore()
	}
	if deps.registry == nil {
		deps.registry = newMockRegistry()
	}
	if deps.opener == nil {
		deps.opener = &mockOpener{ch: &mockChannel{}}
	}
	if deps.issuer == nil {
		deps.issuer = &mockIssuer{secret: &ClientSecret{Value: "eph_secret", ExpiresAt: time.Now().Add(time.Minute).Unix()}}
	}
	if deps.negotiator == nil {
		deps.negotiator = &mockNegotiator{result: &NegotiationResult{AnswerSDP: "v=0\r\nanswer"}}
	}
	return NewService(
		deps.store,
		deps.registry,
		deps.opener,
		deps.issuer,
		deps.negotiator,
		nil,
		"gpt-4o-realtime-preview",
		5*time.Second,
		"https://storage.example.com/transcripts",
		zerolog.Nop(),
	)
}

func TestCreateSession(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)

	sess, secret, err := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.Status != StatusInitializing {
		t.Errorf("status = %q, want %q", sess.Status, StatusInitializing)
	}
	if sess.UserID != "user-1" {
		t.Errorf("user ID = %q, want %q", sess.UserID, "user-1")
	}
	if sess.Model != "gpt-4o-realtime-preview" {
		t.Errorf("model = %q, want default model", sess.Model)
	}
	if secret == nil || secret.Value != "eph_secret" {
		t.Errorf("secret = %+v, want issued secret", secret)
	}
	if deps.registry.Len() != 1 {
		t.Errorf("registry size = %d, want 1", deps.registry.Len())
	}
	if _, err := deps.store.Get(context.Background(), sess.ID); err != nil {
		t.Errorf("session not persisted: %v", err)
	}
}

func TestCreateSession_ModelOverride(t *testing.T) {
	svc := newTestService(t, &testDeps{})

	sess, _, err := svc.CreateSession(context.Background(), &CreateSessionRequest{Model: "gpt-4o-mini-realtime"}, "user-1")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.Model != "gpt-4o-mini-realtime" {
		t.Errorf("model = %q, want override", sess.Model)
	}
}

func TestCreateSession_IssuerFailure(t *testing.T) {
	ch := &mockChannel{}
	deps := &testDeps{
		opener: &mockOpener{ch: ch},
		issuer: &mockIssuer{err: errors.New("provider 500")},
	}
	svc := newTestService(t, deps)

	_, _, err := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")
	if err == nil {
		t.Fatal("CreateSession() expected error")
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal) {
		t.Errorf("error type = %v, want external", platformerrors.GetPlatformError(err).Type)
	}
	if deps.registry.Len() != 0 {
		t.Errorf("registry size = %d, want 0 after failed warmup", deps.registry.Len())
	}
}

func TestCreateSession_WarmupTimeout(t *testing.T) {
	deps := &testDeps{
		opener: &mockOpener{ch: &mockChannel{}, delay: 200 * time.Millisecond},
		issuer: &mockIssuer{secret: &ClientSecret{Value: "s"}, delay: 200 * time.Millisecond},
	}
	svc := NewService(
		newMockStore(), newMockRegistry(), deps.opener, deps.issuer,
		&mockNegotiator{}, nil,
		"gpt-4o-realtime-preview", 20*time.Millisecond,
		"https://storage.example.com/transcripts", zerolog.Nop(),
	)

	_, _, err := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")
	if err == nil {
		t.Fatal("CreateSession() expected timeout error")
	}
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeTimeout) {
		t.Errorf("error type = %v, want timeout", platformerrors.GetPlatformError(err).Type)
	}
}

func TestGetSession_Ownership(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)
	sess, _, err := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if _, err := svc.GetSession(context.Background(), sess.ID, "user-1"); err != nil {
		t.Errorf("owner GetSession() error = %v", err)
	}

	_, err = svc.GetSession(context.Background(), sess.ID, "user-2")
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) {
		t.Errorf("non-owner error = %v, want forbidden", err)
	}

	_, err = svc.GetSession(context.Background(), "sess_unknown", "user-1")
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		t.Errorf("unknown session error = %v, want not found", err)
	}
}

func TestSendInput_TextActivatesSession(t *testing.T) {
	deps := &testDeps{opener: &mockOpener{ch: &mockChannel{}}}
	svc := newTestService(t, deps)
	sess, _, err := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	ended, err := svc.SendInput(context.Background(), sess.ID, "user-1", &Input{Text: "Tell me about yourself", Sequence: 1})
	if err != nil {
		t.Fatalf("SendInput() error = %v", err)
	}
	if ended != nil {
		t.Fatalf("SendInput() returned end result for plain text")
	}

	got, err := svc.GetSession(context.Background(), sess.ID, "user-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("status = %q, want %q after first input", got.Status, StatusActive)
	}
	if got.MessageCount != 1 {
		t.Errorf("message count = %d, want 1", got.MessageCount)
	}
	if len(deps.opener.ch.texts) != 1 || deps.opener.ch.texts[0] != "Tell me about yourself" {
		t.Errorf("relayed texts = %v", deps.opener.ch.texts)
	}
}

func TestSendInput_AudioDecoded(t *testing.T) {
	deps := &testDeps{opener: &mockOpener{ch: &mockChannel{}}}
	svc := newTestService(t, deps)
	sess, _, _ := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")

	raw := []byte{0x01, 0x02, 0x03, 0x04}
	in := &Input{AudioChunk: base64.StdEncoding.EncodeToString(raw), Timestamp: 1700000000000, Sequence: 7}
	if _, err := svc.SendInput(context.Background(), sess.ID, "user-1", in); err != nil {
		t.Fatalf("SendInput() error = %v", err)
	}
	if len(deps.opener.ch.audio) != 1 || string(deps.opener.ch.audio[0]) != string(raw) {
		t.Errorf("relayed audio = %v, want decoded bytes", deps.opener.ch.audio)
	}
	if deps.opener.ch.lastSeq != 7 {
		t.Errorf("sequence = %d, want 7", deps.opener.ch.lastSeq)
	}
}

func TestSendInput_InvalidBase64Audio(t *testing.T) {
	svc := newTestService(t, &testDeps{})
	sess, _, _ := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")

	_, err := svc.SendInput(context.Background(), sess.ID, "user-1", &Input{AudioChunk: "not base64!!"})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestSendInput_PayloadExclusivity(t *testing.T) {
	svc := newTestService(t, &testDeps{})
	sess, _, _ := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")

	tests := []struct {
		name string
		in   *Input
	}{
		{name: "no payload", in: &Input{}},
		{name: "audio and text", in: &Input{AudioChunk: "YWJj", Text: "hi"}},
		{name: "text and control", in: &Input{Text: "hi", Control: &Control{Type: ControlStop}}},
		{name: "all three", in: &Input{AudioChunk: "YWJj", Text: "hi", Control: &Control{Type: ControlStop}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SendInput(context.Background(), sess.ID, "user-1", tt.in)
			if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
				t.Errorf("error = %v, want validation", err)
			}
		})
	}
}

func TestSendInput_NoOpenChannel(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)
	sess, _, _ := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")

	// Simulate the channel being gone while the row survives.
	deps.registry.Deregister(sess.ID)

	_, err := svc.SendInput(context.Background(), sess.ID, "user-1", &Input{Text: "hello"})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
	if msg := platformerrors.GetPlatformError(err).Message; msg != "Session not found" {
		t.Errorf("message = %q, want %q", msg, "Session not found")
	}
}

func TestSendInput_StopControlEndsSession(t *testing.T) {
	ch := &mockChannel{}
	deps := &testDeps{opener: &mockOpener{ch: ch}}
	svc := newTestService(t, deps)
	sess, _, _ := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")

	ended, err := svc.SendInput(context.Background(), sess.ID, "user-1", &Input{Control: &Control{Type: ControlStop}})
	if err != nil {
		t.Fatalf("SendInput() error = %v", err)
	}
	if ended == nil {
		t.Fatal("SendInput() with stop control returned no end result")
	}
	if ended.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", ended.Status, StatusCompleted)
	}
	if !ch.closed {
		t.Error("provider channel not closed on stop")
	}
	if deps.registry.Len() != 0 {
		t.Errorf("registry size = %d, want 0 after stop", deps.registry.Len())
	}
}

func TestSendInput_UnsupportedControl(t *testing.T) {
	svc := newTestService(t, &testDeps{})
	sess, _, _ := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")

	_, err := svc.SendInput(context.Background(), sess.ID, "user-1", &Input{Control: &Control{Type: "pause"}})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation) {
		t.Errorf("error = %v, want validation", err)
	}
}

func TestEndSession_Idempotent(t *testing.T) {
	deps := &testDeps{}
	svc := newTestService(t, deps)
	sess, _, _ := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")

	first, err := svc.EndSession(context.Background(), sess.ID, "user-1")
	if err != nil {
		t.Fatalf("first EndSession() error = %v", err)
	}
	if first.Status != StatusCompleted {
		t.Errorf("status = %q, want %q", first.Status, StatusCompleted)
	}
	if first.TranscriptURL == "" {
		t.Error("transcript URL empty")
	}
	if first.AlreadyEnded {
		t.Error("first End reported AlreadyEnded")
	}

	second, err := svc.EndSession(context.Background(), sess.ID, "user-1")
	if err != nil {
		t.Fatalf("second EndSession() error = %v", err)
	}
	if second.SessionID != first.SessionID || second.Status != first.Status || second.Duration != first.Duration {
		t.Errorf("second end = %+v, want same as first %+v", second, first)
	}
	if !second.AlreadyEnded {
		t.Error("repeat End did not report AlreadyEnded")
	}
}

type mockFeedback struct {
	mu            sync.Mutex
	calls         int
	lastSessionID string
	lastURL       string
}

func (m *mockFeedback) Generate(sess *Session, transcriptURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastSessionID = sess.ID
	m.lastURL = transcriptURL
}

func TestEndSession_TriggersFeedbackOncePerTransition(t *testing.T) {
	fb := &mockFeedback{}
	deps := &testDeps{
		store:      newMockStore(),
		registry:   newMockRegistry(),
		opener:     &mockOpener{ch: &mockChannel{}},
		issuer:     &mockIssuer{secret: &ClientSecret{Value: "s"}},
		negotiator: &mockNegotiator{},
	}
	svc := NewService(
		deps.store, deps.registry, deps.opener, deps.issuer, deps.negotiator,
		fb, "gpt-4o-realtime-preview", 5*time.Second,
		"https://storage.example.com/transcripts", zerolog.Nop(),
	)

	sess, _, err := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	result, err := svc.EndSession(context.Background(), sess.ID, "user-1")
	if err != nil {
		t.Fatalf("EndSession() error = %v", err)
	}
	if fb.calls != 1 {
		t.Fatalf("feedback calls = %d, want 1", fb.calls)
	}
	if fb.lastSessionID != sess.ID || fb.lastURL != result.TranscriptURL {
		t.Errorf("feedback args = (%q, %q), want session and transcript URL", fb.lastSessionID, fb.lastURL)
	}

	// Idempotent repeat must not re-trigger generation.
	if _, err := svc.EndSession(context.Background(), sess.ID, "user-1"); err != nil {
		t.Fatalf("repeat EndSession() error = %v", err)
	}
	if fb.calls != 1 {
		t.Errorf("feedback calls after repeat End = %d, want 1", fb.calls)
	}
}

func TestSendInput_SecondInputKeepsSessionActive(t *testing.T) {
	deps := &testDeps{opener: &mockOpener{ch: &mockChannel{}}}
	svc := newTestService(t, deps)
	sess, _, _ := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")

	for i := 0; i < 2; i++ {
		if _, err := svc.SendInput(context.Background(), sess.ID, "user-1", &Input{Text: "answer", Sequence: int64(i + 1)}); err != nil {
			t.Fatalf("SendInput() #%d error = %v", i+1, err)
		}
	}

	got, err := svc.GetSession(context.Background(), sess.ID, "user-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if got.Status != StatusActive {
		t.Errorf("status = %q, want %q", got.Status, StatusActive)
	}
	if got.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", got.MessageCount)
	}
}

func TestEndSession_NonOwner(t *testing.T) {
	svc := newTestService(t, &testDeps{})
	sess, _, _ := svc.CreateSession(context.Background(), &CreateSessionRequest{}, "user-1")

	_, err := svc.EndSession(context.Background(), sess.ID, "user-2")
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden) {
		t.Errorf("error = %v, want forbidden", err)
	}
}

func TestNegotiate_UpstreamErrorPassthrough(t *testing.T) {
	upstream := &UpstreamError{Status: 401, Body: `{"error":"invalid client secret"}`}
	svc := newTestService(t, &testDeps{negotiator: &mockNegotiator{err: upstream}})

	_, err := svc.Negotiate(context.Background(), &NegotiationRequest{
		SessionID: "sess_x", OfferSDP: "v=0\r\noffer", Model: "gpt-4o-realtime-preview", ClientSecret: "eph",
	})
	var got *UpstreamError
	if !errors.As(err, &got) {
		t.Fatalf("error = %v, want UpstreamError", err)
	}
	if got.Status != 401 || got.Body != upstream.Body {
		t.Errorf("upstream error = %+v, want verbatim provider response", got)
	}
}

func TestNegotiate_TransportFailure(t *testing.T) {
	svc := newTestService(t, &testDeps{negotiator: &mockNegotiator{err: errors.New("connection refused")}})

	_, err := svc.Negotiate(context.Background(), &NegotiationRequest{OfferSDP: "v=0"})
	if !platformerrors.IsErrorType(err, platformerrors.ErrorTypeExternal) {
		t.Errorf("error = %v, want external", err)
	}
}

func TestNegotiate_Success(t *testing.T) {
	svc := newTestService(t, &testDeps{negotiator: &mockNegotiator{result: &NegotiationResult{AnswerSDP: "v=0\r\nanswer"}}})

	result, err := svc.Negotiate(context.Background(), &NegotiationRequest{OfferSDP: "v=0\r\noffer"})
	if err != nil {
		t.Fatalf("Negotiate() error = %v", err)
	}
	if result.AnswerSDP != "v=0\r\nanswer" {
		t.Errorf("answer = %q", result.AnswerSDP)
	}
}
