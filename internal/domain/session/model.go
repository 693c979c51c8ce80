package session

import "time"

// Status represents the lifecycle state of an interview session.
// Transitions are monotonic forward: initializing → active → {completed | failed}.
type Status string

const (
	// StatusInitializing indicates the provider channel is warmed but no
	// client input has been relayed yet.
	StatusInitializing Status = "initializing"
	// StatusActive indicates the client has started relaying input.
	StatusActive Status = "active"
	// StatusCompleted indicates the session was ended by its owner.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the session was terminated without a clean end,
	// for example by the idle reaper.
	StatusFailed Status = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving to next respects the forward-only
// state machine.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusInitializing:
		return next == StatusActive || next == StatusCompleted || next == StatusFailed
	case StatusActive:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// Session represents one end-to-end mock-interview interaction between a user
// and the AI interviewer provider. A session is owned by exactly one user.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"` // immutable after creation
	Model        string    `json:"model,omitempty"`
	Status       Status    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at,omitempty"` // zero until terminal
	LastActivity time.Time `json:"last_activity"`
	MessageCount int64     `json:"message_count"`
	Feedback     string    `json:"feedback,omitempty"` // written after the session ends
}

// Duration returns the session length in whole seconds. It is 0 until the
// session has ended, and 0 when StartedAt was never recorded.
func (s *Session) Duration() int64 {
	if s.StartedAt.IsZero() || s.EndedAt.IsZero() {
		return 0
	}
	d := int64(s.EndedAt.Sub(s.StartedAt).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

// ClientSecret contains the ephemeral provider credential handed to the
// client for SDP negotiation. It is single-use, model-scoped and never
// persisted.
type ClientSecret struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

// CreateSessionRequest is the request for creating a session.
type CreateSessionRequest struct {
	// Model overrides the configured default realtime model when set.
	Model string `json:"model,omitempty"`
}

// EndResult is returned by EndSession.
type EndResult struct {
	SessionID     string `json:"session_id"`
	Status        Status `json:"status"`
	Duration      int64  `json:"duration"`
	TranscriptURL string `json:"transcript_url"`

	// AlreadyEnded reports that the session was terminal before this call,
	// so no transition happened here.
	AlreadyEnded bool `json:"-"`
}

// Control message types accepted by SendInput.
const ControlStop = "stop"

// Control is a client control message.
type Control struct {
	Type string `json:"type"`
}

// Input is one client message relayed to the provider channel. Exactly one of
// AudioChunk, Text or Control must be set.
type Input struct {
	AudioChunk string   // base64-encoded audio
	Text       string
	Control    *Control
	Timestamp  int64 // client-supplied, milliseconds
	Sequence   int64 // client-supplied, monotonically increasing
}

// Kind identifies which payload an Input carries.
func (in *Input) Kind() (kind string, ok bool) {
	kinds := 0
	if in.AudioChunk != "" {
		kind = "audio"
		kinds++
	}
	if in.Text != "" {
		kind = "text"
		kinds++
	}
	if in.Control != nil {
		kind = "control"
		kinds++
	}
	return kind, kinds == 1
}

// NegotiationRequest carries a client's WebRTC offer to the provider.
type NegotiationRequest struct {
	SessionID    string
	OfferSDP     string
	Model        string
	ClientSecret string
}

// NegotiationResult is the provider's answer to a successful negotiation.
type NegotiationResult struct {
	AnswerSDP string
}
