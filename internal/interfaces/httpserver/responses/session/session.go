// Package sessionres contains HTTP response DTOs for session endpoints.
package sessionres

import (
	"time"

	domainsession "prepd-server/services/realtime-api/internal/domain/session"
)

// CreateSessionResponse is returned by POST /sessions. It is the only
// response that carries the ephemeral client secret.
type CreateSessionResponse struct {
	SessionID    string              `json:"sessionId"`
	Status       string              `json:"status"`
	Model        string              `json:"model"`
	ClientSecret *ClientSecretDetail `json:"clientSecret"`
}

// ClientSecretDetail contains the ephemeral credential for a session.
type ClientSecretDetail struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at"`
}

// SessionResponse represents a session in GET responses.
type SessionResponse struct {
	SessionID    string    `json:"sessionId"`
	Status       string    `json:"status"`
	StartedAt    time.Time `json:"startedAt"`
	Duration     int64     `json:"duration"`
	MessageCount int64     `json:"messageCount"`
	LastActivity time.Time `json:"lastActivity"`
	Feedback     string    `json:"feedback,omitempty"` // present once generated after the session ends
}

// EndSessionResponse is returned by POST /sessions/:id/end.
type EndSessionResponse struct {
	SessionID     string `json:"sessionId"`
	Status        string `json:"status"`
	Duration      int64  `json:"duration"`
	TranscriptURL string `json:"transcriptUrl"`
}

// SendInputResponse acknowledges a relayed input.
type SendInputResponse struct {
	Success bool `json:"success"`
}

// NegotiateResponse carries the provider's SDP answer.
type NegotiateResponse struct {
	Success bool   `json:"success"`
	SDP     string `json:"sdp"`
}

// NegotiateErrorResponse passes a provider rejection through unmodified.
type NegotiateErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"status"`
}

// NewCreateSessionResponse builds the creation response.
func NewCreateSessionResponse(sess *domainsession.Session, secret *domainsession.ClientSecret) *CreateSessionResponse {
	resp := &CreateSessionResponse{
		SessionID: sess.ID,
		Status:    string(sess.Status),
		Model:     sess.Model,
	}
	if secret != nil {
		resp.ClientSecret = &ClientSecretDetail{
			Value:     secret.Value,
			ExpiresAt: secret.ExpiresAt,
		}
	}
	return resp
}

// NewSessionResponse builds the GET response.
func NewSessionResponse(sess *domainsession.Session) *SessionResponse {
	return &SessionResponse{
		SessionID:    sess.ID,
		Status:       string(sess.Status),
		StartedAt:    sess.StartedAt,
		Duration:     sess.Duration(),
		MessageCount: sess.MessageCount,
		LastActivity: sess.LastActivity,
		Feedback:     sess.Feedback,
	}
}

// NewEndSessionResponse builds the end response.
func NewEndSessionResponse(result *domainsession.EndResult) *EndSessionResponse {
	return &EndSessionResponse{
		SessionID:     result.SessionID,
		Status:        string(result.Status),
		Duration:      result.Duration,
		TranscriptURL: result.TranscriptURL,
	}
}
