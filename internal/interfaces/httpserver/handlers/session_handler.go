package handlers

import (
	"context"

	"prepd-server/services/realtime-api/internal/domain/session"
)

// SessionHandler handles session-related HTTP requests.
type SessionHandler struct {
	service session.Service
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(service session.Service) *SessionHandler {
	return &SessionHandler{service: service}
}

// CreateSession creates a new interview session.
func (h *SessionHandler) CreateSession(ctx context.Context, req *session.CreateSessionRequest, userID string) (*session.Session, *session.ClientSecret, error) {
	return h.service.CreateSession(ctx, req, userID)
}

// GetSession retrieves a session by ID for its owner.
func (h *SessionHandler) GetSession(ctx context.Context, id, userID string) (*session.Session, error) {
	return h.service.GetSession(ctx, id, userID)
}

// EndSession completes a session.
func (h *SessionHandler) EndSession(ctx context.Context, id, userID string) (*session.EndResult, error) {
	return h.service.EndSession(ctx, id, userID)
}

// SendInput relays one client message to the session's provider channel.
func (h *SessionHandler) SendInput(ctx context.Context, id, userID string, in *session.Input) (*session.EndResult, error) {
	return h.service.SendInput(ctx, id, userID, in)
}

// Negotiate relays an SDP offer to the provider.
func (h *SessionHandler) Negotiate(ctx context.Context, req *session.NegotiationRequest) (*session.NegotiationResult, error) {
	return h.service.Negotiate(ctx, req)
}
