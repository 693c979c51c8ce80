// Package session contains HTTP request DTOs for session endpoints.
package session

// CreateSessionRequest represents the request body for creating a session.
type CreateSessionRequest struct {
	// Model overrides the configured default realtime model when set.
	Model string `json:"model,omitempty"`
}

// ControlMessage is a client control payload.
type ControlMessage struct {
	Type string `json:"type" binding:"required"`
}

// SendInputRequest represents one client message relayed to the provider.
// Exactly one of AudioChunk, TextInput or ControlMessage must be set.
type SendInputRequest struct {
	AudioChunk     string          `json:"audioChunk,omitempty"`
	TextInput      string          `json:"textInput,omitempty"`
	ControlMessage *ControlMessage `json:"controlMessage,omitempty"`
	Timestamp      int64           `json:"timestamp,omitempty"`
	SequenceNumber int64           `json:"sequenceNumber,omitempty"`
}

// NegotiateRequest carries a WebRTC SDP offer for the provider.
type NegotiateRequest struct {
	OfferSDP     string `json:"offerSdp" binding:"required"`
	Model        string `json:"model" binding:"required"`
	ClientSecret string `json:"clientSecret" binding:"required"`
}
