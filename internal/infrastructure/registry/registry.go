// Package registry tracks open provider channels by session ID.
package registry

import (
	"sync"

	"github.com/rs/zerolog"

	"prepd-server/services/realtime-api/internal/domain/session"
	"prepd-server/services/realtime-api/internal/infrastructure/metrics"
)

// ChannelRegistry is a mutex-guarded map of session ID to open provider
// channel. It is constructed once at process start and injected; it holds no
// durable state.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[string]session.Channel
	log      zerolog.Logger
}

// New creates an empty channel registry.
func New(log zerolog.Logger) *ChannelRegistry {
	return &ChannelRegistry{
		channels: make(map[string]session.Channel),
		log:      log.With().Str("component", "channel-registry").Logger(),
	}
}

// Register records an open channel for a session. Re-registering replaces the
// previous entry; the caller owns closing the old channel. The open-channel
// gauge tracks map membership, so a replacement leaves it unchanged.
func (r *ChannelRegistry) Register(sessionID string, ch session.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.channels[sessionID]; exists {
		r.log.Warn().Str("session_id", sessionID).Msg("replacing registered channel")
	} else {
		metrics.RecordChannelOpened()
	}
	r.channels[sessionID] = ch
}

// Lookup returns the open channel for a session, if any.
func (r *ChannelRegistry) Lookup(sessionID string) (session.Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[sessionID]
	return ch, ok
}

// Deregister removes and returns the channel for a session.
func (r *ChannelRegistry) Deregister(sessionID string) (session.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.channels[sessionID]
	if ok {
		delete(r.channels, sessionID)
		metrics.RecordChannelClosed()
	}
	return ch, ok
}

// Len returns the number of open channels.
func (r *ChannelRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
