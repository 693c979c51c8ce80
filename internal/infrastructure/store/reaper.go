package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"prepd-server/services/realtime-api/internal/domain/session"
	"prepd-server/services/realtime-api/internal/infrastructure/metrics"
)

// Reaper fails sessions that have gone idle. A non-terminal session whose
// last activity is older than idleTTL is marked failed and its provider
// channel, if still open, is closed and deregistered.
type Reaper struct {
	store     session.Store
	registry  session.Registry
	idleTTL   time.Duration
	interval  time.Duration
	log       zerolog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewReaper creates a new session reaper.
func NewReaper(
	store session.Store,
	registry session.Registry,
	idleTTL time.Duration,
	interval time.Duration,
	log zerolog.Logger,
) *Reaper {
	return &Reaper{
		store:    store,
		registry: registry,
		idleTTL:  idleTTL,
		interval: interval,
		log:      log.With().Str("component", "session-reaper").Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the reap loop in background.
// Safe to call multiple times - only the first call starts the reaper.
func (r *Reaper) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.run(ctx)
		r.log.Info().Msg("session reaper started")
	})
}

// Stop gracefully shuts down the reaper.
// Safe to call multiple times - only the first call stops the reaper.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		r.wg.Wait()
		r.log.Info().Msg("session reaper stopped")
	})
}

func (r *Reaper) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Debug().Msg("context cancelled, shutting down reaper")
			return
		case <-r.done:
			r.log.Debug().Msg("done signal received, shutting down reaper")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

// reap walks the store and fails idle sessions.
func (r *Reaper) reap(ctx context.Context) {
	sessions, err := r.store.List(ctx)
	if err != nil {
		r.log.Error().Err(err).Msg("failed to list sessions for reaping")
		return
	}

	now := time.Now().UTC()
	reaped := 0

	for _, sess := range sessions {
		if !sess.Status.CanTransitionTo(session.StatusFailed) {
			// Terminal row with a channel left behind means an end path was
			// interrupted before deregistering; finish the job.
			r.closeChannel(ctx, sess.ID)
			continue
		}
		if now.Sub(sess.LastActivity) <= r.idleTTL {
			continue
		}

		from := sess.Status
		sess.Status = session.StatusFailed
		sess.EndedAt = now
		if err := r.store.Update(ctx, sess); err != nil {
			r.log.Error().Err(err).Str("session_id", sess.ID).Msg("failed to fail idle session")
			continue
		}
		r.closeChannel(ctx, sess.ID)
		metrics.RecordStateTransition(string(from), string(session.StatusFailed))
		metrics.RecordSessionClosed()
		reaped++

		r.log.Info().
			Str("session_id", sess.ID).
			Str("from_status", string(from)).
			Dur("idle", now.Sub(sess.LastActivity)).
			Msg("idle session failed")
	}

	if reaped > 0 {
		r.log.Info().Int("reaped", reaped).Int("open_channels", r.registry.Len()).Msg("reap cycle completed")
	}
}

func (r *Reaper) closeChannel(ctx context.Context, sessionID string) {
	if ch, ok := r.registry.Deregister(sessionID); ok {
		if err := ch.Close(ctx); err != nil {
			r.log.Warn().Err(err).Str("session_id", sessionID).Msg("channel close failed during reap")
		}
	}
}
