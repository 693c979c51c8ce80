package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"prepd-server/services/realtime-api/internal/utils/idgen"
	"prepd-server/services/realtime-api/internal/utils/platformerrors"
)

// FeedbackGenerator produces post-interview feedback after a session ends.
// Implementations are best-effort; Generate must not block the caller's path.
type FeedbackGenerator interface {
	Generate(sess *Session, transcriptURL string)
}

// Service defines the business operations for interview session management.
type Service interface {
	// CreateSession warms the provider path (credential + channel in
	// parallel, bounded by the warmup timeout), persists the session as
	// initializing and registers the open channel.
	CreateSession(ctx context.Context, req *CreateSessionRequest, userID string) (*Session, *ClientSecret, error)

	// GetSession returns the session after verifying ownership.
	GetSession(ctx context.Context, id, userID string) (*Session, error)

	// EndSession completes the session and returns its terminal summary.
	// Ending an already-terminal session is idempotent.
	EndSession(ctx context.Context, id, userID string) (*EndResult, error)

	// SendInput relays one client message to the session's open provider
	// channel. A session with no open channel is not found, regardless of
	// what the store holds.
	SendInput(ctx context.Context, id, userID string, in *Input) (*EndResult, error)

	// Negotiate relays an SDP offer to the provider and returns its answer.
	Negotiate(ctx context.Context, req *NegotiationRequest) (*NegotiationResult, error)
}

type service struct {
	store          Store
	registry       Registry
	opener         ChannelOpener
	issuer         CredentialIssuer
	negotiator     Negotiator
	feedback       FeedbackGenerator
	defaultModel   string
	warmupTimeout  time.Duration
	transcriptBase string
	log            zerolog.Logger
}

// NewService creates a new session service. feedback may be nil.
func NewService(
	store Store,
	registry Registry,
	opener ChannelOpener,
	issuer CredentialIssuer,
	negotiator Negotiator,
	feedback FeedbackGenerator,
	defaultModel string,
	warmupTimeout time.Duration,
	transcriptBase string,
	log zerolog.Logger,
) Service {
	return &service{
		store:          store,
		registry:       registry,
		opener:         opener,
		issuer:         issuer,
		negotiator:     negotiator,
		feedback:       feedback,
		defaultModel:   defaultModel,
		warmupTimeout:  warmupTimeout,
		transcriptBase: transcriptBase,
		log:            log.With().Str("component", "session-service").Logger(),
	}
}

func (s *service) CreateSession(ctx context.Context, req *CreateSessionRequest, userID string) (*Session, *ClientSecret, error) {
	sessionID, err := idgen.GenerateSecureID("sess", 24)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to generate session ID")
		return nil, nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to generate session ID", err, "")
	}

	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	// Warm path: credential issuance and channel dial race the timeout in
	// parallel. The timeout winning is a first-class failure.
	warmCtx, cancel := context.WithTimeout(ctx, s.warmupTimeout)
	defer cancel()

	var (
		secret *ClientSecret
		ch     Channel
	)
	g, gctx := errgroup.WithContext(warmCtx)
	g.Go(func() error {
		issued, err := s.issuer.Issue(gctx, model)
		if err != nil {
			return fmt.Errorf("issue credential: %w", err)
		}
		secret = issued
		return nil
	})
	g.Go(func() error {
		opened, err := s.opener.Open(gctx, sessionID, model)
		if err != nil {
			return fmt.Errorf("open provider channel: %w", err)
		}
		ch = opened
		return nil
	})
	if err := g.Wait(); err != nil {
		if ch != nil {
			_ = ch.Close(context.WithoutCancel(ctx))
		}
		errType := platformerrors.ErrorTypeExternal
		if errors.Is(err, context.DeadlineExceeded) {
			errType = platformerrors.ErrorTypeTimeout
		}
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("session warmup failed")
		return nil, nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, errType,
			"failed to prepare realtime session", err, "b41d2c6e-9d0f-4f2a-8c1e-5a7d3f90c412")
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:           sessionID,
		UserID:       userID,
		Model:        model,
		Status:       StatusInitializing,
		StartedAt:    now,
		LastActivity: now,
	}

	if err := s.store.Create(ctx, sess); err != nil {
		_ = ch.Close(context.WithoutCancel(ctx))
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to store session")
		return nil, nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to store session", err, "")
	}

	s.registry.Register(sessionID, ch)

	s.log.Info().
		Str("session_id", sessionID).
		Str("user_id", userID).
		Str("model", model).
		Str("status", string(StatusInitializing)).
		Msg("session created")

	return sess, secret, nil
}

func (s *service) GetSession(ctx context.Context, id, userID string) (*Session, error) {
	return s.ownedSession(ctx, id, userID)
}

func (s *service) EndSession(ctx context.Context, id, userID string) (*EndResult, error) {
	sess, err := s.ownedSession(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	return s.end(ctx, sess)
}

func (s *service) SendInput(ctx context.Context, id, userID string, in *Input) (*EndResult, error) {
	kind, ok := in.Kind()
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"exactly one of audioChunk, textInput or controlMessage is required", nil, "")
	}

	// Open-channel check comes first: a session whose channel is gone is not
	// found here even when the store still holds its row.
	ch, open := s.registry.Lookup(id)
	if !open {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"Session not found", nil, "")
	}

	sess, err := s.ownedSession(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "control":
		if in.Control.Type != ControlStop {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
				fmt.Sprintf("unsupported control message type %q", in.Control.Type), nil, "")
		}
		return s.end(ctx, sess)

	case "audio":
		audio, err := base64.StdEncoding.DecodeString(in.AudioChunk)
		if err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
				"audioChunk is not valid base64", err, "")
		}
		if err := ch.SendAudio(ctx, audio, in.Timestamp, in.Sequence); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
				"failed to relay audio to provider", err, "7f3a8e21-64bd-4c05-9e14-d2b90a17c358")
		}

	case "text":
		if err := ch.SendText(ctx, in.Text, in.Timestamp, in.Sequence); err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
				"failed to relay text to provider", err, "a95c1de7-02f4-4b68-bb3a-61e84f3c90d7")
		}
	}

	if sess.Status.CanTransitionTo(StatusActive) {
		sess.Status = StatusActive
	}
	sess.LastActivity = time.Now().UTC()
	sess.MessageCount++
	if err := s.store.Update(ctx, sess); err != nil {
		// The message reached the provider; surface the bookkeeping failure.
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to record session activity", err, "")
	}

	return nil, nil
}

func (s *service) Negotiate(ctx context.Context, req *NegotiationRequest) (*NegotiationResult, error) {
	// SDP offers are not safely retryable; a failed exchange is surfaced as-is
	// and the client must regenerate the offer.
	result, err := s.negotiator.Negotiate(ctx, req.OfferSDP, req.Model, req.ClientSecret)
	if err != nil {
		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			s.log.Warn().
				Str("session_id", req.SessionID).
				Int("provider_status", upstream.Status).
				Msg("provider rejected negotiation")
			return nil, err
		}
		s.log.Error().Err(err).Str("session_id", req.SessionID).Msg("negotiation transport failure")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal,
			"failed to reach realtime provider", err, "c8f51b02-3de9-47a6-91c4-0e7ab26d5f83")
	}

	s.log.Info().Str("session_id", req.SessionID).Str("model", req.Model).Msg("negotiation relayed")
	return result, nil
}

// end moves a session to completed, closing its provider channel. Terminal
// sessions are returned as-is without recomputing duration.
func (s *service) end(ctx context.Context, sess *Session) (*EndResult, error) {
	if !sess.Status.CanTransitionTo(StatusCompleted) {
		result := s.endResult(sess)
		result.AlreadyEnded = true
		return result, nil
	}

	now := time.Now().UTC()
	sess.Status = StatusCompleted
	sess.EndedAt = now
	sess.LastActivity = now

	if err := s.store.Update(ctx, sess); err != nil {
		s.log.Error().Err(err).Str("session_id", sess.ID).Msg("failed to persist session end")
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to persist session end", err, "")
	}

	if ch, ok := s.registry.Deregister(sess.ID); ok {
		if err := ch.Close(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("provider channel close failed")
		}
	}

	result := s.endResult(sess)

	if s.feedback != nil {
		s.feedback.Generate(sess, result.TranscriptURL)
	}

	s.log.Info().
		Str("session_id", sess.ID).
		Int64("duration", result.Duration).
		Int64("messages", sess.MessageCount).
		Msg("session ended")

	return result, nil
}

func (s *service) endResult(sess *Session) *EndResult {
	return &EndResult{
		SessionID:     sess.ID,
		Status:        sess.Status,
		Duration:      sess.Duration(),
		TranscriptURL: fmt.Sprintf("%s/%s.json", s.transcriptBase, sess.ID),
	}
}

// ownedSession fetches a session and enforces the ownership invariant: only
// the owner may read or mutate it.
func (s *service) ownedSession(ctx context.Context, id, userID string) (*Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
				"Session not found", err, "")
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"failed to load session", err, "")
	}
	if sess.UserID != userID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"access denied", nil, "")
	}
	return sess, nil
}
