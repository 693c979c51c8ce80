package domain

import (
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"prepd-server/services/realtime-api/internal/config"
	"prepd-server/services/realtime-api/internal/domain/session"
)

// ProvideSessionService provides a session service.
func ProvideSessionService(
	sessionStore session.Store,
	registry session.Registry,
	opener session.ChannelOpener,
	issuer session.CredentialIssuer,
	negotiator session.Negotiator,
	feedback session.FeedbackGenerator,
	cfg *config.Config,
	log zerolog.Logger,
) session.Service {
	return session.NewService(
		sessionStore,
		registry,
		opener,
		issuer,
		negotiator,
		feedback,
		cfg.DefaultModel,
		cfg.WarmupTimeout,
		cfg.TranscriptBaseURL,
		log,
	)
}

// ServiceProvider provides all domain services.
var ServiceProvider = wire.NewSet(
	ProvideSessionService,
)
