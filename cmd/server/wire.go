//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/rs/zerolog"

	"prepd-server/services/realtime-api/internal/config"
	"prepd-server/services/realtime-api/internal/domain"
	"prepd-server/services/realtime-api/internal/domain/session"
	"prepd-server/services/realtime-api/internal/infrastructure/auth"
	"prepd-server/services/realtime-api/internal/infrastructure/feedback"
	"prepd-server/services/realtime-api/internal/infrastructure/provider"
	"prepd-server/services/realtime-api/internal/infrastructure/registry"
	"prepd-server/services/realtime-api/internal/infrastructure/store"
	"prepd-server/services/realtime-api/internal/interfaces/httpserver"
)

// ProviderSet is the wire provider set for the application.
var ProviderSet = wire.NewSet(
	// Infrastructure providers
	ProvideProviderClient,
	ProvideChannelDialer,
	ProvideSessionStore,
	ProvideChannelRegistry,
	ProvideReaper,
	ProvideAuthValidator,
	ProvideFeedbackGenerator,
	ProvideCredentialIssuer,
	ProvideNegotiator,
	ProvideChannelOpener,
	ProvideRegistry,

	// Domain providers
	domain.ServiceProvider,

	// Interface providers
	httpserver.New,

	// Application
	NewApplication,
)

// ProvideProviderClient provides the realtime provider HTTP client.
func ProvideProviderClient(cfg *config.Config, log zerolog.Logger) *provider.Client {
	return provider.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey, log)
}

// ProvideChannelDialer provides the provider websocket dialer.
func ProvideChannelDialer(cfg *config.Config, log zerolog.Logger) *provider.Dialer {
	return provider.NewDialer(cfg.ProviderBaseURL, cfg.ProviderAPIKey, log)
}

// ProvideCredentialIssuer binds the provider client as credential issuer.
func ProvideCredentialIssuer(client *provider.Client) session.CredentialIssuer {
	return client
}

// ProvideNegotiator binds the provider client as SDP negotiator.
func ProvideNegotiator(client *provider.Client) session.Negotiator {
	return client
}

// ProvideChannelOpener binds the dialer as channel opener.
func ProvideChannelOpener(dialer *provider.Dialer) session.ChannelOpener {
	return dialer
}

// ProvideSessionStore provides a session store per the configured driver.
func ProvideSessionStore(cfg *config.Config, log zerolog.Logger) (session.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		return store.NewPostgresStore(cfg.DatabaseDSN, log)
	default:
		return store.NewMemoryStore(log), nil
	}
}

// ProvideChannelRegistry provides the open-channel registry.
func ProvideChannelRegistry(log zerolog.Logger) *registry.ChannelRegistry {
	return registry.New(log)
}

// ProvideRegistry binds the channel registry as the domain registry.
func ProvideRegistry(reg *registry.ChannelRegistry) session.Registry {
	return reg
}

// ProvideReaper provides the idle-session reaper.
func ProvideReaper(
	sessionStore session.Store,
	reg session.Registry,
	cfg *config.Config,
	log zerolog.Logger,
) *store.Reaper {
	return store.NewReaper(sessionStore, reg, cfg.SessionIdleTTL, cfg.SessionReapInterval, log)
}

// ProvideAuthValidator provides an auth validator.
func ProvideAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}

// ProvideFeedbackGenerator provides the optional post-session feedback generator.
func ProvideFeedbackGenerator(cfg *config.Config, sessionStore session.Store, log zerolog.Logger) session.FeedbackGenerator {
	if g := feedback.New(cfg.FeedbackAPIKey, cfg.FeedbackBaseURL, cfg.FeedbackModel, sessionStore, log); g != nil {
		return g
	}
	return nil
}

// CreateApplication creates the application with all dependencies wired.
func CreateApplication(
	ctx context.Context,
	cfg *config.Config,
	log zerolog.Logger,
) (*Application, *store.Reaper, error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
