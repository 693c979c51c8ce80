// Package provider implements the realtime speech provider client: ephemeral
// credential issuance, the SDP negotiation relay and the event channel.
package provider

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"prepd-server/services/realtime-api/internal/domain/session"
	"prepd-server/services/realtime-api/internal/infrastructure/metrics"
)

const (
	credentialPath  = "/v1/realtime/sessions"
	negotiationPath = "/v1/realtime"
)

// Client talks to the provider's HTTP surface. The long-lived service key is
// used only for credential issuance; negotiation authenticates with the
// per-session ephemeral credential.
type Client struct {
	http    *resty.Client
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

// NewClient creates a provider client.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		http:    resty.New(),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log.With().Str("component", "provider-client").Logger(),
	}
}

type credentialResponse struct {
	ClientSecret struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// Issue requests a fresh single-use credential scoped to model. No retry and
// no caching: each negotiation gets its own credential.
func (c *Client) Issue(ctx context.Context, model string) (*session.ClientSecret, error) {
	start := time.Now()
	var body credentialResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(map[string]string{"model": model}).
		SetResult(&body).
		Post(c.baseURL + credentialPath)
	if err != nil {
		return nil, fmt.Errorf("credential request: %w", err)
	}
	metrics.CredentialIssueDuration.Observe(time.Since(start).Seconds())

	if resp.IsError() {
		// The credential endpoint failing is distinct from a negotiation
		// transport failure; callers abort before any SDP exchange.
		return nil, fmt.Errorf("credential request rejected: status %d", resp.StatusCode())
	}
	if body.ClientSecret.Value == "" {
		return nil, fmt.Errorf("credential response missing client_secret")
	}

	c.log.Debug().Str("model", model).Msg("ephemeral credential issued")
	return &session.ClientSecret{
		Value:     body.ClientSecret.Value,
		ExpiresAt: body.ClientSecret.ExpiresAt,
	}, nil
}

// Negotiate forwards the SDP offer as the request body, authenticated with
// the ephemeral credential, and returns the provider's answer verbatim. A
// non-2xx is passed through as an UpstreamError with the provider's own
// status and body.
func (c *Client) Negotiate(ctx context.Context, offerSDP, model, clientSecret string) (*session.NegotiationResult, error) {
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(clientSecret).
		SetHeader("Content-Type", "application/sdp").
		SetQueryParam("model", model).
		SetDoNotParseResponse(true).
		SetBody(offerSDP).
		Post(c.baseURL + negotiationPath)
	if err != nil {
		metrics.NegotiationFailures.Inc()
		return nil, fmt.Errorf("negotiation request: %w", err)
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		metrics.NegotiationFailures.Inc()
		return nil, fmt.Errorf("negotiation response missing body")
	}
	defer resp.RawResponse.Body.Close()
	metrics.NegotiationDuration.Observe(time.Since(start).Seconds())

	raw, err := io.ReadAll(resp.RawResponse.Body)
	if err != nil {
		metrics.NegotiationFailures.Inc()
		return nil, fmt.Errorf("read negotiation response: %w", err)
	}

	if resp.IsError() {
		metrics.NegotiationFailures.Inc()
		return nil, &session.UpstreamError{
			Status: resp.StatusCode(),
			Body:   string(raw),
		}
	}

	return &session.NegotiationResult{AnswerSDP: string(raw)}, nil
}
