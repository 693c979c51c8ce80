// Package feedback generates post-interview feedback through an
// OpenAI-compatible chat completion API. It is best-effort: the session end
// path never waits on it or fails because of it.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"prepd-server/services/realtime-api/internal/domain/session"
)

const generateTimeout = 60 * time.Second

const systemPrompt = "You are an interview coach. Given a mock-interview " +
	"session summary, produce concise, actionable feedback for the candidate: " +
	"strengths, areas to improve, and one concrete next step."

// Generator asks the LLM for interview feedback after a session ends and
// persists it on the session row, where Get exposes it.
type Generator struct {
	client *openai.Client
	store  session.Store
	model  string
	log    zerolog.Logger
}

// New creates a feedback generator. Returns nil when apiKey is empty, which
// disables feedback generation.
func New(apiKey, baseURL, model string, store session.Store, log zerolog.Logger) *Generator {
	if apiKey == "" {
		return nil
	}
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &Generator{
		client: openai.NewClientWithConfig(clientCfg),
		store:  store,
		model:  model,
		log:    log.With().Str("component", "feedback-generator").Logger(),
	}
}

// Generate requests feedback for an ended session in the background and
// writes it to the session's Feedback field.
func (g *Generator) Generate(sess *session.Session, transcriptURL string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
		defer cancel()

		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: g.sessionSummary(sess, transcriptURL)},
			},
		})
		if err != nil {
			g.log.Warn().Err(err).Str("session_id", sess.ID).Msg("feedback generation failed")
			return
		}
		if len(resp.Choices) == 0 {
			g.log.Warn().Str("session_id", sess.ID).Msg("feedback response empty")
			return
		}

		// Re-fetch before writing so a newer row is not clobbered with the
		// snapshot we were handed.
		latest, err := g.store.Get(ctx, sess.ID)
		if err != nil {
			g.log.Warn().Err(err).Str("session_id", sess.ID).Msg("session gone before feedback could be stored")
			return
		}
		latest.Feedback = resp.Choices[0].Message.Content
		if err := g.store.Update(ctx, latest); err != nil {
			g.log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to store feedback")
			return
		}

		g.log.Info().
			Str("session_id", sess.ID).
			Int("feedback_chars", len(latest.Feedback)).
			Msg("feedback stored")
	}()
}

func (g *Generator) sessionSummary(sess *session.Session, transcriptURL string) string {
	return fmt.Sprintf(
		"Session %s: %d messages over %d seconds. Transcript: %s",
		sess.ID, sess.MessageCount, sess.Duration(), transcriptURL,
	)
}
