package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"prepd-server/services/realtime-api/internal/domain/session"
)

const channelWriteTimeout = 10 * time.Second

// event is the wire shape of a message sent over the provider channel.
type event struct {
	Type  string     `json:"type"`
	Audio string     `json:"audio,omitempty"`
	Item  *eventItem `json:"item,omitempty"`
}

type eventItem struct {
	Type    string         `json:"type"`
	Role    string         `json:"role"`
	Content []eventContent `json:"content"`
}

type eventContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Dialer opens websocket channels to the provider's realtime endpoint.
type Dialer struct {
	baseURL string
	apiKey  string
	log     zerolog.Logger
}

// NewDialer creates a channel dialer.
func NewDialer(baseURL, apiKey string, log zerolog.Logger) *Dialer {
	return &Dialer{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		log:     log.With().Str("component", "provider-dialer").Logger(),
	}
}

// Open dials the provider's realtime websocket for a session.
func (d *Dialer) Open(ctx context.Context, sessionID, model string) (session.Channel, error) {
	wsURL, err := d.websocketURL(model)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.apiKey)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial provider channel: %w", err)
	}

	d.log.Debug().Str("session_id", sessionID).Str("model", model).Msg("provider channel opened")

	return &wsChannel{
		conn: conn,
		log:  d.log.With().Str("session_id", sessionID).Logger(),
	}, nil
}

func (d *Dialer) websocketURL(model string) (string, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse provider base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported provider URL scheme %q", u.Scheme)
	}
	u.Path = negotiationPath
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// wsChannel is an open websocket conduit to the provider for one session.
// Writes are serialized; the last client sequence number is tracked so
// out-of-order input can be flagged without rejecting it.
type wsChannel struct {
	conn    *websocket.Conn
	log     zerolog.Logger
	mu      sync.Mutex
	lastSeq int64
	closed  bool
}

// SendAudio forwards a decoded audio chunk as an append event.
func (c *wsChannel) SendAudio(ctx context.Context, audio []byte, timestamp, sequence int64) error {
	return c.write(ctx, event{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(audio),
	}, sequence)
}

// SendText forwards a text input as a conversation item.
func (c *wsChannel) SendText(ctx context.Context, text string, timestamp, sequence int64) error {
	return c.write(ctx, event{
		Type: "conversation.item.create",
		Item: &eventItem{
			Type: "message",
			Role: "user",
			Content: []eventContent{
				{Type: "input_text", Text: text},
			},
		},
	}, sequence)
}

// Close commits any buffered audio and tears the channel down. Safe to call
// more than once.
func (c *wsChannel) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	// Best-effort commit so the provider finalizes buffered audio before the
	// close handshake.
	if b, err := json.Marshal(event{Type: "input_audio_buffer.commit"}); err == nil {
		writeCtx, cancel := context.WithTimeout(ctx, channelWriteTimeout)
		_ = c.conn.Write(writeCtx, websocket.MessageText, b)
		cancel()
	}

	return c.conn.Close(websocket.StatusNormalClosure, "session ended")
}

func (c *wsChannel) write(ctx context.Context, ev event, sequence int64) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal provider event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("channel closed")
	}

	// Sequence numbers are caller-supplied; flag regressions but relay anyway.
	if sequence <= c.lastSeq {
		c.log.Warn().
			Int64("sequence", sequence).
			Int64("last_sequence", c.lastSeq).
			Msg("non-monotonic input sequence")
	} else {
		c.lastSeq = sequence
	}

	writeCtx, cancel := context.WithTimeout(ctx, channelWriteTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("write provider event: %w", err)
	}
	return nil
}
