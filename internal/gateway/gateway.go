// Package gateway maintains the persistent websocket session with the chat
// platform and feeds decoded events into the bot dispatch layer. It covers
// the minimal protocol surface the bot needs: hello/identify, heartbeats,
// and the INTERACTION_CREATE and MESSAGE_CREATE dispatch events.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nexussoftworks/go-keybot/internal/bot"
)

// defaultURL is the platform gateway endpoint.
const defaultURL = "wss://gateway.discord.gg/?v=10&encoding=json"

// writeWait bounds each outbound websocket write.
const writeWait = 10 * time.Second

// reconnectDelay spaces reconnection attempts after a dropped session.
const reconnectDelay = 5 * time.Second

// closeAuthenticationFailed is the close code the platform sends when the
// token is rejected at identify.
const closeAuthenticationFailed = 4004

// ErrAuthenticationFailed reports a rejected token. Run returns it instead
// of retrying: a bad token never recovers on its own.
var ErrAuthenticationFailed = errors.New("gateway: authentication failed")

// Gateway opcodes.
const (
	opDispatch     = 0
	opHeartbeat    = 1
	opIdentify     = 2
	opHello        = 10
	opHeartbeatACK = 11
)

// intents requested at identify: guilds, guild messages, and message content
// (the bypass flow reads message text).
const intents = 1<<0 | 1<<9 | 1<<15

// Dispatcher consumes decoded gateway events. *bot.Bot satisfies it.
type Dispatcher interface {
	HandleInteraction(ctx context.Context, in bot.Interaction) error
	HandleMessage(ctx context.Context, msg bot.Message)
}

// Client is a reconnecting gateway session.
type Client struct {
	// URL overrides the platform gateway endpoint when non-empty.
	URL string
	// Token authenticates the session.
	Token string
	// APIBaseURL is the REST base used for interaction responses.
	APIBaseURL string
	// Dispatch receives decoded events.
	Dispatch Dispatcher
	// HTTPC performs interaction responses; nil means http.DefaultClient.
	HTTPC *http.Client
	// Log is the session logger.
	Log zerolog.Logger

	// applicationID is learned from the READY event and used for
	// interaction follow-ups.
	applicationID string

	// writeMu serializes frame writes: the read loop and the heartbeat
	// goroutine share one connection, which permits a single concurrent
	// writer.
	writeMu sync.Mutex
}

type payload struct {
	Op  int             `json:"op"`
	T   string          `json:"t,omitempty"`
	S   int64           `json:"s,omitempty"`
	D   json.RawMessage `json:"d,omitempty"`
}

func (c *Client) url() string {
	if c.URL != "" {
		return c.URL
	}
	return defaultURL
}

// Run connects and re-connects the gateway session until ctx is cancelled,
// returning nil. Dropped sessions are re-identified after a short delay. The
// single exception is a rejected token: Run returns ErrAuthenticationFailed
// immediately so the caller can treat it as a fatal startup failure.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.session(ctx); err != nil {
			if websocket.IsCloseError(err, closeAuthenticationFailed) {
				return ErrAuthenticationFailed
			}
			c.Log.Warn().Err(err).Msg("gateway session ended")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// session runs one connect → hello → identify → read-loop cycle.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Drop the connection (and unblock reads) when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	var hello struct {
		HeartbeatInterval int64 `json:"heartbeat_interval"`
	}
	first, err := readPayload(conn)
	if err != nil {
		return err
	}
	if first.Op != opHello {
		return errUnexpectedHello
	}
	if err := json.Unmarshal(first.D, &hello); err != nil {
		return err
	}

	if err := c.writePayload(conn, payload{Op: opIdentify, D: mustRaw(map[string]any{
		"token":   c.Token,
		"intents": intents,
		"properties": map[string]string{
			"os":      "linux",
			"browser": "keybot",
			"device":  "keybot",
		},
	})}); err != nil {
		return err
	}

	var seq atomic.Int64
	stopBeat := make(chan struct{})
	defer close(stopBeat)
	go c.heartbeat(conn, time.Duration(hello.HeartbeatInterval)*time.Millisecond, &seq, stopBeat)

	for {
		p, err := readPayload(conn)
		if err != nil {
			return err
		}
		if p.S != 0 {
			seq.Store(p.S)
		}
		switch p.Op {
		case opDispatch:
			c.dispatch(ctx, p)
		case opHeartbeat:
			_ = c.writePayload(conn, payload{Op: opHeartbeat, D: mustRaw(seq.Load())})
		case opHeartbeatACK:
			// nothing to do
		default:
			c.Log.Debug().Int("op", p.Op).Msg("unhandled gateway opcode")
		}
	}
}

// heartbeat sends op 1 frames until stop closes. A failed write is left for
// the read loop to observe as a connection error.
func (c *Client) heartbeat(conn *websocket.Conn, interval time.Duration, seq *atomic.Int64, stop <-chan struct{}) {
	if interval <= 0 {
		interval = 41250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.writePayload(conn, payload{Op: opHeartbeat, D: mustRaw(seq.Load())}); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, p payload) {
	switch p.T {
	case "READY":
		var ready struct {
			Application struct {
				ID string `json:"id"`
			} `json:"application"`
		}
		if err := json.Unmarshal(p.D, &ready); err == nil {
			c.applicationID = ready.Application.ID
		}
		c.Log.Info().Msg("gateway session ready")

	case "INTERACTION_CREATE":
		in, ok := c.decodeInteraction(p.D)
		if !ok {
			return
		}
		hctx, cancel := context.WithTimeout(ctx, interactionTimeout)
		defer cancel()
		if err := c.Dispatch.HandleInteraction(hctx, in); err != nil {
			c.Log.Warn().Err(err).Msg("interaction dispatch failed")
		}

	case "MESSAGE_CREATE":
		hctx, cancel := context.WithTimeout(ctx, interactionTimeout)
		defer cancel()
		c.Dispatch.HandleMessage(hctx, decodeMessage(p.D))
	}
}

func (c *Client) writePayload(conn *websocket.Conn, p payload) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(p)
}

func readPayload(conn *websocket.Conn) (payload, error) {
	var p payload
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, err
	}
	return p, nil
}

func mustRaw(v any) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}
