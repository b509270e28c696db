package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nexussoftworks/go-keybot/internal/bot"
	"github.com/nexussoftworks/go-keybot/internal/chat"
)

var errUnexpectedHello = errors.New("gateway: first frame was not hello")

// Interaction types on the wire.
const (
	interactionCommand   = 2
	interactionComponent = 3
)

// ephemeralFlag marks an interaction response as invoker-only.
const ephemeralFlag = 1 << 6

// wireInteraction is the subset of the INTERACTION_CREATE payload the bot
// consumes.
type wireInteraction struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Type  int    `json:"type"`
	Data  struct {
		Name     string `json:"name"`
		CustomID string `json:"custom_id"`
		Options  []struct {
			Name  string          `json:"name"`
			Value json.RawMessage `json:"value"`
		} `json:"options"`
	} `json:"data"`
	ChannelID string `json:"channel_id"`
	Message   struct {
		ID string `json:"id"`
	} `json:"message"`
	Member struct {
		Roles []string `json:"roles"`
		User  struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			Discriminator string `json:"discriminator"`
		} `json:"user"`
	} `json:"member"`
}

// decodeInteraction maps a raw INTERACTION_CREATE payload onto the bot's
// tagged interaction variant. Component presses with custom IDs the bot does
// not own are dropped here.
func (c *Client) decodeInteraction(raw json.RawMessage) (bot.Interaction, bool) {
	var w wireInteraction
	if err := json.Unmarshal(raw, &w); err != nil {
		c.Log.Warn().Err(err).Msg("malformed interaction payload")
		return bot.Interaction{}, false
	}

	member := chat.Member{
		User:  chat.User{ID: w.Member.User.ID, Tag: userTag(w.Member.User.Username, w.Member.User.Discriminator)},
		Roles: w.Member.Roles,
	}
	responder := &restResponder{
		base:          c.APIBaseURL,
		applicationID: c.applicationID,
		interactionID: w.ID,
		token:         w.Token,
		httpc:         c.httpClient(),
	}

	switch w.Type {
	case interactionCommand:
		args := make(map[string]string, len(w.Data.Options))
		for _, opt := range w.Data.Options {
			args[opt.Name] = optionString(opt.Value)
		}
		return bot.Interaction{
			Kind:      bot.KindCommand,
			Command:   w.Data.Name,
			Args:      args,
			ChannelID: w.ChannelID,
			Member:    member,
			Responder: responder,
		}, true

	case interactionComponent:
		kind, service, ok := bot.DecodeCustomID(w.Data.CustomID)
		if !ok || kind != bot.KindPanelButton {
			return bot.Interaction{}, false
		}
		return bot.Interaction{
			Kind:      kind,
			Service:   service,
			ChannelID: w.ChannelID,
			MessageID: w.Message.ID,
			Member:    member,
			Responder: responder,
		}, true
	}
	return bot.Interaction{}, false
}

// decodeMessage maps a raw MESSAGE_CREATE payload onto the bot's message.
func decodeMessage(raw json.RawMessage) bot.Message {
	var w struct {
		ID        string `json:"id"`
		ChannelID string `json:"channel_id"`
		Content   string `json:"content"`
		Author    struct {
			ID  string `json:"id"`
			Bot bool   `json:"bot"`
		} `json:"author"`
	}
	_ = json.Unmarshal(raw, &w)
	return bot.Message{
		ID:        w.ID,
		ChannelID: w.ChannelID,
		AuthorID:  w.Author.ID,
		Content:   w.Content,
		FromBot:   w.Author.Bot,
	}
}

// userTag renders the display tag; the legacy "#0" discriminator is omitted.
func userTag(username, discriminator string) string {
	if discriminator == "" || discriminator == "0" {
		return username
	}
	return username + "#" + discriminator
}

// optionString renders a command option value, which the platform sends as a
// string, number, or boolean.
func optionString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// HTTP is an optional client override for interaction responses.
func (c *Client) httpClient() *http.Client {
	if c.HTTPC != nil {
		return c.HTTPC
	}
	return http.DefaultClient
}

// restResponder answers one interaction over the platform REST API: Reply
// posts the interaction callback, FollowUp posts an ephemeral follow-up
// through the interaction webhook.
type restResponder struct {
	base          string
	applicationID string
	interactionID string
	token         string
	httpc         *http.Client
}

func (r *restResponder) Reply(ctx context.Context, content string, ephemeral bool) error {
	body := map[string]any{
		"type": 4, // respond with message
		"data": responseData(content, ephemeral),
	}
	return r.post(ctx, fmt.Sprintf("%s/interactions/%s/%s/callback", r.base, r.interactionID, r.token), body)
}

func (r *restResponder) FollowUp(ctx context.Context, content string) error {
	body := responseData(content, true)
	return r.post(ctx, fmt.Sprintf("%s/webhooks/%s/%s", r.base, r.applicationID, r.token), body)
}

func responseData(content string, ephemeral bool) map[string]any {
	data := map[string]any{"content": content}
	if ephemeral {
		data["flags"] = ephemeralFlag
	}
	return data
}

func (r *restResponder) post(ctx context.Context, url string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := r.httpc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("interaction response: status %d: %s", res.StatusCode, msg)
	}
	return nil
}

// interactionTimeout bounds how long a single dispatched event may run.
const interactionTimeout = 30 * time.Second
