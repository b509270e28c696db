// REST implementation of the Notifier and Directory interfaces against the
// chat platform's HTTP API. Errors never echo the bot token; responses are
// decoded into the platform's {code, message} error envelope so delivery
// refusal can be distinguished from transport failure.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// codeDMBlocked is the platform API error code for "cannot send messages to
// this user".
const codeDMBlocked = 50007

// Client talks to the platform REST API for a single guild.
type Client struct {
	baseURL string
	token   string
	guildID string
	httpc   *http.Client
	log     zerolog.Logger
}

// NewClient returns a REST client. httpc must have a timeout configured by
// the caller; it is the only bound on request lifetime.
func NewClient(baseURL, token, guildID string, httpc *http.Client, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		guildID: guildID,
		httpc:   httpc,
		log:     log,
	}
}

// apiError is the platform's error envelope.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// do performs an authenticated request, decoding a JSON response into out
// when out is non-nil. Non-2xx responses are returned as *apiError-backed
// errors when the body parses, else as a generic status error.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("chat api: %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("chat api: read %s %s: %w", method, path, err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Message != "" {
			if ae.Code == codeDMBlocked {
				return ErrDMBlocked
			}
			return fmt.Errorf("chat api: %s %s: %d %s (code %d)", method, path, res.StatusCode, ae.Message, ae.Code)
		}
		return fmt.Errorf("chat api: %s %s: status %d", method, path, res.StatusCode)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("chat api: decode %s %s: %w", method, path, err)
		}
	}
	return nil
}

// SendDM opens (or reuses) the direct-message channel for userID and posts
// content there. Returns ErrDMBlocked when the recipient refuses delivery.
func (c *Client) SendDM(ctx context.Context, userID, content string) error {
	var dm struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/users/@me/channels", map[string]string{"recipient_id": userID}, &dm)
	if err != nil {
		return err
	}
	_, err = c.SendChannel(ctx, dm.ID, content)
	return err
}

// SendChannel posts content to channelID and returns the new message ID.
func (c *Client) SendChannel(ctx context.Context, channelID, content string) (string, error) {
	var msg struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", map[string]string{"content": content}, &msg)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// buttonsPerRow is the platform cap on components in one action row.
const buttonsPerRow = 5

// SendChannelButtons posts content to channelID with buttons attached,
// packed into action rows of at most five, and returns the new message ID.
func (c *Client) SendChannelButtons(ctx context.Context, channelID, content string, buttons []Button) (string, error) {
	var rows []map[string]any
	for i := 0; i < len(buttons); i += buttonsPerRow {
		end := i + buttonsPerRow
		if end > len(buttons) {
			end = len(buttons)
		}
		comps := make([]map[string]any, 0, end-i)
		for _, b := range buttons[i:end] {
			comps = append(comps, map[string]any{
				"type":      2, // button
				"style":     1, // primary
				"label":     b.Label,
				"custom_id": b.CustomID,
			})
		}
		rows = append(rows, map[string]any{"type": 1, "components": comps}) // action row
	}

	var msg struct {
		ID string `json:"id"`
	}
	payload := map[string]any{"content": content, "components": rows}
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", payload, &msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Member fetches a guild member with their role IDs.
func (c *Client) Member(ctx context.Context, userID string) (*Member, error) {
	var res struct {
		User struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			Discriminator string `json:"discriminator"`
		} `json:"user"`
		Roles []string `json:"roles"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+c.guildID+"/members/"+userID, nil, &res); err != nil {
		return nil, err
	}
	tag := res.User.Username
	if res.User.Discriminator != "" && res.User.Discriminator != "0" {
		tag += "#" + res.User.Discriminator
	}
	return &Member{
		User:  User{ID: res.User.ID, Tag: tag},
		Roles: res.Roles,
	}, nil
}

// Channels enumerates the guild's channels. Channel type 0 is guild text.
func (c *Client) Channels(ctx context.Context) ([]Channel, error) {
	var res []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Type int    `json:"type"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+c.guildID+"/channels", nil, &res); err != nil {
		return nil, err
	}
	out := make([]Channel, 0, len(res))
	for _, ch := range res {
		out = append(out, Channel{ID: ch.ID, Name: ch.Name, Text: ch.Type == 0})
	}
	return out, nil
}

// DeleteMessage removes a message from a channel.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+channelID+"/messages/"+messageID, nil, nil)
}

// GrantRole adds roleID to the guild member userID.
func (c *Client) GrantRole(ctx context.Context, userID, roleID string) error {
	return c.do(ctx, http.MethodPut, "/guilds/"+c.guildID+"/members/"+userID+"/roles/"+roleID, nil, nil)
}
