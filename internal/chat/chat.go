// Package chat abstracts the chat platform collaborator. The rest of the
// application depends only on the small interfaces here: private delivery,
// channel sends, member/role lookup, and channel enumeration. A REST client
// implementation lives in client.go.
package chat

import (
	"context"
	"errors"
)

// ErrDMBlocked is returned by SendDM when the recipient refuses private
// messages. Callers treat it as recoverable and fall back to another channel.
var ErrDMBlocked = errors.New("recipient blocks private messages")

// User identifies a platform member.
type User struct {
	ID  string
	Tag string // display tag, e.g. "name#0001"
}

// Member is a user together with their guild role memberships.
type Member struct {
	User
	Roles []string
}

// Channel is a guild channel. Only text channels receive keepalive traffic.
type Channel struct {
	ID   string
	Name string
	Text bool
}

// Button is one pressable message component. CustomID round-trips through
// the platform unchanged and identifies the button in component
// interactions.
type Button struct {
	Label    string
	CustomID string
}

// Notifier delivers messages on behalf of the bot.
type Notifier interface {
	// SendDM sends a private message. Returns ErrDMBlocked when the platform
	// reports that private delivery is refused by the recipient.
	SendDM(ctx context.Context, userID, content string) error

	// SendChannel posts to a channel and returns the new message ID.
	SendChannel(ctx context.Context, channelID, content string) (string, error)

	// SendChannelButtons posts to a channel with pressable buttons attached
	// and returns the new message ID.
	SendChannelButtons(ctx context.Context, channelID, content string, buttons []Button) (string, error)
}

// Directory answers identity, membership, and channel questions and performs
// the few mutations the bot needs.
type Directory interface {
	// Member fetches a guild member with their role IDs.
	Member(ctx context.Context, userID string) (*Member, error)

	// Channels enumerates the guild's channels.
	Channels(ctx context.Context) ([]Channel, error)

	// DeleteMessage removes a message the bot can manage.
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	// GrantRole adds a role to a guild member.
	GrantRole(ctx context.Context, userID, roleID string) error
}
