// Package bot is the dispatch layer between chat-platform events and the
// application services. Inbound interactions are decoded once at this
// boundary into a tagged variant; handlers never parse wire identifiers.
package bot

import (
	"context"
	"strings"

	"github.com/nexussoftworks/go-keybot/internal/chat"
)

// Kind discriminates the interaction variants the bot handles.
type Kind int

const (
	// KindCommand is a slash-command invocation.
	KindCommand Kind = iota
	// KindPanelButton is a press on a self-service panel button.
	KindPanelButton
)

// Responder is the reply surface of a single interaction.
type Responder interface {
	// Reply sends the interaction response. Ephemeral replies are visible
	// only to the invoker.
	Reply(ctx context.Context, content string, ephemeral bool) error

	// FollowUp sends an ephemeral follow-up after the initial response.
	FollowUp(ctx context.Context, content string) error
}

// Interaction is a decoded inbound interaction.
type Interaction struct {
	Kind    Kind
	Command string            // command name, Kind == KindCommand
	Service string            // target service, Kind == KindPanelButton
	Args    map[string]string // command options, may be nil

	ChannelID string
	MessageID string // message carrying the pressed panel button
	Member    chat.Member

	Responder Responder
}

// panelPrefix tags panel-button custom identifiers on the wire.
const panelPrefix = "panel_"

// DecodeCustomID maps a component custom identifier to an interaction
// variant. Returns false for identifiers the bot does not own.
func DecodeCustomID(customID string) (kind Kind, service string, ok bool) {
	if s, found := strings.CutPrefix(customID, panelPrefix); found && s != "" {
		return KindPanelButton, s, true
	}
	return 0, "", false
}

// PanelCustomID builds the wire identifier for a service's panel button.
func PanelCustomID(service string) string {
	return panelPrefix + service
}
