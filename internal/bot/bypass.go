package bot

import (
	"context"
	"regexp"
	"time"
)

// messageURL finds the first absolute URL in a chat message.
var messageURL = regexp.MustCompile(`https?://[^\s<>]+`)

// Message is an inbound chat message, the trigger for the link bypass flow.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Content   string
	FromBot   bool
}

// HandleMessage runs the link bypass flow: URL-bearing messages in the
// configured relay channel are resolved through the bypass API and answered
// inline; both the original and the reply are cleaned up after the retention
// delay. Messages outside the relay channel, bot messages, and messages
// without a URL are ignored.
func (b *Bot) HandleMessage(ctx context.Context, msg Message) {
	if b.Bypass == nil || !b.Bypass.Enabled() {
		return
	}
	if msg.FromBot || msg.ChannelID != b.BypassCfg.ChannelID {
		return
	}

	target := messageURL.FindString(msg.Content)
	if target == "" {
		return
	}

	if !b.BypassCooldown.TryAcquire(msg.ChannelID + ":" + msg.AuthorID) {
		b.Log.Debug().Str("author", msg.AuthorID).Msg("bypass request throttled")
		return
	}

	link, err := b.Bypass.Resolve(ctx, target)
	if err != nil {
		b.Log.Warn().Err(err).Str("target", target).Msg("bypass resolution failed")
		if replyID, serr := b.Notifier.SendChannel(ctx, msg.ChannelID, "❌ Couldn't bypass that link."); serr == nil {
			b.cleanupLater(msg.ChannelID, msg.ID, replyID)
		}
		return
	}

	replyID, err := b.Notifier.SendChannel(ctx, msg.ChannelID, "🔓 Bypassed link:\n"+link)
	if err != nil {
		b.Log.Warn().Err(err).Msg("bypass reply failed")
		return
	}
	b.cleanupLater(msg.ChannelID, msg.ID, replyID)
}

// cleanupLater deletes the original message and the bot reply after the
// configured retention delay. Deletion failures are logged only; messages
// removed by moderators in the meantime are expected.
func (b *Bot) cleanupLater(channelID string, messageIDs ...string) {
	retention := b.BypassCfg.Retention
	if retention <= 0 {
		retention = time.Minute
	}
	b.schedule(retention, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, id := range messageIDs {
			if err := b.Directory.DeleteMessage(ctx, channelID, id); err != nil {
				b.Log.Debug().Err(err).Str("message", id).Msg("bypass cleanup delete failed")
			}
		}
	})
}
