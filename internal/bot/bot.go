package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nexussoftworks/go-keybot/internal/access"
	"github.com/nexussoftworks/go-keybot/internal/catalog"
	"github.com/nexussoftworks/go-keybot/internal/chat"
	"github.com/nexussoftworks/go-keybot/internal/config"
	"github.com/nexussoftworks/go-keybot/internal/keepalive"
	"github.com/nexussoftworks/go-keybot/internal/ratelimit"
	"github.com/nexussoftworks/go-keybot/internal/repo"
	"github.com/nexussoftworks/go-keybot/internal/services"
)

// staffOnly lists the commands gated behind the staff role.
var staffOnly = map[string]bool{
	"genkey":      true,
	"panel":       true,
	"paypal":      true,
	"antiarchive": true,
	"overview":    true,
}

// Bot routes decoded interactions and messages to the application services.
type Bot struct {
	// StaffRoleID gates the staff commands.
	StaffRoleID string
	// Catalog resolves and enumerates issuable services.
	Catalog *catalog.Catalog

	Keys      *services.KeyService
	Payments  *services.PaymentService
	Bypass    *services.BypassService
	Analytics *services.AnalyticsService
	Sweeper   *keepalive.Sweeper

	// Directory and Notifier are the chat-platform surfaces the handlers
	// touch directly (member lookup, panel posting, bypass replies).
	Directory chat.Directory
	Notifier  chat.Notifier

	// DB backs panel persistence.
	DB *gorm.DB

	// Cooldown limits command and button use per requester. BypassCooldown
	// limits the link relay per channel:author and must be a distinct
	// instance.
	Cooldown       *ratelimit.Cooldown
	BypassCooldown *ratelimit.Cooldown

	// BypassCfg carries the relay channel and cleanup retention.
	BypassCfg config.BypassConfig

	// HTTP performs status probes.
	HTTP *http.Client

	Log zerolog.Logger

	// after is a test seam over time.AfterFunc for delayed cleanup.
	after func(time.Duration, func()) *time.Timer
}

func (b *Bot) schedule(d time.Duration, fn func()) {
	if b.after != nil {
		b.after(d, fn)
		return
	}
	time.AfterFunc(d, fn)
}

// HandleInteraction gates and dispatches one decoded interaction. Handler
// outcomes, including failures, surface as interaction replies; the returned
// error covers only reply delivery itself.
func (b *Bot) HandleInteraction(ctx context.Context, in Interaction) error {
	switch in.Kind {
	case KindPanelButton:
		return b.handlePanelButton(ctx, in)
	case KindCommand:
		return b.handleCommand(ctx, in)
	default:
		return fmt.Errorf("unhandled interaction kind %d", in.Kind)
	}
}

func (b *Bot) handleCommand(ctx context.Context, in Interaction) error {
	if staffOnly[in.Command] && !access.HasRole(in.Member.Roles, b.StaffRoleID) {
		return in.Responder.Reply(ctx, "🚫 You don't have permission to use this command.", true)
	}
	if !b.Cooldown.TryAcquire(in.Member.ID) {
		return in.Responder.Reply(ctx, "⏳ Slow down — try again in a few seconds.", true)
	}

	switch in.Command {
	case "genkey":
		return b.cmdGenkey(ctx, in)
	case "resendkey":
		return b.cmdResendkey(ctx, in)
	case "status":
		return b.cmdStatus(ctx, in)
	case "overview":
		return b.cmdOverview(ctx, in)
	case "panel":
		return b.cmdPanel(ctx, in)
	case "paypal":
		return b.cmdPaypal(ctx, in)
	case "antiarchive":
		return b.cmdAntiarchive(ctx, in)
	default:
		return in.Responder.Reply(ctx, "❓ Unknown command.", true)
	}
}

func (b *Bot) cmdGenkey(ctx context.Context, in Interaction) error {
	service := in.Args["service"]
	if _, ok := b.Catalog.Resolve(service); !ok {
		return in.Responder.Reply(ctx, fmt.Sprintf("❌ Unknown service: `%s`. Available: %s.", service, strings.Join(b.Catalog.Names(), ", ")), true)
	}

	target := in.Member.User
	if id := in.Args["user"]; id != "" && id != in.Member.ID {
		m, err := b.Directory.Member(ctx, id)
		if err != nil {
			return in.Responder.Reply(ctx, "❌ Couldn't find that member in this server.", true)
		}
		target = m.User
	}

	if err := b.Keys.Issue(ctx, target, service, in.Member.Tag, in.Responder); err != nil {
		b.Log.Warn().Err(err).Str("service", service).Str("target", target.ID).Msg("key issuance failed")
		return in.Responder.Reply(ctx, issueFailureText(err, service), true)
	}
	return in.Responder.Reply(ctx, fmt.Sprintf("🔑 Key for **%s** issued to <@%s>.", service, target.ID), true)
}

// cmdResendkey resends the invoker's cached key. Staff may pass a user
// option to resend another member's key to that member.
func (b *Bot) cmdResendkey(ctx context.Context, in Interaction) error {
	target := in.Member.User
	if id := in.Args["user"]; id != "" && id != in.Member.ID {
		if !access.HasRole(in.Member.Roles, b.StaffRoleID) {
			return in.Responder.Reply(ctx, "🚫 Only staff can resend another member's key.", true)
		}
		m, err := b.Directory.Member(ctx, id)
		if err != nil {
			return in.Responder.Reply(ctx, "❌ Couldn't find that member in this server.", true)
		}
		target = m.User
	}

	err := b.Keys.Resend(ctx, target)
	switch {
	case err == nil && target.ID != in.Member.ID:
		return in.Responder.Reply(ctx, fmt.Sprintf("📬 Key resent to **%s**.", target.Tag), true)
	case err == nil:
		return in.Responder.Reply(ctx, "📬 Your key has been resent — check your DMs.", true)
	case errors.Is(err, services.ErrNoStoredKey):
		return in.Responder.Reply(ctx, fmt.Sprintf("❌ No key on record for **%s**. Generate one first.", target.Tag), true)
	case errors.Is(err, services.ErrDeliveryBlocked):
		return in.Responder.Reply(ctx, "❌ The recipient's DMs are closed.", true)
	default:
		b.Log.Warn().Err(err).Str("user", target.ID).Msg("key resend failed")
		return in.Responder.Reply(ctx, "❌ Couldn't resend the key. Try again later.", true)
	}
}

func (b *Bot) cmdStatus(ctx context.Context, in Interaction) error {
	statuses := services.ProbeAll(ctx, b.HTTP, b.Catalog)
	var sb strings.Builder
	sb.WriteString("**Service Status**\n")
	for _, st := range statuses {
		if st.Up {
			fmt.Fprintf(&sb, "🟢 %s — %dms\n", st.Name, st.Latency.Milliseconds())
		} else {
			fmt.Fprintf(&sb, "🔴 %s — unreachable\n", st.Name)
		}
	}
	return in.Responder.Reply(ctx, sb.String(), false)
}

func (b *Bot) cmdOverview(ctx context.Context, in Interaction) error {
	if b.Analytics == nil || !b.Analytics.Enabled() {
		return in.Responder.Reply(ctx, "❌ Analytics is not configured.", true)
	}
	ov, err := b.Analytics.FetchOverview(ctx)
	if err != nil {
		b.Log.Warn().Err(err).Msg("analytics overview failed")
		return in.Responder.Reply(ctx, "❌ Couldn't fetch the analytics overview.", true)
	}
	msg := fmt.Sprintf(
		"**Analytics Overview**\nClicks: %d\nCheckpoints: %d\nKeys created: %d\nKeys generated: %d\nKeys used: %d\nScript executions: %d\nTop countries: %s\nTop executors: %s",
		ov.Clicks, ov.Checkpoints, ov.KeysCreated, ov.KeysGenerated, ov.KeysUsed, ov.ScriptExecutions,
		orNone(ov.TopCountries), orNone(ov.TopExecutors),
	)
	return in.Responder.Reply(ctx, msg, true)
}

func (b *Bot) cmdPanel(ctx context.Context, in Interaction) error {
	channelID := in.Args["channel"]
	if channelID == "" {
		channelID = in.ChannelID
	}

	roleIDs := splitCSV(in.Args["roles"])
	if len(roleIDs) == 0 {
		return in.Responder.Reply(ctx, "❌ At least one role must be allowed to use the panel.", true)
	}

	names := splitCSV(in.Args["services"])
	if len(names) == 0 {
		names = b.Catalog.Names()
	}
	for _, n := range names {
		if _, ok := b.Catalog.Resolve(n); !ok {
			return in.Responder.Reply(ctx, fmt.Sprintf("❌ Unknown service: `%s`.", n), true)
		}
	}

	buttons := make([]chat.Button, 0, len(names))
	for _, n := range names {
		buttons = append(buttons, chat.Button{Label: n, CustomID: PanelCustomID(n)})
	}
	content := "**🔑 Key Panel**\nPress a button to receive your key."
	msgID, err := b.Notifier.SendChannelButtons(ctx, channelID, content, buttons)
	if err != nil {
		b.Log.Warn().Err(err).Str("channel", channelID).Msg("panel post failed")
		return in.Responder.Reply(ctx, "❌ Couldn't post the panel in that channel.", true)
	}

	if _, err := repo.CreatePanel(ctx, b.DB, msgID, channelID, roleIDs); err != nil {
		b.Log.Error().Err(err).Str("message", msgID).Msg("panel persist failed")
		return in.Responder.Reply(ctx, "❌ Panel posted but could not be saved. Delete it and retry.", true)
	}
	return in.Responder.Reply(ctx, fmt.Sprintf("✅ Panel posted in <#%s>.", channelID), true)
}

func (b *Bot) cmdPaypal(ctx context.Context, in Interaction) error {
	if b.Payments == nil || !b.Payments.Config.Configured() {
		return in.Responder.Reply(ctx, "❌ Payments are not configured.", true)
	}

	amount, err := strconv.ParseFloat(in.Args["amount"], 64)
	if err != nil || amount <= 0 {
		return in.Responder.Reply(ctx, "❌ Invalid amount.", true)
	}
	description := in.Args["description"]
	if description == "" {
		description = "Premium access"
	}
	buyerID := in.Args["user"]
	if buyerID == "" {
		buyerID = in.Member.ID
	}

	link, err := b.Payments.CreateOrder(ctx, amount, description, buyerID)
	if err != nil {
		b.Log.Warn().Err(err).Msg("order creation failed")
		return in.Responder.Reply(ctx, "❌ Couldn't create the payment order. Try again later.", true)
	}

	// With a channel option the link is posted publicly, tagging the buyer;
	// otherwise it goes back to the invoker alone.
	if channelID := in.Args["channel"]; channelID != "" {
		msg := fmt.Sprintf("💳 <@%s>, complete your payment here:\n%s", buyerID, link)
		if _, err := b.Notifier.SendChannel(ctx, channelID, msg); err != nil {
			b.Log.Warn().Err(err).Str("channel", channelID).Msg("payment link post failed")
			return in.Responder.Reply(ctx, "❌ Couldn't post the payment link in that channel.", true)
		}
		return in.Responder.Reply(ctx, fmt.Sprintf("✅ Payment link sent to <#%s>.", channelID), true)
	}
	return in.Responder.Reply(ctx, fmt.Sprintf("💳 Complete your payment here:\n%s", link), true)
}

func (b *Bot) cmdAntiarchive(ctx context.Context, in Interaction) error {
	touched, err := b.Sweeper.Sweep(ctx)
	if err != nil {
		b.Log.Warn().Err(err).Msg("manual keepalive sweep failed")
		return in.Responder.Reply(ctx, "❌ Sweep failed — couldn't list channels.", true)
	}
	return in.Responder.Reply(ctx, fmt.Sprintf("🧹 Swept %d channels.", touched), true)
}

func (b *Bot) handlePanelButton(ctx context.Context, in Interaction) error {
	panel, err := repo.GetPanel(ctx, b.DB, in.MessageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return in.Responder.Reply(ctx, "🚫 This panel is no longer active.", true)
		}
		b.Log.Error().Err(err).Str("message", in.MessageID).Msg("panel lookup failed")
		return in.Responder.Reply(ctx, "❌ Something went wrong. Try again later.", true)
	}

	if !access.PanelAllows(in.Member.Roles, panel.AllowedRoleIDs()) {
		return in.Responder.Reply(ctx, "🚫 You don't have access to this panel.", true)
	}
	if !b.Cooldown.TryAcquire(in.Member.ID) {
		return in.Responder.Reply(ctx, "⏳ Slow down — try again in a few seconds.", true)
	}

	if err := b.Keys.Issue(ctx, in.Member.User, in.Service, "Panel Button", in.Responder); err != nil {
		b.Log.Warn().Err(err).Str("service", in.Service).Str("user", in.Member.ID).Msg("panel issuance failed")
		return in.Responder.Reply(ctx, issueFailureText(err, in.Service), true)
	}
	return in.Responder.Reply(ctx, "🔑 Your key is on its way — check your DMs.", true)
}

// issueFailureText maps issuance errors to user-facing replies.
func issueFailureText(err error, service string) string {
	switch {
	case errors.Is(err, services.ErrUnknownService):
		return fmt.Sprintf("❌ Unknown service: `%s`.", service)
	case errors.Is(err, services.ErrDeliveryFailed):
		return fmt.Sprintf("❌ The **%s** key endpoint is not responding. Try again later.", service)
	case errors.Is(err, services.ErrInvalidKeyResponse):
		return fmt.Sprintf("❌ The **%s** key endpoint returned an unusable response.", service)
	default:
		return "❌ Key issuance failed. Try again later."
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "n/a"
	}
	return strings.Join(items, ", ")
}
