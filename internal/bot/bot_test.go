package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nexussoftworks/go-keybot/internal/catalog"
	"github.com/nexussoftworks/go-keybot/internal/chat"
	"github.com/nexussoftworks/go-keybot/internal/config"
	"github.com/nexussoftworks/go-keybot/internal/domain"
	"github.com/nexussoftworks/go-keybot/internal/keepalive"
	"github.com/nexussoftworks/go-keybot/internal/keycache"
	"github.com/nexussoftworks/go-keybot/internal/ratelimit"
	"github.com/nexussoftworks/go-keybot/internal/repo"
	"github.com/nexussoftworks/go-keybot/internal/services"
	"github.com/nexussoftworks/go-keybot/internal/signing"
)

// fakeResponder records interaction replies.
type fakeResponder struct {
	replies   []string
	ephemeral []bool
	followUps []string
}

func (f *fakeResponder) Reply(ctx context.Context, content string, ephemeral bool) error {
	f.replies = append(f.replies, content)
	f.ephemeral = append(f.ephemeral, ephemeral)
	return nil
}

func (f *fakeResponder) FollowUp(ctx context.Context, content string) error {
	f.followUps = append(f.followUps, content)
	return nil
}

func (f *fakeResponder) last(t *testing.T) string {
	t.Helper()
	if len(f.replies) == 0 {
		t.Fatal("no reply sent")
	}
	return f.replies[len(f.replies)-1]
}

// fakeChat implements chat.Notifier and chat.Directory in memory.
type fakeChat struct {
	dms         map[string][]string
	chanSends   []string
	chanIDs     []string
	chanButtons [][]chat.Button
	sendErr     error
	dmErr       error
	members     map[string]*chat.Member
	channels    []chat.Channel
	deleted     [][2]string
	nextMsg     int
}

func newFakeChat() *fakeChat {
	return &fakeChat{dms: map[string][]string{}, members: map[string]*chat.Member{}}
}

func (f *fakeChat) SendDM(ctx context.Context, userID, content string) error {
	if f.dmErr != nil {
		return f.dmErr
	}
	f.dms[userID] = append(f.dms[userID], content)
	return nil
}

func (f *fakeChat) SendChannel(ctx context.Context, channelID, content string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.chanIDs = append(f.chanIDs, channelID)
	f.chanSends = append(f.chanSends, content)
	f.nextMsg++
	return fmt.Sprintf("m%d", f.nextMsg), nil
}

func (f *fakeChat) SendChannelButtons(ctx context.Context, channelID, content string, buttons []chat.Button) (string, error) {
	id, err := f.SendChannel(ctx, channelID, content)
	if err != nil {
		return "", err
	}
	f.chanButtons = append(f.chanButtons, buttons)
	return id, nil
}

func (f *fakeChat) Member(ctx context.Context, userID string) (*chat.Member, error) {
	m, ok := f.members[userID]
	if !ok {
		return nil, errors.New("unknown member")
	}
	return m, nil
}

func (f *fakeChat) Channels(ctx context.Context) ([]chat.Channel, error) {
	return f.channels, nil
}

func (f *fakeChat) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	f.deleted = append(f.deleted, [2]string{channelID, messageID})
	return nil
}

func (f *fakeChat) GrantRole(ctx context.Context, userID, roleID string) error {
	return nil
}

func newBotDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "bot_test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Panel{}, &domain.Issuance{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type botHarness struct {
	bot     *Bot
	chat    *fakeChat
	hits    int
	pending []func() // cleanup callbacks captured from the after seam
}

func newBotHarness(t *testing.T) *botHarness {
	t.Helper()

	h := &botHarness{chat: newFakeChat()}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.hits++
		fmt.Fprint(w, `{"key":"XYZ789AB"}`)
	}))
	t.Cleanup(srv.Close)

	cat, err := catalog.New([]catalog.Entry{
		{Name: "Arsenal", Endpoint: srv.URL + "/arsenal"},
		{Name: "Rivals", Endpoint: srv.URL + "/rivals"},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	db := newBotDB(t)
	keys := &services.KeyService{
		Catalog:  cat,
		Signer:   signing.New([]byte("secret"), "Premium"),
		HTTP:     srv.Client(),
		Notifier: h.chat,
		Cache:    keycache.NewMemory(),
		Duration: 24 * time.Hour,
		Log:      zerolog.Nop(),
	}

	h.bot = &Bot{
		StaffRoleID:    "staff",
		Catalog:        cat,
		Keys:           keys,
		Bypass:         nil,
		Sweeper:        &keepalive.Sweeper{Directory: h.chat, Notifier: h.chat, Interval: time.Hour, Log: zerolog.Nop()},
		Directory:      h.chat,
		Notifier:       h.chat,
		DB:             db,
		Cooldown:       ratelimit.NewCooldown(5 * time.Second),
		BypassCooldown: ratelimit.NewCooldown(5 * time.Second),
		HTTP:           srv.Client(),
		Log:            zerolog.Nop(),
		after: func(d time.Duration, fn func()) *time.Timer {
			h.pending = append(h.pending, fn)
			return nil
		},
	}
	return h
}

func staffMember(id string) chat.Member {
	return chat.Member{User: chat.User{ID: id, Tag: id + "#0001"}, Roles: []string{"staff"}}
}

func plainMember(id string) chat.Member {
	return chat.Member{User: chat.User{ID: id, Tag: id + "#0001"}, Roles: []string{"member"}}
}

func TestGenkey_StaffIssuesToSelf(t *testing.T) {
	h := newBotHarness(t)
	r := &fakeResponder{}

	err := h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "genkey",
		Args:      map[string]string{"service": "Arsenal"},
		Member:    staffMember("u1"),
		Responder: r,
	})
	if err != nil {
		t.Fatalf("HandleInteraction: %v", err)
	}
	if h.hits != 1 {
		t.Fatalf("endpoint hits = %d", h.hits)
	}
	if dms := h.chat.dms["u1"]; len(dms) != 1 || !strings.Contains(dms[0], "XYZ789AB") {
		t.Fatalf("dms = %v", h.chat.dms)
	}
	if got := r.last(t); !strings.Contains(got, "Arsenal") {
		t.Fatalf("reply = %q", got)
	}
}

func TestGenkey_StaffIssuesToAnotherMember(t *testing.T) {
	h := newBotHarness(t)
	h.chat.members["u2"] = &chat.Member{User: chat.User{ID: "u2", Tag: "u2#0001"}}
	r := &fakeResponder{}

	err := h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "genkey",
		Args:      map[string]string{"service": "Rivals", "user": "u2"},
		Member:    staffMember("u1"),
		Responder: r,
	})
	if err != nil {
		t.Fatalf("HandleInteraction: %v", err)
	}
	if dms := h.chat.dms["u2"]; len(dms) != 1 {
		t.Fatalf("target dms = %v", h.chat.dms)
	}
	if len(h.chat.dms["u1"]) != 0 {
		t.Fatal("issuer must not receive the key")
	}
}

func TestGenkey_NonStaffDenied(t *testing.T) {
	h := newBotHarness(t)
	r := &fakeResponder{}

	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "genkey",
		Args:      map[string]string{"service": "Arsenal"},
		Member:    plainMember("u1"),
		Responder: r,
	})
	if h.hits != 0 {
		t.Fatalf("endpoint hits = %d; denial must precede any network call", h.hits)
	}
	if got := r.last(t); !strings.Contains(got, "permission") {
		t.Fatalf("reply = %q", got)
	}
}

func TestGenkey_UnknownService(t *testing.T) {
	h := newBotHarness(t)
	r := &fakeResponder{}

	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "genkey",
		Args:      map[string]string{"service": "Nonesuch"},
		Member:    staffMember("u1"),
		Responder: r,
	})
	if h.hits != 0 {
		t.Fatalf("endpoint hits = %d", h.hits)
	}
	if got := r.last(t); !strings.Contains(got, "Nonesuch") {
		t.Fatalf("reply = %q", got)
	}
}

func TestCommandCooldown(t *testing.T) {
	h := newBotHarness(t)

	for i, wantThrottle := range []bool{false, true} {
		r := &fakeResponder{}
		_ = h.bot.HandleInteraction(context.Background(), Interaction{
			Kind:      KindCommand,
			Command:   "resendkey",
			Member:    plainMember("u1"),
			Responder: r,
		})
		throttled := strings.Contains(r.last(t), "Slow down")
		if throttled != wantThrottle {
			t.Fatalf("call %d throttled = %v", i, throttled)
		}
	}
}

func TestResendkey_NoStoredKey(t *testing.T) {
	h := newBotHarness(t)
	r := &fakeResponder{}

	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "resendkey",
		Member:    plainMember("u1"),
		Responder: r,
	})
	if got := r.last(t); !strings.Contains(got, "No key on record") {
		t.Fatalf("reply = %q", got)
	}
}

func TestResendkey_StaffResendsToTarget(t *testing.T) {
	h := newBotHarness(t)
	h.chat.members["u2"] = &chat.Member{User: chat.User{ID: "u2", Tag: "u2#0001"}, Roles: []string{"member"}}

	// u2 gets a key issued so there is something cached to resend.
	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "genkey",
		Args:      map[string]string{"service": "Arsenal", "user": "u2"},
		Member:    staffMember("u1"),
		Responder: &fakeResponder{},
	})

	r := &fakeResponder{}
	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "resendkey",
		Args:      map[string]string{"user": "u2"},
		Member:    staffMember("staff2"),
		Responder: r,
	})
	if dms := h.chat.dms["u2"]; len(dms) != 2 || !strings.Contains(dms[1], "XYZ789AB") {
		t.Fatalf("dms = %v", h.chat.dms)
	}
	if got := r.last(t); !strings.Contains(got, "u2#0001") {
		t.Fatalf("reply = %q", got)
	}
}

func TestResendkey_NonStaffCannotTarget(t *testing.T) {
	h := newBotHarness(t)
	h.chat.members["u2"] = &chat.Member{User: chat.User{ID: "u2", Tag: "u2#0001"}, Roles: []string{"member"}}

	r := &fakeResponder{}
	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "resendkey",
		Args:      map[string]string{"user": "u2"},
		Member:    plainMember("u1"),
		Responder: r,
	})
	if got := r.last(t); !strings.Contains(got, "Only staff") {
		t.Fatalf("reply = %q", got)
	}
	if len(h.chat.dms["u2"]) != 0 {
		t.Fatalf("dms = %v", h.chat.dms)
	}
}

func TestPanelButton_FullFlow(t *testing.T) {
	h := newBotHarness(t)
	if _, err := repo.CreatePanel(context.Background(), h.bot.DB, "panel-msg", "chan-1", []string{"vip"}); err != nil {
		t.Fatalf("seed panel: %v", err)
	}

	member := chat.Member{User: chat.User{ID: "u3", Tag: "u3#0001"}, Roles: []string{"vip"}}
	r := &fakeResponder{}
	err := h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindPanelButton,
		Service:   "Arsenal",
		MessageID: "panel-msg",
		Member:    member,
		Responder: r,
	})
	if err != nil {
		t.Fatalf("HandleInteraction: %v", err)
	}
	if dms := h.chat.dms["u3"]; len(dms) != 1 || !strings.Contains(dms[0], "XYZ789AB") {
		t.Fatalf("dms = %v", h.chat.dms)
	}
}

func TestPanelButton_RoleNotAllowed(t *testing.T) {
	h := newBotHarness(t)
	if _, err := repo.CreatePanel(context.Background(), h.bot.DB, "panel-msg", "chan-1", []string{"vip"}); err != nil {
		t.Fatalf("seed panel: %v", err)
	}

	r := &fakeResponder{}
	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindPanelButton,
		Service:   "Arsenal",
		MessageID: "panel-msg",
		Member:    staffMember("u1"), // staff role is not on the allow-list
		Responder: r,
	})
	if h.hits != 0 {
		t.Fatalf("endpoint hits = %d", h.hits)
	}
	if got := r.last(t); !strings.Contains(got, "access") {
		t.Fatalf("reply = %q", got)
	}
}

func TestPanelButton_UnknownPanel(t *testing.T) {
	h := newBotHarness(t)
	r := &fakeResponder{}

	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindPanelButton,
		Service:   "Arsenal",
		MessageID: "never-posted",
		Member:    plainMember("u1"),
		Responder: r,
	})
	if got := r.last(t); !strings.Contains(got, "no longer active") {
		t.Fatalf("reply = %q", got)
	}
}

func TestPanelCommand_PostsAndPersists(t *testing.T) {
	h := newBotHarness(t)
	r := &fakeResponder{}

	err := h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "panel",
		Args:      map[string]string{"roles": "vip, trusted", "services": "Arsenal"},
		ChannelID: "chan-9",
		Member:    staffMember("u1"),
		Responder: r,
	})
	if err != nil {
		t.Fatalf("HandleInteraction: %v", err)
	}
	if len(h.chat.chanSends) != 1 || h.chat.chanIDs[0] != "chan-9" {
		t.Fatalf("panel post = %v in %v", h.chat.chanSends, h.chat.chanIDs)
	}

	p, err := repo.GetPanel(context.Background(), h.bot.DB, "m1")
	if err != nil {
		t.Fatalf("panel not persisted: %v", err)
	}
	roles := p.AllowedRoleIDs()
	if len(roles) != 2 || roles[0] != "vip" || roles[1] != "trusted" {
		t.Fatalf("roles = %v", roles)
	}

	if len(h.chat.chanButtons) != 1 {
		t.Fatalf("button rows = %v", h.chat.chanButtons)
	}
	buttons := h.chat.chanButtons[0]
	if len(buttons) != 1 || buttons[0].Label != "Arsenal" || buttons[0].CustomID != "panel_Arsenal" {
		t.Fatalf("buttons = %+v", buttons)
	}
}

// A posted panel's buttons must round-trip: the custom ID on the message is
// the one the component decoder maps back to an issuance for that service.
func TestPanelCommand_ButtonsDriveIssuance(t *testing.T) {
	h := newBotHarness(t)
	r := &fakeResponder{}

	err := h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "panel",
		Args:      map[string]string{"roles": "vip"},
		ChannelID: "chan-9",
		Member:    staffMember("staffer"),
		Responder: r,
	})
	if err != nil {
		t.Fatalf("panel post: %v", err)
	}
	// No services option: one button per catalog entry.
	buttons := h.chat.chanButtons[0]
	if len(buttons) != 2 {
		t.Fatalf("buttons = %+v", buttons)
	}

	kind, service, ok := DecodeCustomID(buttons[0].CustomID)
	if !ok || kind != KindPanelButton || service != "Arsenal" {
		t.Fatalf("decoded %q -> %v %q %v", buttons[0].CustomID, kind, service, ok)
	}

	member := chat.Member{User: chat.User{ID: "u7", Tag: "u7#0001"}, Roles: []string{"vip"}}
	br := &fakeResponder{}
	err = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      kind,
		Service:   service,
		MessageID: "m1", // the message the panel command posted
		Member:    member,
		Responder: br,
	})
	if err != nil {
		t.Fatalf("button press: %v", err)
	}
	if dms := h.chat.dms["u7"]; len(dms) != 1 || !strings.Contains(dms[0], "XYZ789AB") {
		t.Fatalf("dms = %v", h.chat.dms)
	}
}

func TestPanelCommand_RequiresRoles(t *testing.T) {
	h := newBotHarness(t)
	r := &fakeResponder{}

	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "panel",
		Args:      map[string]string{},
		ChannelID: "chan-9",
		Member:    staffMember("u1"),
		Responder: r,
	})
	if len(h.chat.chanSends) != 0 {
		t.Fatal("panel must not be posted without an allow-list")
	}
}

// paymentBackend scripts the provider's token and order endpoints, recording
// the order-create body.
func paymentBackend(t *testing.T, orderBody *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			fmt.Fprint(w, `{"access_token":"tok"}`)
		case "/v2/checkout/orders":
			raw, _ := io.ReadAll(r.Body)
			*orderBody = string(raw)
			fmt.Fprint(w, `{"links":[{"rel":"approve","href":"https://pay.example/approve"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPaypal_PostsLinkToChannelTaggingBuyer(t *testing.T) {
	h := newBotHarness(t)
	var orderBody string
	srv := paymentBackend(t, &orderBody)
	h.bot.Payments = &services.PaymentService{
		Config:  config.PaymentConfig{ClientID: "id", ClientSecret: "secret"},
		BaseURL: srv.URL,
		HTTP:    srv.Client(),
		Log:     zerolog.Nop(),
	}

	r := &fakeResponder{}
	err := h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "paypal",
		Args:      map[string]string{"amount": "9.50", "channel": "sales", "user": "buyer-1"},
		Member:    staffMember("u1"),
		Responder: r,
	})
	if err != nil {
		t.Fatalf("HandleInteraction: %v", err)
	}

	if !strings.Contains(orderBody, `"custom_id":"buyer-1"`) {
		t.Fatalf("order body = %s", orderBody)
	}
	if len(h.chat.chanSends) != 1 || h.chat.chanIDs[0] != "sales" {
		t.Fatalf("channel posts = %v in %v", h.chat.chanSends, h.chat.chanIDs)
	}
	post := h.chat.chanSends[0]
	if !strings.Contains(post, "<@buyer-1>") || !strings.Contains(post, "https://pay.example/approve") {
		t.Fatalf("post = %q", post)
	}
	if got := r.last(t); !strings.Contains(got, "sales") {
		t.Fatalf("reply = %q", got)
	}
}

func TestPaypal_DefaultsToInvokerEphemeral(t *testing.T) {
	h := newBotHarness(t)
	var orderBody string
	srv := paymentBackend(t, &orderBody)
	h.bot.Payments = &services.PaymentService{
		Config:  config.PaymentConfig{ClientID: "id", ClientSecret: "secret"},
		BaseURL: srv.URL,
		HTTP:    srv.Client(),
		Log:     zerolog.Nop(),
	}

	r := &fakeResponder{}
	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "paypal",
		Args:      map[string]string{"amount": "5"},
		Member:    staffMember("u1"),
		Responder: r,
	})

	if !strings.Contains(orderBody, `"custom_id":"u1"`) {
		t.Fatalf("order body = %s", orderBody)
	}
	if len(h.chat.chanSends) != 0 {
		t.Fatalf("unexpected channel posts: %v", h.chat.chanSends)
	}
	if got := r.last(t); !strings.Contains(got, "https://pay.example/approve") {
		t.Fatalf("reply = %q", got)
	}
}

func TestStatusCommand_ReportsPerService(t *testing.T) {
	h := newBotHarness(t)
	r := &fakeResponder{}

	err := h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "status",
		Member:    plainMember("u1"),
		Responder: r,
	})
	if err != nil {
		t.Fatalf("HandleInteraction: %v", err)
	}
	got := r.last(t)
	if !strings.Contains(got, "Arsenal") || !strings.Contains(got, "Rivals") {
		t.Fatalf("status reply = %q", got)
	}
	if !strings.Contains(got, "🟢") {
		t.Fatalf("live endpoints should be green: %q", got)
	}
}

func TestAntiarchiveCommand_SweepsChannels(t *testing.T) {
	h := newBotHarness(t)
	h.bot.Sweeper.Linger = time.Nanosecond
	h.chat.channels = []chat.Channel{{ID: "c1", Text: true}, {ID: "c2", Text: true}}
	r := &fakeResponder{}

	_ = h.bot.HandleInteraction(context.Background(), Interaction{
		Kind:      KindCommand,
		Command:   "antiarchive",
		Member:    staffMember("u1"),
		Responder: r,
	})
	if got := r.last(t); !strings.Contains(got, "2") {
		t.Fatalf("reply = %q", got)
	}
}

func TestDecodeCustomID(t *testing.T) {
	kind, service, ok := DecodeCustomID("panel_Arsenal")
	if !ok || kind != KindPanelButton || service != "Arsenal" {
		t.Fatalf("DecodeCustomID = %v, %q, %v", kind, service, ok)
	}
	for _, bad := range []string{"panel_", "paypal_confirm", ""} {
		if _, _, ok := DecodeCustomID(bad); ok {
			t.Errorf("DecodeCustomID(%q) accepted", bad)
		}
	}
	if got := PanelCustomID("Rivals"); got != "panel_Rivals" {
		t.Fatalf("PanelCustomID = %q", got)
	}
}

func TestBypassFlow(t *testing.T) {
	h := newBotHarness(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"link":"https://dest.example/final"}`)
	}))
	t.Cleanup(upstream.Close)

	h.bot.Bypass = &services.BypassService{
		Config: config.BypassConfig{APIURL: upstream.URL, APIKey: "k"},
		HTTP:   upstream.Client(),
		Log:    zerolog.Nop(),
	}
	h.bot.BypassCfg = config.BypassConfig{ChannelID: "bypass-chan", Retention: time.Minute}

	h.bot.HandleMessage(context.Background(), Message{
		ID:        "orig-1",
		ChannelID: "bypass-chan",
		AuthorID:  "u1",
		Content:   "please https://ads.example/x",
	})

	if len(h.chat.chanSends) != 1 || !strings.Contains(h.chat.chanSends[0], "https://dest.example/final") {
		t.Fatalf("reply = %v", h.chat.chanSends)
	}
	if len(h.pending) != 1 {
		t.Fatalf("cleanup schedules = %d", len(h.pending))
	}

	h.pending[0]()
	if len(h.chat.deleted) != 2 {
		t.Fatalf("deleted = %v; want original and reply", h.chat.deleted)
	}
}

func TestBypassFlow_IgnoresOtherChannelsAndBots(t *testing.T) {
	h := newBotHarness(t)
	h.bot.Bypass = &services.BypassService{
		Config: config.BypassConfig{APIURL: "http://unused", APIKey: "k"},
		HTTP:   http.DefaultClient,
		Log:    zerolog.Nop(),
	}
	h.bot.BypassCfg = config.BypassConfig{ChannelID: "bypass-chan"}

	h.bot.HandleMessage(context.Background(), Message{ChannelID: "other", AuthorID: "u1", Content: "https://x.example"})
	h.bot.HandleMessage(context.Background(), Message{ChannelID: "bypass-chan", AuthorID: "u1", Content: "https://x.example", FromBot: true})
	h.bot.HandleMessage(context.Background(), Message{ChannelID: "bypass-chan", AuthorID: "u1", Content: "no links here"})

	if len(h.chat.chanSends) != 0 {
		t.Fatalf("sends = %v", h.chat.chanSends)
	}
}

func TestBypassFlow_Cooldown(t *testing.T) {
	h := newBotHarness(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"link":"https://dest.example/final"}`)
	}))
	t.Cleanup(upstream.Close)

	h.bot.Bypass = &services.BypassService{
		Config: config.BypassConfig{APIURL: upstream.URL, APIKey: "k"},
		HTTP:   upstream.Client(),
		Log:    zerolog.Nop(),
	}
	h.bot.BypassCfg = config.BypassConfig{ChannelID: "bypass-chan", Retention: time.Minute}

	for i := 0; i < 2; i++ {
		h.bot.HandleMessage(context.Background(), Message{
			ID: fmt.Sprintf("orig-%d", i), ChannelID: "bypass-chan", AuthorID: "u1",
			Content: "https://ads.example/x",
		})
	}
	if len(h.chat.chanSends) != 1 {
		t.Fatalf("sends = %d; second request within the window must be dropped", len(h.chat.chanSends))
	}
}
