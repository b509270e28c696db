// Package services – KeyService
//
// This file implements the key fulfillment core: given a requester and a
// catalog service, it obtains a key from the service's issuance endpoint
// (signed request, tag in a dedicated header), delivers it privately to the
// requester, caches it for resend, and records a best-effort audit trail.
//
// Step ordering is deliberate: delivery → cache → audit, so a cache or audit
// failure never prevents the user from receiving the key, and a delivery
// failure never prevents the key from being resendable later.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nexussoftworks/go-keybot/internal/catalog"
	"github.com/nexussoftworks/go-keybot/internal/chat"
	"github.com/nexussoftworks/go-keybot/internal/domain"
	"github.com/nexussoftworks/go-keybot/internal/keycache"
	"github.com/nexussoftworks/go-keybot/internal/signing"
)

// Ephemeral is a visible-but-ephemeral disclosure channel tied to the
// originating interaction. It is the fallback when private delivery is
// blocked; a nil Ephemeral means no such channel is available.
type Ephemeral interface {
	FollowUp(ctx context.Context, content string) error
}

// IssuanceRepo is the audit-trail persistence contract required by KeyService.
type IssuanceRepo interface {
	RecordIssuance(ctx context.Context, db *gorm.DB, rec domain.Issuance) (*domain.Issuance, error)
}

// KeyService orchestrates key issuance and resend.
type KeyService struct {
	// Catalog resolves service names to issuance endpoints.
	Catalog *catalog.Catalog
	// Signer builds the canonical signed request body.
	Signer *signing.Signer
	// HTTP performs outbound issuance calls; its timeout bounds each call.
	HTTP *http.Client
	// Notifier delivers keys privately and posts audit messages.
	Notifier chat.Notifier
	// Cache holds the latest issued key per requester.
	Cache keycache.Store

	// DB and Repo back the persistent audit trail. A nil Repo disables it.
	DB   *gorm.DB
	Repo IssuanceRepo

	// LogChannelID receives audit messages; empty disables channel audit.
	LogChannelID string
	// Duration is the validity window stamped on issued keys.
	Duration time.Duration
	// Log is the service logger.
	Log zerolog.Logger

	// Now is the time source; defaults to time.Now when nil.
	Now func() time.Time
}

// minKeyLength guards against endpoints returning error text, empty bodies,
// or truncated values instead of a real key.
const minKeyLength = 8

func (s *KeyService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Issue obtains a key for requester from the named service's endpoint,
// delivers it, caches it, and audits it. actorLabel names who triggered the
// issuance (a staff tag or "Panel Button") for the audit trail.
//
// Errors before delivery (unknown service, endpoint failure, bad key)
// propagate; failures of private delivery fall back to the ephemeral channel
// and failures past delivery are logged and swallowed.
func (s *KeyService) Issue(ctx context.Context, requester chat.User, service, actorLabel string, fallback Ephemeral) error {
	endpoint, ok := s.Catalog.Resolve(service)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownService, service)
	}

	hours := int(s.Duration.Hours())
	body, tag, err := s.Signer.Build(requester.ID, requester.Tag, service, hours)
	if err != nil {
		return fmt.Errorf("build signed request for %s: %w", service, err)
	}

	key, err := s.fetchKey(ctx, endpoint, service, body, tag)
	if err != nil {
		return err
	}

	// Private delivery, with ephemeral fallback. Neither failing is fatal:
	// the key is issued either way and stays resendable from the cache.
	delivered := s.deliver(ctx, requester, service, key, hours, fallback)

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.Duration)
	s.Cache.Put(requester.ID, keycache.Record{
		Service:   service,
		Key:       key,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})

	s.audit(ctx, requester, service, actorLabel, key, hours, delivered, issuedAt, expiresAt)
	return nil
}

// fetchKey POSTs the signed body to the issuance endpoint and extracts the
// key from the response.
func (s *KeyService) fetchKey(ctx context.Context, endpoint, service string, body []byte, tag string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDeliveryFailed, service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(signing.Header, tag)

	res, err := s.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDeliveryFailed, service, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %s: read response: %v", ErrDeliveryFailed, service, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("%w: %s: status %d: %s", ErrDeliveryFailed, service, res.StatusCode, truncate(string(raw), 300))
	}

	key := extractKey(raw)
	if len(key) < minKeyLength {
		return "", fmt.Errorf("%w: %s: %q", ErrInvalidKeyResponse, service, truncate(strings.TrimSpace(string(raw)), 300))
	}
	return key, nil
}

// extractKey pulls the key from a response body: structured "key" field,
// nested "data.key" fallback. When the body is not a JSON object the whole
// trimmed raw response is treated as the key; a JSON object without a key
// field yields an empty result, which the caller rejects.
func extractKey(raw []byte) string {
	var parsed struct {
		Key  string `json:"key"`
		Data struct {
			Key string `json:"key"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Key != "" {
			return parsed.Key
		}
		return parsed.Data.Key
	}
	return strings.TrimSpace(string(raw))
}

// deliver DMs the key and falls back to the ephemeral channel when blocked.
// Returns whether any delivery path succeeded.
func (s *KeyService) deliver(ctx context.Context, requester chat.User, service, key string, hours int, fallback Ephemeral) bool {
	content := fmt.Sprintf("🎟️ **Your Premium key for %s**\n```%s```\n⏰ Valid for %dh", service, key, hours)
	err := s.Notifier.SendDM(ctx, requester.ID, content)
	if err == nil {
		return true
	}

	s.Log.Warn().Err(err).Str("user", requester.ID).Str("service", service).Msg("private delivery failed")
	if fallback == nil {
		return false
	}
	fb := fmt.Sprintf("⚠️ Could not DM %s. Key: `%s`", requester.Tag, key)
	if err := fallback.FollowUp(ctx, fb); err != nil {
		s.Log.Warn().Err(err).Str("user", requester.ID).Msg("ephemeral fallback failed")
		return false
	}
	return true
}

// audit emits the best-effort audit trail: a message to the log channel and a
// row in the issuance table. Failures are logged and swallowed; they must
// never fail an issuance that already succeeded.
func (s *KeyService) audit(ctx context.Context, requester chat.User, service, actorLabel, key string, hours int, delivered bool, issuedAt, expiresAt time.Time) {
	if s.LogChannelID != "" {
		msg := fmt.Sprintf(
			"🎟️ **New Key Generated**\nService: %s\nDuration: %dh\nUser: %s\nGenerated By: %s\nKey: ```%s```",
			service, hours, requester.Tag, actorLabel, key,
		)
		if _, err := s.Notifier.SendChannel(ctx, s.LogChannelID, msg); err != nil {
			s.Log.Warn().Err(err).Str("service", service).Msg("audit channel send failed")
		}
	}

	if s.Repo != nil {
		_, err := s.Repo.RecordIssuance(ctx, s.DB, domain.Issuance{
			Service:    service,
			UserID:     requester.ID,
			UserTag:    requester.Tag,
			ActorLabel: actorLabel,
			Key:        key,
			Delivered:  delivered,
			IssuedAt:   issuedAt,
			ExpiresAt:  expiresAt,
		})
		if err != nil {
			s.Log.Warn().Err(err).Str("service", service).Msg("audit row insert failed")
		}
	}

	s.Log.Info().
		Str("service", service).
		Str("user", requester.Tag).
		Str("actor", actorLabel).
		Bool("delivered", delivered).
		Msg("key issued")
}

// Resend DMs the requester their most recently issued key from the cache.
// Remaining validity is shown cosmetically and clamped at zero; expiry is
// never enforced to reject a resend.
func (s *KeyService) Resend(ctx context.Context, requester chat.User) error {
	rec, ok := s.Cache.Get(requester.ID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoStoredKey, requester.Tag)
	}

	remaining := int(rec.ExpiresAt.Sub(s.now()).Hours())
	if remaining < 0 {
		remaining = 0
	}
	content := fmt.Sprintf("📩 **Re-sent your %s key**\n```%s```\n⏰ Still valid for %dh", rec.Service, rec.Key, remaining)
	if err := s.Notifier.SendDM(ctx, requester.ID, content); err != nil {
		if errors.Is(err, chat.ErrDMBlocked) {
			return fmt.Errorf("%w: %s", ErrDeliveryBlocked, requester.Tag)
		}
		return fmt.Errorf("resend to %s: %w", requester.Tag, err)
	}
	return nil
}

// truncate caps s at n bytes for error messages and logs.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
