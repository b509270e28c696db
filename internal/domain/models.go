// Package domain defines the persistence models for self-service panels, the
// key issuance audit trail, and processed payment webhook events. These types
// are mapped with GORM and survive process restarts; the in-memory key cache
// deliberately does not (see the keycache package).
package domain

import (
	"strings"
	"time"
)

// Panel represents a posted self-service control through which members holding
// one of the allowed roles can trigger key issuance for themselves.
//
// Panels are keyed by the chat message ID of the posted panel so a restart
// preserves which roles may use which previously-posted panel's buttons.
// Panels are never mutated after creation; they disappear only when their row
// is deleted externally.
type Panel struct {
	MessageID string    `json:"message_id" gorm:"type:varchar(32);primaryKey"`
	ChannelID string    `json:"channel_id" gorm:"type:varchar(32);not null;index"`
	Roles     string    `json:"roles"      gorm:"type:text;not null"` // comma-separated role IDs
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Panel.
func (Panel) TableName() string { return "panels" }

// AllowedRoleIDs returns the panel's role allow-list as a slice.
// An empty list means nobody is authorized (fail-closed).
func (p Panel) AllowedRoleIDs() []string {
	if strings.TrimSpace(p.Roles) == "" {
		return nil
	}
	parts := strings.Split(p.Roles, ",")
	out := make([]string, 0, len(parts))
	for _, r := range parts {
		if t := strings.TrimSpace(r); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// JoinRoleIDs renders a role ID slice into the stored comma-separated form.
func JoinRoleIDs(ids []string) string {
	clean := make([]string, 0, len(ids))
	for _, r := range ids {
		if t := strings.TrimSpace(r); t != "" {
			clean = append(clean, t)
		}
	}
	return strings.Join(clean, ",")
}

// Issuance is one row of the key issuance audit trail. It records who was
// issued a key for which service, who triggered the issuance, and whether
// private delivery succeeded. The key itself is stored in full, matching the
// audit-channel message.
type Issuance struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Service    string    `json:"service"     gorm:"type:varchar(64);not null;index"`
	UserID     string    `json:"user_id"     gorm:"type:varchar(32);not null;index"`
	UserTag    string    `json:"user_tag"    gorm:"type:varchar(64);not null"`
	ActorLabel string    `json:"actor_label" gorm:"type:varchar(64);not null"`
	Key        string    `json:"key"         gorm:"type:text;not null"`
	Delivered  bool      `json:"delivered"   gorm:"not null"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// TableName returns the database table name for Issuance.
func (Issuance) TableName() string { return "issuances" }

// WebhookEvent marks a payment-provider event as processed so redelivered
// events are acknowledged without acting twice.
type WebhookEvent struct {
	EventID    string    `json:"event_id"   gorm:"type:varchar(64);primaryKey"`
	EventType  string    `json:"event_type" gorm:"type:varchar(64);not null"`
	OrderID    string    `json:"order_id"   gorm:"type:varchar(64);index"`
	ReceivedAt time.Time `json:"received_at"`
}

// TableName returns the database table name for WebhookEvent.
func (WebhookEvent) TableName() string { return "webhook_events" }
