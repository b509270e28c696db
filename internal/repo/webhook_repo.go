// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for processed
// payment-provider webhook events, used to deduplicate redelivered events.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nexussoftworks/go-keybot/internal/domain"
)

// ErrDuplicate indicates that an event with the same provider event ID has
// already been processed.
var ErrDuplicate = errors.New("duplicate")

// EventSeen reports whether the given provider event ID has been processed.
func EventSeen(ctx context.Context, db *gorm.DB, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return false, nil
	}
	var rec domain.WebhookEvent
	err := db.WithContext(ctx).First(&rec, "event_id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkEventProcessed inserts a dedup row and returns ErrDuplicate when the
// event ID was already recorded. Insert-first semantics make the check safe
// against concurrent redeliveries.
func MarkEventProcessed(ctx context.Context, db *gorm.DB, eventID, eventType, orderID string) error {
	rec := &domain.WebhookEvent{
		EventID:    eventID,
		EventType:  eventType,
		OrderID:    orderID,
		ReceivedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
