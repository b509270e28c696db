// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Panel model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a panel is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nexussoftworks/go-keybot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreatePanel inserts a panel row keyed by the chat message ID of the posted
// panel. Role IDs are stored in their comma-separated form.
func CreatePanel(ctx context.Context, db *gorm.DB, messageID, channelID string, roleIDs []string) (*domain.Panel, error) {
	p := &domain.Panel{
		MessageID: messageID,
		ChannelID: channelID,
		Roles:     domain.JoinRoleIDs(roleIDs),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetPanel fetches a panel by the message ID it was posted under, or
// ErrNotFound if no such panel exists.
func GetPanel(ctx context.Context, db *gorm.DB, messageID string) (*domain.Panel, error) {
	var p domain.Panel
	if err := db.WithContext(ctx).First(&p, "message_id = ?", messageID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPanels returns all panels ordered by creation time descending.
func ListPanels(ctx context.Context, db *gorm.DB) ([]domain.Panel, error) {
	var out []domain.Panel
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}
