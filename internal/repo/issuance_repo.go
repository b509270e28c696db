// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the key
// issuance audit trail.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nexussoftworks/go-keybot/internal/domain"
)

// RecordIssuance appends an audit row for a successfully issued key.
// The row ID is a randomly generated UUID and IssuedAt defaults to UTC now
// when the caller leaves it zero.
func RecordIssuance(ctx context.Context, db *gorm.DB, rec domain.Issuance) (*domain.Issuance, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListIssuances returns the most recent audit rows for a user, newest first.
func ListIssuances(ctx context.Context, db *gorm.DB, userID string, limit int) ([]domain.Issuance, error) {
	if limit <= 0 {
		limit = 20
	}
	var out []domain.Issuance
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("issued_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CountIssuances returns the total number of keys issued for a service.
func CountIssuances(ctx context.Context, db *gorm.DB, service string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Issuance{}).
		Where("service = ?", service).
		Count(&total).Error
	return total, err
}
