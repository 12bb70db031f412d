// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for monthly message
// quotas tracked per owner.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
)

// Period formats t as the calendar-month key used by OwnerUsage rows.
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// GetOwnerUsage returns the usage row for (ownerID, period). When the owner
// has no row for the period yet, it returns a zero-valued row with the given
// keys rather than ErrNotFound: absence simply means nothing consumed.
func GetOwnerUsage(ctx context.Context, db *gorm.DB, ownerID, period string) (*domain.OwnerUsage, error) {
	var u domain.OwnerUsage
	err := db.WithContext(ctx).
		Where("owner_id = ? AND period = ?", ownerID, period).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.OwnerUsage{OwnerID: ownerID, Period: period}, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// IncrementUsage adds n to the owner's consumption for the period, creating
// the row on first use. The increment is an atomic upsert (INSERT ... ON
// CONFLICT DO UPDATE used = used + n) so concurrent turns never undercount.
func IncrementUsage(ctx context.Context, db *gorm.DB, ownerID, period string, n int64) error {
	row := &domain.OwnerUsage{
		OwnerID:   ownerID,
		Period:    period,
		Used:      n,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}, {Name: "period"}},
			DoUpdates: clause.Assignments(map[string]any{
				"used":       gorm.Expr("used + ?", n),
				"updated_at": row.UpdatedAt,
			}),
		}).
		Create(row).Error
}

// SetMonthlyLimit records the owner's plan limit for the period, creating the
// row if it does not exist. A limit of 0 means unlimited.
func SetMonthlyLimit(ctx context.Context, db *gorm.DB, ownerID, period string, limit int64) error {
	row := &domain.OwnerUsage{
		OwnerID:      ownerID,
		Period:       period,
		MonthlyLimit: limit,
		UpdatedAt:    time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_id"}, {Name: "period"}},
			DoUpdates: clause.Assignments(map[string]any{
				"monthly_limit": limit,
				"updated_at":    row.UpdatedAt,
			}),
		}).
		Create(row).Error
}
