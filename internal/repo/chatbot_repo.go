// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chatbot
// aggregate.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a chatbot is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - GetChatbot(ctx, db, id) -> *domain.Chatbot, error
//     Fetches the bare chatbot row without associations.
//
//   - GetChatbotWithConfig(ctx, db, id) -> *domain.Chatbot, error
//     Fetches the chatbot with Flows and KnowledgeBase preloaded in
//     Position order, ready for the processing pipeline.
//
//   - ListChatbots(ctx, db, ownerID) -> []domain.Chatbot, error
//     Returns all chatbots for an owner, most recent first.
//
//   - IncrementChatbotCounters(ctx, db, id, conversations, messages, leads) -> error
//     Atomically bumps the aggregate counters on the chatbot row.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.ConversationService) which enforces business rules and
// cross-aggregate behavior.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetChatbot fetches a single chatbot row by ID without its associations.
// If the record does not exist, it returns ErrNotFound.
func GetChatbot(ctx context.Context, db *gorm.DB, id string) (*domain.Chatbot, error) {
	var bot domain.Chatbot
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&bot).Error
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// GetChatbotWithConfig fetches a chatbot together with its flows and
// knowledge-base entries, both ordered by Position ascending. The preloads
// include inactive rows; the pipeline is responsible for skipping them, so a
// single load serves both processing and management reads.
//
// If the chatbot does not exist, it returns ErrNotFound.
func GetChatbotWithConfig(ctx context.Context, db *gorm.DB, id string) (*domain.Chatbot, error) {
	var bot domain.Chatbot
	err := db.WithContext(ctx).
		Preload("Flows", func(q *gorm.DB) *gorm.DB {
			return q.Order("position ASC, created_at ASC")
		}).
		Preload("KnowledgeBase", func(q *gorm.DB) *gorm.DB {
			return q.Order("position ASC, created_at ASC")
		}).
		Where("id = ?", id).
		First(&bot).Error
	if err != nil {
		return nil, err
	}
	return &bot, nil
}

// ListChatbots returns all chatbots belonging to ownerID, ordered by creation
// time descending (most recent first). It returns an empty slice if the owner
// has no chatbots. On DB error, it returns the error.
func ListChatbots(ctx context.Context, db *gorm.DB, ownerID string) ([]domain.Chatbot, error) {
	var out []domain.Chatbot
	err := db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// IncrementChatbotCounters atomically increments the aggregate counters on a
// chatbot row. Each delta may be zero; negative deltas are not used. The
// update runs as UPDATE ... SET x = x + ? so concurrent turns never lose
// increments to a stale in-memory copy.
//
// If the chatbot does not exist, it returns ErrNotFound.
func IncrementChatbotCounters(ctx context.Context, db *gorm.DB, id string, conversations, messages, leads int64) error {
	res := db.WithContext(ctx).
		Model(&domain.Chatbot{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_conversations": gorm.Expr("total_conversations + ?", conversations),
			"total_messages":      gorm.Expr("total_messages + ?", messages),
			"leads_captured":      gorm.Expr("leads_captured + ?", leads),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
