// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer, plus the per-chatbot analytics rollup. Each function is
// context-aware and safe to call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
)

// ConversationsStats returns aggregate metadata for a chatbot's
// conversations: the total number of rows and the maximum UpdatedAt
// timestamp among those rows.
//
// It executes two lightweight queries against the conversations table scoped
// to the provided chatbotID. When the chatbot has no conversations, the
// returned count is 0 and maxUpdatedAt is nil.
//
// Return values:
//   - count:        total conversations for chatbotID
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func ConversationsStats(ctx context.Context, db *gorm.DB, chatbotID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Conversation{}).Where("chatbot_id = ?", chatbotID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// MessagesStats returns aggregate metadata for messages within a given
// conversation: the total number of rows and the maximum UpdatedAt timestamp
// among those rows.
//
// When the conversation has no messages, the returned count is 0 and
// maxUpdatedAt is nil.
func MessagesStats(ctx context.Context, db *gorm.DB, conversationID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("conversation_id = ?", conversationID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// ChatbotAnalytics is the rollup returned by the analytics endpoint. Counter
// totals come straight off the chatbot row; the remainder is derived from the
// conversations table.
type ChatbotAnalytics struct {
	TotalConversations  int64   `json:"total_conversations"`
	TotalMessages       int64   `json:"total_messages"`
	LeadsCaptured       int64   `json:"leads_captured"`
	ActiveConversations int64   `json:"active_conversations"`
	AvgDurationMs       float64 `json:"avg_duration_ms"`
}

// GetChatbotAnalytics assembles the analytics rollup for one chatbot.
func GetChatbotAnalytics(ctx context.Context, db *gorm.DB, chatbotID string) (*ChatbotAnalytics, error) {
	bot, err := GetChatbot(ctx, db, chatbotID)
	if err != nil {
		return nil, err
	}

	out := &ChatbotAnalytics{
		TotalConversations: bot.TotalConversations,
		TotalMessages:      bot.TotalMessages,
		LeadsCaptured:      bot.LeadsCaptured,
	}

	if err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("chatbot_id = ? AND status = ?", chatbotID, domain.ConversationActive).
		Count(&out.ActiveConversations).Error; err != nil {
		return nil, err
	}

	var row struct {
		Avg float64
	}
	if err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("chatbot_id = ? AND ended_at IS NOT NULL", chatbotID).
		Select("COALESCE(AVG(duration_ms), 0) AS avg").
		Scan(&row).Error; err != nil {
		return nil, err
	}
	out.AvgDurationMs = row.Avg

	return out, nil
}
