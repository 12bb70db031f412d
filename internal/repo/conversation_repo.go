// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
)

// FindActiveConversation returns the active conversation for the
// (chatbotID, sessionID) pair with its message log preloaded in arrival
// order, or ErrNotFound when the session has no active conversation.
func FindActiveConversation(ctx context.Context, db *gorm.DB, chatbotID, sessionID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := db.WithContext(ctx).
		Preload("Messages", func(q *gorm.DB) *gorm.DB {
			return q.Order("created_at ASC, id ASC")
		}).
		Where("chatbot_id = ? AND session_id = ? AND status = ?", chatbotID, sessionID, domain.ConversationActive).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// CreateConversation inserts a new active conversation for the given session.
// The conversation ID is a randomly generated UUID (string), and timestamps
// are set to UTC.
func CreateConversation(ctx context.Context, db *gorm.DB, chatbotID, sessionID string, visitor domain.VisitorInfo) (*domain.Conversation, error) {
	now := time.Now().UTC()
	conv := &domain.Conversation{
		ID:             uuid.NewString(),
		ChatbotID:      chatbotID,
		SessionID:      sessionID,
		Status:         domain.ConversationActive,
		Visitor:        visitor,
		StartedAt:      now,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := db.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, err
	}
	return conv, nil
}

// SaveConversation persists the mutable conversation columns (title, lead,
// analytics, activity timestamps, status). Messages are appended separately
// via CreateMessage; the association is deliberately omitted so saving a
// conversation never re-writes its log.
func SaveConversation(ctx context.Context, db *gorm.DB, conv *domain.Conversation) error {
	return db.WithContext(ctx).
		Omit("Messages").
		Save(conv).Error
}

// EndConversation marks the active conversation for (chatbotID, sessionID) as
// ended, stamping EndedAt and the total duration. It returns the ended
// conversation, or ErrNotFound when no active conversation exists.
func EndConversation(ctx context.Context, db *gorm.DB, chatbotID, sessionID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := db.WithContext(ctx).
		Where("chatbot_id = ? AND session_id = ? AND status = ?", chatbotID, sessionID, domain.ConversationActive).
		First(&conv).Error
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	conv.Status = domain.ConversationEnded
	conv.EndedAt = &now
	conv.DurationMs = now.Sub(conv.StartedAt).Milliseconds()
	if err := db.WithContext(ctx).Omit("Messages").Save(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// CountConversations returns the total number of conversations for a chatbot.
func CountConversations(ctx context.Context, db *gorm.DB, chatbotID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("chatbot_id = ?", chatbotID).
		Count(&total).Error
	return total, err
}

// ListConversationsPage returns a paginated slice of conversations for a
// chatbot, most recently active first. Use CountConversations to obtain the
// total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListConversationsPage(ctx context.Context, db *gorm.DB, chatbotID string, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("chatbot_id = ?", chatbotID).
		Order("last_activity_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetConversation fetches a conversation by ID with its message log, scoped
// to the owning chatbot. Returns ErrNotFound if missing.
func GetConversation(ctx context.Context, db *gorm.DB, id, chatbotID string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := db.WithContext(ctx).
		Preload("Messages", func(q *gorm.DB) *gorm.DB {
			return q.Order("created_at ASC, id ASC")
		}).
		Where("id = ? AND chatbot_id = ?", id, chatbotID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// LeadConversations returns conversations for a chatbot that captured a lead,
// most recently active first.
func LeadConversations(ctx context.Context, db *gorm.DB, chatbotID string, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("chatbot_id = ? AND lead IS NOT NULL", chatbotID).
		Order("last_activity_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

var errMissingConversation = errors.New("conversation id required")

// CreateMessage appends a message row to a conversation's log.
func CreateMessage(ctx context.Context, db *gorm.DB, conversationID string, typ domain.MessageType, content string, meta domain.MessageMetadata) (*domain.Message, error) {
	if conversationID == "" {
		return nil, errMissingConversation
	}
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Type:           typ,
		Content:        content,
		Metadata:       meta,
		CreatedAt:      time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// ListMessages returns a conversation's messages ordered deterministically
// (CreatedAt ASC, ID ASC). A limit <= 0 returns the full log.
func ListMessages(ctx context.Context, db *gorm.DB, conversationID string, limit int) ([]domain.Message, error) {
	var out []domain.Message
	q := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ?", conversationID).
		Scan(&total).Error
	return total, err
}
