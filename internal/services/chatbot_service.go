// Package services – ChatbotService
//
// This file implements ChatbotService, which exposes read-side operations on
// the chatbot aggregate: owner listings and the analytics rollup consumed by
// the dashboard.
package services

import (
	"context"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
	"github.com/chatforge/go-chatbot-backend/internal/repo"
)

// ChatbotService provides chatbot-level read operations.
type ChatbotService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewChatbotService constructs a ChatbotService.
func NewChatbotService(db *gorm.DB) *ChatbotService {
	return &ChatbotService{DB: db}
}

// Get fetches a chatbot by ID without its flow/KB associations.
func (s *ChatbotService) Get(ctx context.Context, id string) (*domain.Chatbot, error) {
	bot, err := repo.GetChatbot(ctx, s.DB, id)
	if err != nil {
		return nil, ErrChatbotNotFound
	}
	return bot, nil
}

// List returns all chatbots for an owner, most recent first.
func (s *ChatbotService) List(ctx context.Context, ownerID string) ([]domain.Chatbot, error) {
	return repo.ListChatbots(ctx, s.DB, ownerID)
}

// Analytics assembles the analytics rollup for one chatbot.
func (s *ChatbotService) Analytics(ctx context.Context, id string) (*repo.ChatbotAnalytics, error) {
	tr := otel.Tracer("services/ChatbotService")
	ctx, span := tr.Start(ctx, "Analytics",
		trace.WithAttributes(attribute.String("chatbot.id", id)),
	)
	defer span.End()

	a, err := repo.GetChatbotAnalytics(ctx, s.DB, id)
	if err != nil {
		return nil, ErrChatbotNotFound
	}
	return a, nil
}
