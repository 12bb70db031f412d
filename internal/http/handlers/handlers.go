// Chatbot HTTP handlers.
//
// This file defines the service contracts consumed by the HTTP layer and the
// Handlers aggregate that binds them to routes. Handlers are transport-thin:
// they validate input, call application services, and translate results into
// HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
	"github.com/chatforge/go-chatbot-backend/internal/repo"
	"github.com/chatforge/go-chatbot-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// ConversationService defines the conversation lifecycle operations consumed
// by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ConversationService interface {
	// ProcessMessage handles one inbound turn and returns the produced pair.
	ProcessMessage(ctx context.Context, chatbotID, sessionID string, in services.IncomingMessage) (*services.TurnResult, error)
	// EndConversation closes the session's active conversation.
	EndConversation(ctx context.Context, chatbotID, sessionID string) (*domain.Conversation, error)
	// ListPage returns a page of conversations for a chatbot and the total count.
	ListPage(ctx context.Context, chatbotID string, page, pageSize int) ([]domain.Conversation, int64, error)
	// Get returns one conversation with its transcript.
	Get(ctx context.Context, chatbotID, conversationID string) (*domain.Conversation, error)
}

// ChatbotService defines chatbot-level read operations.
type ChatbotService interface {
	// Get fetches a chatbot by ID.
	Get(ctx context.Context, id string) (*domain.Chatbot, error)
	// List returns all chatbots for an owner.
	List(ctx context.Context, ownerID string) ([]domain.Chatbot, error)
	// Analytics assembles the analytics rollup for one chatbot.
	Analytics(ctx context.Context, id string) (*repo.ChatbotAnalytics, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for message ingestion, conversations, and
// chatbot reads. It depends on abstract service interfaces to keep transport
// concerns separate from business logic.
type Handlers struct {
	convSvc ConversationService
	botSvc  ChatbotService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(convSvc ConversationService, botSvc ChatbotService) *Handlers {
	return &Handlers{convSvc: convSvc, botSvc: botSvc}
}

// ownerID extracts the authenticated owner id from Gin context (set by
// upstream middleware). If absent, it falls back to "X-Owner-ID" header
// (tests use it), and finally to "demo-owner". It never touches c.Request if
// it's nil.
func ownerID(c *gin.Context) string {
	if v, ok := c.Get("ownerID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-Owner-ID")); h != "" {
			return h
		}
	}
	return "demo-owner"
}

// requireChatbotID validates the :id path parameter as a UUID and writes the
// error response itself on failure.
func requireChatbotID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chatbot id must be a UUID")
		return "", false
	}
	return id, true
}

//
// Shared DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}
