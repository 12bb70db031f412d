// Conversation HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - GET  /chatbots/{id}/conversations                      (list, paginated, ETag support)
//   - GET  /chatbots/{id}/conversations/{conversation_id}    (transcript)
//   - POST /chatbots/{id}/conversations/end                  (end the session's conversation)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
	"github.com/chatforge/go-chatbot-backend/internal/repo"
	"github.com/chatforge/go-chatbot-backend/internal/services"
	"github.com/chatforge/go-chatbot-backend/internal/utils"
)

//
// DTOs
//

// ListConversationsResponse contains a page of conversations and pagination
// metadata.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// ConversationResponse wraps a single conversation with its transcript.
type ConversationResponse struct {
	Conversation *domain.Conversation `json:"conversation"`
}

// EndConversationRequest identifies the session whose conversation to end.
type EndConversationRequest struct {
	// SessionID is the widget's opaque session correlation key.
	SessionID string `json:"session_id" binding:"required,min=1,max=128" example:"widget-7f3a"`
}

//
// Helpers
//

// clampPagination parses page/page_size from query parameters, applies sane
// defaults and caps, and returns the validated (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

//
// Handlers
//

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations for a chatbot
// @Description Returns a paginated list of conversations, most recently active first.
// @Tags        Conversations
// @Produce     json
//
// @Param       id         path   string  true  "Chatbot ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"        minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"     minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chatbot not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chatbots/{id}/conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()

	chatbotID, okID := requireChatbotID(c)
	if !okID {
		return
	}

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.convSvc.(*services.ConversationService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ConversationsStats(ctx, db, chatbotID)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"conversations:%s:%d:%d"`, chatbotID, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	page, pageSize := clampPagination(c)

	items, total, err := h.convSvc.ListPage(ctx, chatbotID, page, pageSize)
	if err != nil {
		switch err {
		case services.ErrChatbotNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chatbot not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Fetch one conversation with its transcript
// @Tags        Conversations
// @Produce     json
//
// @Param       id               path  string  true  "Chatbot ID (UUID)"       format(uuid)
// @Param       conversation_id  path  string  true  "Conversation ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.ConversationResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Router      /chatbots/{id}/conversations/{conversation_id} [get]
func (h *Handlers) GetConversation(c *gin.Context) {
	ctx := c.Request.Context()

	chatbotID, okID := requireChatbotID(c)
	if !okID {
		return
	}

	conv, err := h.convSvc.Get(ctx, chatbotID, c.Param("conversation_id"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		return
	}
	ok(c, http.StatusOK, ConversationResponse{Conversation: conv})
}

// EndConversation godoc
// @ID          endConversation
// @Summary     End the session's active conversation
// @Description Marks the active conversation for the session as ended and stamps its duration.
// @Tags        Conversations
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Chatbot ID (UUID)"  format(uuid)
// @Param       body  body  handlers.EndConversationRequest  true  "Session to end"
//
// @Success     200  {object} handlers.ConversationResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "No active conversation"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chatbots/{id}/conversations/end [post]
func (h *Handlers) EndConversation(c *gin.Context) {
	ctx := c.Request.Context()

	chatbotID, okID := requireChatbotID(c)
	if !okID {
		return
	}

	var req EndConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id required")
		return
	}

	conv, err := h.convSvc.EndConversation(ctx, chatbotID, req.SessionID)
	if err != nil {
		switch err {
		case services.ErrChatbotNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chatbot not found")
		case services.ErrConversationNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no active conversation for session")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ConversationResponse{Conversation: conv})
}
