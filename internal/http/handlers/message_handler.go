// Message ingestion HTTP handlers.
//
// This file exposes the widget-facing endpoint:
//   - POST /chatbots/{id}/messages   (process one turn and return the bot reply)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (ConversationService)
//   - implement idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (chatbot, session, key), the handler returns that recorded
// bot message and sets `Idempotency-Replayed: true`.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
	"github.com/chatforge/go-chatbot-backend/internal/repo"
	"github.com/chatforge/go-chatbot-backend/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for one inbound widget turn.
//
// Message is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer. Either Message or ButtonID
// must be supplied; ButtonID carries the clicked quick-reply value.
type PostMessageRequest struct {
	// SessionID is the widget's opaque session correlation key.
	SessionID string `json:"session_id" binding:"required,min=1,max=128" example:"widget-7f3a"`
	// Message is the visitor's text, empty for pure button clicks.
	Message string `json:"message" example:"What are your opening hours?"`
	// ButtonID is the clicked quick-reply value, empty for text turns.
	ButtonID string `json:"button_id" example:"btn-pricing"`
	// Visitor optionally carries what the embedding page knows.
	Visitor *domain.VisitorInfo `json:"visitor,omitempty"`
}

// PostMessageResponse is the JSON envelope for a processed turn. Stage,
// confidence, and processing time ride inside Message.Metadata.
type PostMessageResponse struct {
	// ConversationID identifies the conversation the turn belongs to.
	ConversationID string `json:"conversation_id"`
	// SessionID echoes the widget session key from the request.
	SessionID string `json:"session_id"`
	// Message is the bot reply produced for this turn.
	Message *domain.Message `json:"message"`
	// Created reports whether this turn started a new conversation.
	Created bool `json:"created"`
	// MessageCount is the conversation's total after this turn. Zero on
	// idempotent replays, where the conversation is not re-read.
	MessageCount int `json:"message_count,omitempty"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeMessage normalizes visitor text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeMessage(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxMessageRunes inspects the concrete ConversationService for a
// configured message-length limit. If unavailable, it returns a conservative
// fallback.
func discoverMaxMessageRunes(svc ConversationService) int {
	const fallback = 4000
	if cs, ok := svc.(*services.ConversationService); ok {
		if cs.MaxMessageRunes > 0 {
			return cs.MaxMessageRunes
		}
	}
	return fallback
}

//
// Handlers
//

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message and get the bot reply
// @Description Processes one visitor turn through the chatbot's flows, knowledge base, and AI and returns the bot reply.
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Messages
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       id               path    string  true  "Chatbot ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "Inbound turn payload"
//
// @Success     200  {object}  handlers.PostMessageResponse  "Bot reply"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse        "Chatbot inactive"
// @Failure     404  {object}  handlers.ErrorResponse        "Chatbot not found"
// @Failure     429  {object}  handlers.ErrorResponse        "Quota exceeded"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /chatbots/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()

	chatbotID, okID := requireChatbotID(c)
	if !okID {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session_id required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	message := sanitizeMessage(req.Message)
	maxRunes := discoverMaxMessageRunes(h.convSvc)
	if maxRunes > 0 && utf8.RuneCountInString(message) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("message too long: max %d runes", maxRunes))
		return
	}
	if message == "" && req.ButtonID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message or button_id required")
		return
	}

	// Idempotency (replay path) – read validated key if present.
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if idemKey != "" {
		if svc, okSvc := h.convSvc.(*services.ConversationService); okSvc && svc.DB != nil {
			if rec, err := repo.GetIdempotency(ctx, svc.DB, chatbotID, req.SessionID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				if prev, err2 := repo.GetMessage(ctx, svc.DB, rec.MessageID); err2 == nil {
					c.Header("Idempotency-Replayed", "true")
					ok(c, http.StatusOK, PostMessageResponse{
						ConversationID: prev.ConversationID,
						SessionID:      req.SessionID,
						Message:        prev,
					})
					return
				}
			}
		}
	}

	in := services.IncomingMessage{
		Text:     message,
		ButtonID: req.ButtonID,
	}
	if req.Visitor != nil {
		in.Visitor = *req.Visitor
	}
	if in.Visitor.IPAddress == "" {
		in.Visitor.IPAddress = c.ClientIP()
	}
	if in.Visitor.UserAgent == "" {
		in.Visitor.UserAgent = c.Request.UserAgent()
	}

	out, err := h.convSvc.ProcessMessage(ctx, chatbotID, req.SessionID, in)
	if err != nil {
		switch err {
		case services.ErrChatbotNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chatbot not found")
		case services.ErrChatbotInactive:
			fail(c, http.StatusForbidden, ErrCodeChatbotInactive, "chatbot is inactive")
		case services.ErrEmptyMessage:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message or button_id required")
		case services.ErrTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("message too long: max %d runes", maxRunes))
		case services.ErrQuotaExceeded:
			fail(c, http.StatusTooManyRequests, ErrCodeQuotaExceeded, "monthly message quota exceeded")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeProcessFailed, err.Error())
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" {
		if svc, okSvc := h.convSvc.(*services.ConversationService); okSvc && svc.DB != nil {
			ttl := 24 * time.Hour
			_, _ = repo.CreateIdempotency(ctx, svc.DB, chatbotID, req.SessionID, idemKey, out.BotMessage.ID, http.StatusOK, ttl)
		}
	}

	ok(c, http.StatusOK, PostMessageResponse{
		ConversationID: out.Conversation.ID,
		SessionID:      out.Conversation.SessionID,
		Message:        out.BotMessage,
		Created:        out.Created,
		MessageCount:   out.Conversation.Analytics.MessageCount,
	})
}
