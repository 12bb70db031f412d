// Chatbot HTTP handlers.
//
// This file exposes read-side endpoints on the chatbot aggregate:
//   - GET /chatbots                  (list the caller's chatbots)
//   - GET /chatbots/{id}             (fetch one chatbot)
//   - GET /chatbots/{id}/analytics   (dashboard rollup)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chatforge/go-chatbot-backend/internal/domain"
	"github.com/chatforge/go-chatbot-backend/internal/repo"
	"github.com/chatforge/go-chatbot-backend/internal/services"
)

// ListChatbotsResponse wraps the caller's chatbots.
type ListChatbotsResponse struct {
	Chatbots []domain.Chatbot `json:"chatbots"`
}

// ChatbotResponse wraps a single chatbot.
type ChatbotResponse struct {
	Chatbot *domain.Chatbot `json:"chatbot"`
}

// AnalyticsResponse wraps the analytics rollup.
type AnalyticsResponse struct {
	Analytics *repo.ChatbotAnalytics `json:"analytics"`
}

// ListChatbots godoc
// @ID          listChatbots
// @Summary     List the caller's chatbots
// @Tags        Chatbots
// @Produce     json
//
// @Param       X-Owner-ID  header  string  true  "Owner ID"  example(owner123)
//
// @Success     200  {object} handlers.ListChatbotsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chatbots [get]
func (h *Handlers) ListChatbots(c *gin.Context) {
	bots, err := h.botSvc.List(c.Request.Context(), ownerID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListChatbotsResponse{Chatbots: bots})
}

// GetChatbot godoc
// @ID          getChatbot
// @Summary     Fetch one chatbot
// @Tags        Chatbots
// @Produce     json
//
// @Param       id  path  string  true  "Chatbot ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.ChatbotResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chatbot not found"
// @Router      /chatbots/{id} [get]
func (h *Handlers) GetChatbot(c *gin.Context) {
	id, okID := requireChatbotID(c)
	if !okID {
		return
	}
	bot, err := h.botSvc.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chatbot not found")
		return
	}
	ok(c, http.StatusOK, ChatbotResponse{Chatbot: bot})
}

// GetAnalytics godoc
// @ID          getChatbotAnalytics
// @Summary     Fetch the analytics rollup for a chatbot
// @Tags        Chatbots
// @Produce     json
//
// @Param       id  path  string  true  "Chatbot ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.AnalyticsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chatbot not found"
// @Router      /chatbots/{id}/analytics [get]
func (h *Handlers) GetAnalytics(c *gin.Context) {
	id, okID := requireChatbotID(c)
	if !okID {
		return
	}
	a, err := h.botSvc.Analytics(c.Request.Context(), id)
	if err != nil {
		switch err {
		case services.ErrChatbotNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chatbot not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, AnalyticsResponse{Analytics: a})
}
