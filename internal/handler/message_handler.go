package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/domain"
	"github.com/nexus-org/nexus-backend/internal/middleware"
	"github.com/nexus-org/nexus-backend/internal/service"
	"github.com/nexus-org/nexus-backend/pkg/i18n"
)

// MessageHandler handles message HTTP requests
type MessageHandler struct {
	service service.MessageService
	bundle  *i18n.Bundle
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(service service.MessageService, bundle *i18n.Bundle) *MessageHandler {
	return &MessageHandler{service: service, bundle: bundle}
}

// List handles GET /conversations/:id/messages
// Supports an opaque cursor (message ID) or an explicit before timestamp.
func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	limit := 0
	if l, err := strconv.Atoi(c.Query("limit")); err == nil {
		limit = l
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, h.bundle.T(middleware.GetLocale(c), "error.validation"), err)
			return
		}
		before = &t
	}

	page, err := h.service.List(c.Param("id"), userID, c.Query("cursor"), before, limit)
	if err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, page)
}

// Send handles POST /conversations/:id/messages
func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, h.bundle.T(middleware.GetLocale(c), "error.validation"), err)
		return
	}

	message, err := h.service.Send(c.Param("id"), userID, &req)
	if err != nil {
		countRejection(err)
		respondError(c, h.bundle, err)
		return
	}

	middleware.CountMessageSent()
	common.SuccessResponse(c, message)
}

// Edit handles PATCH /conversations/:id/messages/:messageID
func (h *MessageHandler) Edit(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	var req domain.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, h.bundle.T(middleware.GetLocale(c), "error.validation"), err)
		return
	}

	message, err := h.service.Edit(c.Param("id"), c.Param("messageID"), userID, req.Content)
	if err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, message)
}

// Delete handles DELETE /conversations/:id/messages/:messageID
func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Param("id"), c.Param("messageID"), userID); err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, gin.H{"deleted": true})
}

// React handles POST /conversations/:id/messages/:messageID/reactions
func (h *MessageHandler) React(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	var req domain.ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, h.bundle.T(middleware.GetLocale(c), "error.validation"), err)
		return
	}

	reactions, err := h.service.React(c.Param("id"), c.Param("messageID"), userID, req.Emoji)
	if err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, gin.H{"reactions": reactions})
}

// countRejection labels rejected sends for the metrics counter
func countRejection(err error) {
	switch {
	case errors.Is(err, common.ErrRateLimited):
		middleware.CountMessageRejected("rate_limited")
	case errors.Is(err, common.ErrMessagingDisabled):
		middleware.CountMessageRejected("disabled")
	case errors.Is(err, common.ErrRepliesDisabled):
		middleware.CountMessageRejected("replies_disabled")
	case errors.Is(err, common.ErrAttachmentsDisabled), errors.Is(err, common.ErrAttachmentRejected):
		middleware.CountMessageRejected("attachment")
	case errors.Is(err, common.ErrConversationNotFound):
		middleware.CountMessageRejected("not_participant")
	default:
		middleware.CountMessageRejected("other")
	}
}
