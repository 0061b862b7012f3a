package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/domain"
	"github.com/nexus-org/nexus-backend/internal/middleware"
	"github.com/nexus-org/nexus-backend/internal/service"
	"github.com/nexus-org/nexus-backend/pkg/i18n"
)

// ConversationHandler handles conversation HTTP requests
type ConversationHandler struct {
	service service.ConversationService
	bundle  *i18n.Bundle
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(service service.ConversationService, bundle *i18n.Bundle) *ConversationHandler {
	return &ConversationHandler{service: service, bundle: bundle}
}

// List handles GET /conversations
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	page, limit := parsePagination(c, 20)

	conversations, meta, err := h.service.List(userID, page, limit)
	if err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponseWithMeta(c, conversations, meta)
}

// Create handles POST /conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	var req domain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, h.bundle.T(middleware.GetLocale(c), "error.validation"), err)
		return
	}

	conversation, err := h.service.Create(userID, &req)
	if err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, conversation)
}

// Get handles GET /conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	conversation, err := h.service.Get(c.Param("id"), userID)
	if err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, conversation)
}

// Update handles PATCH /conversations/:id
func (h *ConversationHandler) Update(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	var req domain.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, h.bundle.T(middleware.GetLocale(c), "error.validation"), err)
		return
	}

	conversation, err := h.service.UpdateSettings(c.Param("id"), userID, &req)
	if err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, conversation)
}

// Leave handles DELETE /conversations/:id
func (h *ConversationHandler) Leave(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	if err := h.service.Leave(c.Param("id"), userID); err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, gin.H{
		"message": h.bundle.T(middleware.GetLocale(c), "conversation.left"),
	})
}

// MarkRead handles PATCH /conversations/:id/read
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	var req domain.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, h.bundle.T(middleware.GetLocale(c), "error.validation"), err)
		return
	}

	if err := h.service.MarkRead(c.Param("id"), userID, req.MessageID); err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, gin.H{"read": true})
}

// Mute handles PATCH /conversations/:id/mute
func (h *ConversationHandler) Mute(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	var req domain.MuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, h.bundle.T(middleware.GetLocale(c), "error.validation"), err)
		return
	}

	if err := h.service.SetMute(c.Param("id"), userID, req.Muted, req.Until); err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, gin.H{"muted": req.Muted})
}

// UpdateParticipantRole handles PATCH /conversations/:id/participants/:userID
func (h *ConversationHandler) UpdateParticipantRole(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	var req domain.UpdateParticipantRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, h.bundle.T(middleware.GetLocale(c), "error.validation"), err)
		return
	}

	if err := h.service.UpdateParticipantRole(c.Param("id"), userID, c.Param("userID"), req.Role); err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, gin.H{"role": req.Role})
}

// UnreadCount handles GET /messages/unread-count
func (h *ConversationHandler) UnreadCount(c *gin.Context) {
	userID, ok := requireUser(c, h.bundle)
	if !ok {
		return
	}

	total, err := h.service.UnreadTotal(userID)
	if err != nil {
		respondError(c, h.bundle, err)
		return
	}

	common.SuccessResponse(c, gin.H{"unread_count": total})
}
