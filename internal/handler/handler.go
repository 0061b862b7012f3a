package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/middleware"
	"github.com/nexus-org/nexus-backend/pkg/i18n"
	"github.com/nexus-org/nexus-backend/pkg/logger"
)

// errorMapping ties a business error to an HTTP status and a message key
type errorMapping struct {
	status int
	key    string
}

var errorMappings = []struct {
	err     error
	mapping errorMapping
}{
	{common.ErrConversationNotFound, errorMapping{http.StatusNotFound, "conversation.not_found"}},
	{common.ErrMessageNotFound, errorMapping{http.StatusNotFound, "message.not_found"}},
	{common.ErrMemberNotFound, errorMapping{http.StatusNotFound, "member.not_found"}},
	{common.ErrNotFound, errorMapping{http.StatusNotFound, "error.not_found"}},
	{common.ErrUnauthorized, errorMapping{http.StatusUnauthorized, "error.unauthorized"}},
	{common.ErrForbidden, errorMapping{http.StatusForbidden, "error.forbidden"}},
	{common.ErrMessagingDisabled, errorMapping{http.StatusForbidden, "messaging.disabled"}},
	{common.ErrRepliesDisabled, errorMapping{http.StatusForbidden, "message.replies_disabled"}},
	{common.ErrEditWindowExpired, errorMapping{http.StatusForbidden, "message.edit_window_expired"}},
	{common.ErrNotMessageSender, errorMapping{http.StatusForbidden, "message.not_sender"}},
	{common.ErrGroupTooLarge, errorMapping{http.StatusBadRequest, "conversation.group_too_large"}},
	{common.ErrInvalidReply, errorMapping{http.StatusBadRequest, "message.invalid_reply"}},
	{common.ErrAttachmentsDisabled, errorMapping{http.StatusBadRequest, "messaging.attachments_off"}},
	{common.ErrAttachmentRejected, errorMapping{http.StatusBadRequest, "messaging.attachment_bad"}},
	{common.ErrInvalidInput, errorMapping{http.StatusBadRequest, "error.bad_request"}},
	{common.ErrRateLimited, errorMapping{http.StatusTooManyRequests, "message.rate_limited"}},
}

// respondError translates a service error into a localized HTTP response.
// Unknown errors become an opaque 500 and get logged with full detail.
func respondError(c *gin.Context, bundle *i18n.Bundle, err error) {
	locale := middleware.GetLocale(c)

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			common.ErrorResponse(c, m.mapping.status, bundle.T(locale, m.mapping.key), err)
			return
		}
	}

	logger.GetLogger().Error().Err(err).
		Str("path", c.Request.URL.Path).
		Str("user_id", middleware.GetUserID(c)).
		Msg("unhandled handler error")
	common.ErrorResponse(c, http.StatusInternalServerError, bundle.T(locale, "error.internal"), nil)
}

// requireUser returns the authenticated user ID or writes a 401
func requireUser(c *gin.Context, bundle *i18n.Bundle) (string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, bundle.T(middleware.GetLocale(c), "error.unauthorized"), nil)
		return "", false
	}
	return userID, true
}

// parsePagination reads page/limit query params with sane bounds
func parsePagination(c *gin.Context, defaultLimit int) (page, limit int) {
	page = 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	limit = defaultLimit
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}
	return page, limit
}
