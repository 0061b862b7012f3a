package common

import "errors"

// Business logic errors
var (
	// General errors
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("forbidden")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")

	// Validation errors
	ErrInvalidInput = errors.New("invalid input")

	// Messaging errors
	ErrRateLimited          = errors.New("rate limited")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrMemberNotFound       = errors.New("member not found")
	ErrMessagingDisabled    = errors.New("messaging disabled")
	ErrRepliesDisabled      = errors.New("replies disabled")
	ErrEditWindowExpired    = errors.New("edit window expired")
	ErrNotMessageSender     = errors.New("not message sender")
	ErrInvalidReply         = errors.New("reply target not in conversation")
	ErrGroupTooLarge        = errors.New("group participant cap exceeded")
	ErrAttachmentsDisabled  = errors.New("attachments disabled")
	ErrAttachmentRejected   = errors.New("attachment violates policy")
)
