package domain

import "time"

// CreateConversationRequest creates a DM or a group
type CreateConversationRequest struct {
	Type           string   `json:"type" binding:"required,oneof=direct group"`
	ParticipantIDs []string `json:"participant_ids" binding:"required,min=1"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	AvatarURL      string   `json:"avatar_url"`
}

// UpdateConversationRequest updates group settings (owner/admin only)
type UpdateConversationRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	AvatarURL    *string `json:"avatar_url"`
	AllowReplies *bool   `json:"allow_replies"`
}

// SendMessageRequest appends a message to a conversation
type SendMessageRequest struct {
	Type        string         `json:"type" binding:"omitempty,oneof=text image file"`
	Content     string         `json:"content"`
	Attachments AttachmentList `json:"attachments"`
	ReplyToID   *string        `json:"reply_to_id"`
}

// EditMessageRequest edits message content within the edit window
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ReactRequest toggles the requester's reaction for an emoji
type ReactRequest struct {
	Emoji string `json:"emoji" binding:"required,max=16"`
}

// MarkReadRequest marks the conversation read up to a message
type MarkReadRequest struct {
	MessageID string `json:"message_id" binding:"required"`
}

// MuteRequest mutes or unmutes the requester in a conversation
type MuteRequest struct {
	Muted bool       `json:"muted"`
	Until *time.Time `json:"until"`
}

// UpdateParticipantRoleRequest promotes or demotes a group participant
type UpdateParticipantRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=admin member"`
}
