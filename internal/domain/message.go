package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Message types
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// Delivery statuses. The server only ever writes "sent"; the remaining
// values belong to an external real-time delivery layer.
const (
	MessageStatusSending   = "sending"
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

// metadata key carrying the reaction map (emoji -> reactor user ids)
const metadataKeyReactions = "reactions"

// Message belongs to exactly one conversation. A nil SenderID marks a
// system message (group created, participant left).
type Message struct {
	ID             string  `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	ConversationID string  `gorm:"column:conversation_id;type:varchar(36);not null;index:idx_messages_conv_created,priority:1" json:"conversation_id"`
	SenderID       *string `gorm:"column:sender_id;type:varchar(36);index" json:"sender_id,omitempty"`
	Type           string  `gorm:"column:type;type:varchar(10);default:'text'" json:"type"`
	Content        *string `gorm:"column:content;type:text" json:"content,omitempty"`

	Attachments AttachmentList `gorm:"column:attachments;type:json" json:"attachments,omitempty"`
	ReplyToID   *string        `gorm:"column:reply_to_id;type:varchar(36)" json:"reply_to_id,omitempty"`
	Metadata    Metadata       `gorm:"column:metadata;type:json" json:"-"`

	IsEdited  bool       `gorm:"column:is_edited;default:false" json:"is_edited"`
	EditedAt  *time.Time `gorm:"column:edited_at" json:"edited_at,omitempty"`
	IsDeleted bool       `gorm:"column:is_deleted;default:false" json:"is_deleted"`
	DeletedAt *time.Time `gorm:"column:deleted_at" json:"deleted_at,omitempty"`

	Status string `gorm:"column:status;type:varchar(10);default:'sent'" json:"status"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime;index:idx_messages_conv_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

// TableName returns the table name
func (Message) TableName() string { return "messages" }

// Attachment describes one attached file; uploads live outside this core
type Attachment struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}

// AttachmentList is a JSON-encoded attachment array column
type AttachmentList []Attachment

// Scan implements sql.Scanner
func (a *AttachmentList) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, a)
}

// Value implements driver.Valuer
func (a AttachmentList) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Metadata is a free-form JSON object column. Reactions live under the
// "reactions" key as emoji -> reactor id list.
type Metadata map[string]json.RawMessage

// Scan implements sql.Scanner
func (m *Metadata) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, m)
}

// Value implements driver.Valuer
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Reactions decodes the reaction map from metadata
func (m *Message) Reactions() map[string][]string {
	reactions := make(map[string][]string)
	if m.Metadata == nil {
		return reactions
	}
	if raw, ok := m.Metadata[metadataKeyReactions]; ok {
		_ = json.Unmarshal(raw, &reactions)
	}
	return reactions
}

// SetReactions encodes the reaction map into metadata
func (m *Message) SetReactions(reactions map[string][]string) {
	if m.Metadata == nil {
		m.Metadata = make(Metadata)
	}
	raw, err := json.Marshal(reactions)
	if err != nil {
		return
	}
	m.Metadata[metadataKeyReactions] = raw
}

// ToggleReaction flips the user's presence in the reactor list for an emoji
// and returns the updated reaction map.
func (m *Message) ToggleReaction(emoji, userID string) map[string][]string {
	reactions := m.Reactions()
	users := reactions[emoji]

	found := false
	filtered := users[:0]
	for _, u := range users {
		if u == userID {
			found = true
			continue
		}
		filtered = append(filtered, u)
	}

	if found {
		if len(filtered) == 0 {
			delete(reactions, emoji)
		} else {
			reactions[emoji] = filtered
		}
	} else {
		reactions[emoji] = append(users, userID)
	}

	m.SetReactions(reactions)
	return reactions
}

// ReactionView is one emoji's aggregate as seen by the requesting member
type ReactionView struct {
	Emoji      string   `json:"emoji"`
	Count      int      `json:"count"`
	Users      []string `json:"users"`
	HasReacted bool     `json:"has_reacted"`
}

// BuildReactionViews rehydrates the reaction map into per-emoji aggregates
func BuildReactionViews(reactions map[string][]string, requesterID string) []ReactionView {
	views := make([]ReactionView, 0, len(reactions))
	for emoji, users := range reactions {
		view := ReactionView{
			Emoji: emoji,
			Count: len(users),
			Users: users,
		}
		for _, u := range users {
			if u == requesterID {
				view.HasReacted = true
				break
			}
		}
		views = append(views, view)
	}
	return views
}

// ReplyPreview is the replied-to message summary embedded in a response
type ReplyPreview struct {
	ID         string  `json:"id"`
	SenderID   *string `json:"sender_id,omitempty"`
	SenderName string  `json:"sender_name,omitempty"`
	Content    *string `json:"content,omitempty"`
	IsDeleted  bool    `json:"is_deleted"`
}

// MessageResponse is a message enriched for the requesting member
type MessageResponse struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderID       *string        `json:"sender_id,omitempty"`
	Sender         *MemberProfile `json:"sender,omitempty"`
	Type           string         `json:"type"`
	Content        *string        `json:"content,omitempty"`
	Attachments    AttachmentList `json:"attachments,omitempty"`
	ReplyTo        *ReplyPreview  `json:"reply_to,omitempty"`
	Reactions      []ReactionView `json:"reactions,omitempty"`
	IsEdited       bool           `json:"is_edited"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	IsDeleted      bool           `json:"is_deleted"`
	Status         string         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ToResponse maps a message row; enrichment fields are filled by the service
func (m *Message) ToResponse() *MessageResponse {
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Type:           m.Type,
		Content:        m.Content,
		Attachments:    m.Attachments,
		IsEdited:       m.IsEdited,
		EditedAt:       m.EditedAt,
		IsDeleted:      m.IsDeleted,
		Status:         m.Status,
		CreatedAt:      m.CreatedAt,
	}
}
