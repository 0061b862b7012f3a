package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Conversation types
const (
	ConversationTypeDirect = "direct"
	ConversationTypeGroup  = "group"
)

// Participant roles
const (
	ParticipantRoleOwner  = "owner"
	ParticipantRoleAdmin  = "admin"
	ParticipantRoleMember = "member"
)

// Conversation is a direct (2-party) or group (N-party) messaging thread
type Conversation struct {
	ID           string `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Type         string `gorm:"column:type;type:varchar(10);not null;index" json:"type"`
	Name         string `gorm:"column:name;type:varchar(100)" json:"name,omitempty"`
	Description  string `gorm:"column:description;type:text" json:"description,omitempty"`
	AvatarURL    string `gorm:"column:avatar_url;type:varchar(500)" json:"avatar_url,omitempty"`
	CreatorID    string `gorm:"column:creator_id;type:varchar(36);index" json:"creator_id"`
	IsActive     bool   `gorm:"column:is_active;default:true;index" json:"is_active"`
	AllowReplies bool   `gorm:"column:allow_replies;default:true" json:"allow_replies"`

	// DirectKey is the canonical ordered "loUserID:hiUserID" pair for DMs.
	// Its unique index makes concurrent find-or-create idempotent. NULL for groups.
	DirectKey *string `gorm:"column:direct_key;type:varchar(80);uniqueIndex" json:"-"`

	ParticipantCount int `gorm:"column:participant_count;default:0" json:"participant_count"`

	// Denormalized last-message fields drive conversation-list ordering
	LastMessagePreview  string     `gorm:"column:last_message_preview;type:varchar(255)" json:"last_message_preview,omitempty"`
	LastMessageSenderID string     `gorm:"column:last_message_sender_id;type:varchar(36)" json:"last_message_sender_id,omitempty"`
	LastMessageAt       *time.Time `gorm:"column:last_message_at;index:idx_conversations_activity,sort:desc" json:"last_message_at,omitempty"`

	PinnedMessageIDs StringList `gorm:"column:pinned_message_ids;type:json" json:"pinned_message_ids,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name
func (Conversation) TableName() string { return "conversations" }

// ConversationParticipant is a member's membership record in a conversation
type ConversationParticipant struct {
	ID             uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	ConversationID string `gorm:"column:conversation_id;type:varchar(36);not null;uniqueIndex:idx_participant_conv_user" json:"conversation_id"`
	UserID         string `gorm:"column:user_id;type:varchar(36);not null;uniqueIndex:idx_participant_conv_user;index" json:"user_id"`
	Role           string `gorm:"column:role;type:varchar(10);default:'member'" json:"role"`
	IsActive       bool   `gorm:"column:is_active;default:true;index" json:"is_active"`

	IsMuted    bool       `gorm:"column:is_muted;default:false" json:"is_muted"`
	MutedUntil *time.Time `gorm:"column:muted_until" json:"muted_until,omitempty"`

	UnreadCount       int        `gorm:"column:unread_count;default:0" json:"unread_count"`
	LastReadAt        *time.Time `gorm:"column:last_read_at" json:"last_read_at,omitempty"`
	LastReadMessageID *string    `gorm:"column:last_read_message_id;type:varchar(36)" json:"last_read_message_id,omitempty"`

	JoinedAt time.Time  `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`
	LeftAt   *time.Time `gorm:"column:left_at" json:"left_at,omitempty"`
}

// TableName returns the table name
func (ConversationParticipant) TableName() string { return "conversation_participants" }

// MutedNow reports whether the participant is muted at the given time.
// A nil MutedUntil on a muted row means muted indefinitely.
func (p *ConversationParticipant) MutedNow(now time.Time) bool {
	if !p.IsMuted {
		return false
	}
	if p.MutedUntil == nil {
		return true
	}
	return now.Before(*p.MutedUntil)
}

// StringList is a JSON-encoded string array column
type StringList []string

// Scan implements sql.Scanner
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
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
	return json.Unmarshal(bytes, l)
}

// Value implements driver.Valuer
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// ParticipantView is a roster entry enriched with the member's public profile
type ParticipantView struct {
	UserID   string         `json:"user_id"`
	Role     string         `json:"role"`
	IsMuted  bool           `json:"is_muted"`
	JoinedAt time.Time      `json:"joined_at"`
	Profile  *MemberProfile `json:"profile,omitempty"`
}

// ConversationResponse is a conversation as served to one requesting member
type ConversationResponse struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"`
	Name             string     `json:"name,omitempty"`
	Description      string     `json:"description,omitempty"`
	AvatarURL        string     `json:"avatar_url,omitempty"`
	CreatorID        string     `json:"creator_id"`
	IsActive         bool       `json:"is_active"`
	AllowReplies     bool       `json:"allow_replies"`
	ParticipantCount int        `json:"participant_count"`
	PinnedMessageIDs []string   `json:"pinned_message_ids,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	LastMessagePreview  string     `json:"last_message_preview,omitempty"`
	LastMessageSenderID string     `json:"last_message_sender_id,omitempty"`
	LastMessageAt       *time.Time `json:"last_message_at,omitempty"`

	// Requester-specific annotations
	UnreadCount int    `json:"unread_count"`
	IsMuted     bool   `json:"is_muted"`
	MyRole      string `json:"my_role,omitempty"`

	Participants []*ParticipantView `json:"participants,omitempty"`

	// For direct conversations: the counterpart's public profile
	OtherParticipant *MemberProfile `json:"other_participant,omitempty"`
}

// ToResponse maps a conversation plus the requester's participant row
func (c *Conversation) ToResponse(own *ConversationParticipant) *ConversationResponse {
	resp := &ConversationResponse{
		ID:                  c.ID,
		Type:                c.Type,
		Name:                c.Name,
		Description:         c.Description,
		AvatarURL:           c.AvatarURL,
		CreatorID:           c.CreatorID,
		IsActive:            c.IsActive,
		AllowReplies:        c.AllowReplies,
		ParticipantCount:    c.ParticipantCount,
		PinnedMessageIDs:    c.PinnedMessageIDs,
		CreatedAt:           c.CreatedAt,
		UpdatedAt:           c.UpdatedAt,
		LastMessagePreview:  c.LastMessagePreview,
		LastMessageSenderID: c.LastMessageSenderID,
		LastMessageAt:       c.LastMessageAt,
	}
	if own != nil {
		resp.UnreadCount = own.UnreadCount
		resp.IsMuted = own.MutedNow(time.Now())
		resp.MyRole = own.Role
	}
	return resp
}
