package domain

import (
	"strconv"
	"strings"
	"time"
)

// OrgSetting is one row of the organization-wide settings table.
// Messaging keys carry the "messaging_" prefix.
type OrgSetting struct {
	Key       string    `gorm:"column:key;type:varchar(100);primaryKey" json:"key"`
	Value     string    `gorm:"column:value;type:text" json:"value"`
	UpdatedBy string    `gorm:"column:updated_by;type:varchar(36)" json:"updated_by"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name
func (OrgSetting) TableName() string { return "org_settings" }

// MessagingSettings is the typed view of all messaging_* settings.
// Defaults live in DefaultMessagingSettings and nowhere else.
type MessagingSettings struct {
	Enabled          bool
	DMEnabled        bool
	GroupChatEnabled bool

	DMInitiatorRoles  []string
	GroupCreatorRoles []string

	SameGroupEnabled  bool
	CrossGroupEnabled bool

	AttachmentsEnabled     bool
	MaxAttachmentSizeMB    int
	AllowedAttachmentTypes []string

	RateLimitMessagesPerMinute int
	MaxGroupParticipants       int
	EditWindowMinutes          int
}

// DefaultMessagingSettings returns the settings used when a key is absent
func DefaultMessagingSettings() MessagingSettings {
	return MessagingSettings{
		Enabled:                    true,
		DMEnabled:                  true,
		GroupChatEnabled:           true,
		DMInitiatorRoles:           []string{RoleFullMember, RoleGroupLeader, RoleRegionalLeader, RoleNationalDirector},
		GroupCreatorRoles:          []string{RoleGroupLeader, RoleRegionalLeader, RoleNationalDirector},
		SameGroupEnabled:           true,
		CrossGroupEnabled:          false,
		AttachmentsEnabled:         true,
		MaxAttachmentSizeMB:        10,
		AllowedAttachmentTypes:     []string{"image/jpeg", "image/png", "image/gif", "application/pdf"},
		RateLimitMessagesPerMinute: 30,
		MaxGroupParticipants:       50,
		EditWindowMinutes:          15,
	}
}

// ParseMessagingSettings builds typed settings from raw key-value rows,
// falling back to defaults for missing or unparsable values.
func ParseMessagingSettings(rows []OrgSetting) MessagingSettings {
	s := DefaultMessagingSettings()
	for _, row := range rows {
		switch row.Key {
		case "messaging_enabled":
			s.Enabled = parseBool(row.Value, s.Enabled)
		case "messaging_dm_enabled":
			s.DMEnabled = parseBool(row.Value, s.DMEnabled)
		case "messaging_group_chat_enabled":
			s.GroupChatEnabled = parseBool(row.Value, s.GroupChatEnabled)
		case "messaging_dm_initiator_roles":
			s.DMInitiatorRoles = parseList(row.Value, s.DMInitiatorRoles)
		case "messaging_group_creator_roles":
			s.GroupCreatorRoles = parseList(row.Value, s.GroupCreatorRoles)
		case "messaging_same_group_enabled":
			s.SameGroupEnabled = parseBool(row.Value, s.SameGroupEnabled)
		case "messaging_cross_group_enabled":
			s.CrossGroupEnabled = parseBool(row.Value, s.CrossGroupEnabled)
		case "messaging_attachments_enabled":
			s.AttachmentsEnabled = parseBool(row.Value, s.AttachmentsEnabled)
		case "messaging_max_attachment_size_mb":
			s.MaxAttachmentSizeMB = parseInt(row.Value, s.MaxAttachmentSizeMB)
		case "messaging_allowed_attachment_types":
			s.AllowedAttachmentTypes = parseList(row.Value, s.AllowedAttachmentTypes)
		case "messaging_rate_limit_messages_per_minute":
			s.RateLimitMessagesPerMinute = parseInt(row.Value, s.RateLimitMessagesPerMinute)
		case "messaging_max_group_participants":
			s.MaxGroupParticipants = parseInt(row.Value, s.MaxGroupParticipants)
		case "messaging_edit_window_minutes":
			s.EditWindowMinutes = parseInt(row.Value, s.EditWindowMinutes)
		}
	}
	return s
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return b
}

func parseInt(v string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// parseList accepts comma-separated values; empty input keeps the fallback
func parseList(v string, fallback []string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
