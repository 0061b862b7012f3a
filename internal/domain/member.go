package domain

import "time"

// Membership roles, ordered by organizational rank
const (
	RoleApplicant        = "applicant"
	RoleAssociateMember  = "associate_member"
	RoleFullMember       = "full_member"
	RoleGroupLeader      = "group_leader"
	RoleRegionalLeader   = "regional_leader"
	RoleNationalDirector = "national_director"
)

// Staff roles (orthogonal to membership role)
const (
	StaffModerator = "moderator"
	StaffAdmin     = "admin"
)

// RoleRank returns the ordinal rank of a membership role.
// Unknown roles rank below applicant.
func RoleRank(role string) int {
	switch role {
	case RoleApplicant:
		return 1
	case RoleAssociateMember:
		return 2
	case RoleFullMember:
		return 3
	case RoleGroupLeader:
		return 4
	case RoleRegionalLeader:
		return 5
	case RoleNationalDirector:
		return 6
	default:
		return 0
	}
}

// Member is the platform's member record. The messaging core treats it as
// read-only; membership, referrals and groups are managed elsewhere.
type Member struct {
	ID             string     `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	DisplayName    string     `gorm:"column:display_name;type:varchar(100)" json:"display_name"`
	Email          string     `gorm:"column:email;type:varchar(255);uniqueIndex" json:"-"`
	AvatarURL      string     `gorm:"column:avatar_url;type:varchar(500)" json:"avatar_url,omitempty"`
	MembershipRole string     `gorm:"column:membership_role;type:varchar(30);index" json:"membership_role"`
	StaffRole      string     `gorm:"column:staff_role;type:varchar(30)" json:"staff_role,omitempty"`
	ReferrerID     *string    `gorm:"column:referrer_id;type:varchar(36);index" json:"referrer_id,omitempty"`
	GroupID        *string    `gorm:"column:group_id;type:varchar(36);index" json:"group_id,omitempty"`
	LedGroupID     *string    `gorm:"column:led_group_id;type:varchar(36)" json:"led_group_id,omitempty"`
	IsActive       bool       `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"-"`
	LastSeenAt     *time.Time `gorm:"column:last_seen_at" json:"-"`
}

// TableName returns the table name
func (Member) TableName() string { return "members" }

// MemberProfile is the public subset of a member exposed to other members
type MemberProfile struct {
	ID             string `json:"id"`
	DisplayName    string `json:"display_name"`
	AvatarURL      string `json:"avatar_url,omitempty"`
	MembershipRole string `json:"membership_role"`
}

// ToProfile maps a member to its public profile
func (m *Member) ToProfile() *MemberProfile {
	return &MemberProfile{
		ID:             m.ID,
		DisplayName:    m.DisplayName,
		AvatarURL:      m.AvatarURL,
		MembershipRole: m.MembershipRole,
	}
}
