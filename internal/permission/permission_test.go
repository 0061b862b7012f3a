package permission

import (
	"testing"

	"github.com/nexus-org/nexus-backend/internal/domain"
)

func strptr(s string) *string { return &s }

func TestCanInitiateDMs(t *testing.T) {
	base := domain.DefaultMessagingSettings()

	tests := []struct {
		name           string
		membershipRole string
		staffRole      string
		mutate         func(*domain.MessagingSettings)
		want           bool
	}{
		{
			name:           "full member allowed by default",
			membershipRole: domain.RoleFullMember,
			want:           true,
		},
		{
			name:           "applicant not in allow-list",
			membershipRole: domain.RoleApplicant,
			want:           false,
		},
		{
			name:           "staff role grants access when listed",
			membershipRole: domain.RoleApplicant,
			staffRole:      domain.StaffAdmin,
			mutate: func(s *domain.MessagingSettings) {
				s.DMInitiatorRoles = []string{domain.StaffAdmin}
			},
			want: true,
		},
		{
			name:           "dm switch off blocks everyone",
			membershipRole: domain.RoleRegionalLeader,
			mutate:         func(s *domain.MessagingSettings) { s.DMEnabled = false },
			want:           false,
		},
		{
			name:           "master switch off blocks everyone",
			membershipRole: domain.RoleRegionalLeader,
			mutate:         func(s *domain.MessagingSettings) { s.Enabled = false },
			want:           false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			if got := CanInitiateDMs(tt.membershipRole, tt.staffRole, s); got != tt.want {
				t.Errorf("CanInitiateDMs(%s, %s) = %v, want %v", tt.membershipRole, tt.staffRole, got, tt.want)
			}
		})
	}
}

func TestCanCreateGroupChats(t *testing.T) {
	s := domain.DefaultMessagingSettings()

	if !CanCreateGroupChats(domain.RoleGroupLeader, "", s) {
		t.Error("group leader should be able to create groups by default")
	}
	if CanCreateGroupChats(domain.RoleFullMember, "", s) {
		t.Error("full member should not be able to create groups by default")
	}

	s.GroupChatEnabled = false
	if CanCreateGroupChats(domain.RoleGroupLeader, "", s) {
		t.Error("group chat switch off should block creation")
	}
}

func TestCanMessageUser(t *testing.T) {
	settings := domain.DefaultMessagingSettings()
	settings.SameGroupEnabled = false
	settings.CrossGroupEnabled = false

	tests := []struct {
		name     string
		ctx      MessageUserContext
		settings domain.MessagingSettings
		want     bool
	}{
		{
			name: "unrelated members denied even with staff role",
			ctx: MessageUserContext{
				SenderID:        "a",
				RecipientID:     "b",
				SenderRole:      domain.RoleFullMember,
				SenderStaffRole: domain.StaffModerator,
				RecipientRole:   domain.RoleFullMember,
			},
			settings: settings,
			want:     false,
		},
		{
			name: "sender is direct referral of recipient",
			ctx: MessageUserContext{
				SenderID:         "a",
				RecipientID:      "b",
				SenderRole:       domain.RoleFullMember,
				RecipientRole:    domain.RoleRegionalLeader,
				SenderReferrerID: strptr("b"),
			},
			settings: settings,
			want:     true,
		},
		{
			name: "recipient is direct referral of sender",
			ctx: MessageUserContext{
				SenderID:            "a",
				RecipientID:         "b",
				SenderRole:          domain.RoleFullMember,
				RecipientRole:       domain.RoleAssociateMember,
				RecipientReferrerID: strptr("a"),
			},
			settings: settings,
			want:     true,
		},
		{
			name: "subtree reach requires regional leader tier",
			ctx: MessageUserContext{
				SenderID:                 "a",
				RecipientID:              "b",
				SenderRole:               domain.RoleFullMember,
				RecipientRole:            domain.RoleAssociateMember,
				RecipientInSenderSubtree: true,
			},
			settings: settings,
			want:     false,
		},
		{
			name: "regional leader reaches referral subtree",
			ctx: MessageUserContext{
				SenderID:                 "a",
				RecipientID:              "b",
				SenderRole:               domain.RoleRegionalLeader,
				RecipientRole:            domain.RoleAssociateMember,
				RecipientInSenderSubtree: true,
			},
			settings: settings,
			want:     true,
		},
		{
			name: "recipient in sender's led group",
			ctx: MessageUserContext{
				SenderID:         "a",
				RecipientID:      "b",
				SenderRole:       domain.RoleGroupLeader,
				RecipientRole:    domain.RoleFullMember,
				SenderLedGroupID: strptr("g1"),
				RecipientGroupID: strptr("g1"),
			},
			settings: settings,
			want:     true,
		},
		{
			name: "same group denied when policy off",
			ctx: MessageUserContext{
				SenderID:         "a",
				RecipientID:      "b",
				SenderRole:       domain.RoleFullMember,
				RecipientRole:    domain.RoleFullMember,
				SenderGroupID:    strptr("g1"),
				RecipientGroupID: strptr("g1"),
			},
			settings: settings,
			want:     false,
		},
		{
			name: "same group allowed when policy on",
			ctx: MessageUserContext{
				SenderID:         "a",
				RecipientID:      "b",
				SenderRole:       domain.RoleFullMember,
				RecipientRole:    domain.RoleFullMember,
				SenderGroupID:    strptr("g1"),
				RecipientGroupID: strptr("g1"),
			},
			settings: func() domain.MessagingSettings {
				s := settings
				s.SameGroupEnabled = true
				return s
			}(),
			want: true,
		},
		{
			name: "established recruiter messages one rank up cross-group when enabled",
			ctx: MessageUserContext{
				SenderID:              "a",
				RecipientID:           "b",
				SenderRole:            domain.RoleFullMember,
				RecipientRole:         domain.RoleGroupLeader,
				SenderGroupID:         strptr("g1"),
				RecipientGroupID:      strptr("g2"),
				SenderDirectReferrals: 2,
			},
			settings: func() domain.MessagingSettings {
				s := settings
				s.CrossGroupEnabled = true
				return s
			}(),
			want: true,
		},
		{
			name: "recruiter with one referral cannot message up",
			ctx: MessageUserContext{
				SenderID:              "a",
				RecipientID:           "b",
				SenderRole:            domain.RoleFullMember,
				RecipientRole:         domain.RoleGroupLeader,
				SenderDirectReferrals: 1,
			},
			settings: func() domain.MessagingSettings {
				s := settings
				s.CrossGroupEnabled = true
				return s
			}(),
			want: false,
		},
		{
			name: "self messaging denied",
			ctx: MessageUserContext{
				SenderID:    "a",
				RecipientID: "a",
				SenderRole:  domain.RoleNationalDirector,
			},
			settings: settings,
			want:     false,
		},
		{
			name: "master switch off denies direct referrals too",
			ctx: MessageUserContext{
				SenderID:         "a",
				RecipientID:      "b",
				SenderRole:       domain.RoleFullMember,
				SenderReferrerID: strptr("b"),
			},
			settings: func() domain.MessagingSettings {
				s := settings
				s.Enabled = false
				return s
			}(),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanMessageUser(tt.ctx, tt.settings); got != tt.want {
				t.Errorf("CanMessageUser() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckMessageRateLimit(t *testing.T) {
	s := domain.DefaultMessagingSettings()
	s.RateLimitMessagesPerMinute = 30

	tests := []struct {
		name        string
		recentCount int
		wantAllowed bool
		wantRemain  int
	}{
		{"first message", 0, true, 30},
		{"29th sent, 30th attempt allowed", 29, true, 1},
		{"30th sent, 31st attempt rejected", 30, false, 0},
		{"well past the cap", 45, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CheckMessageRateLimit("sender", tt.recentCount, s)
			if res.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", res.Allowed, tt.wantAllowed)
			}
			if res.Remaining != tt.wantRemain {
				t.Errorf("Remaining = %d, want %d", res.Remaining, tt.wantRemain)
			}
		})
	}

	t.Run("zero cap disables the limit", func(t *testing.T) {
		s := domain.DefaultMessagingSettings()
		s.RateLimitMessagesPerMinute = 0
		if res := CheckMessageRateLimit("sender", 10000, s); !res.Allowed {
			t.Error("a non-positive cap should disable rate limiting")
		}
	})
}
