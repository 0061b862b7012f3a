// Package permission holds the pure messaging authorization predicates.
// Inputs are plain data resolved by the caller; no predicate touches storage.
package permission

import (
	"github.com/nexus-org/nexus-backend/internal/domain"
)

// CanInitiateDMs reports whether a member may start direct conversations
func CanInitiateDMs(membershipRole, staffRole string, s domain.MessagingSettings) bool {
	if !s.Enabled || !s.DMEnabled {
		return false
	}
	return roleIn(membershipRole, s.DMInitiatorRoles) || roleIn(staffRole, s.DMInitiatorRoles)
}

// CanCreateGroupChats reports whether a member may create group conversations
func CanCreateGroupChats(membershipRole, staffRole string, s domain.MessagingSettings) bool {
	if !s.Enabled || !s.GroupChatEnabled {
		return false
	}
	return roleIn(membershipRole, s.GroupCreatorRoles) || roleIn(staffRole, s.GroupCreatorRoles)
}

// MessageUserContext carries everything CanMessageUser needs about the
// sender/recipient pair. Referral and group fields come from the member
// store; RecipientInSenderSubtree is only resolved for regional-leader-tier
// senders (the walk is not cheap) and is false otherwise.
type MessageUserContext struct {
	SenderID    string
	RecipientID string

	SenderRole      string
	SenderStaffRole string
	RecipientRole   string

	SenderReferrerID    *string
	RecipientReferrerID *string

	RecipientInSenderSubtree bool

	SenderGroupID    *string
	RecipientGroupID *string
	SenderLedGroupID *string

	SenderDirectReferrals int
}

// CanMessageUser decides whether the sender may address the recipient.
// The relationships that open a channel:
//   - the sender was directly referred by the recipient, or vice versa
//   - the recipient sits anywhere in the sender's referral subtree
//     (regional-leader tier and above only)
//   - the recipient belongs to the group the sender leads
//   - both share a group and same-group messaging is enabled
//   - role-based reach: a sender with at least two direct referrals may
//     message one membership rank up (cross-group only when enabled)
func CanMessageUser(ctx MessageUserContext, s domain.MessagingSettings) bool {
	if !s.Enabled {
		return false
	}
	if ctx.SenderID == "" || ctx.RecipientID == "" || ctx.SenderID == ctx.RecipientID {
		return false
	}

	// Direct referral relationship, either direction
	if ctx.SenderReferrerID != nil && *ctx.SenderReferrerID == ctx.RecipientID {
		return true
	}
	if ctx.RecipientReferrerID != nil && *ctx.RecipientReferrerID == ctx.SenderID {
		return true
	}

	// Referral subtree, regional leadership tier only
	if ctx.RecipientInSenderSubtree && domain.RoleRank(ctx.SenderRole) >= domain.RoleRank(domain.RoleRegionalLeader) {
		return true
	}

	// Recipient is in the group the sender leads
	if ctx.SenderLedGroupID != nil && ctx.RecipientGroupID != nil &&
		*ctx.SenderLedGroupID == *ctx.RecipientGroupID {
		return true
	}

	sameGroup := ctx.SenderGroupID != nil && ctx.RecipientGroupID != nil &&
		*ctx.SenderGroupID == *ctx.RecipientGroupID

	if sameGroup && s.SameGroupEnabled {
		return true
	}

	// Role-based reach: established recruiters may message one rank up
	if ctx.SenderDirectReferrals >= 2 &&
		domain.RoleRank(ctx.RecipientRole) == domain.RoleRank(ctx.SenderRole)+1 {
		if sameGroup {
			return true
		}
		return s.CrossGroupEnabled
	}

	return false
}

// RateLimitResult is the outcome of a rate-limit check
type RateLimitResult struct {
	Allowed   bool `json:"allowed"`
	Limit     int  `json:"limit"`
	Remaining int  `json:"remaining"`
}

// CheckMessageRateLimit compares the sender's trailing-60s message count
// against the configured cap. The caller supplies a freshly queried count;
// the predicate keeps no state. A non-positive cap disables the limit.
func CheckMessageRateLimit(senderID string, recentMessageCount int, s domain.MessagingSettings) RateLimitResult {
	limit := s.RateLimitMessagesPerMinute
	if limit <= 0 {
		return RateLimitResult{Allowed: true, Limit: 0, Remaining: -1}
	}

	remaining := limit - recentMessageCount
	if remaining < 0 {
		remaining = 0
	}

	return RateLimitResult{
		Allowed:   recentMessageCount < limit,
		Limit:     limit,
		Remaining: remaining,
	}
}

func roleIn(role string, allowed []string) bool {
	if role == "" {
		return false
	}
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
