package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/domain"
	"github.com/nexus-org/nexus-backend/internal/permission"
	"github.com/nexus-org/nexus-backend/internal/repository"
	"github.com/nexus-org/nexus-backend/pkg/cache"
	"github.com/nexus-org/nexus-backend/pkg/logger"
)

// ConversationService business logic for conversation lifecycle
type ConversationService interface {
	List(userID string, page, limit int) ([]*domain.ConversationResponse, *common.Meta, error)
	Create(requesterID string, req *domain.CreateConversationRequest) (*domain.ConversationResponse, error)
	Get(conversationID, userID string) (*domain.ConversationResponse, error)
	UpdateSettings(conversationID, userID string, req *domain.UpdateConversationRequest) (*domain.ConversationResponse, error)
	Leave(conversationID, userID string) error
	MarkRead(conversationID, userID, messageID string) error
	SetMute(conversationID, userID string, muted bool, until *time.Time) error
	UpdateParticipantRole(conversationID, requesterID, targetID, role string) error
	UnreadTotal(userID string) (int64, error)
}

type conversationService struct {
	convRepo    repository.ConversationRepository
	messageRepo repository.MessageRepository
	memberRepo  repository.MemberRepository
	settings    SettingsService
	cache       cache.Service
	events      EventPublisher
}

// NewConversationService creates a new ConversationService
func NewConversationService(
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	memberRepo repository.MemberRepository,
	settings SettingsService,
	cacheSvc cache.Service,
	events EventPublisher,
) ConversationService {
	if events == nil {
		events = noopPublisher{}
	}
	return &conversationService{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		memberRepo:  memberRepo,
		settings:    settings,
		cache:       cacheSvc,
		events:      events,
	}
}

// List returns the requester's conversations ordered by recent activity,
// each annotated with unread count, mute state and — for DMs — the
// counterpart's profile.
func (s *conversationService) List(userID string, page, limit int) ([]*domain.ConversationResponse, *common.Meta, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 50 {
		limit = 50
	}

	convs, own, total, err := s.convRepo.ListForUser(userID, page, limit)
	if err != nil {
		return nil, nil, err
	}

	responses := make([]*domain.ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		resp := conv.ToResponse(own[conv.ID])
		if conv.Type == domain.ConversationTypeDirect {
			if err := s.attachOtherParticipant(conv, userID, resp); err != nil {
				logger.WithModule("conversation").Warn().Err(err).
					Str("conversation_id", conv.ID).Msg("failed to resolve DM counterpart")
			}
		}
		responses = append(responses, resp)
	}

	return responses, common.NewMeta(page, limit, total), nil
}

func (s *conversationService) Create(requesterID string, req *domain.CreateConversationRequest) (*domain.ConversationResponse, error) {
	settings, err := s.settings.Get()
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, common.ErrMessagingDisabled
	}

	requester, err := s.memberRepo.FindByID(requesterID)
	if err != nil {
		return nil, err
	}

	switch req.Type {
	case domain.ConversationTypeDirect:
		return s.createDirect(requester, req, settings)
	case domain.ConversationTypeGroup:
		return s.createGroup(requester, req, settings)
	default:
		return nil, common.ErrInvalidInput
	}
}

func (s *conversationService) createDirect(requester *domain.Member, req *domain.CreateConversationRequest, settings domain.MessagingSettings) (*domain.ConversationResponse, error) {
	if len(req.ParticipantIDs) != 1 {
		return nil, fmt.Errorf("%w: a direct conversation takes exactly one participant", common.ErrInvalidInput)
	}
	recipientID := req.ParticipantIDs[0]
	if recipientID == requester.ID {
		return nil, fmt.Errorf("%w: cannot start a conversation with yourself", common.ErrInvalidInput)
	}

	if !permission.CanInitiateDMs(requester.MembershipRole, requester.StaffRole, settings) {
		return nil, common.ErrForbidden
	}

	recipient, err := s.memberRepo.FindByID(recipientID)
	if err != nil {
		return nil, err
	}

	msgCtx, err := s.buildMessageContext(requester, recipient)
	if err != nil {
		return nil, err
	}
	if !permission.CanMessageUser(msgCtx, settings) {
		return nil, common.ErrForbidden
	}

	conv, created, err := s.convRepo.FindOrCreateDirect(requester.ID, recipient.ID)
	if err != nil {
		return nil, err
	}
	if created {
		logger.WithModule("conversation").Info().
			Str("conversation_id", conv.ID).
			Str("creator_id", requester.ID).
			Msg("direct conversation created")
	}

	return s.buildDetail(conv, requester.ID)
}

func (s *conversationService) createGroup(requester *domain.Member, req *domain.CreateConversationRequest, settings domain.MessagingSettings) (*domain.ConversationResponse, error) {
	if !permission.CanCreateGroupChats(requester.MembershipRole, requester.StaffRole, settings) {
		return nil, common.ErrForbidden
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, fmt.Errorf("%w: group name required", common.ErrInvalidInput)
	}

	memberIDs := dedupe(req.ParticipantIDs, requester.ID)
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("%w: a group needs at least one other participant", common.ErrInvalidInput)
	}
	// Room for the creator inside the cap
	if len(memberIDs) > settings.MaxGroupParticipants-1 {
		return nil, common.ErrGroupTooLarge
	}

	ok, err := s.memberRepo.AllActive(memberIDs)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrMemberNotFound
	}

	conv := &domain.Conversation{
		ID:               uuid.New().String(),
		Type:             domain.ConversationTypeGroup,
		Name:             strings.TrimSpace(req.Name),
		Description:      req.Description,
		AvatarURL:        req.AvatarURL,
		CreatorID:        requester.ID,
		IsActive:         true,
		AllowReplies:     true,
		ParticipantCount: len(memberIDs) + 1,
	}

	participants := make([]*domain.ConversationParticipant, 0, len(memberIDs)+1)
	participants = append(participants, &domain.ConversationParticipant{
		UserID: requester.ID, Role: domain.ParticipantRoleOwner, IsActive: true,
	})
	for _, id := range memberIDs {
		participants = append(participants, &domain.ConversationParticipant{
			UserID: id, Role: domain.ParticipantRoleMember, IsActive: true,
		})
	}

	if err := s.convRepo.CreateGroup(conv, participants); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	s.appendSystemMessage(conv, fmt.Sprintf("%s created the group", requester.DisplayName))

	logger.WithModule("conversation").Info().
		Str("conversation_id", conv.ID).
		Str("creator_id", requester.ID).
		Int("participants", conv.ParticipantCount).
		Msg("group conversation created")

	return s.buildDetail(conv, requester.ID)
}

// Get returns the conversation with its full active roster. Non-participants
// get not-found, never forbidden.
func (s *conversationService) Get(conversationID, userID string) (*domain.ConversationResponse, error) {
	if _, err := s.convRepo.FindParticipant(conversationID, userID); err != nil {
		return nil, err
	}
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(conv, userID)
}

func (s *conversationService) UpdateSettings(conversationID, userID string, req *domain.UpdateConversationRequest) (*domain.ConversationResponse, error) {
	participant, err := s.convRepo.FindParticipant(conversationID, userID)
	if err != nil {
		return nil, err
	}
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Type != domain.ConversationTypeGroup {
		return nil, fmt.Errorf("%w: only group conversations have settings", common.ErrInvalidInput)
	}
	if participant.Role != domain.ParticipantRoleOwner && participant.Role != domain.ParticipantRoleAdmin {
		return nil, common.ErrForbidden
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, fmt.Errorf("%w: group name cannot be empty", common.ErrInvalidInput)
		}
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if req.AllowReplies != nil {
		updates["allow_replies"] = *req.AllowReplies
	}

	if len(updates) > 0 {
		if err := s.convRepo.UpdateFields(conversationID, updates); err != nil {
			return nil, err
		}
	}

	conv, err = s.convRepo.FindByID(conversationID)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(conv, userID)
}

// Leave marks the requester inactive. For groups, ownership transfers
// before the leaver goes inactive so an active owner always remains; a
// group with nobody left is deactivated.
func (s *conversationService) Leave(conversationID, userID string) error {
	participant, err := s.convRepo.FindParticipant(conversationID, userID)
	if err != nil {
		return err
	}
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		return err
	}

	now := time.Now()

	if conv.Type == domain.ConversationTypeDirect {
		return s.convRepo.DeactivateParticipant(conversationID, userID, now)
	}

	if participant.Role == domain.ParticipantRoleOwner {
		if err := s.transferOwnership(conv, userID); err != nil {
			return err
		}
	}

	if err := s.convRepo.DeactivateParticipant(conversationID, userID, now); err != nil {
		return err
	}

	leaver, memberErr := s.memberRepo.FindByID(userID)
	name := userID
	if memberErr == nil {
		name = leaver.DisplayName
	}
	s.appendSystemMessage(conv, fmt.Sprintf("%s left the conversation", name))

	return nil
}

// transferOwnership promotes an active admin, falling back to any active
// member; with no candidates the conversation itself is deactivated.
func (s *conversationService) transferOwnership(conv *domain.Conversation, leavingOwnerID string) error {
	participants, err := s.convRepo.FindActiveParticipants(conv.ID)
	if err != nil {
		return err
	}

	var candidate *domain.ConversationParticipant
	for _, p := range participants {
		if p.UserID == leavingOwnerID {
			continue
		}
		if p.Role == domain.ParticipantRoleAdmin {
			candidate = p
			break
		}
		if candidate == nil {
			candidate = p
		}
	}

	if candidate == nil {
		return s.convRepo.Deactivate(conv.ID)
	}

	if err := s.convRepo.UpdateParticipantRole(conv.ID, candidate.UserID, domain.ParticipantRoleOwner); err != nil {
		return err
	}
	// Demote the leaver so exactly one owner row exists at any point
	if err := s.convRepo.UpdateParticipantRole(conv.ID, leavingOwnerID, domain.ParticipantRoleMember); err != nil {
		return err
	}

	logger.WithModule("conversation").Info().
		Str("conversation_id", conv.ID).
		Str("from", leavingOwnerID).
		Str("to", candidate.UserID).
		Msg("group ownership transferred")

	return nil
}

// MarkRead zeroes the requester's unread counter at a specific message.
// This is the only operation that resets unread state.
func (s *conversationService) MarkRead(conversationID, userID, messageID string) error {
	if _, err := s.convRepo.FindParticipant(conversationID, userID); err != nil {
		return err
	}
	msg, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return err
	}
	if msg.ConversationID != conversationID {
		return fmt.Errorf("%w: message not in conversation", common.ErrInvalidInput)
	}

	if err := s.convRepo.MarkRead(conversationID, userID, messageID, time.Now()); err != nil {
		return err
	}

	_ = s.cache.InvalidateUnreadTotal(context.Background(), userID)
	return nil
}

func (s *conversationService) SetMute(conversationID, userID string, muted bool, until *time.Time) error {
	return s.convRepo.SetMute(conversationID, userID, muted, until)
}

// UpdateParticipantRole promotes or demotes a group participant between
// admin and member. Owner-only; the owner role moves via Leave, never here.
func (s *conversationService) UpdateParticipantRole(conversationID, requesterID, targetID, role string) error {
	requester, err := s.convRepo.FindParticipant(conversationID, requesterID)
	if err != nil {
		return err
	}
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		return err
	}
	if conv.Type != domain.ConversationTypeGroup {
		return fmt.Errorf("%w: only group conversations have roles", common.ErrInvalidInput)
	}
	if requester.Role != domain.ParticipantRoleOwner {
		return common.ErrForbidden
	}
	if role != domain.ParticipantRoleAdmin && role != domain.ParticipantRoleMember {
		return common.ErrInvalidInput
	}
	target, err := s.convRepo.FindParticipant(conversationID, targetID)
	if err != nil {
		return err
	}
	if target.Role == domain.ParticipantRoleOwner {
		return common.ErrForbidden
	}
	return s.convRepo.UpdateParticipantRole(conversationID, targetID, role)
}

// UnreadTotal returns the requester's total unread count, cached briefly
// to keep the 30-second client poll cheap.
func (s *conversationService) UnreadTotal(userID string) (int64, error) {
	ctx := context.Background()
	if total, err := s.cache.GetUnreadTotal(ctx, userID); err == nil {
		return total, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		logger.WithModule("conversation").Warn().Err(err).Msg("unread cache read failed")
	}

	total, err := s.convRepo.SumUnread(userID)
	if err != nil {
		return 0, err
	}
	_ = s.cache.SetUnreadTotal(ctx, userID, total)
	return total, nil
}

// buildDetail assembles the full response: roster with profiles and, for
// DMs, the counterpart pointer.
func (s *conversationService) buildDetail(conv *domain.Conversation, userID string) (*domain.ConversationResponse, error) {
	participants, err := s.convRepo.FindActiveParticipants(conv.ID)
	if err != nil {
		return nil, err
	}

	var own *domain.ConversationParticipant
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
		if p.UserID == userID {
			own = p
		}
	}

	profiles, err := s.memberRepo.FindProfiles(ids)
	if err != nil {
		return nil, err
	}

	resp := conv.ToResponse(own)
	resp.Participants = make([]*domain.ParticipantView, 0, len(participants))
	for _, p := range participants {
		resp.Participants = append(resp.Participants, &domain.ParticipantView{
			UserID:   p.UserID,
			Role:     p.Role,
			IsMuted:  p.MutedNow(time.Now()),
			JoinedAt: p.JoinedAt,
			Profile:  profiles[p.UserID],
		})
		if conv.Type == domain.ConversationTypeDirect && p.UserID != userID {
			resp.OtherParticipant = profiles[p.UserID]
		}
	}

	return resp, nil
}

// attachOtherParticipant fills the DM counterpart for list entries
func (s *conversationService) attachOtherParticipant(conv *domain.Conversation, userID string, resp *domain.ConversationResponse) error {
	participants, err := s.convRepo.FindActiveParticipants(conv.ID)
	if err != nil {
		return err
	}
	for _, p := range participants {
		if p.UserID == userID {
			continue
		}
		profiles, err := s.memberRepo.FindProfiles([]string{p.UserID})
		if err != nil {
			return err
		}
		resp.OtherParticipant = profiles[p.UserID]
		return nil
	}
	return nil
}

// buildMessageContext resolves the relationship data CanMessageUser needs
func (s *conversationService) buildMessageContext(sender, recipient *domain.Member) (permission.MessageUserContext, error) {
	ctx := permission.MessageUserContext{
		SenderID:            sender.ID,
		RecipientID:         recipient.ID,
		SenderRole:          sender.MembershipRole,
		SenderStaffRole:     sender.StaffRole,
		RecipientRole:       recipient.MembershipRole,
		SenderReferrerID:    sender.ReferrerID,
		RecipientReferrerID: recipient.ReferrerID,
		SenderGroupID:       sender.GroupID,
		RecipientGroupID:    recipient.GroupID,
		SenderLedGroupID:    sender.LedGroupID,
	}

	count, err := s.memberRepo.CountDirectReferrals(sender.ID)
	if err != nil {
		return ctx, err
	}
	ctx.SenderDirectReferrals = int(count)

	// The subtree walk is only meaningful (and only paid for) at
	// regional-leader tier and above
	if domain.RoleRank(sender.MembershipRole) >= domain.RoleRank(domain.RoleRegionalLeader) {
		inSubtree, err := s.memberRepo.IsInReferralSubtree(sender.ID, recipient.ID)
		if err != nil {
			return ctx, err
		}
		ctx.RecipientInSenderSubtree = inSubtree
	}

	return ctx, nil
}

// appendSystemMessage records a conversation event; failures are logged,
// not surfaced, because the triggering operation already succeeded.
func (s *conversationService) appendSystemMessage(conv *domain.Conversation, content string) {
	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       nil,
		Type:           domain.MessageTypeSystem,
		Content:        &content,
		Status:         domain.MessageStatusSent,
	}
	if err := s.messageRepo.Create(msg); err != nil {
		logger.WithModule("conversation").Error().Err(err).
			Str("conversation_id", conv.ID).Msg("failed to append system message")
		return
	}
	if err := s.convRepo.SetLastMessage(conv.ID, content, "", msg.CreatedAt); err != nil {
		logger.WithModule("conversation").Warn().Err(err).
			Str("conversation_id", conv.ID).Msg("failed to update last message")
	}
}

// dedupe removes duplicates and the excluded id while preserving order
func dedupe(ids []string, exclude string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == exclude || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
