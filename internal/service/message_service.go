package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/domain"
	"github.com/nexus-org/nexus-backend/internal/permission"
	"github.com/nexus-org/nexus-backend/internal/repository"
	"github.com/nexus-org/nexus-backend/pkg/cache"
	"github.com/nexus-org/nexus-backend/pkg/logger"
)

const (
	defaultPageSize = 30
	maxPageSize     = 50

	rateLimitWindow = time.Minute

	lastMessagePreviewLen = 120
)

// MessagePage is one page of backward-paginated history
type MessagePage struct {
	Messages   []*domain.MessageResponse `json:"messages"`
	Total      int64                     `json:"total"`
	HasMore    bool                      `json:"has_more"`
	NextCursor string                    `json:"next_cursor,omitempty"`
}

// MessageService business logic for message history and sends
type MessageService interface {
	List(conversationID, userID, cursor string, before *time.Time, limit int) (*MessagePage, error)
	Send(conversationID, userID string, req *domain.SendMessageRequest) (*domain.MessageResponse, error)
	Edit(conversationID, messageID, userID, content string) (*domain.MessageResponse, error)
	Delete(conversationID, messageID, userID string) error
	React(conversationID, messageID, userID, emoji string) ([]domain.ReactionView, error)
}

type messageService struct {
	messageRepo repository.MessageRepository
	convRepo    repository.ConversationRepository
	memberRepo  repository.MemberRepository
	settings    SettingsService
	cache       cache.Service
	events      EventPublisher
}

// NewMessageService creates a new MessageService
func NewMessageService(
	messageRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	memberRepo repository.MemberRepository,
	settings SettingsService,
	cacheSvc cache.Service,
	events EventPublisher,
) MessageService {
	if events == nil {
		events = noopPublisher{}
	}
	return &messageService{
		messageRepo: messageRepo,
		convRepo:    convRepo,
		memberRepo:  memberRepo,
		settings:    settings,
		cache:       cacheSvc,
		events:      events,
	}
}

// List serves backward cursor pagination: fetch newest-first strictly older
// than the cursor, over-fetch one row for hasMore, then reverse to
// chronological order so clients prepend pages to local history.
func (s *messageService) List(conversationID, userID, cursor string, before *time.Time, limit int) (*MessagePage, error) {
	if _, err := s.convRepo.FindParticipant(conversationID, userID); err != nil {
		return nil, err
	}

	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	// An opaque message-id cursor wins over an explicit timestamp
	if cursor != "" {
		cursorMsg, err := s.messageRepo.FindByID(cursor)
		if err != nil {
			return nil, fmt.Errorf("%w: bad cursor", common.ErrInvalidInput)
		}
		if cursorMsg.ConversationID != conversationID {
			return nil, fmt.Errorf("%w: cursor not in conversation", common.ErrInvalidInput)
		}
		before = &cursorMsg.CreatedAt
	}

	rows, err := s.messageRepo.FindPage(conversationID, before, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	nextCursor := ""
	if hasMore && len(rows) > 0 {
		// rows are newest-first; the oldest row anchors the next page
		nextCursor = rows[len(rows)-1].ID
	}

	// Reverse to chronological order
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	responses, err := s.enrich(rows, userID)
	if err != nil {
		return nil, err
	}

	total, err := s.messageRepo.CountByConversation(conversationID)
	if err != nil {
		return nil, err
	}

	return &MessagePage{
		Messages:   responses,
		Total:      total,
		HasMore:    hasMore,
		NextCursor: nextCursor,
	}, nil
}

func (s *messageService) Send(conversationID, userID string, req *domain.SendMessageRequest) (*domain.MessageResponse, error) {
	participant, err := s.convRepo.FindParticipant(conversationID, userID)
	if err != nil {
		return nil, err
	}
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.IsActive {
		return nil, common.ErrConversationNotFound
	}

	settings, err := s.settings.Get()
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, common.ErrMessagingDisabled
	}

	// Broadcast mode: plain members cannot reply
	if !conv.AllowReplies && participant.Role == domain.ParticipantRoleMember {
		return nil, common.ErrRepliesDisabled
	}

	content := strings.TrimSpace(req.Content)
	if content == "" && len(req.Attachments) == 0 {
		return nil, fmt.Errorf("%w: message needs content or attachments", common.ErrInvalidInput)
	}

	if len(req.Attachments) > 0 {
		if err := validateAttachments(req.Attachments, settings); err != nil {
			return nil, err
		}
	}

	var replyToID *string
	if req.ReplyToID != nil && *req.ReplyToID != "" {
		replied, err := s.messageRepo.FindByID(*req.ReplyToID)
		if err != nil || replied.ConversationID != conversationID {
			return nil, common.ErrInvalidReply
		}
		replyToID = req.ReplyToID
	}

	// Trailing-window count queried fresh per request; the predicate
	// itself is stateless
	recent, err := s.messageRepo.CountRecentBySender(userID, time.Now().Add(-rateLimitWindow))
	if err != nil {
		return nil, err
	}
	if res := permission.CheckMessageRateLimit(userID, int(recent), settings); !res.Allowed {
		return nil, common.ErrRateLimited
	}

	msgType := req.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}

	msg := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       &userID,
		Type:           msgType,
		Attachments:    req.Attachments,
		ReplyToID:      replyToID,
		Status:         domain.MessageStatusSent,
	}
	if content != "" {
		msg.Content = &content
	}

	if err := s.messageRepo.Create(msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	now := time.Now()
	if err := s.convRepo.IncrementUnread(conversationID, userID, now); err != nil {
		logger.WithModule("message").Error().Err(err).
			Str("conversation_id", conversationID).Msg("unread increment failed")
	}
	// The sender is caught up with their own message
	if err := s.convRepo.MarkRead(conversationID, userID, msg.ID, now); err != nil {
		logger.WithModule("message").Warn().Err(err).
			Str("conversation_id", conversationID).Msg("sender read marker update failed")
	}
	if err := s.convRepo.SetLastMessage(conversationID, previewOf(msg), userID, msg.CreatedAt); err != nil {
		logger.WithModule("message").Warn().Err(err).
			Str("conversation_id", conversationID).Msg("last message update failed")
	}

	responses, err := s.enrich([]*domain.Message{msg}, userID)
	if err != nil {
		return nil, err
	}
	response := responses[0]

	s.notifyParticipants(conversationID, userID, EventMessageCreated, response)

	return response, nil
}

// Edit changes message content; sender-only, and only inside the
// configured edit window.
func (s *messageService) Edit(conversationID, messageID, userID, content string) (*domain.MessageResponse, error) {
	if _, err := s.convRepo.FindParticipant(conversationID, userID); err != nil {
		return nil, err
	}

	msg, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return nil, err
	}
	if msg.ConversationID != conversationID || msg.IsDeleted {
		return nil, common.ErrMessageNotFound
	}
	if msg.SenderID == nil || *msg.SenderID != userID {
		return nil, common.ErrNotMessageSender
	}

	settings, err := s.settings.Get()
	if err != nil {
		return nil, err
	}
	window := time.Duration(settings.EditWindowMinutes) * time.Minute
	if time.Since(msg.CreatedAt) > window {
		return nil, common.ErrEditWindowExpired
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: edited content cannot be empty", common.ErrInvalidInput)
	}

	now := time.Now()
	if err := s.messageRepo.MarkEdited(messageID, content, now); err != nil {
		return nil, err
	}

	msg.Content = &content
	msg.IsEdited = true
	msg.EditedAt = &now

	responses, err := s.enrich([]*domain.Message{msg}, userID)
	if err != nil {
		return nil, err
	}

	s.notifyParticipants(conversationID, userID, EventMessageEdited, responses[0])
	return responses[0], nil
}

// Delete soft-deletes: content cleared, row kept for ordering and audit.
// The sender may always delete their own message; a group owner or admin
// may remove any.
func (s *messageService) Delete(conversationID, messageID, userID string) error {
	participant, err := s.convRepo.FindParticipant(conversationID, userID)
	if err != nil {
		return err
	}

	msg, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return err
	}
	if msg.ConversationID != conversationID {
		return common.ErrMessageNotFound
	}

	isSender := msg.SenderID != nil && *msg.SenderID == userID
	isModerator := participant.Role == domain.ParticipantRoleOwner || participant.Role == domain.ParticipantRoleAdmin
	if !isSender && !isModerator {
		return common.ErrNotMessageSender
	}

	if err := s.messageRepo.SoftDelete(messageID, time.Now()); err != nil {
		return err
	}

	s.notifyParticipants(conversationID, userID, EventMessageDeleted, map[string]string{
		"conversation_id": conversationID,
		"message_id":      messageID,
	})
	return nil
}

// React toggles the requester in the emoji's reactor list and returns the
// recomputed per-emoji aggregates.
func (s *messageService) React(conversationID, messageID, userID, emoji string) ([]domain.ReactionView, error) {
	if _, err := s.convRepo.FindParticipant(conversationID, userID); err != nil {
		return nil, err
	}

	msg, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return nil, err
	}
	if msg.ConversationID != conversationID || msg.IsDeleted {
		return nil, common.ErrMessageNotFound
	}

	reactions := msg.ToggleReaction(emoji, userID)
	if err := s.messageRepo.SaveMetadata(msg); err != nil {
		return nil, err
	}

	return domain.BuildReactionViews(reactions, userID), nil
}

// enrich attaches sender profiles, reply previews and rehydrated reactions
func (s *messageService) enrich(messages []*domain.Message, requesterID string) ([]*domain.MessageResponse, error) {
	senderIDs := make([]string, 0, len(messages))
	replyIDs := make([]string, 0)
	for _, m := range messages {
		if m.SenderID != nil {
			senderIDs = append(senderIDs, *m.SenderID)
		}
		if m.ReplyToID != nil {
			replyIDs = append(replyIDs, *m.ReplyToID)
		}
	}

	replied := make(map[string]*domain.Message)
	if len(replyIDs) > 0 {
		rows, err := s.messageRepo.FindByIDs(replyIDs)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			replied[row.ID] = row
			if row.SenderID != nil {
				senderIDs = append(senderIDs, *row.SenderID)
			}
		}
	}

	profiles, err := s.memberRepo.FindProfiles(senderIDs)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.MessageResponse, 0, len(messages))
	for _, m := range messages {
		resp := m.ToResponse()
		if m.SenderID != nil {
			resp.Sender = profiles[*m.SenderID]
		}
		if m.ReplyToID != nil {
			if orig, ok := replied[*m.ReplyToID]; ok {
				preview := &domain.ReplyPreview{
					ID:        orig.ID,
					SenderID:  orig.SenderID,
					Content:   orig.Content,
					IsDeleted: orig.IsDeleted,
				}
				if orig.SenderID != nil {
					if p, ok := profiles[*orig.SenderID]; ok {
						preview.SenderName = p.DisplayName
					}
				}
				resp.ReplyTo = preview
			}
		}
		if reactions := m.Reactions(); len(reactions) > 0 {
			resp.Reactions = domain.BuildReactionViews(reactions, requesterID)
		}
		responses = append(responses, resp)
	}

	return responses, nil
}

// notifyParticipants hands the event to the delivery layer and drops the
// recipients' cached unread totals.
func (s *messageService) notifyParticipants(conversationID, senderID, eventType string, payload interface{}) {
	participants, err := s.convRepo.FindActiveParticipants(conversationID)
	if err != nil {
		logger.WithModule("message").Warn().Err(err).Msg("participant lookup for notify failed")
		return
	}

	recipients := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.UserID != senderID {
			recipients = append(recipients, p.UserID)
		}
	}
	if len(recipients) == 0 {
		return
	}

	_ = s.cache.InvalidateUnreadTotal(context.Background(), recipients...)
	s.events.PublishToUsers(recipients, eventType, payload)
}

func validateAttachments(attachments domain.AttachmentList, settings domain.MessagingSettings) error {
	if !settings.AttachmentsEnabled {
		return common.ErrAttachmentsDisabled
	}
	maxBytes := int64(settings.MaxAttachmentSizeMB) * 1024 * 1024
	for _, a := range attachments {
		if a.URL == "" {
			return fmt.Errorf("%w: attachment url required", common.ErrInvalidInput)
		}
		if maxBytes > 0 && a.SizeBytes > maxBytes {
			return common.ErrAttachmentRejected
		}
		if len(settings.AllowedAttachmentTypes) > 0 && !typeAllowed(a.MimeType, settings.AllowedAttachmentTypes) {
			return common.ErrAttachmentRejected
		}
	}
	return nil
}

func typeAllowed(mimeType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.EqualFold(t, mimeType) {
			return true
		}
	}
	return false
}

func previewOf(msg *domain.Message) string {
	if msg.Content != nil {
		content := *msg.Content
		if len(content) > lastMessagePreviewLen {
			// Back off to a rune boundary so the cut never splits a
			// multi-byte character.
			cut := lastMessagePreviewLen
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			return content[:cut]
		}
		return content
	}
	if len(msg.Attachments) > 0 {
		return "[attachment]"
	}
	return ""
}
