package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DirectKey returns the canonical ordered pair key for a DM between two
// users. Both orderings of the same pair yield the same key, so the
// unique index on conversations.direct_key dedups concurrent creates.
func DirectKey(a, b string) string {
	if strings.Compare(a, b) < 0 {
		return a + ":" + b
	}
	return b + ":" + a
}

// ConversationRepository conversation and participant data access
type ConversationRepository interface {
	FindOrCreateDirect(creatorID, otherID string) (*domain.Conversation, bool, error)
	CreateGroup(conv *domain.Conversation, participants []*domain.ConversationParticipant) error
	FindByID(id string) (*domain.Conversation, error)
	FindParticipant(conversationID, userID string) (*domain.ConversationParticipant, error)
	FindActiveParticipants(conversationID string) ([]*domain.ConversationParticipant, error)
	ListForUser(userID string, page, limit int) ([]*domain.Conversation, map[string]*domain.ConversationParticipant, int64, error)
	UpdateFields(conversationID string, updates map[string]interface{}) error
	UpdateParticipantRole(conversationID, userID, role string) error
	DeactivateParticipant(conversationID, userID string, leftAt time.Time) error
	Deactivate(conversationID string) error
	MarkRead(conversationID, userID, messageID string, at time.Time) error
	IncrementUnread(conversationID, senderID string, now time.Time) error
	SetLastMessage(conversationID, preview, senderID string, at time.Time) error
	SetMute(conversationID, userID string, muted bool, until *time.Time) error
	SumUnread(userID string) (int64, error)
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// FindOrCreateDirect returns the existing direct conversation between the
// two users or atomically creates one. The direct_key unique index makes
// concurrent calls converge on a single row; the loser of the insert race
// re-reads the winner's conversation.
func (r *conversationRepository) FindOrCreateDirect(creatorID, otherID string) (*domain.Conversation, bool, error) {
	key := DirectKey(creatorID, otherID)

	var existing domain.Conversation
	err := r.db.Where("direct_key = ?", key).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	conv := &domain.Conversation{
		ID:               uuid.New().String(),
		Type:             domain.ConversationTypeDirect,
		CreatorID:        creatorID,
		IsActive:         true,
		AllowReplies:     true,
		DirectKey:        &key,
		ParticipantCount: 2,
	}

	created := false
	txErr := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "direct_key"}},
			DoNothing: true,
		}).Create(conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race; the concurrent request created the row
			return tx.Where("direct_key = ?", key).First(conv).Error
		}

		created = true
		participants := []*domain.ConversationParticipant{
			{ConversationID: conv.ID, UserID: creatorID, Role: domain.ParticipantRoleOwner, IsActive: true},
			{ConversationID: conv.ID, UserID: otherID, Role: domain.ParticipantRoleMember, IsActive: true},
		}
		return tx.Create(&participants).Error
	})
	if txErr != nil {
		return nil, false, txErr
	}

	return conv, created, nil
}

// CreateGroup inserts the conversation with its full participant set in one
// transaction; a participant-insert failure rolls the conversation back so
// no orphaned conversation row survives.
func (r *conversationRepository) CreateGroup(conv *domain.Conversation, participants []*domain.ConversationParticipant) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		for _, p := range participants {
			p.ConversationID = conv.ID
		}
		return tx.Create(&participants).Error
	})
}

func (r *conversationRepository) FindByID(id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.db.Where("id = ?", id).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

// FindParticipant returns the user's active participant row, or
// ErrConversationNotFound — non-participants must not learn the
// conversation exists.
func (r *conversationRepository) FindParticipant(conversationID, userID string) (*domain.ConversationParticipant, error) {
	var p domain.ConversationParticipant
	err := r.db.Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrConversationNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *conversationRepository) FindActiveParticipants(conversationID string) ([]*domain.ConversationParticipant, error) {
	var participants []*domain.ConversationParticipant
	err := r.db.Where("conversation_id = ? AND is_active = ?", conversationID, true).
		Order("joined_at ASC").
		Find(&participants).Error
	return participants, err
}

// ListForUser returns the user's conversations ordered by most recent
// activity, along with the user's own participant row per conversation.
func (r *conversationRepository) ListForUser(userID string, page, limit int) ([]*domain.Conversation, map[string]*domain.ConversationParticipant, int64, error) {
	var parts []*domain.ConversationParticipant
	if err := r.db.Where("user_id = ? AND is_active = ?", userID, true).Find(&parts).Error; err != nil {
		return nil, nil, 0, err
	}

	own := make(map[string]*domain.ConversationParticipant, len(parts))
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		own[p.ConversationID] = p
		ids = append(ids, p.ConversationID)
	}
	if len(ids) == 0 {
		return nil, own, 0, nil
	}

	query := r.db.Model(&domain.Conversation{}).Where("id IN ?", ids)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, 0, err
	}

	var convs []*domain.Conversation
	offset := (page - 1) * limit
	err := query.
		Order("COALESCE(last_message_at, created_at) DESC").
		Offset(offset).Limit(limit).
		Find(&convs).Error
	if err != nil {
		return nil, nil, 0, err
	}

	return convs, own, total, nil
}

func (r *conversationRepository) UpdateFields(conversationID string, updates map[string]interface{}) error {
	return r.db.Model(&domain.Conversation{}).Where("id = ?", conversationID).Updates(updates).Error
}

func (r *conversationRepository) UpdateParticipantRole(conversationID, userID, role string) error {
	return r.db.Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
		Update("role", role).Error
}

// DeactivateParticipant marks a participant inactive, preserving history
func (r *conversationRepository) DeactivateParticipant(conversationID, userID string, leftAt time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.ConversationParticipant{}).
			Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
			Updates(map[string]interface{}{
				"is_active": false,
				"left_at":   leftAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return common.ErrConversationNotFound
		}
		return tx.Model(&domain.Conversation{}).
			Where("id = ?", conversationID).
			Update("participant_count", gorm.Expr("participant_count - 1")).Error
	})
}

func (r *conversationRepository) Deactivate(conversationID string) error {
	return r.db.Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		Update("is_active", false).Error
}

// MarkRead resets the unread counter and records the read marker. This is
// the only path that zeroes unread_count.
func (r *conversationRepository) MarkRead(conversationID, userID, messageID string, at time.Time) error {
	return r.db.Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
		Updates(map[string]interface{}{
			"unread_count":         0,
			"last_read_at":         at,
			"last_read_message_id": messageID,
		}).Error
}

// IncrementUnread bumps the unread counter for every other active,
// currently-unmuted participant in one atomic UPDATE.
func (r *conversationRepository) IncrementUnread(conversationID, senderID string, now time.Time) error {
	return r.db.Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id != ? AND is_active = ?", conversationID, senderID, true).
		Where("is_muted = ? OR (muted_until IS NOT NULL AND muted_until <= ?)", false, now).
		Update("unread_count", gorm.Expr("unread_count + 1")).Error
}

func (r *conversationRepository) SetLastMessage(conversationID, preview, senderID string, at time.Time) error {
	return r.db.Model(&domain.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_preview":   preview,
			"last_message_sender_id": senderID,
			"last_message_at":        at,
		}).Error
}

func (r *conversationRepository) SetMute(conversationID, userID string, muted bool, until *time.Time) error {
	res := r.db.Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ? AND is_active = ?", conversationID, userID, true).
		Updates(map[string]interface{}{
			"is_muted":    muted,
			"muted_until": until,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return common.ErrConversationNotFound
	}
	return nil
}

// SumUnread totals the user's unread counters across conversations
func (r *conversationRepository) SumUnread(userID string) (int64, error) {
	var total *int64
	err := r.db.Model(&domain.ConversationParticipant{}).
		Select("SUM(unread_count)").
		Where("user_id = ? AND is_active = ?", userID, true).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum unread: %w", err)
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
