package repository

import (
	"errors"
	"time"

	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/domain"
	"gorm.io/gorm"
)

// MessageRepository append-only message history access
type MessageRepository interface {
	Create(msg *domain.Message) error
	FindByID(id string) (*domain.Message, error)
	// FindPage fetches up to limit messages newest-first, strictly older
	// than before (all messages when before is nil). Callers over-fetch
	// one row to compute hasMore.
	FindPage(conversationID string, before *time.Time, limit int) ([]*domain.Message, error)
	FindByIDs(ids []string) ([]*domain.Message, error)
	CountByConversation(conversationID string) (int64, error)
	CountRecentBySender(senderID string, since time.Time) (int64, error)
	MarkEdited(id, content string, at time.Time) error
	SoftDelete(id string, at time.Time) error
	SaveMetadata(msg *domain.Message) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(msg *domain.Message) error {
	return r.db.Create(msg).Error
}

func (r *messageRepository) FindByID(id string) (*domain.Message, error) {
	var msg domain.Message
	err := r.db.Where("id = ?", id).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrMessageNotFound
		}
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) FindPage(conversationID string, before *time.Time, limit int) ([]*domain.Message, error) {
	query := r.db.Where("conversation_id = ?", conversationID)
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	var messages []*domain.Message
	err := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *messageRepository) FindByIDs(ids []string) ([]*domain.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var messages []*domain.Message
	err := r.db.Where("id IN ?", ids).Find(&messages).Error
	return messages, err
}

func (r *messageRepository) CountByConversation(conversationID string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

// CountRecentBySender counts non-system sends in the trailing window for
// the rate-limit predicate. Freshly queried per request; the window has no
// dedicated counter structure.
func (r *messageRepository) CountRecentBySender(senderID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Message{}).
		Where("sender_id = ? AND created_at >= ?", senderID, since).
		Count(&count).Error
	return count, err
}

func (r *messageRepository) MarkEdited(id, content string, at time.Time) error {
	return r.db.Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
			"edited_at": at,
		}).Error
}

// SoftDelete clears content but keeps the row for ordering and audit
func (r *messageRepository) SoftDelete(id string, at time.Time) error {
	return r.db.Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":    nil,
			"is_deleted": true,
			"deleted_at": at,
		}).Error
}

// SaveMetadata persists only the metadata column (reaction updates)
func (r *messageRepository) SaveMetadata(msg *domain.Message) error {
	return r.db.Model(&domain.Message{}).
		Where("id = ?", msg.ID).
		Update("metadata", msg.Metadata).Error
}
