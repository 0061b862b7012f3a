package repository

import (
	"errors"

	"github.com/nexus-org/nexus-backend/internal/domain"
	"gorm.io/gorm"
)

// SettingRepository org_settings table access
type SettingRepository interface {
	GetMessagingRows() ([]domain.OrgSetting, error)
	Get(key string) (string, error)
	Set(key, value, updatedBy string) error
}

type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

// GetMessagingRows returns every messaging_* setting row. The underscore
// in the prefix is a LIKE wildcard, so the pattern escapes it; the ESCAPE
// clause is spelled out because SQLite has no default escape character.
func (r *settingRepository) GetMessagingRows() ([]domain.OrgSetting, error) {
	var rows []domain.OrgSetting
	err := r.db.Where("`key` LIKE ? ESCAPE '!'", "messaging!_%").Find(&rows).Error
	return rows, err
}

// Get returns a single setting value; empty string when absent
func (r *settingRepository) Get(key string) (string, error) {
	var row domain.OrgSetting
	err := r.db.Where("`key` = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return row.Value, nil
}

// Set upserts a setting value
func (r *settingRepository) Set(key, value, updatedBy string) error {
	row := domain.OrgSetting{
		Key:       key,
		Value:     value,
		UpdatedBy: updatedBy,
	}
	return r.db.Save(&row).Error
}
