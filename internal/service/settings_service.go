package service

import (
	"sync"
	"time"

	"github.com/nexus-org/nexus-backend/internal/domain"
	"github.com/nexus-org/nexus-backend/internal/repository"
)

// settingsCacheTTL keeps settings reads off the hot path without letting
// admin changes linger unseen for long.
const settingsCacheTTL = time.Minute

// SettingsService serves the typed org-wide messaging settings
type SettingsService interface {
	Get() (domain.MessagingSettings, error)
	Invalidate()
}

type settingsService struct {
	repo repository.SettingRepository

	mu       sync.RWMutex
	cached   *domain.MessagingSettings
	loadedAt time.Time
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(repo repository.SettingRepository) SettingsService {
	return &settingsService{repo: repo}
}

func (s *settingsService) Get() (domain.MessagingSettings, error) {
	s.mu.RLock()
	if s.cached != nil && time.Since(s.loadedAt) < settingsCacheTTL {
		cached := *s.cached
		s.mu.RUnlock()
		return cached, nil
	}
	s.mu.RUnlock()

	rows, err := s.repo.GetMessagingRows()
	if err != nil {
		// Serve stale settings over failing the request
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.cached != nil {
			return *s.cached, nil
		}
		return domain.MessagingSettings{}, err
	}

	settings := domain.ParseMessagingSettings(rows)

	s.mu.Lock()
	s.cached = &settings
	s.loadedAt = time.Now()
	s.mu.Unlock()

	return settings, nil
}

func (s *settingsService) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
