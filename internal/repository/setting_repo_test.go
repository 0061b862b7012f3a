package repository

import (
	"testing"

	"github.com/nexus-org/nexus-backend/internal/domain"
)

func TestGetMessagingRowsFiltersByPrefix(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingRepository(db)

	if err := repo.Set("messaging_enabled", "false", "admin-1"); err != nil {
		t.Fatalf("set messaging_enabled: %v", err)
	}
	if err := repo.Set("messaging_rate_limit_messages_per_minute", "10", "admin-1"); err != nil {
		t.Fatalf("set messaging_rate_limit_messages_per_minute: %v", err)
	}
	if err := repo.Set("site_name", "Nexus", "admin-1"); err != nil {
		t.Fatalf("set site_name: %v", err)
	}
	// "messagingXfoo" matches "messaging_%" only when the underscore acts
	// as a single-character wildcard, so it must not come back.
	if err := repo.Set("messagingXfoo", "1", "admin-1"); err != nil {
		t.Fatalf("set messagingXfoo: %v", err)
	}

	rows, err := repo.GetMessagingRows()
	if err != nil {
		t.Fatalf("GetMessagingRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 messaging rows, got %d: %+v", len(rows), rows)
	}
	got := map[string]string{}
	for _, row := range rows {
		got[row.Key] = row.Value
	}
	if got["messaging_enabled"] != "false" {
		t.Errorf("messaging_enabled = %q, want false", got["messaging_enabled"])
	}
	if got["messaging_rate_limit_messages_per_minute"] != "10" {
		t.Errorf("messaging_rate_limit_messages_per_minute = %q, want 10", got["messaging_rate_limit_messages_per_minute"])
	}

	settings := domain.ParseMessagingSettings(rows)
	if settings.Enabled {
		t.Error("expected messaging to be disabled after override")
	}
	if settings.RateLimitMessagesPerMinute != 10 {
		t.Errorf("RateLimitMessagesPerMinute = %d, want 10", settings.RateLimitMessagesPerMinute)
	}
}

func TestSettingGetAbsentKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSettingRepository(db)

	value, err := repo.Get("messaging_enabled")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if value != "" {
		t.Errorf("expected empty value for absent key, got %q", value)
	}
}
