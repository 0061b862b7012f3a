package repository

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/domain"
	"gorm.io/gorm"
)

func strptr(s string) *string { return &s }

// seedMessages inserts n messages with strictly increasing timestamps so
// pagination ordering is deterministic.
func seedMessages(t *testing.T, db *gorm.DB, conversationID string, n int) []string {
	t.Helper()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("msg-%03d", i)
		msg := &domain.Message{
			ID:             id,
			ConversationID: conversationID,
			SenderID:       strptr("sender"),
			Type:           domain.MessageTypeText,
			Content:        strptr(fmt.Sprintf("message %d", i)),
			Status:         domain.MessageStatusSent,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(msg).Error; err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestFindPageNoGapsNoDuplicates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	const total = 75
	seedMessages(t, db, "conv-1", total)

	for _, pageSize := range []int{1, 7, 30, 50} {
		seen := make(map[string]bool, total)
		var before *time.Time
		pages := 0

		for {
			// Over-fetch one row the way the service computes hasMore
			rows, err := repo.FindPage("conv-1", before, pageSize+1)
			if err != nil {
				t.Fatalf("page size %d: %v", pageSize, err)
			}
			hasMore := len(rows) > pageSize
			if hasMore {
				rows = rows[:pageSize]
			}

			for i, m := range rows {
				if seen[m.ID] {
					t.Fatalf("page size %d: duplicate message %s", pageSize, m.ID)
				}
				seen[m.ID] = true
				if i > 0 && !rows[i].CreatedAt.Before(rows[i-1].CreatedAt) {
					t.Fatalf("page size %d: rows not newest-first", pageSize)
				}
			}

			if !hasMore {
				break
			}
			oldest := rows[len(rows)-1].CreatedAt
			before = &oldest
			pages++
			if pages > total {
				t.Fatalf("page size %d: pagination did not terminate", pageSize)
			}
		}

		if len(seen) != total {
			t.Errorf("page size %d: expected %d distinct messages, got %d", pageSize, total, len(seen))
		}
	}
}

func TestFindPageBeforeFilterIsStrict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	seedMessages(t, db, "conv-1", 5)

	pivot, err := repo.FindByID("msg-002")
	if err != nil {
		t.Fatalf("find pivot: %v", err)
	}

	rows, err := repo.FindPage("conv-1", &pivot.CreatedAt, 10)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows strictly before pivot, got %d", len(rows))
	}
	for _, m := range rows {
		if !m.CreatedAt.Before(pivot.CreatedAt) {
			t.Errorf("message %s not strictly before pivot", m.ID)
		}
	}
}

func TestCountRecentBySender(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)

	now := time.Now()
	for i := 0; i < 4; i++ {
		db.Create(&domain.Message{
			ID:             fmt.Sprintf("recent-%d", i),
			ConversationID: "conv-1",
			SenderID:       strptr("alice"),
			Type:           domain.MessageTypeText,
			Content:        strptr("hi"),
			Status:         domain.MessageStatusSent,
			CreatedAt:      now.Add(-10 * time.Second),
		})
	}
	// Outside the window
	db.Create(&domain.Message{
		ID:             "old-1",
		ConversationID: "conv-1",
		SenderID:       strptr("alice"),
		Type:           domain.MessageTypeText,
		Content:        strptr("old"),
		Status:         domain.MessageStatusSent,
		CreatedAt:      now.Add(-2 * time.Minute),
	})
	// Different sender
	db.Create(&domain.Message{
		ID:             "other-1",
		ConversationID: "conv-1",
		SenderID:       strptr("bob"),
		Type:           domain.MessageTypeText,
		Content:        strptr("yo"),
		Status:         domain.MessageStatusSent,
		CreatedAt:      now.Add(-5 * time.Second),
	})

	count, err := repo.CountRecentBySender("alice", now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 recent messages, got %d", count)
	}
}

func TestSoftDeletePreservesRow(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	seedMessages(t, db, "conv-1", 3)

	if err := repo.SoftDelete("msg-001", time.Now()); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	msg, err := repo.FindByID("msg-001")
	if err != nil {
		t.Fatalf("deleted message must remain readable: %v", err)
	}
	if !msg.IsDeleted || msg.DeletedAt == nil {
		t.Error("deleted flags not set")
	}
	if msg.Content != nil {
		t.Error("content must be cleared")
	}

	// Ordering continuity: the row still shows up in pages
	rows, err := repo.FindPage("conv-1", nil, 10)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected 3 rows including the deleted one, got %d", len(rows))
	}
}

func TestFindByIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)

	_, err := repo.FindByID("nope")
	if !errors.Is(err, common.ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestSaveMetadataRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db)
	seedMessages(t, db, "conv-1", 1)

	msg, err := repo.FindByID("msg-000")
	if err != nil {
		t.Fatalf("find: %v", err)
	}

	msg.ToggleReaction("👍", "alice")
	msg.ToggleReaction("👍", "bob")
	if err := repo.SaveMetadata(msg); err != nil {
		t.Fatalf("save metadata: %v", err)
	}

	reloaded, err := repo.FindByID("msg-000")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	reactions := reloaded.Reactions()
	if len(reactions["👍"]) != 2 {
		t.Fatalf("expected 2 reactors, got %v", reactions)
	}

	// Toggling again removes the reactor
	reloaded.ToggleReaction("👍", "alice")
	if err := repo.SaveMetadata(reloaded); err != nil {
		t.Fatalf("save metadata: %v", err)
	}
	final, _ := repo.FindByID("msg-000")
	if users := final.Reactions()["👍"]; len(users) != 1 || users[0] != "bob" {
		t.Errorf("expected only bob left, got %v", final.Reactions())
	}
}
