package service

import (
	"errors"
	"testing"

	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/domain"
	"github.com/nexus-org/nexus-backend/internal/repository"
	"github.com/nexus-org/nexus-backend/pkg/cache"
	"github.com/nexus-org/nexus-backend/pkg/logger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// fakeSettings serves fixed settings without a backing table
type fakeSettings struct {
	settings domain.MessagingSettings
}

func (f *fakeSettings) Get() (domain.MessagingSettings, error) { return f.settings, nil }
func (f *fakeSettings) Invalidate()                            {}

type convFixture struct {
	db       *gorm.DB
	convRepo repository.ConversationRepository
	msgRepo  repository.MessageRepository
	settings *fakeSettings
	svc      ConversationService
}

func newConvFixture(t *testing.T) *convFixture {
	t.Helper()
	logger.Init("test")

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.Member{},
		&domain.Conversation{},
		&domain.ConversationParticipant{},
		&domain.Message{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	settings := &fakeSettings{settings: domain.DefaultMessagingSettings()}
	svc := NewConversationService(convRepo, msgRepo, memberRepo, settings, cache.NewService(nil), nil)

	return &convFixture{db: db, convRepo: convRepo, msgRepo: msgRepo, settings: settings, svc: svc}
}

func (f *convFixture) addMember(t *testing.T, id, role string) {
	t.Helper()
	m := &domain.Member{
		ID:             id,
		DisplayName:    id,
		Email:          id + "@example.org",
		MembershipRole: role,
		IsActive:       true,
	}
	if err := f.db.Create(m).Error; err != nil {
		t.Fatalf("seed member %s: %v", id, err)
	}
}

func (f *convFixture) createGroup(t *testing.T, creator string, members ...string) *domain.ConversationResponse {
	t.Helper()
	resp, err := f.svc.Create(creator, &domain.CreateConversationRequest{
		Type:           domain.ConversationTypeGroup,
		Name:           "circle",
		ParticipantIDs: members,
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	return resp
}

func TestCreateGroupAndSystemMessage(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "owner", domain.RoleGroupLeader)
	f.addMember(t, "m1", domain.RoleFullMember)
	f.addMember(t, "m2", domain.RoleFullMember)

	resp := f.createGroup(t, "owner", "m1", "m2")
	if resp.ParticipantCount != 3 {
		t.Errorf("expected 3 participants, got %d", resp.ParticipantCount)
	}
	if resp.MyRole != domain.ParticipantRoleOwner {
		t.Errorf("creator must be owner, got %s", resp.MyRole)
	}

	// Creation is announced with a system message
	var msgs []*domain.Message
	f.db.Where("conversation_id = ?", resp.ID).Find(&msgs)
	if len(msgs) != 1 || msgs[0].Type != domain.MessageTypeSystem {
		t.Fatalf("expected one system message, got %d", len(msgs))
	}
	if msgs[0].SenderID != nil {
		t.Error("system message must have nil sender")
	}
}

func TestCreateGroupOverCap(t *testing.T) {
	f := newConvFixture(t)
	f.settings.settings.MaxGroupParticipants = 3
	f.addMember(t, "owner", domain.RoleGroupLeader)
	for _, id := range []string{"a", "b", "c"} {
		f.addMember(t, id, domain.RoleFullMember)
	}

	_, err := f.svc.Create("owner", &domain.CreateConversationRequest{
		Type:           domain.ConversationTypeGroup,
		Name:           "too big",
		ParticipantIDs: []string{"a", "b", "c"},
	})
	if !errors.Is(err, common.ErrGroupTooLarge) {
		t.Errorf("expected ErrGroupTooLarge, got %v", err)
	}

	// Cap minus creator fits exactly
	if _, err := f.svc.Create("owner", &domain.CreateConversationRequest{
		Type:           domain.ConversationTypeGroup,
		Name:           "just right",
		ParticipantIDs: []string{"a", "b"},
	}); err != nil {
		t.Errorf("expected group at cap to succeed, got %v", err)
	}
}

func TestCreateWhenMessagingDisabled(t *testing.T) {
	f := newConvFixture(t)
	f.settings.settings.Enabled = false
	f.addMember(t, "owner", domain.RoleGroupLeader)

	_, err := f.svc.Create("owner", &domain.CreateConversationRequest{
		Type:           domain.ConversationTypeGroup,
		Name:           "nope",
		ParticipantIDs: []string{"a"},
	})
	if !errors.Is(err, common.ErrMessagingDisabled) {
		t.Errorf("expected ErrMessagingDisabled, got %v", err)
	}
}

func TestGetHidesExistenceFromOutsiders(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "owner", domain.RoleGroupLeader)
	f.addMember(t, "m1", domain.RoleFullMember)
	f.addMember(t, "outsider", domain.RoleFullMember)

	resp := f.createGroup(t, "owner", "m1")

	_, err := f.svc.Get(resp.ID, "outsider")
	if !errors.Is(err, common.ErrConversationNotFound) {
		t.Errorf("outsider must get not-found, got %v", err)
	}
}

func TestOwnerLeaveTransfersOwnership(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "owner", domain.RoleGroupLeader)
	f.addMember(t, "adm", domain.RoleFullMember)
	f.addMember(t, "mem", domain.RoleFullMember)

	resp := f.createGroup(t, "owner", "adm", "mem")
	if err := f.svc.UpdateParticipantRole(resp.ID, "owner", "adm", domain.ParticipantRoleAdmin); err != nil {
		t.Fatalf("promote admin: %v", err)
	}

	if err := f.svc.Leave(resp.ID, "owner"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	// Admin inherited ownership; exactly one active owner remains
	adm, err := f.convRepo.FindParticipant(resp.ID, "adm")
	if err != nil {
		t.Fatalf("find adm: %v", err)
	}
	if adm.Role != domain.ParticipantRoleOwner {
		t.Errorf("expected adm promoted to owner, got %s", adm.Role)
	}

	var owners int64
	f.db.Model(&domain.ConversationParticipant{}).
		Where("conversation_id = ? AND role = ? AND is_active = ?", resp.ID, domain.ParticipantRoleOwner, true).
		Count(&owners)
	if owners != 1 {
		t.Errorf("expected exactly one active owner, got %d", owners)
	}

	// Leaver is inactive and the conversation stays active
	if _, err := f.convRepo.FindParticipant(resp.ID, "owner"); err == nil {
		t.Error("leaver must be inactive")
	}
	conv, _ := f.convRepo.FindByID(resp.ID)
	if !conv.IsActive {
		t.Error("conversation must remain active")
	}
}

func TestOwnerLeaveFallsBackToMember(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "owner", domain.RoleGroupLeader)
	f.addMember(t, "mem", domain.RoleFullMember)

	resp := f.createGroup(t, "owner", "mem")
	if err := f.svc.Leave(resp.ID, "owner"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}

	mem, err := f.convRepo.FindParticipant(resp.ID, "mem")
	if err != nil {
		t.Fatalf("find mem: %v", err)
	}
	if mem.Role != domain.ParticipantRoleOwner {
		t.Errorf("expected member promoted to owner, got %s", mem.Role)
	}
}

func TestLastLeaverDeactivatesConversation(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "owner", domain.RoleGroupLeader)
	f.addMember(t, "mem", domain.RoleFullMember)

	resp := f.createGroup(t, "owner", "mem")
	if err := f.svc.Leave(resp.ID, "mem"); err != nil {
		t.Fatalf("member leave: %v", err)
	}
	if err := f.svc.Leave(resp.ID, "owner"); err != nil {
		t.Fatalf("owner leave: %v", err)
	}

	conv, err := f.convRepo.FindByID(resp.ID)
	if err != nil {
		t.Fatalf("find conversation: %v", err)
	}
	if conv.IsActive {
		t.Error("conversation with no active participants must deactivate")
	}
}

func TestUpdateSettingsRequiresRole(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "owner", domain.RoleGroupLeader)
	f.addMember(t, "mem", domain.RoleFullMember)

	resp := f.createGroup(t, "owner", "mem")

	name := "renamed"
	if _, err := f.svc.UpdateSettings(resp.ID, "mem", &domain.UpdateConversationRequest{Name: &name}); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("member rename must be forbidden, got %v", err)
	}

	updated, err := f.svc.UpdateSettings(resp.ID, "owner", &domain.UpdateConversationRequest{Name: &name})
	if err != nil {
		t.Fatalf("owner rename failed: %v", err)
	}
	if updated.Name != "renamed" {
		t.Errorf("expected renamed, got %s", updated.Name)
	}
}

func TestUpdateParticipantRoleRules(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "owner", domain.RoleGroupLeader)
	f.addMember(t, "adm", domain.RoleFullMember)
	f.addMember(t, "mem", domain.RoleFullMember)

	resp := f.createGroup(t, "owner", "adm", "mem")
	if err := f.svc.UpdateParticipantRole(resp.ID, "owner", "adm", domain.ParticipantRoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}

	// Only the owner manages roles
	if err := f.svc.UpdateParticipantRole(resp.ID, "adm", "mem", domain.ParticipantRoleAdmin); !errors.Is(err, common.ErrForbidden) {
		t.Errorf("admin must not manage roles, got %v", err)
	}
	// The owner role never moves through this operation
	if err := f.svc.UpdateParticipantRole(resp.ID, "owner", "mem", domain.ParticipantRoleOwner); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("owner role assignment must be rejected, got %v", err)
	}
}

func TestDirectConversationDedup(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "alice", domain.RoleFullMember)
	f.addMember(t, "bob", domain.RoleFullMember)
	// Direct referral so the pair may message
	f.db.Model(&domain.Member{}).Where("id = ?", "bob").Update("referrer_id", "alice")

	first, err := f.svc.Create("alice", &domain.CreateConversationRequest{
		Type:           domain.ConversationTypeDirect,
		ParticipantIDs: []string{"bob"},
	})
	if err != nil {
		t.Fatalf("first DM: %v", err)
	}

	second, err := f.svc.Create("bob", &domain.CreateConversationRequest{
		Type:           domain.ConversationTypeDirect,
		ParticipantIDs: []string{"alice"},
	})
	if err != nil {
		t.Fatalf("second DM: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("DM must dedupe: %s vs %s", first.ID, second.ID)
	}
	if second.OtherParticipant == nil || second.OtherParticipant.ID != "alice" {
		t.Error("DM detail must carry the counterpart profile")
	}
}

func TestDirectConversationPermissionDenied(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "alice", domain.RoleFullMember)
	f.addMember(t, "carol", domain.RoleFullMember)

	// No referral, group, or leadership relationship
	_, err := f.svc.Create("alice", &domain.CreateConversationRequest{
		Type:           domain.ConversationTypeDirect,
		ParticipantIDs: []string{"carol"},
	})
	if !errors.Is(err, common.ErrForbidden) {
		t.Errorf("unrelated members must be denied, got %v", err)
	}
}

func TestMarkReadRejectsForeignMessage(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "owner", domain.RoleGroupLeader)
	f.addMember(t, "mem", domain.RoleFullMember)

	resp := f.createGroup(t, "owner", "mem")
	other := f.createGroup(t, "owner", "mem")

	var foreign domain.Message
	if err := f.db.Where("conversation_id = ?", other.ID).First(&foreign).Error; err != nil {
		t.Fatalf("seed message: %v", err)
	}

	if err := f.svc.MarkRead(resp.ID, "mem", foreign.ID); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for foreign message, got %v", err)
	}
}

func TestListClampsPagination(t *testing.T) {
	f := newConvFixture(t)
	f.addMember(t, "owner", domain.RoleGroupLeader)
	f.addMember(t, "m1", domain.RoleFullMember)
	f.createGroup(t, "owner", "m1")

	_, meta, err := f.svc.List("owner", 0, 500)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if meta.Page != 1 {
		t.Errorf("page = %d, want 1", meta.Page)
	}
	if meta.Limit != 50 {
		t.Errorf("oversized limit must clamp to 50, got %d", meta.Limit)
	}

	_, meta, err = f.svc.List("owner", 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if meta.Limit != 20 {
		t.Errorf("missing limit must default to 20, got %d", meta.Limit)
	}
}
