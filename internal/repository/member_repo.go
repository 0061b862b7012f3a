package repository

import (
	"errors"

	"github.com/nexus-org/nexus-backend/internal/common"
	"github.com/nexus-org/nexus-backend/internal/domain"
	"gorm.io/gorm"
)

// referralWalkMaxDepth bounds the ancestor walk; the referral tree is
// shallow in practice and a cycle must never loop forever.
const referralWalkMaxDepth = 20

// MemberRepository read-only access to the platform's member records
type MemberRepository interface {
	FindByID(id string) (*domain.Member, error)
	FindProfiles(ids []string) (map[string]*domain.MemberProfile, error)
	AllActive(ids []string) (bool, error)
	CountDirectReferrals(userID string) (int64, error)
	IsInReferralSubtree(ancestorID, userID string) (bool, error)
}

type memberRepository struct {
	db *gorm.DB
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(db *gorm.DB) MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) FindByID(id string) (*domain.Member, error) {
	var member domain.Member
	err := r.db.Where("id = ? AND is_active = ?", id, true).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *memberRepository) FindProfiles(ids []string) (map[string]*domain.MemberProfile, error) {
	profiles := make(map[string]*domain.MemberProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	var members []*domain.Member
	if err := r.db.Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	for _, m := range members {
		profiles[m.ID] = m.ToProfile()
	}
	return profiles, nil
}

// AllActive reports whether every given id is an active member
func (r *memberRepository) AllActive(ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var count int64
	err := r.db.Model(&domain.Member{}).
		Where("id IN ? AND is_active = ?", ids, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count == int64(len(ids)), nil
}

func (r *memberRepository) CountDirectReferrals(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.Member{}).
		Where("referrer_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count, err
}

// IsInReferralSubtree walks the recipient's referrer chain upward and
// reports whether it passes through ancestorID.
func (r *memberRepository) IsInReferralSubtree(ancestorID, userID string) (bool, error) {
	current := userID
	for depth := 0; depth < referralWalkMaxDepth; depth++ {
		var member domain.Member
		err := r.db.Select("id", "referrer_id").Where("id = ?", current).First(&member).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		if member.ReferrerID == nil {
			return false, nil
		}
		if *member.ReferrerID == ancestorID {
			return true, nil
		}
		current = *member.ReferrerID
	}
	return false, nil
}
