package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"affiliate-service/internal/models"
	"affiliate-service/pkg/common"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,30}[a-z0-9]$`)

const slugCachePrefix = "referral:slug:"

type ReferralService struct {
	DB             *gorm.DB
	Cache          redis.Cmdable
	CacheTTL       time.Duration
	MaxSlugChanges int
}

// NewReferralService builds the service. cache may be nil.
func NewReferralService(db *gorm.DB, cache redis.Cmdable, cacheTTL time.Duration, maxSlugChanges int) *ReferralService {
	return &ReferralService{
		DB:             db,
		Cache:          cache,
		CacheTTL:       cacheTTL,
		MaxSlugChanges: maxSlugChanges,
	}
}

func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func (s *ReferralService) CreateLink(ctx context.Context, ownerID uint) (*models.ReferralLink, error) {
	for attempt := 0; attempt < 5; attempt++ {
		link := models.ReferralLink{OwnerId: ownerID, Slug: common.GenerateSlug(), IsActive: true}

		var taken int64
		if err := s.DB.WithContext(ctx).Model(&models.ReferralLink{}).Where("slug = ?", link.Slug).Count(&taken).Error; err != nil {
			return nil, err
		}
		if taken > 0 {
			continue
		}

		if err := s.DB.WithContext(ctx).Create(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, err
		}
		return &link, nil
	}
	return nil, errors.New("could not allocate a unique referral slug")
}

func (s *ReferralService) ListLinks(ctx context.Context, ownerID uint) ([]models.ReferralLink, error) {
	var links []models.ReferralLink
	err := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&links).Error
	return links, err
}

// ChangeSlug replaces a link's slug. An owner gets MaxSlugChanges custom
// changes across all of their links.
func (s *ReferralService) ChangeSlug(ctx context.Context, ownerID, linkID uint, newSlug string) (*models.ReferralLink, error) {
	newSlug = NormalizeSlug(newSlug)
	if !slugPattern.MatchString(newSlug) {
		return nil, NewValidationError("slug", "must be 3-32 characters of a-z, 0-9 or '-'")
	}

	var link models.ReferralLink
	var oldSlug string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockAffiliateAccount(tx, ownerID); err != nil {
			return err
		}

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND owner_id = ?", linkID, ownerID).
			First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: referral link %d", ErrNotFound, linkID)
		}
		if err != nil {
			return err
		}

		if link.Slug == newSlug {
			return nil
		}
		var used int64
		err = tx.Model(&models.ReferralLink{}).
			Where("owner_id = ?", ownerID).
			Select("COALESCE(SUM(slug_changes), 0)").
			Scan(&used).Error
		if err != nil {
			return err
		}
		if used >= int64(s.MaxSlugChanges) {
			return fmt.Errorf("%w: slug change limit reached", ErrInvalidState)
		}

		var taken int64
		if err := tx.Model(&models.ReferralLink{}).Where("slug = ?", newSlug).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return NewValidationError("slug", "is already taken")
		}

		oldSlug = link.Slug
		err = tx.Model(&link).Updates(map[string]interface{}{
			"slug":         newSlug,
			"slug_changes": gorm.Expr("slug_changes + 1"),
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return NewValidationError("slug", "is already taken")
		}
		if err != nil {
			return err
		}
		link.Slug = newSlug
		link.SlugChanges++
		return nil
	})
	if err != nil {
		return nil, err
	}

	if oldSlug != "" {
		s.invalidate(ctx, oldSlug)
	}
	return &link, nil
}

// ResolveSlug returns the owner of an active referral link.
func (s *ReferralService) ResolveSlug(ctx context.Context, slug string) (uint, error) {
	slug = NormalizeSlug(slug)

	if s.Cache != nil {
		cached, err := s.Cache.Get(ctx, slugCachePrefix+slug).Result()
		if err == nil {
			if id, convErr := strconv.ParseUint(cached, 10, 64); convErr == nil {
				return uint(id), nil
			}
		} else if !errors.Is(err, redis.Nil) {
			log.WithError(err).Warn("Referral cache read failed")
		}
	}

	link, err := s.activeLink(ctx, slug)
	if err != nil {
		return 0, err
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, slugCachePrefix+slug, strconv.FormatUint(uint64(link.OwnerId), 10), s.CacheTTL).Err(); err != nil {
			log.WithError(err).Warn("Referral cache write failed")
		}
	}
	return link.OwnerId, nil
}

func (s *ReferralService) activeLink(ctx context.Context, slug string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	err := s.DB.WithContext(ctx).Where("slug = ? AND is_active = ?", NormalizeSlug(slug), true).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: referral link %q", ErrNotFound, slug)
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (s *ReferralService) invalidate(ctx context.Context, slug string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Del(ctx, slugCachePrefix+slug).Err(); err != nil {
		log.WithError(err).Warn("Referral cache invalidation failed")
	}
}

// QRCode renders a PNG pointing at the public referral URL.
func (s *ReferralService) QRCode(ctx context.Context, slug, baseURL string) ([]byte, error) {
	link, err := s.activeLink(ctx, slug)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(fmt.Sprintf("%s/r/%s", baseURL, link.Slug), qrcode.Medium, 256)
}

// AttributeRegistration records which link brought in a newly registered user.
// A user keeps the first attribution they receive.
func (s *ReferralService) AttributeRegistration(ctx context.Context, slug string, referredUserID uint) (*models.Referral, error) {
	if referredUserID == 0 {
		return nil, NewValidationError("user_id", "is required")
	}

	link, err := s.activeLink(ctx, slug)
	if err != nil {
		return nil, err
	}
	if link.OwnerId == referredUserID {
		return nil, NewValidationError("user_id", "cannot refer yourself")
	}

	referral := models.Referral{
		ReferredUserId: referredUserID,
		ReferrerId:     link.OwnerId,
		ReferralLinkId: link.ID,
	}
	err = s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&referral).Error
	if err != nil {
		return nil, err
	}

	var stored models.Referral
	if err := s.DB.WithContext(ctx).Where("referred_user_id = ?", referredUserID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *ReferralService) ResolveReferrerForUser(ctx context.Context, userID uint) (uint, error) {
	var referral models.Referral
	err := s.DB.WithContext(ctx).Where("referred_user_id = ?", userID).First(&referral).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: no referrer for user %d", ErrNotFound, userID)
	}
	if err != nil {
		return 0, err
	}
	return referral.ReferrerId, nil
}
