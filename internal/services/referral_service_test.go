package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliate-service/internal/models"
)

func TestCreateLink(t *testing.T) {
	db := newTestDB(t)
	svc := NewReferralService(db, nil, time.Minute, 1)
	ctx := context.Background()

	first, err := svc.CreateLink(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, first.Slug, 8)
	assert.True(t, first.IsActive)

	second, err := svc.CreateLink(ctx, 7)
	require.NoError(t, err)
	assert.NotEqual(t, first.Slug, second.Slug)

	links, err := svc.ListLinks(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, links, 2)

	none, err := svc.ListLinks(ctx, 8)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChangeSlug(t *testing.T) {
	db := newTestDB(t)
	svc := NewReferralService(db, nil, time.Minute, 1)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, 1)
	require.NoError(t, err)
	other, err := svc.CreateLink(ctx, 2)
	require.NoError(t, err)

	t.Run("invalid format", func(t *testing.T) {
		for _, slug := range []string{"ab", "-budi", "budi-", "budi santoso", "budi_santoso"} {
			_, err := svc.ChangeSlug(ctx, 1, link.ID, slug)
			assert.ErrorIs(t, err, ErrValidation, slug)
		}
	})

	t.Run("taken by another link", func(t *testing.T) {
		_, err := svc.ChangeSlug(ctx, 1, link.ID, other.Slug)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("not the owner", func(t *testing.T) {
		_, err := svc.ChangeSlug(ctx, 2, link.ID, "budi-promo")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	changed, err := svc.ChangeSlug(ctx, 1, link.ID, "  Budi-Promo ")
	require.NoError(t, err)
	assert.Equal(t, "budi-promo", changed.Slug)
	assert.Equal(t, 1, changed.SlugChanges)

	owner, err := svc.ResolveSlug(ctx, "budi-promo")
	require.NoError(t, err)
	assert.Equal(t, uint(1), owner)

	_, err = svc.ResolveSlug(ctx, link.Slug)
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("same slug is a no-op", func(t *testing.T) {
		same, err := svc.ChangeSlug(ctx, 1, link.ID, "budi-promo")
		require.NoError(t, err)
		assert.Equal(t, 1, same.SlugChanges)
	})

	t.Run("limit reached", func(t *testing.T) {
		_, err := svc.ChangeSlug(ctx, 1, link.ID, "budi-again")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("limit covers every link of the owner", func(t *testing.T) {
		extra, err := svc.CreateLink(ctx, 1)
		require.NoError(t, err)

		_, err = svc.ChangeSlug(ctx, 1, extra.ID, "budi-second")
		assert.ErrorIs(t, err, ErrInvalidState)

		_, err = svc.ResolveSlug(ctx, "budi-second")
		assert.ErrorIs(t, err, ErrNotFound)

		rival, err := svc.ChangeSlug(ctx, 2, other.ID, "siti-promo")
		require.NoError(t, err)
		assert.Equal(t, "siti-promo", rival.Slug)
	})
}

func TestResolveSlugUsesCache(t *testing.T) {
	db := newTestDB(t)
	cache, mock := redismock.NewClientMock()
	svc := NewReferralService(db, cache, 10*time.Minute, 1)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, 42)
	require.NoError(t, err)
	key := slugCachePrefix + link.Slug

	mock.ExpectGet(key).RedisNil()
	mock.ExpectSet(key, "42", 10*time.Minute).SetVal("OK")
	owner, err := svc.ResolveSlug(ctx, link.Slug)
	require.NoError(t, err)
	assert.Equal(t, uint(42), owner)

	mock.ExpectGet(key).SetVal("42")
	owner, err = svc.ResolveSlug(ctx, link.Slug)
	require.NoError(t, err)
	assert.Equal(t, uint(42), owner)

	mock.ExpectDel(key).SetVal(1)
	_, err = svc.ChangeSlug(ctx, 42, link.ID, "new-slug")
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveSlugCacheDown(t *testing.T) {
	db := newTestDB(t)
	cache, mock := redismock.NewClientMock()
	svc := NewReferralService(db, cache, time.Minute, 1)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, 5)
	require.NoError(t, err)
	key := slugCachePrefix + link.Slug

	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, "5", time.Minute).SetErr(errors.New("connection refused"))

	owner, err := svc.ResolveSlug(ctx, link.Slug)
	require.NoError(t, err)
	assert.Equal(t, uint(5), owner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttributeRegistration(t *testing.T) {
	db := newTestDB(t)
	svc := NewReferralService(db, nil, time.Minute, 1)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, 1)
	require.NoError(t, err)
	rival, err := svc.CreateLink(ctx, 2)
	require.NoError(t, err)

	referral, err := svc.AttributeRegistration(ctx, link.Slug, 10)
	require.NoError(t, err)
	assert.Equal(t, uint(1), referral.ReferrerId)
	assert.Equal(t, link.ID, referral.ReferralLinkId)

	t.Run("first attribution wins", func(t *testing.T) {
		again, err := svc.AttributeRegistration(ctx, rival.Slug, 10)
		require.NoError(t, err)
		assert.Equal(t, uint(1), again.ReferrerId)

		referrer, err := svc.ResolveReferrerForUser(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, uint(1), referrer)
	})

	t.Run("self referral", func(t *testing.T) {
		_, err := svc.AttributeRegistration(ctx, link.Slug, 1)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("inactive link", func(t *testing.T) {
		require.NoError(t, db.Model(&models.ReferralLink{}).Where("id = ?", rival.ID).Update("is_active", false).Error)
		_, err := svc.AttributeRegistration(ctx, rival.Slug, 11)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unattributed user", func(t *testing.T) {
		_, err := svc.ResolveReferrerForUser(ctx, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestQRCode(t *testing.T) {
	db := newTestDB(t)
	svc := NewReferralService(db, nil, time.Minute, 1)
	ctx := context.Background()

	link, err := svc.CreateLink(ctx, 1)
	require.NoError(t, err)

	png, err := svc.QRCode(ctx, link.Slug, "https://example.com")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = svc.QRCode(ctx, "missing", "https://example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}
