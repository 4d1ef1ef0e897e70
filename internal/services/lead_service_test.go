package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"affiliate-service/internal/models"
)

func TestLeads(t *testing.T) {
	db := newTestDB(t)
	referrals := NewReferralService(db, nil, time.Minute, 1)
	leads := NewLeadService(db, referrals)
	ctx := context.Background()

	link, err := referrals.CreateLink(ctx, 1)
	require.NoError(t, err)
	otherLink, err := referrals.CreateLink(ctx, 2)
	require.NoError(t, err)

	lead, err := leads.RecordLead(ctx, link.Slug, LeadContactDTO{Name: " Siti ", Phone: "08123456789"})
	require.NoError(t, err)
	assert.Equal(t, "Siti", lead.Name)
	assert.Equal(t, models.LeadNew, lead.Status)
	assert.Equal(t, link.ID, lead.ReferralLinkId)

	_, err = leads.RecordLead(ctx, link.Slug, LeadContactDTO{Name: "Andi", Email: "andi@example.com"})
	require.NoError(t, err)
	_, err = leads.RecordLead(ctx, otherLink.Slug, LeadContactDTO{Name: "Rina", Email: "rina@example.com"})
	require.NoError(t, err)

	t.Run("contact required", func(t *testing.T) {
		_, err := leads.RecordLead(ctx, link.Slug, LeadContactDTO{Name: "Nobody"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("bad email", func(t *testing.T) {
		_, err := leads.RecordLead(ctx, link.Slug, LeadContactDTO{Name: "Bad", Email: "not-an-email"})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "email")
	})

	t.Run("unknown link", func(t *testing.T) {
		_, err := leads.RecordLead(ctx, "nope-nope", LeadContactDTO{Name: "X", Phone: "0812345"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list only owned leads", func(t *testing.T) {
		res, err := leads.ListLeads(ctx, 1, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.Count)
		list := res.Data.([]models.Lead)
		assert.Len(t, list, 2)
		for _, l := range list {
			assert.Equal(t, link.ID, l.ReferralLinkId)
		}
	})

	t.Run("update status", func(t *testing.T) {
		updated, err := leads.UpdateLeadStatus(ctx, 1, lead.ID, "Contacted")
		require.NoError(t, err)
		assert.Equal(t, models.LeadContacted, updated.Status)

		back, err := leads.UpdateLeadStatus(ctx, 1, lead.ID, models.LeadNew)
		require.NoError(t, err)
		assert.Equal(t, models.LeadNew, back.Status)

		_, err = leads.UpdateLeadStatus(ctx, 1, lead.ID, "won")
		assert.ErrorIs(t, err, ErrValidation)

		_, err = leads.UpdateLeadStatus(ctx, 2, lead.ID, models.LeadClosing)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
