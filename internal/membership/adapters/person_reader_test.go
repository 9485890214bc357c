package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heirloom/internal/membership/models"
	grovestore "heirloom/internal/membership/store/grove"
	membershipstore "heirloom/internal/membership/store/membership"
	subscriptionstore "heirloom/internal/membership/store/subscription"
	id "heirloom/pkg/domain"
)

func TestPersonReaderListForPersons(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	groves := grovestore.NewInMemory()
	memberships := membershipstore.NewInMemory()
	subs := subscriptionstore.NewInMemory()
	reader := NewPersonReader(memberships, groves, subs)

	owner := id.AccountID(uuid.New())
	g := &models.Grove{ID: id.GroveID(uuid.New()), OwnerAccountID: owner, Name: "Hartley", TreeLimit: 5, PlanType: "family"}
	require.NoError(t, groves.Create(ctx, g))

	personID := id.PersonID(uuid.New())
	m := models.NewOriginalMembership(id.MembershipID(uuid.New()), personID, g.ID, now)
	require.NoError(t, memberships.Create(ctx, m))
	subID := id.SubscriptionID(uuid.New())
	require.NoError(t, subs.Upsert(ctx, &models.Subscription{ID: subID, Status: models.SubscriptionStatusActive}))
	require.NoError(t, memberships.AttachSubscription(ctx, m.ID, subID))

	lonely := id.PersonID(uuid.New())
	out, err := reader.ListForPersons(ctx, []id.PersonID{personID, lonely})
	require.NoError(t, err)

	require.Len(t, out[personID], 1)
	summary := out[personID][0]
	assert.Equal(t, "Hartley", summary.GroveName)
	assert.Equal(t, owner, summary.GroveOwnerAccountID)
	assert.True(t, summary.IsOriginal)
	assert.True(t, summary.HasSubscription)
	assert.Equal(t, "active", summary.Status)
	assert.Empty(t, out[lonely])
}
