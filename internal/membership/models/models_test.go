package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

func TestParseAdoptionType(t *testing.T) {
	rooted, err := ParseAdoptionType("")
	require.NoError(t, err)
	assert.Equal(t, AdoptionRooted, rooted, "empty defaults to rooted")

	adopted, err := ParseAdoptionType("adopted")
	require.NoError(t, err)
	assert.True(t, adopted.Counts())
	assert.False(t, rooted.Counts())

	_, err = ParseAdoptionType("grafted")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestParseMembershipStatus(t *testing.T) {
	for _, s := range []string{"active", "frozen", "removed"} {
		st, err := ParseMembershipStatus(s)
		require.NoError(t, err)
		assert.Equal(t, s, st.String())
	}
	_, err := ParseMembershipStatus("ACTIVE")
	assert.Error(t, err)
}

func TestNewLinkMembership(t *testing.T) {
	now := time.Now()
	personID, groveID := id.PersonID(uuid.New()), id.GroveID(uuid.New())

	rooted, err := NewLinkMembership(id.MembershipID(uuid.New()), personID, groveID, AdoptionRooted, now)
	require.NoError(t, err)
	assert.False(t, rooted.IsOriginal)

	adopted, err := NewLinkMembership(id.MembershipID(uuid.New()), personID, groveID, AdoptionAdopted, now)
	require.NoError(t, err)
	assert.True(t, adopted.IsOriginal)
	assert.Equal(t, MembershipActive, adopted.Status)

	_, err = NewLinkMembership(id.MembershipID(uuid.New()), personID, groveID, AdoptionNone, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	original := NewOriginalMembership(id.MembershipID(uuid.New()), personID, groveID, now)
	assert.True(t, original.IsOriginal)
	assert.Equal(t, AdoptionNone, original.AdoptionType)
}

func TestHasSubscription(t *testing.T) {
	assert.False(t, HasSubscription(nil))
	assert.False(t, HasSubscription(&Subscription{Status: "past_due"}))
	assert.True(t, HasSubscription(&Subscription{Status: "active"}))
}

func TestCapacityOf(t *testing.T) {
	tests := []struct {
		name          string
		count, limit  int
		wantAvailable int
		wantPct       float64
		wantCanAdd    bool
	}{
		{"empty", 0, 5, 5, 0, true},
		{"partial", 1, 3, 2, 33.3, true},
		{"full", 5, 5, 0, 100, false},
		{"over limit after downgrade", 7, 5, 0, 140, false},
		{"zero limit", 0, 0, 0, 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CapacityOf(&Grove{TreeCount: tt.count, TreeLimit: tt.limit, PlanType: "family"})
			assert.Equal(t, tt.wantAvailable, c.Available)
			assert.InDelta(t, tt.wantPct, c.Percentage, 0.001)
			assert.Equal(t, tt.wantCanAdd, c.CanAddMore)
			assert.Equal(t, "family", c.PlanType)
		})
	}
}

func TestTreeCountCheck(t *testing.T) {
	assert.True(t, TreeCountCheck{Cached: 2, Actual: 2}.Valid())
	assert.False(t, TreeCountCheck{Cached: 3, Actual: 2}.Valid())
}
