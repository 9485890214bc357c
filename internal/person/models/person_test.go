package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

func accountPtr() *id.AccountID {
	a := id.AccountID(uuid.New())
	return &a
}

func boolPtr(b bool) *bool { return &b }

func TestNewPerson_DefaultChain(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("owner and moderator default to the account", func(t *testing.T) {
		account := accountPtr()
		p, err := NewPerson(id.PersonID(uuid.New()), CreateOptions{AccountID: account, Name: "  Ada Lovelace  "}, now)
		require.NoError(t, err)

		assert.Equal(t, "Ada Lovelace", p.Name)
		assert.Equal(t, account, p.OwnerID)
		assert.Equal(t, account, p.ModeratorID)
		assert.True(t, p.DiscoveryEnabled)
		assert.False(t, p.IsLegacy)
		assert.Zero(t, p.MemoryCount)
		assert.Equal(t, now, p.CreatedAt)
	})

	t.Run("moderator follows an explicit owner", func(t *testing.T) {
		account, owner := accountPtr(), accountPtr()
		p, err := NewPerson(id.PersonID(uuid.New()), CreateOptions{AccountID: account, OwnerID: owner, Name: "Grace"}, now)
		require.NoError(t, err)

		assert.Equal(t, owner, p.OwnerID)
		assert.Equal(t, owner, p.ModeratorID)
	})

	t.Run("explicit moderator wins", func(t *testing.T) {
		account, moderator := accountPtr(), accountPtr()
		p, err := NewPerson(id.PersonID(uuid.New()), CreateOptions{AccountID: account, ModeratorID: moderator, Name: "Grace"}, now)
		require.NoError(t, err)

		assert.Equal(t, account, p.OwnerID)
		assert.Equal(t, moderator, p.ModeratorID)
	})

	t.Run("no account leaves the chain empty", func(t *testing.T) {
		p, err := NewPerson(id.PersonID(uuid.New()), CreateOptions{Name: "Unlinked"}, now)
		require.NoError(t, err)
		assert.Nil(t, p.OwnerID)
		assert.Nil(t, p.ModeratorID)
	})

	t.Run("explicit flags are kept", func(t *testing.T) {
		p, err := NewPerson(id.PersonID(uuid.New()), CreateOptions{
			Name:             "Private",
			DiscoveryEnabled: boolPtr(false),
			IsLegacy:         boolPtr(true),
		}, now)
		require.NoError(t, err)
		assert.False(t, p.DiscoveryEnabled)
		assert.True(t, p.IsLegacy)
	})
}

func TestNewPerson_Invariants(t *testing.T) {
	now := time.Now()
	birth := time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC)
	death := time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := map[string]CreateOptions{
		"blank name":           {Name: "   "},
		"oversized name":       {Name: strings.Repeat("x", 201)},
		"oversized multibyte":  {Name: strings.Repeat("ß", 201)},
		"negative memory":      {Name: "x", MemoryLimit: -1},
		"death precedes birth": {Name: "x", BirthDate: &birth, DeathDate: &death},
	}
	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewPerson(id.PersonID(uuid.New()), opts, now)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
		})
	}
}

func TestNewPerson_NameLengthCountsCharacters(t *testing.T) {
	p, err := NewPerson(id.PersonID(uuid.New()), CreateOptions{Name: strings.Repeat("é", 200)}, time.Now())
	require.NoError(t, err)
	assert.Len(t, []rune(p.Name), 200)
}
