package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ada@example.com", Normalize("  Ada@Example.COM "))
}

func TestIsPlausible(t *testing.T) {
	assert.True(t, IsPlausible("heir@example.com"))
	assert.False(t, IsPlausible("heir"))
	assert.False(t, IsPlausible("@example.com"))
	assert.False(t, IsPlausible("a@b@example.com"))
	assert.False(t, IsPlausible("heir@localhost"))
}

func TestDisplayNameFromEmail(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", DisplayNameFromEmail("ada.lovelace@example.com"))
	assert.Equal(t, "Grandma", DisplayNameFromEmail("grandma@example.com"))
	assert.Equal(t, "Member", DisplayNameFromEmail("@example.com"))
}
