package models

import (
	"strings"
	"time"
	"unicode/utf8"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

const maxNameLength = 200

// Person is the canonical identity for one real individual. A Person is
// created once and referenced by memberships in any number of groves.
//
// Invariants:
//   - Name is trimmed and non-empty
//   - MemoryCount starts at 0 and is never negative
//   - ModeratorID is set whenever OwnerID is set
type Person struct {
	ID               id.PersonID   `json:"id"`
	AccountID        *id.AccountID `json:"account_id,omitempty"`
	Name             string        `json:"name"`
	IsLegacy         bool          `json:"is_legacy"`
	BirthDate        *time.Time    `json:"birth_date,omitempty"`
	DeathDate        *time.Time    `json:"death_date,omitempty"`
	MemoryCount      int           `json:"memory_count"`
	MemoryLimit      int           `json:"memory_limit"`
	DiscoveryEnabled bool          `json:"discovery_enabled"`
	OwnerID          *id.AccountID `json:"owner_id,omitempty"`
	ModeratorID      *id.AccountID `json:"moderator_id,omitempty"`
	TrusteeID        *id.AccountID `json:"trustee_id,omitempty"`
	TrusteeExpiresAt *time.Time    `json:"trustee_expires_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// CreateOptions carries caller input for a new Person. Nil pointers mean
// "not supplied" and are resolved by the default rules in NewPerson.
type CreateOptions struct {
	AccountID        *id.AccountID
	Name             string
	IsLegacy         *bool
	BirthDate        *time.Time
	DeathDate        *time.Time
	MemoryLimit      int
	DiscoveryEnabled *bool
	OwnerID          *id.AccountID
	ModeratorID      *id.AccountID
	TrusteeID        *id.AccountID
	TrusteeExpiresAt *time.Time
}

// Default rules, applied in this order by NewPerson:
//
//  1. ownerRule:     OwnerID     <- AccountID
//  2. moderatorRule: ModeratorID <- OwnerID (after rule 1)
//  3. discoveryRule: DiscoveryEnabled <- true
//  4. legacyRule:    IsLegacy <- false
//
// MemoryCount always starts at 0.
func ownerRule(opts CreateOptions) *id.AccountID {
	if opts.OwnerID != nil {
		return opts.OwnerID
	}
	return opts.AccountID
}

func moderatorRule(opts CreateOptions, owner *id.AccountID) *id.AccountID {
	if opts.ModeratorID != nil {
		return opts.ModeratorID
	}
	return owner
}

func discoveryRule(opts CreateOptions) bool {
	if opts.DiscoveryEnabled != nil {
		return *opts.DiscoveryEnabled
	}
	return true
}

func legacyRule(opts CreateOptions) bool {
	if opts.IsLegacy != nil {
		return *opts.IsLegacy
	}
	return false
}

// NewPerson validates opts and resolves defaults.
func NewPerson(personID id.PersonID, opts CreateOptions, now time.Time) (*Person, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "person name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "person name must be 200 characters or less")
	}
	if opts.MemoryLimit < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "memory limit cannot be negative")
	}
	if opts.BirthDate != nil && opts.DeathDate != nil && opts.DeathDate.Before(*opts.BirthDate) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "death date precedes birth date")
	}

	owner := ownerRule(opts)
	return &Person{
		ID:               personID,
		AccountID:        opts.AccountID,
		Name:             name,
		IsLegacy:         legacyRule(opts),
		BirthDate:        opts.BirthDate,
		DeathDate:        opts.DeathDate,
		MemoryCount:      0,
		MemoryLimit:      opts.MemoryLimit,
		DiscoveryEnabled: discoveryRule(opts),
		OwnerID:          owner,
		ModeratorID:      moderatorRule(opts, owner),
		TrusteeID:        opts.TrusteeID,
		TrusteeExpiresAt: opts.TrusteeExpiresAt,
		CreatedAt:        now,
	}, nil
}

// Account is the read-only view of a platform account this module needs.
type Account struct {
	ID          id.AccountID `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
}
