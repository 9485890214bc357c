package models

import (
	id "heirloom/pkg/domain"
)

// MembershipSummary is one grove a Person belongs to, as shown alongside the
// Person in registry reads.
type MembershipSummary struct {
	MembershipID        id.MembershipID `json:"membership_id"`
	GroveID             id.GroveID      `json:"grove_id"`
	GroveName           string          `json:"grove_name"`
	GroveOwnerAccountID id.AccountID    `json:"-"`
	OwnerDisplayName    string          `json:"owner_display_name"`
	IsOriginal          bool            `json:"is_original"`
	AdoptionType        string          `json:"adoption_type,omitempty"`
	Status              string          `json:"status"`
	HasSubscription     bool            `json:"has_subscription"`
}

// PersonWithMemberships is the enriched registry read model.
type PersonWithMemberships struct {
	*Person
	Memberships []MembershipSummary `json:"memberships"`
	GroveCount  int                 `json:"grove_count"`
}
