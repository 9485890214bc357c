package models

import (
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

// Grove is a tenant container with a capacity-limited set of counted
// memberships.
//
// Invariants:
//   - TreeCount equals the number of memberships with IsOriginal set
//     (maintained by conditional updates, repaired by SyncTreeCount)
//   - 0 <= TreeCount; TreeCount <= TreeLimit for every increment this module performs
type Grove struct {
	ID             id.GroveID   `json:"id"`
	OwnerAccountID id.AccountID `json:"owner_account_id"`
	Name           string       `json:"name"`
	TreeLimit      int          `json:"tree_limit"`
	TreeCount      int          `json:"tree_count"`
	PlanType       string       `json:"plan_type"`
	CreatedAt      time.Time    `json:"created_at"`
}

// HasCapacity reports whether one more counted membership fits.
func (g *Grove) HasCapacity() bool {
	return g.TreeCount < g.TreeLimit
}

// AdoptionType distinguishes counting from non-counting cross-grove links.
// Originals created with a new Person carry no adoption type.
type AdoptionType string

const (
	AdoptionNone    AdoptionType = ""
	AdoptionRooted  AdoptionType = "rooted"
	AdoptionAdopted AdoptionType = "adopted"
)

// ParseAdoptionType reads a link kind from external input. Empty input means rooted.
func ParseAdoptionType(s string) (AdoptionType, error) {
	switch AdoptionType(s) {
	case AdoptionNone, AdoptionRooted:
		return AdoptionRooted, nil
	case AdoptionAdopted:
		return AdoptionAdopted, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "adoption type must be rooted or adopted")
	}
}

// Counts reports whether a link of this kind consumes grove capacity.
func (a AdoptionType) Counts() bool {
	return a == AdoptionAdopted
}

func (a AdoptionType) String() string {
	return string(a)
}

type MembershipStatus string

const (
	MembershipActive  MembershipStatus = "active"
	MembershipFrozen  MembershipStatus = "frozen"
	MembershipRemoved MembershipStatus = "removed"
)

var validMembershipStatuses = map[MembershipStatus]bool{
	MembershipActive:  true,
	MembershipFrozen:  true,
	MembershipRemoved: true,
}

func ParseMembershipStatus(s string) (MembershipStatus, error) {
	st := MembershipStatus(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid membership status")
	}
	return st, nil
}

func (s MembershipStatus) IsValid() bool {
	return validMembershipStatuses[s]
}

func (s MembershipStatus) String() string {
	return string(s)
}

// Membership joins a Person to a Grove. At most one exists per pair.
type Membership struct {
	ID             id.MembershipID    `json:"id"`
	PersonID       id.PersonID        `json:"person_id"`
	GroveID        id.GroveID         `json:"grove_id"`
	IsOriginal     bool               `json:"is_original"`
	AdoptionType   AdoptionType       `json:"adoption_type,omitempty"`
	Status         MembershipStatus   `json:"status"`
	SubscriptionID *id.SubscriptionID `json:"subscription_id,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

// NewOriginalMembership records a Person created directly in a grove.
func NewOriginalMembership(membershipID id.MembershipID, personID id.PersonID, groveID id.GroveID, now time.Time) *Membership {
	return &Membership{
		ID:         membershipID,
		PersonID:   personID,
		GroveID:    groveID,
		IsOriginal: true,
		Status:     MembershipActive,
		CreatedAt:  now,
	}
}

// NewLinkMembership records a cross-grove link. Adopted links count toward
// capacity exactly like originals; rooted links never do.
func NewLinkMembership(membershipID id.MembershipID, personID id.PersonID, groveID id.GroveID, adoption AdoptionType, now time.Time) (*Membership, error) {
	if adoption != AdoptionRooted && adoption != AdoptionAdopted {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "link membership requires an adoption type")
	}
	return &Membership{
		ID:           membershipID,
		PersonID:     personID,
		GroveID:      groveID,
		IsOriginal:   adoption.Counts(),
		AdoptionType: adoption,
		Status:       MembershipActive,
		CreatedAt:    now,
	}, nil
}

const SubscriptionStatusActive = "active"

// Subscription is supplied by the billing feed; this module only reads it.
type Subscription struct {
	ID     id.SubscriptionID `json:"id"`
	Status string            `json:"status"`
}

// HasSubscription is true iff sub is present and active. A lapsed
// subscription does not change the membership's status.
func HasSubscription(sub *Subscription) bool {
	return sub != nil && sub.Status == SubscriptionStatusActive
}
