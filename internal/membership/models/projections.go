package models

import (
	"math"

	id "heirloom/pkg/domain"
)

// Capacity is a point-in-time view of a grove's counted memberships.
type Capacity struct {
	GroveID    id.GroveID `json:"grove_id"`
	Current    int        `json:"current"`
	Limit      int        `json:"limit"`
	Available  int        `json:"available"`
	Percentage float64    `json:"percentage"`
	CanAddMore bool       `json:"can_add_more"`
	PlanType   string     `json:"plan_type"`
}

// CapacityOf projects g without side effects. Percentage is rounded to one
// decimal; a zero-limit grove reports 100.
func CapacityOf(g *Grove) Capacity {
	available := g.TreeLimit - g.TreeCount
	if available < 0 {
		available = 0
	}
	pct := 100.0
	if g.TreeLimit > 0 {
		pct = math.Round(float64(g.TreeCount)/float64(g.TreeLimit)*1000) / 10
	}
	return Capacity{
		GroveID:    g.ID,
		Current:    g.TreeCount,
		Limit:      g.TreeLimit,
		Available:  available,
		Percentage: pct,
		CanAddMore: g.HasCapacity(),
		PlanType:   g.PlanType,
	}
}

// TreeCountCheck compares the cached counter with the recomputed count.
type TreeCountCheck struct {
	GroveID id.GroveID `json:"grove_id"`
	Cached  int        `json:"cached"`
	Actual  int        `json:"actual"`
}

func (c TreeCountCheck) Valid() bool {
	return c.Cached == c.Actual
}

// UpgradePlan mirrors a catalog tier in responses.
type UpgradePlan struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TreeLimit  int    `json:"tree_limit"`
	PriceCents int64  `json:"price_cents"`
}

// UpgradeSuggestion is the next tier up, when there is one.
type UpgradeSuggestion struct {
	GroveID     id.GroveID   `json:"grove_id"`
	CurrentPlan string       `json:"current_plan"`
	HasUpgrade  bool         `json:"has_upgrade"`
	Suggested   *UpgradePlan `json:"suggested,omitempty"`
}

// GroveSummary is the grove side of a membership read.
type GroveSummary struct {
	ID             id.GroveID   `json:"id"`
	Name           string       `json:"name"`
	OwnerAccountID id.AccountID `json:"owner_account_id"`
	PlanType       string       `json:"plan_type"`
}

// PersonSummary is the person side of a membership read.
type PersonSummary struct {
	ID       id.PersonID `json:"id"`
	Name     string      `json:"name"`
	IsLegacy bool        `json:"is_legacy"`
}

// PersonMembership is one row of GetPersonMemberships.
type PersonMembership struct {
	*Membership
	Grove           GroveSummary `json:"grove"`
	HasSubscription bool         `json:"has_subscription"`
}

// GroveMember is one row of GetPersonsInGrove.
type GroveMember struct {
	*Membership
	Person          PersonSummary `json:"person"`
	HasSubscription bool          `json:"has_subscription"`
}
