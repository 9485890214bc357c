package models

import (
	"strings"
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

type BranchType string

const (
	BranchLiving BranchType = "living"
	BranchLegacy BranchType = "legacy"
)

// BranchStatus is a companion field some older branches use to signal
// memorial state without the legacy type.
type BranchStatus string

const (
	BranchActive   BranchStatus = "active"
	BranchMemorial BranchStatus = "memorial"
)

// Branch is a content container owned by one account.
//
// State machine: living -> legacy, one way.
type Branch struct {
	ID              id.BranchID   `json:"id"`
	OwnerID         id.AccountID  `json:"owner_id"`
	Type            BranchType    `json:"type"`
	Status          BranchStatus  `json:"status"`
	LegacyMarkedBy  *id.AccountID `json:"legacy_marked_by,omitempty"`
	LegacyProofURL  string        `json:"legacy_proof_url,omitempty"`
	LegacyEnteredAt *time.Time    `json:"legacy_entered_at,omitempty"`
	BirthDate       *time.Time    `json:"birth_date,omitempty"`
	DeathDate       *time.Time    `json:"death_date,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

func NewBranch(branchID id.BranchID, ownerID id.AccountID, now time.Time) *Branch {
	return &Branch{
		ID:        branchID,
		OwnerID:   ownerID,
		Type:      BranchLiving,
		Status:    BranchActive,
		CreatedAt: now,
	}
}

// IsLegacy is true when either the type or the companion status says so.
func (b *Branch) IsLegacy() bool {
	return b.Type == BranchLegacy || b.Status == BranchMemorial
}

// LegacyMark is the evidence recorded when a branch enters legacy.
type LegacyMark struct {
	MarkedBy  id.AccountID
	BirthDate *time.Time
	DeathDate *time.Time
	ProofURL  string
}

// MarkLegacy performs the one-way living -> legacy transition. Dates are
// only overwritten when supplied.
func (b *Branch) MarkLegacy(mark LegacyMark, now time.Time) error {
	if b.Type == BranchLegacy {
		return dErrors.New(dErrors.CodeInvariantViolation, "branch is already legacy")
	}
	if mark.MarkedBy.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "marked by is required")
	}
	if mark.BirthDate != nil && mark.DeathDate != nil && mark.DeathDate.Before(*mark.BirthDate) {
		return dErrors.New(dErrors.CodeInvariantViolation, "death date cannot precede birth date")
	}
	markedBy := mark.MarkedBy
	b.Type = BranchLegacy
	b.LegacyMarkedBy = &markedBy
	b.LegacyProofURL = strings.TrimSpace(mark.ProofURL)
	b.LegacyEnteredAt = &now
	if mark.BirthDate != nil {
		b.BirthDate = mark.BirthDate
	}
	if mark.DeathDate != nil {
		b.DeathDate = mark.DeathDate
	}
	return nil
}

// ManagerRole is the kind of ongoing access a legacy manager holds. It is
// unrelated to succession heirs.
type ManagerRole string

const (
	RoleSteward ManagerRole = "steward"
	RoleHeir    ManagerRole = "heir"
)

func ParseManagerRole(s string) (ManagerRole, error) {
	switch r := ManagerRole(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleSteward, RoleHeir:
		return r, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "role must be steward or heir")
	}
}

// LegacyManager grants an account management rights over a legacy branch.
// At most one exists per (branch, user).
type LegacyManager struct {
	ID        id.LegacyManagerID `json:"id"`
	BranchID  id.BranchID        `json:"branch_id"`
	UserID    id.AccountID       `json:"user_id"`
	Role      ManagerRole        `json:"role"`
	CreatedAt time.Time          `json:"created_at"`
}
