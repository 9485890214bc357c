package models

import (
	"strings"
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/email"
)

// ReleaseCondition decides what triggers a release. Only AfterDate is polled;
// the others are released by an explicit operator call.
type ReleaseCondition string

const (
	ReleaseAfterDeath ReleaseCondition = "AFTER_DEATH"
	ReleaseAfterDate  ReleaseCondition = "AFTER_DATE"
	ReleaseManual     ReleaseCondition = "MANUAL"
)

func ParseReleaseCondition(s string) (ReleaseCondition, error) {
	c := ReleaseCondition(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case ReleaseAfterDeath, ReleaseAfterDate, ReleaseManual:
		return c, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "release condition must be AFTER_DEATH, AFTER_DATE or MANUAL")
	}
}

func (c ReleaseCondition) String() string {
	return string(c)
}

// Heir designates a recipient of a branch's content.
//
// State machine: Pending (Notified=false) -> Released (Notified=true,
// NotifiedAt set). Released is terminal.
type Heir struct {
	ID               id.HeirID        `json:"id"`
	BranchID         id.BranchID      `json:"branch_id"`
	Contact          string           `json:"contact"`
	ReleaseCondition ReleaseCondition `json:"release_condition"`
	ReleaseDate      *time.Time       `json:"release_date,omitempty"`
	DownloadToken    string           `json:"-"`
	Notified         bool             `json:"notified"`
	NotifiedAt       *time.Time       `json:"notified_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// NewHeir builds a Pending heir. The contact must be an email address and
// AFTER_DATE requires a release date.
func NewHeir(heirID id.HeirID, branchID id.BranchID, contact string, condition ReleaseCondition, releaseDate *time.Time, token string, now time.Time) (*Heir, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "heir contact is required")
	}
	if !email.IsPlausible(contact) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "heir contact must be an email address")
	}
	condition, err := ParseReleaseCondition(string(condition))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, dErrors.Message(err))
	}
	if token == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "download token is required")
	}
	if condition == ReleaseAfterDate && releaseDate == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "AFTER_DATE requires a release date")
	}
	return &Heir{
		ID:               heirID,
		BranchID:         branchID,
		Contact:          contact,
		ReleaseCondition: condition,
		ReleaseDate:      releaseDate,
		DownloadToken:    token,
		CreatedAt:        now,
	}, nil
}

func (h *Heir) IsReleased() bool {
	return h.Notified
}

// IsDue reports whether the scan should release h at now.
func (h *Heir) IsDue(now time.Time) bool {
	return !h.Notified &&
		h.ReleaseCondition == ReleaseAfterDate &&
		h.ReleaseDate != nil &&
		!h.ReleaseDate.After(now)
}

// MarkReleased moves h to Released. It fails on an already released heir.
func (h *Heir) MarkReleased(at time.Time) error {
	if h.Notified {
		return dErrors.New(dErrors.CodeInvariantViolation, "heir already released")
	}
	h.Notified = true
	h.NotifiedAt = &at
	return nil
}
