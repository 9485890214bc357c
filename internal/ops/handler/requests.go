package handler

import (
	"strconv"
	"time"

	legacyservice "heirloom/internal/legacy/service"
	membershipmodels "heirloom/internal/membership/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

type markLegacyRequest struct {
	MarkedBy  string `json:"marked_by"`
	BirthDate string `json:"birth_date,omitempty"`
	DeathDate string `json:"death_date,omitempty"`
	ProofURL  string `json:"proof_url,omitempty"`
}

func (r markLegacyRequest) toDomain(branchID id.BranchID) (legacyservice.MarkAsLegacyRequest, error) {
	markedBy, err := id.ParseAccountID(r.MarkedBy)
	if err != nil {
		return legacyservice.MarkAsLegacyRequest{}, err
	}
	birth, err := parseOptionalDate("birth_date", r.BirthDate)
	if err != nil {
		return legacyservice.MarkAsLegacyRequest{}, err
	}
	death, err := parseOptionalDate("death_date", r.DeathDate)
	if err != nil {
		return legacyservice.MarkAsLegacyRequest{}, err
	}
	return legacyservice.MarkAsLegacyRequest{
		BranchID:  branchID,
		MarkedBy:  markedBy,
		BirthDate: birth,
		DeathDate: death,
		ProofURL:  r.ProofURL,
	}, nil
}

type treeCountResponse struct {
	membershipmodels.TreeCountCheck
	InSync bool `json:"valid"`
}

func parseOptionalDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, field+" must be YYYY-MM-DD")
	}
	return &t, nil
}

// parseDaysOld defaults to 30 when the parameter is absent.
func parseDaysOld(s string) (int, error) {
	if s == "" {
		return 30, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "days_old must be a non-negative integer")
	}
	return n, nil
}
