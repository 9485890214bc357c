// Package domain holds typed identifiers shared across heirloom modules.
//
// Every aggregate gets its own UUID-backed type so that a GroveID can never be
// passed where a PersonID is expected. Construct from external input with the
// Parse* functions; they reject empty, malformed and nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "heirloom/pkg/domain-errors"
)

type (
	AccountID       uuid.UUID
	PersonID        uuid.UUID
	GroveID         uuid.UUID
	MembershipID    uuid.UUID
	SubscriptionID  uuid.UUID
	BranchID        uuid.UUID
	HeirID          uuid.UUID
	LegacyManagerID uuid.UUID
)

// maxIDLength bounds input before it reaches uuid.Parse. The longest accepted
// form is the braced/urn variant at 45 characters.
const maxIDLength = 45

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	if len(s) > maxIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return u, nil
}

func ParseAccountID(s string) (AccountID, error) {
	u, err := parseUUID("account id", s)
	return AccountID(u), err
}

func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID("person id", s)
	return PersonID(u), err
}

func ParseGroveID(s string) (GroveID, error) {
	u, err := parseUUID("grove id", s)
	return GroveID(u), err
}

func ParseMembershipID(s string) (MembershipID, error) {
	u, err := parseUUID("membership id", s)
	return MembershipID(u), err
}

func ParseSubscriptionID(s string) (SubscriptionID, error) {
	u, err := parseUUID("subscription id", s)
	return SubscriptionID(u), err
}

func ParseBranchID(s string) (BranchID, error) {
	u, err := parseUUID("branch id", s)
	return BranchID(u), err
}

func ParseHeirID(s string) (HeirID, error) {
	u, err := parseUUID("heir id", s)
	return HeirID(u), err
}

func ParseLegacyManagerID(s string) (LegacyManagerID, error) {
	u, err := parseUUID("legacy manager id", s)
	return LegacyManagerID(u), err
}

func (i AccountID) String() string       { return uuid.UUID(i).String() }
func (i PersonID) String() string        { return uuid.UUID(i).String() }
func (i GroveID) String() string         { return uuid.UUID(i).String() }
func (i MembershipID) String() string    { return uuid.UUID(i).String() }
func (i SubscriptionID) String() string  { return uuid.UUID(i).String() }
func (i BranchID) String() string        { return uuid.UUID(i).String() }
func (i HeirID) String() string          { return uuid.UUID(i).String() }
func (i LegacyManagerID) String() string { return uuid.UUID(i).String() }

func (i AccountID) IsNil() bool       { return uuid.UUID(i) == uuid.Nil }
func (i PersonID) IsNil() bool        { return uuid.UUID(i) == uuid.Nil }
func (i GroveID) IsNil() bool         { return uuid.UUID(i) == uuid.Nil }
func (i MembershipID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }
func (i SubscriptionID) IsNil() bool  { return uuid.UUID(i) == uuid.Nil }
func (i BranchID) IsNil() bool        { return uuid.UUID(i) == uuid.Nil }
func (i HeirID) IsNil() bool          { return uuid.UUID(i) == uuid.Nil }
func (i LegacyManagerID) IsNil() bool { return uuid.UUID(i) == uuid.Nil }

// MarshalText renders IDs in canonical UUID form so they serialize as JSON strings.
func (i AccountID) MarshalText() ([]byte, error)       { return uuid.UUID(i).MarshalText() }
func (i PersonID) MarshalText() ([]byte, error)        { return uuid.UUID(i).MarshalText() }
func (i GroveID) MarshalText() ([]byte, error)         { return uuid.UUID(i).MarshalText() }
func (i MembershipID) MarshalText() ([]byte, error)    { return uuid.UUID(i).MarshalText() }
func (i SubscriptionID) MarshalText() ([]byte, error)  { return uuid.UUID(i).MarshalText() }
func (i BranchID) MarshalText() ([]byte, error)        { return uuid.UUID(i).MarshalText() }
func (i HeirID) MarshalText() ([]byte, error)          { return uuid.UUID(i).MarshalText() }
func (i LegacyManagerID) MarshalText() ([]byte, error) { return uuid.UUID(i).MarshalText() }

func unmarshalUUID(dst *uuid.UUID, b []byte) error {
	return dst.UnmarshalText(b)
}

// UnmarshalText accepts any form uuid.Parse does.
func (i *AccountID) UnmarshalText(b []byte) error       { return unmarshalUUID((*uuid.UUID)(i), b) }
func (i *PersonID) UnmarshalText(b []byte) error        { return unmarshalUUID((*uuid.UUID)(i), b) }
func (i *GroveID) UnmarshalText(b []byte) error         { return unmarshalUUID((*uuid.UUID)(i), b) }
func (i *MembershipID) UnmarshalText(b []byte) error    { return unmarshalUUID((*uuid.UUID)(i), b) }
func (i *SubscriptionID) UnmarshalText(b []byte) error  { return unmarshalUUID((*uuid.UUID)(i), b) }
func (i *BranchID) UnmarshalText(b []byte) error        { return unmarshalUUID((*uuid.UUID)(i), b) }
func (i *HeirID) UnmarshalText(b []byte) error          { return unmarshalUUID((*uuid.UUID)(i), b) }
func (i *LegacyManagerID) UnmarshalText(b []byte) error { return unmarshalUUID((*uuid.UUID)(i), b) }
