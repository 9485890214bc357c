package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"heirloom/internal/person/models"
	accountstore "heirloom/internal/person/store/account"
	personstore "heirloom/internal/person/store/person"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	audit "heirloom/pkg/platform/audit"
	"heirloom/pkg/platform/audit/publishers/compliance"
	auditmemory "heirloom/pkg/platform/audit/store/memory"
	"heirloom/pkg/requestcontext"
)

type stubMemberships struct {
	byPerson map[id.PersonID][]models.MembershipSummary
}

func (s *stubMemberships) ListForPersons(_ context.Context, personIDs []id.PersonID) (map[id.PersonID][]models.MembershipSummary, error) {
	out := make(map[id.PersonID][]models.MembershipSummary)
	for _, personID := range personIDs {
		if list, ok := s.byPerson[personID]; ok {
			out[personID] = list
		}
	}
	return out, nil
}

type unavailableAuditStore struct{}

func (unavailableAuditStore) Append(context.Context, audit.Event) error {
	return errors.New("audit store unavailable")
}

type PersonServiceSuite struct {
	suite.Suite
	ctx         context.Context
	persons     *personstore.InMemory
	accounts    *accountstore.InMemory
	memberships *stubMemberships
	auditStore  *auditmemory.InMemoryStore
	service     *Service
}

func TestPersonServiceSuite(t *testing.T) {
	suite.Run(t, new(PersonServiceSuite))
}

func (s *PersonServiceSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))
	s.persons = personstore.NewInMemory()
	s.accounts = accountstore.NewInMemory()
	s.memberships = &stubMemberships{byPerson: map[id.PersonID][]models.MembershipSummary{}}
	s.auditStore = auditmemory.NewInMemoryStore()
	s.service = New(s.persons, s.accounts, s.memberships,
		WithAuditPublisher(compliance.New(s.auditStore)))
}

func (s *PersonServiceSuite) newAccount(address, displayName string) *models.Account {
	a := &models.Account{ID: id.AccountID(uuid.New()), Email: address, DisplayName: displayName}
	s.Require().NoError(s.accounts.Create(s.ctx, a))
	return a
}

func (s *PersonServiceSuite) TestCreate() {
	s.Run("applies defaults and records audit", func() {
		account := s.newAccount("owner@example.com", "Owner")
		p, err := s.service.Create(s.ctx, models.CreateOptions{AccountID: &account.ID, Name: " Margaret "})
		s.Require().NoError(err)

		s.Equal("Margaret", p.Name)
		s.Equal(account.ID, *p.ModeratorID)
		s.Equal(requestcontext.Now(s.ctx), p.CreatedAt)

		events, err := s.auditStore.ListBySubject(s.ctx, p.ID.String())
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal("person_created", events[0].Action)
	})

	s.Run("blank name is a validation error", func() {
		_, err := s.service.Create(s.ctx, models.CreateOptions{Name: "  "})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("name length counts characters", func() {
		_, err := s.service.Create(s.ctx, models.CreateOptions{Name: strings.Repeat("é", 150)})
		s.Require().NoError(err)

		_, err = s.service.Create(s.ctx, models.CreateOptions{Name: strings.Repeat("é", 201)})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("creation event is best effort", func() {
		svc := New(s.persons, s.accounts, s.memberships,
			WithAuditPublisher(compliance.New(unavailableAuditStore{})))
		p, err := svc.Create(s.ctx, models.CreateOptions{Name: "Ada"})
		s.Require().NoError(err)

		_, err = s.persons.FindByID(s.ctx, p.ID)
		s.NoError(err)
	})
}

func (s *PersonServiceSuite) TestFindByAccountEmail() {
	owner := s.newAccount("jane.doe@example.com", "")
	linked := s.newAccount("Linked@Example.com", "Linked")

	first, err := s.service.Create(s.ctx, models.CreateOptions{AccountID: &linked.ID, Name: "First"})
	s.Require().NoError(err)
	later := requestcontext.WithTime(s.ctx, requestcontext.Now(s.ctx).Add(time.Hour))
	_, err = s.service.Create(later, models.CreateOptions{AccountID: &linked.ID, Name: "Second"})
	s.Require().NoError(err)

	groveID := id.GroveID(uuid.New())
	s.memberships.byPerson[first.ID] = []models.MembershipSummary{{
		MembershipID:        id.MembershipID(uuid.New()),
		GroveID:             groveID,
		GroveName:           "Doe Family",
		GroveOwnerAccountID: owner.ID,
		IsOriginal:          true,
		Status:              "active",
	}}

	s.Run("email lookup is case and space insensitive", func() {
		found, err := s.service.FindByAccountEmail(s.ctx, "  linked@EXAMPLE.com ")
		s.Require().NoError(err)
		s.Equal(first.ID, found.ID, "first associated person wins")
		s.Equal(1, found.GroveCount)
		s.Require().Len(found.Memberships, 1)
		s.Equal(groveID, found.Memberships[0].GroveID)
		s.Equal("Jane Doe", found.Memberships[0].OwnerDisplayName, "display name falls back to email")
	})

	s.Run("unknown account is not found", func() {
		_, err := s.service.FindByAccountEmail(s.ctx, "nobody@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("account without person is not found", func() {
		_, err := s.service.FindByAccountEmail(s.ctx, "jane.doe@example.com")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *PersonServiceSuite) TestFindByID() {
	s.Run("person without memberships has zero grove count", func() {
		p, err := s.service.Create(s.ctx, models.CreateOptions{Name: "Solo"})
		s.Require().NoError(err)

		found, err := s.service.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Zero(found.GroveCount)
		s.Empty(found.Memberships)
	})

	s.Run("missing person", func() {
		_, err := s.service.FindByID(s.ctx, id.PersonID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *PersonServiceSuite) TestSearchByName() {
	for i := 0; i < 12; i++ {
		_, err := s.service.Create(s.ctx, models.CreateOptions{Name: "Smith " + string(rune('A'+i))})
		s.Require().NoError(err)
	}
	_, err := s.service.Create(s.ctx, models.CreateOptions{Name: "Jones"})
	s.Require().NoError(err)

	s.Run("default limit is ten", func() {
		results, err := s.service.SearchByName(s.ctx, "smith", 0)
		s.Require().NoError(err)
		s.Len(results, DefaultSearchLimit)
	})

	s.Run("case-insensitive substring", func() {
		results, err := s.service.SearchByName(s.ctx, "ONE", 5)
		s.Require().NoError(err)
		s.Require().Len(results, 1)
		s.Equal("Jones", results[0].Name)
	})

	s.Run("empty query rejected", func() {
		_, err := s.service.SearchByName(s.ctx, "  ", 5)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
