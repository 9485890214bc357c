package app

import (
	"context"
	"database/sql"

	legacyservice "heirloom/internal/legacy/service"
	branchstore "heirloom/internal/legacy/store/branch"
	managerstore "heirloom/internal/legacy/store/manager"
	membershipmodels "heirloom/internal/membership/models"
	membershipservice "heirloom/internal/membership/service"
	grovestore "heirloom/internal/membership/store/grove"
	membershipstore "heirloom/internal/membership/store/membership"
	subscriptionstore "heirloom/internal/membership/store/subscription"
	personmodels "heirloom/internal/person/models"
	personservice "heirloom/internal/person/service"
	accountstore "heirloom/internal/person/store/account"
	personstore "heirloom/internal/person/store/person"
	"heirloom/internal/platform/postgres"
	successionservice "heirloom/internal/succession/service"
	heirstore "heirloom/internal/succession/store/heir"
	id "heirloom/pkg/domain"
	audit "heirloom/pkg/platform/audit"
	auditmemory "heirloom/pkg/platform/audit/store/memory"
	auditpostgres "heirloom/pkg/platform/audit/store/postgres"
	"heirloom/pkg/platform/tx"
)

// personRows serves both the registry and the ledger.
type personRows interface {
	personservice.PersonStore
	FindByIDs(ctx context.Context, ids []id.PersonID) (map[id.PersonID]*personmodels.Person, error)
}

// membershipRows adds the batch read the registry enrichment needs.
type membershipRows interface {
	membershipservice.MembershipStore
	ListByPersons(ctx context.Context, personIDs []id.PersonID) ([]*membershipmodels.Membership, error)
}

// stores is one backend's full set of persistence.
type stores struct {
	runner        tx.Runner
	audit         audit.Store
	accounts      personservice.AccountStore
	persons       personRows
	groves        membershipservice.GroveStore
	memberships   membershipRows
	subscriptions membershipservice.SubscriptionStore
	branches      legacyservice.BranchStore
	managers      legacyservice.ManagerStore
	heirs         successionservice.HeirStore
}

func memoryStores() stores {
	return stores{
		runner:        tx.NewLockingRunner(),
		audit:         auditmemory.NewInMemoryStore(),
		accounts:      accountstore.NewInMemory(),
		persons:       personstore.NewInMemory(),
		groves:        grovestore.NewInMemory(),
		memberships:   membershipstore.NewInMemory(),
		subscriptions: subscriptionstore.NewInMemory(),
		branches:      branchstore.NewInMemory(),
		managers:      managerstore.NewInMemory(),
		heirs:         heirstore.NewInMemory(),
	}
}

func postgresStores(db *sql.DB, runner *postgres.TxRunner) stores {
	return stores{
		runner:        runner,
		audit:         auditpostgres.New(db),
		accounts:      accountstore.NewPostgres(db),
		persons:       personstore.NewPostgres(db),
		groves:        grovestore.NewPostgres(db),
		memberships:   membershipstore.NewPostgres(db),
		subscriptions: subscriptionstore.NewPostgres(db),
		branches:      branchstore.NewPostgres(db),
		managers:      managerstore.NewPostgres(db),
		heirs:         heirstore.NewPostgres(db),
	}
}
