package adapters

import (
	"context"

	"heirloom/internal/membership/models"
	personmodels "heirloom/internal/person/models"
	id "heirloom/pkg/domain"
)

type membershipLister interface {
	ListByPersons(ctx context.Context, personIDs []id.PersonID) ([]*models.Membership, error)
}

type groveFinder interface {
	FindByIDs(ctx context.Context, ids []id.GroveID) (map[id.GroveID]*models.Grove, error)
}

type subscriptionFinder interface {
	FindByIDs(ctx context.Context, ids []id.SubscriptionID) (map[id.SubscriptionID]*models.Subscription, error)
}

// PersonReader supplies membership summaries to the person registry so that
// registry reads are a single batched join per request.
type PersonReader struct {
	memberships   membershipLister
	groves        groveFinder
	subscriptions subscriptionFinder
}

func NewPersonReader(memberships membershipLister, groves groveFinder, subscriptions subscriptionFinder) *PersonReader {
	return &PersonReader{memberships: memberships, groves: groves, subscriptions: subscriptions}
}

func (r *PersonReader) ListForPersons(ctx context.Context, personIDs []id.PersonID) (map[id.PersonID][]personmodels.MembershipSummary, error) {
	out := make(map[id.PersonID][]personmodels.MembershipSummary, len(personIDs))
	list, err := r.memberships.ListByPersons(ctx, personIDs)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return out, nil
	}

	groveSet := make(map[id.GroveID]struct{})
	var subIDs []id.SubscriptionID
	for _, m := range list {
		groveSet[m.GroveID] = struct{}{}
		if m.SubscriptionID != nil {
			subIDs = append(subIDs, *m.SubscriptionID)
		}
	}
	groveIDs := make([]id.GroveID, 0, len(groveSet))
	for groveID := range groveSet {
		groveIDs = append(groveIDs, groveID)
	}

	groves, err := r.groves.FindByIDs(ctx, groveIDs)
	if err != nil {
		return nil, err
	}
	subs, err := r.subscriptions.FindByIDs(ctx, subIDs)
	if err != nil {
		return nil, err
	}

	for _, m := range list {
		summary := personmodels.MembershipSummary{
			MembershipID: m.ID,
			GroveID:      m.GroveID,
			IsOriginal:   m.IsOriginal,
			AdoptionType: m.AdoptionType.String(),
			Status:       m.Status.String(),
		}
		if g, ok := groves[m.GroveID]; ok {
			summary.GroveName = g.Name
			summary.GroveOwnerAccountID = g.OwnerAccountID
		}
		if m.SubscriptionID != nil {
			summary.HasSubscription = models.HasSubscription(subs[*m.SubscriptionID])
		}
		out[m.PersonID] = append(out[m.PersonID], summary)
	}
	return out, nil
}
