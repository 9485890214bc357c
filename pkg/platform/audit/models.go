package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies and Kafka topics per category.
type EventCategory string

const (
	// CategoryCompliance covers events with legal significance for the
	// estate: ownership transfers, memorial status, stewardship grants.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers routine membership bookkeeping. These can be
	// sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject is the aggregate the action applied to (person, grove, heir, branch).
	Subject string
	Action  string
	Reason  string
	// ActorID is the account that caused the action, empty for scheduled jobs.
	ActorID   string
	RequestID string
}

type AuditEvent string

const (
	// Person registry
	EventPersonCreated AuditEvent = "person_created"

	// Membership ledger
	EventMembershipAdded   AuditEvent = "membership_added"
	EventMembershipRemoved AuditEvent = "membership_removed"
	EventTreeCountSynced   AuditEvent = "tree_count_synced"
	EventTreeCountDrift    AuditEvent = "tree_count_drift"

	// Succession
	EventSuccessorAdded    AuditEvent = "successor_added"
	EventSuccessorReleased AuditEvent = "successor_released"
	EventReleaseFailed     AuditEvent = "successor_release_failed"
	EventArchiveDownloaded AuditEvent = "archive_downloaded"

	// Legacy lifecycle
	EventBranchMarkedLegacy  AuditEvent = "branch_marked_legacy"
	EventLegacyManagerAdded  AuditEvent = "legacy_manager_added"
	EventEmptyLegacyReported AuditEvent = "empty_legacy_reported"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventSuccessorAdded:     CategoryCompliance,
	EventSuccessorReleased:  CategoryCompliance,
	EventArchiveDownloaded:  CategoryCompliance,
	EventBranchMarkedLegacy: CategoryCompliance,
	EventLegacyManagerAdded: CategoryCompliance,

	EventPersonCreated:       CategoryOperations,
	EventMembershipAdded:     CategoryOperations,
	EventMembershipRemoved:   CategoryOperations,
	EventTreeCountSynced:     CategoryOperations,
	EventTreeCountDrift:      CategoryOperations,
	EventReleaseFailed:       CategoryOperations,
	EventEmptyLegacyReported: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. The Postgres implementation writes to the
// outbox inside the caller's transaction when one is bound to ctx.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher is what services depend on.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}
