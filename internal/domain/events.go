package domain

const (
	CanonicalEventClassDomain        = "domain"
	CanonicalEventClassAnalyticsOnly = "analytics_only"
	CanonicalEventClassOps           = "ops"
)

const (
	EventEscrowCreated           = "escrow.created"
	EventEscrowFunded            = "escrow.funded"
	EventEscrowPaidOut           = "escrow.paid_out"
	EventEscrowClosed            = "escrow.closed"
	EventEscrowFrozen            = "escrow.frozen"
	EventEscrowThawed            = "escrow.thawed"
	EventEscrowOpenEnabled       = "escrow.open_contribution_enabled"
	EventEscrowOpenDisabled      = "escrow.open_contribution_disabled"
	EventEscrowAdminAdded        = "escrow.admin_added"
	EventEscrowAdminRemoved      = "escrow.admin_removed"
	EventPaymentInitialized      = "payment.initialized"
	EventPaymentClaimed          = "payment.claimed"
	EventPaymentReleaseStatusSet = "payment.release_status_changed"
)

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventEscrowCreated, EventEscrowFunded, EventEscrowPaidOut, EventEscrowClosed,
		EventEscrowFrozen, EventEscrowThawed, EventEscrowOpenEnabled, EventEscrowOpenDisabled,
		EventEscrowAdminAdded, EventEscrowAdminRemoved,
		EventPaymentInitialized, EventPaymentClaimed, EventPaymentReleaseStatusSet:
		return true
	default:
		return false
	}
}

func CanonicalEventClass(eventType string) string {
	switch eventType {
	case EventEscrowFunded, EventEscrowPaidOut, EventEscrowClosed, EventPaymentClaimed:
		return CanonicalEventClassDomain
	case EventEscrowCreated, EventEscrowFrozen, EventEscrowThawed,
		EventEscrowOpenEnabled, EventEscrowOpenDisabled,
		EventEscrowAdminAdded, EventEscrowAdminRemoved,
		EventPaymentInitialized, EventPaymentReleaseStatusSet:
		return CanonicalEventClassAnalyticsOnly
	default:
		return ""
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	if !IsCanonicalEmittedEvent(eventType) {
		return ""
	}
	switch CanonicalEventClass(eventType) {
	case CanonicalEventClassDomain, CanonicalEventClassAnalyticsOnly:
		if eventType == EventPaymentInitialized || eventType == EventPaymentClaimed || eventType == EventPaymentReleaseStatusSet {
			return "data.payment_id"
		}
		return "data.escrow_id"
	default:
		return ""
	}
}
