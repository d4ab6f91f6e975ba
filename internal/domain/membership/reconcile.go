// internal/domain/membership/reconcile.go
package membership

// NewMembers returns the CRM addresses that have not been recorded yet.
// crm must already be deduplicated, which a Set guarantees.
func NewMembers(crm, recorded Set) Set {
	return crm.Difference(recorded)
}

// Unsubscribed returns the addresses that were on the list last run, are gone now,
// and have not already been recorded as unsubscribed.
func Unsubscribed(previous, current, alreadyUnsubscribed Set) Set {
	return previous.Difference(current, alreadyUnsubscribed)
}

// Aggregate computes (recorded ∪ previous) \ unsubscribed and reports whether it
// differs from the persisted aggregate.
func Aggregate(recorded, previous, unsubscribed, persisted Set) (Set, bool) {
	candidate := recorded.Union(previous).Difference(unsubscribed)
	return candidate, !candidate.Equal(persisted)
}
