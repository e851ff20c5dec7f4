// Package attribution selects the single opportunity an asynchronous external
// event belongs to. Candidates come from a loosely-scoped platform search;
// the resolver applies a priority chain with ordered fallback and recency as
// the final tie-break. Pure and synchronous.
package attribution

import (
	"sort"

	"jobflow_backend/internal/crm"
	"jobflow_backend/internal/fieldmap"
)

// EventKind distinguishes the priority chain to apply.
type EventKind int

const (
	// KindReview attributes a received review or review notification.
	KindReview EventKind = iota
	// KindPayment attributes a payment confirmation.
	KindPayment
)

// Resolve returns the target opportunity for the event, or ok=false when the
// candidate set yields no target. Candidates may arrive in any order; they
// are ranked most-recent-first before the chain is evaluated.
//
// Review chain: an opportunity with an outstanding request (review status
// Sent or Scheduled) wins over everything, because it encodes intent the
// business explicitly captured; then the most recent won opportunity; then
// the most recent overall.
//
// Payment chain: the most recent open opportunity wins, since a won or lost
// job is less likely to still owe money; then the most recent overall.
func Resolve(kind EventKind, candidates []crm.Opportunity, reviewStatusField string) (crm.Opportunity, bool) {
	if len(candidates) == 0 {
		return crm.Opportunity{}, false
	}

	ranked := make([]crm.Opportunity, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})

	switch kind {
	case KindReview:
		if opp, ok := firstMatch(ranked, func(o crm.Opportunity) bool {
			status, _ := crm.ReadField(o, reviewStatusField)
			return status == fieldmap.ReviewStatusSent || status == fieldmap.ReviewStatusScheduled
		}); ok {
			return opp, true
		}
		if opp, ok := firstMatch(ranked, func(o crm.Opportunity) bool {
			return o.Status == "won"
		}); ok {
			return opp, true
		}
	case KindPayment:
		if opp, ok := firstMatch(ranked, func(o crm.Opportunity) bool {
			return o.Status == "open"
		}); ok {
			return opp, true
		}
	}

	return ranked[0], true
}

func firstMatch(ranked []crm.Opportunity, match func(crm.Opportunity) bool) (crm.Opportunity, bool) {
	for _, opp := range ranked {
		if match(opp) {
			return opp, true
		}
	}
	return crm.Opportunity{}, false
}
