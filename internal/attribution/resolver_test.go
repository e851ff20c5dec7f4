package attribution

import (
	"testing"
	"time"

	"jobflow_backend/internal/crm"
)

const reviewStatusField = "reviewStatusFieldID"

func opp(id string, age time.Duration, status string, fields ...crm.CustomField) crm.Opportunity {
	return crm.Opportunity{
		ID:           id,
		Status:       status,
		CreatedAt:    time.Now().Add(-age),
		CustomFields: fields,
	}
}

func TestResolveEmptyCandidates(t *testing.T) {
	if _, ok := Resolve(KindReview, nil, reviewStatusField); ok {
		t.Fatal("expected no target for empty candidate set")
	}
	if _, ok := Resolve(KindPayment, nil, reviewStatusField); ok {
		t.Fatal("expected no target for empty candidate set")
	}
}

func TestResolveReviewPrefersOutstandingRequest(t *testing.T) {
	candidates := []crm.Opportunity{
		opp("A", 48*time.Hour, "won"),
		opp("B", 24*time.Hour, "open", crm.Field(reviewStatusField, "Scheduled")),
	}

	target, ok := Resolve(KindReview, candidates, reviewStatusField)
	if !ok {
		t.Fatal("expected a target")
	}
	if target.ID != "B" {
		t.Fatalf("expected B (outstanding request), got %s", target.ID)
	}
}

func TestResolveReviewMostRecentOutstandingWins(t *testing.T) {
	candidates := []crm.Opportunity{
		opp("older", 72*time.Hour, "won", crm.Field(reviewStatusField, "Sent")),
		opp("newer", 24*time.Hour, "lost", crm.Field(reviewStatusField, "Scheduled")),
	}

	target, _ := Resolve(KindReview, candidates, reviewStatusField)
	if target.ID != "newer" {
		t.Fatalf("expected most recent outstanding candidate, got %s", target.ID)
	}
}

func TestResolveReviewFallsBackToMostRecentWon(t *testing.T) {
	candidates := []crm.Opportunity{
		opp("oldWon", 96*time.Hour, "won"),
		opp("newWon", 48*time.Hour, "won"),
		opp("newest", 12*time.Hour, "lost"),
	}

	target, _ := Resolve(KindReview, candidates, reviewStatusField)
	if target.ID != "newWon" {
		t.Fatalf("expected most recent won candidate, got %s", target.ID)
	}
}

func TestResolveReviewFallsBackToMostRecentOverall(t *testing.T) {
	candidates := []crm.Opportunity{
		opp("older", 48*time.Hour, "lost"),
		opp("newer", 12*time.Hour, "open"),
	}

	target, _ := Resolve(KindReview, candidates, reviewStatusField)
	if target.ID != "newer" {
		t.Fatalf("expected most recent candidate, got %s", target.ID)
	}
}

func TestResolvePaymentPrefersMostRecentOpen(t *testing.T) {
	candidates := []crm.Opportunity{
		opp("oldOpen", 72*time.Hour, "open"),
		opp("newOpen", 24*time.Hour, "open"),
		opp("newest", 6*time.Hour, "won"),
	}

	target, _ := Resolve(KindPayment, candidates, reviewStatusField)
	if target.ID != "newOpen" {
		t.Fatalf("expected most recent open candidate, got %s", target.ID)
	}
}

func TestResolvePaymentFallsBackToMostRecentOverall(t *testing.T) {
	candidates := []crm.Opportunity{
		opp("A", 72*time.Hour, "won"),
		opp("B", 24*time.Hour, "lost"),
	}

	target, _ := Resolve(KindPayment, candidates, reviewStatusField)
	if target.ID != "B" {
		t.Fatalf("expected most recent overall, got %s", target.ID)
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	candidates := []crm.Opportunity{
		opp("old", 48*time.Hour, "open"),
		opp("new", 1*time.Hour, "open"),
	}

	Resolve(KindPayment, candidates, reviewStatusField)
	if candidates[0].ID != "old" || candidates[1].ID != "new" {
		t.Fatal("candidate slice order was mutated")
	}
}
