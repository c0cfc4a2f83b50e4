package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/services"
)

// ============================================================================
// Integration Test: Full Draw Lifecycle
// ============================================================================

// TestIntegration_FullDrawLifecycle walks a draw from creation to resolution
func TestIntegration_FullDrawLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Step 1: Organizer creates a two-prize draw
	in := drawInput(100)
	in.Prizes = []models.Prize{{Description: "Bike"}, {Description: "Radio"}}
	draw := h.createDraw(t, in)

	// Step 2: Two buyers race for number 42
	var wg sync.WaitGroup
	receipts := make([]*services.ClaimReceipt, 2)
	errs := make([]error, 2)
	for i, buyer := range []models.Actor{participant, other} {
		wg.Add(1)
		go func(i int, buyer models.Actor) {
			defer wg.Done()
			receipts[i], errs[i] = h.inventory.TryClaim(ctx, buyer, draw.ID, services.ClaimRequest{
				Numbers:       []int{42},
				PurchaserName: "Buyer " + buyer.ID,
			})
		}(i, buyer)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			if winner != -1 {
				t.Fatal("both buyers claimed number 42")
			}
			winner = i
		case errors.IsKind(err, errors.ErrNumberUnavailable):
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if winner == -1 {
		t.Fatal("nobody claimed number 42")
	}
	holder := receipts[winner].Participation

	// Step 3: The losing buyer picks other numbers
	loser := []models.Actor{participant, other}[1-winner]
	second := h.claim(t, loser, draw.ID, 17, 18)

	// Step 4: Operator confirms one payment and rejects the other
	h.setStatus(t, holder.ID, models.PaymentConfirmed)
	h.setStatus(t, second.ID, models.PaymentRejected)

	if got := h.unavailable(t, draw.ID); !sameInts(got, []int{42}) {
		t.Errorf("expected only 42 unavailable, got %v", got)
	}

	// Step 5: Sales close and the draw is resolved
	if _, err := h.catalog.AdvanceStatus(ctx, owner, draw.ID, models.DrawPendingDraw); err != nil {
		t.Fatalf("AdvanceStatus failed: %v", err)
	}
	res, err := h.results.Resolve(ctx, operator, draw.ID, services.ResolveRequest{
		WinningNumbers: []*int{intPtr(42), intPtr(17)},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if res.Result.WinnerParticipationIDs[0] == nil || *res.Result.WinnerParticipationIDs[0] != holder.ID {
		t.Errorf("expected %s to win the first prize, got %v", holder.ID, res.Result.WinnerParticipationIDs[0])
	}
	if res.Result.WinnerNames[1] != nil {
		t.Errorf("rejected holder of 17 must not win, got %v", *res.Result.WinnerNames[1])
	}

	// Step 6: The audit trail tells the whole story in order
	events := h.auditEvents(t, "")
	want := []models.AuditAction{
		models.AuditDrawCreated,
		models.AuditPaymentConfirmed,
		models.AuditPaymentRejected,
		models.AuditDrawStatusChanged,
		models.AuditWinnerRegistered,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d audit events, got %d", len(want), len(events))
	}
	for i, e := range events {
		if e.ActionType != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], e.ActionType)
		}
		if i > 0 && !e.Timestamp.After(events[i-1].Timestamp) {
			t.Errorf("event %d timestamp is not increasing", i)
		}
	}

	// Step 7: A resolved draw accepts no more claims
	_, err = h.inventory.TryClaim(ctx, loser, draw.ID, services.ClaimRequest{Numbers: []int{50}, PurchaserName: "late"})
	wantKind(t, err, errors.ErrInvalidInput)
}

// ============================================================================
// Integration Test: Number uniqueness under load
// ============================================================================

// TestIntegration_NoNumberHeldTwice mixes concurrent claims and confirmations
// and checks that no live number ever belongs to two participations.
func TestIntegration_NoNumberHeldTwice(t *testing.T) {
	const buyers = 16
	h := newHarness(t)
	draw := h.createDraw(t, drawInput(20))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buyer := models.Actor{ID: fmt.Sprintf("buyer-%d", i), Role: models.RoleParticipant}
			// Overlapping windows of three numbers.
			start := (i % 18) + 1
			receipt, err := h.inventory.TryClaim(ctx, buyer, draw.ID, services.ClaimRequest{
				Numbers:       []int{start, start + 1, start + 2},
				PurchaserName: buyer.ID,
			})
			if err != nil {
				if !errors.IsKind(err, errors.ErrNumberUnavailable) {
					t.Errorf("buyer %d: unexpected error %v", i, err)
				}
				return
			}
			if _, err := h.ledger.SetPaymentStatus(ctx, operator, receipt.Participation.ID, models.PaymentConfirmed); err != nil {
				t.Errorf("buyer %d: confirm failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	parts, err := h.ledger.ListByDraw(ctx, operator, draw.ID)
	if err != nil {
		t.Fatalf("ListByDraw failed: %v", err)
	}
	if len(parts) == 0 {
		t.Fatal("expected at least one successful claim")
	}

	holders := make(map[int]string)
	for _, p := range parts {
		if p.PaymentStatus != models.PaymentConfirmed {
			t.Errorf("participation %s left %s", p.ID, p.PaymentStatus)
		}
		for _, n := range p.Numbers {
			if prev, ok := holders[n]; ok {
				t.Fatalf("number %d held by both %s and %s", n, prev, p.ID)
			}
			holders[n] = p.ID
		}
	}
}
