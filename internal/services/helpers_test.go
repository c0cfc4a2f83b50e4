package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/logger"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/repository"
	"github.com/abrezinsky/rafflebook/internal/services"
	"github.com/abrezinsky/rafflebook/internal/testutil"
	"github.com/abrezinsky/rafflebook/pkg/receiptcheck"
)

var (
	owner       = models.Actor{ID: "org-1", Role: models.RoleOwner}
	operator    = models.Actor{ID: "op-1", Role: models.RoleOperator}
	participant = models.Actor{ID: "buyer-1", Role: models.RoleParticipant}
	other       = models.Actor{ID: "buyer-2", Role: models.RoleParticipant}
)

// recordingBroadcaster captures broadcasts for assertions
type recordingBroadcaster struct {
	mu        sync.Mutex
	inventory map[string][]int
	statuses  []models.DrawStatus
	resolved  []*models.DrawResult
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{inventory: make(map[string][]int)}
}

func (b *recordingBroadcaster) BroadcastInventory(drawID string, unavailable []int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inventory[drawID] = unavailable
}

func (b *recordingBroadcaster) BroadcastDrawStatus(drawID string, status models.DrawStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses = append(b.statuses, status)
}

func (b *recordingBroadcaster) BroadcastDrawResolved(result *models.DrawResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolved = append(b.resolved, result)
}

func (b *recordingBroadcaster) lastInventory(drawID string) ([]int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.inventory[drawID]
	return v, ok
}

// harness wires every service against one in-memory store
type harness struct {
	repo      repository.FullRepository
	log       logger.Logger
	clock     *clock.Fixed
	audit     *services.AuditService
	catalog   *services.CatalogService
	inventory *services.InventoryService
	ledger    *services.LedgerService
	results   *services.ResultsService
	receipts  *receiptcheck.MockClient
	broadcast *recordingBroadcaster
}

func newHarness(t *testing.T, opts ...services.Option) *harness {
	t.Helper()
	return newHarnessWithRepo(t, testutil.NewTestRepository(t), opts...)
}

func newHarnessWithRepo(t *testing.T, repo repository.FullRepository, opts ...services.Option) *harness {
	t.Helper()
	log := testLogger()
	clk := testutil.NewClock()
	audit := services.NewAuditService(log, repo, clk)
	h := &harness{
		repo:      repo,
		log:       log,
		clock:     clk,
		audit:     audit,
		catalog:   services.NewCatalogService(log, repo, audit, clk, opts...),
		inventory: services.NewInventoryService(log, repo, clk, opts...),
		receipts:  receiptcheck.NewMockClient(),
		results:   services.NewResultsService(log, repo, audit, clk, opts...),
		broadcast: newRecordingBroadcaster(),
	}
	h.ledger = services.NewLedgerService(log, repo, audit, clk, h.receipts, "http://raffle.local/", opts...)
	h.catalog.SetBroadcaster(h.broadcast)
	h.inventory.SetBroadcaster(h.broadcast)
	h.ledger.SetBroadcaster(h.broadcast)
	h.results.SetBroadcaster(h.broadcast)
	return h
}

func intPtr(n int) *int { return &n }

// drawInput returns a valid single-prize draw configuration
func drawInput(total int) services.DrawInput {
	return services.DrawInput{
		Title:          "Spring raffle",
		TotalNumbers:   total,
		PricePerTicket: decimal.RequireFromString("2.50"),
		Currency:       models.CurrencyUSD,
		Prizes:         []models.Prize{{Description: "Bike"}},
	}
}

func (h *harness) createDraw(t *testing.T, in services.DrawInput) *models.Draw {
	t.Helper()
	change, err := h.catalog.CreateDraw(context.Background(), owner, in)
	if err != nil {
		t.Fatalf("CreateDraw failed: %v", err)
	}
	return change.Draw
}

func (h *harness) claim(t *testing.T, actor models.Actor, drawID string, numbers ...int) *models.Participation {
	t.Helper()
	receipt, err := h.inventory.TryClaim(context.Background(), actor, drawID, services.ClaimRequest{
		Numbers:        numbers,
		PurchaserName:  "Name of " + actor.ID,
		PurchaserPhone: "555-" + actor.ID,
	})
	if err != nil {
		t.Fatalf("TryClaim(%v) failed: %v", numbers, err)
	}
	return receipt.Participation
}

func (h *harness) setStatus(t *testing.T, id string, status models.PaymentStatus) {
	t.Helper()
	if _, err := h.ledger.SetPaymentStatus(context.Background(), operator, id, status); err != nil {
		t.Fatalf("SetPaymentStatus(%s, %s) failed: %v", id, status, err)
	}
}

func (h *harness) unavailable(t *testing.T, drawID string) []int {
	t.Helper()
	nums, err := h.inventory.ComputeUnavailable(context.Background(), drawID)
	if err != nil {
		t.Fatalf("ComputeUnavailable failed: %v", err)
	}
	return nums
}

func (h *harness) auditEvents(t *testing.T, action models.AuditAction) []models.AuditEvent {
	t.Helper()
	events, err := h.audit.List(context.Background(), owner, models.AuditFilter{ActionType: action})
	if err != nil {
		t.Fatalf("List audit failed: %v", err)
	}
	return events
}

func wantKind(t *testing.T, err error, kind errors.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := errors.KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func contains(nums []int, n int) bool {
	for _, v := range nums {
		if v == n {
			return true
		}
	}
	return false
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func at(h *harness, d time.Duration) time.Time {
	return h.clock.Now().Add(d)
}

func testLogger() logger.Logger {
	log, _ := testutil.NewLogger()
	return log
}
