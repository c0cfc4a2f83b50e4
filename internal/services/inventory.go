package services

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/logger"
	"github.com/abrezinsky/rafflebook/internal/metrics"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/repository"
)

// InventoryServiceRepository defines the repository methods needed by InventoryService
type InventoryServiceRepository interface {
	repository.TxRunner
	GetDraw(ctx context.Context, id string) (*models.Draw, error)
	BumpDrawVersion(ctx context.Context, id string, expectedVersion int64, now time.Time) error
	InsertParticipation(ctx context.Context, p models.Participation) error
	ListParticipationsByDraw(ctx context.Context, drawID string, statuses ...models.PaymentStatus) ([]models.Participation, error)
}

// InventoryService projects the unavailable numbers of a draw and admits new claims
type InventoryService struct {
	log         logger.Logger
	repo        InventoryServiceRepository
	clock       clock.Clock
	broadcaster Broadcaster
	tuning      tuning
}

// NewInventoryService creates a new InventoryService
func NewInventoryService(log logger.Logger, repo InventoryServiceRepository, clk clock.Clock, opts ...Option) *InventoryService {
	return &InventoryService{
		log:    log,
		repo:   repo,
		clock:  clk,
		tuning: newTuning(opts),
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *InventoryService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// ClaimRequest is a participant's request for specific numbers
type ClaimRequest struct {
	Numbers        []int  `json:"numbers"`
	PurchaserName  string `json:"purchaser_name"`
	PurchaserPhone string `json:"purchaser_phone"`
}

// ClaimReceipt is returned after a successful claim, for the message composer downstream
type ClaimReceipt struct {
	Participation *models.Participation `json:"participation"`
	DrawTitle     string                `json:"draw_title"`
	TotalAmount   decimal.Decimal       `json:"total_amount"`
	Currency      models.Currency       `json:"currency"`
}

// liveStatuses are the payment statuses that occupy a number
var liveStatuses = []models.PaymentStatus{models.PaymentPending, models.PaymentConfirmed}

// unavailableSet returns the union of numbers held by non-rejected participations
func unavailableSet(parts []models.Participation) map[int]struct{} {
	set := make(map[int]struct{})
	for _, p := range parts {
		if p.PaymentStatus == models.PaymentRejected {
			continue
		}
		for _, n := range p.Numbers {
			set[n] = struct{}{}
		}
	}
	return set
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// ComputeUnavailable returns, in ascending order, every number of the draw
// held by a pending or confirmed participation
func (s *InventoryService) ComputeUnavailable(ctx context.Context, drawID string) ([]int, error) {
	if _, err := s.repo.GetDraw(ctx, drawID); err != nil {
		return nil, storeError(ctx, err, "draw")
	}
	parts, err := s.repo.ListParticipationsByDraw(ctx, drawID, liveStatuses...)
	if err != nil {
		return nil, storeError(ctx, err, "participations")
	}
	return sortedKeys(unavailableSet(parts)), nil
}

// AvailableNumbers returns, in ascending order, every number of the draw nobody holds
func (s *InventoryService) AvailableNumbers(ctx context.Context, drawID string) ([]int, error) {
	draw, err := s.repo.GetDraw(ctx, drawID)
	if err != nil {
		return nil, storeError(ctx, err, "draw")
	}
	parts, err := s.repo.ListParticipationsByDraw(ctx, drawID, liveStatuses...)
	if err != nil {
		return nil, storeError(ctx, err, "participations")
	}
	taken := unavailableSet(parts)
	available := make([]int, 0, draw.TotalNumbers-len(taken))
	for n := 1; n <= draw.TotalNumbers; n++ {
		if _, ok := taken[n]; !ok {
			available = append(available, n)
		}
	}
	return available, nil
}

// validateClaim checks the requested numbers against the draw's range and
// purchase limits. numbers must already be sorted.
func validateClaim(draw *models.Draw, numbers []int) error {
	if len(numbers) == 0 {
		return errors.InvalidInput("at least one number is required")
	}
	for i, n := range numbers {
		if n < 1 || n > draw.TotalNumbers {
			return errors.InvalidInputf("number %d is outside 1..%d", n, draw.TotalNumbers)
		}
		if i > 0 && numbers[i-1] == n {
			return errors.InvalidInputf("number %d is requested twice", n)
		}
	}
	if draw.MinPerPurchase != nil && len(numbers) < *draw.MinPerPurchase {
		return errors.InvalidInputf("at least %d numbers per purchase", *draw.MinPerPurchase)
	}
	if draw.MaxPerPurchase != nil && len(numbers) > *draw.MaxPerPurchase {
		return errors.InvalidInputf("at most %d numbers per purchase", *draw.MaxPerPurchase)
	}
	return nil
}

// TryClaim reserves numbers for actor as a pending participation. The
// availability check and the insert commit together only if no other writer
// changed the draw in between; otherwise the claim is re-read and retried.
func (s *InventoryService) TryClaim(ctx context.Context, actor models.Actor, drawID string, req ClaimRequest) (*ClaimReceipt, error) {
	start := time.Now()
	receipt, retries, err := s.tryClaim(ctx, actor, drawID, req)
	metrics.RecordClaim(claimOutcome(err), retries, time.Since(start))
	return receipt, err
}

func claimOutcome(err error) string {
	if err == nil {
		return "created"
	}
	return errors.KindOf(err).String()
}

func (s *InventoryService) tryClaim(ctx context.Context, actor models.Actor, drawID string, req ClaimRequest) (*ClaimReceipt, int, error) {
	if err := requireCapability(actor, models.CapClaimNumbers); err != nil {
		return nil, 0, err
	}

	numbers := append([]int(nil), req.Numbers...)
	sort.Ints(numbers)

	ctx, cancel := context.WithTimeout(ctx, s.tuning.claimTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= s.tuning.maxRetries; attempt++ {
		receipt, err := s.attemptClaim(ctx, actor, drawID, numbers, req)
		if err == nil {
			s.log.Info("Numbers claimed",
				"draw", drawID,
				"participation", receipt.Participation.ID,
				"purchaser", actor.ID,
				"numbers", numbers,
				"attempt", attempt)
			s.broadcastInventory(ctx, drawID)
			return receipt, attempt - 1, nil
		}
		if !isVersionConflict(err) {
			if errors.IsKind(err, errors.ErrTimeout) {
				s.log.Warn("Claim timed out", "draw", drawID, "purchaser", actor.ID, "attempt", attempt)
			}
			return nil, attempt - 1, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.log.Warn("Claim timed out", "draw", drawID, "purchaser", actor.ID, "attempt", attempt)
			return nil, attempt - 1, errors.Timeout(ctxErr)
		}
		lastErr = err
		s.log.Debug("Claim lost a version race, retrying", "draw", drawID, "attempt", attempt)
	}

	s.log.Warn("Claim gave up after repeated version conflicts", "draw", drawID, "purchaser", actor.ID)
	return nil, s.tuning.maxRetries - 1, errors.Contention(s.tuning.maxRetries, lastErr)
}

// attemptClaim runs one read-validate-commit cycle inside a single write
// transaction, so the availability check sees every claim committed before
// it. A repository.ErrVersionConflict return means another writer slipped
// in anyway and the caller may retry.
func (s *InventoryService) attemptClaim(ctx context.Context, actor models.Actor, drawID string, numbers []int, req ClaimRequest) (*ClaimReceipt, error) {
	var (
		draw *models.Draw
		p    models.Participation
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		draw, err = s.repo.GetDraw(txCtx, drawID)
		if err != nil {
			return storeError(ctx, err, "draw")
		}
		if draw.Status != models.DrawActive {
			return errors.InvalidInputf("draw is %s and not accepting claims", draw.Status)
		}
		if err := validateClaim(draw, numbers); err != nil {
			return err
		}

		parts, err := s.repo.ListParticipationsByDraw(txCtx, drawID, liveStatuses...)
		if err != nil {
			return storeError(ctx, err, "participations")
		}
		taken := unavailableSet(parts)
		var conflicts []int
		for _, n := range numbers {
			if _, ok := taken[n]; ok {
				conflicts = append(conflicts, n)
			}
		}
		if len(conflicts) > 0 {
			return errors.NumberUnavailable(conflicts)
		}

		now := s.clock.Now()
		p = models.Participation{
			ID:                uuid.NewString(),
			DrawID:            drawID,
			Numbers:           numbers,
			PaymentStatus:     models.PaymentPending,
			PurchaserID:       actor.ID,
			PurchaserName:     strings.TrimSpace(req.PurchaserName),
			PurchaserPhone:    strings.TrimSpace(req.PurchaserPhone),
			PurchaseTimestamp: now,
			Version:           1,
			UpdatedAt:         now,
		}
		if err := s.repo.BumpDrawVersion(txCtx, drawID, draw.Version, now); err != nil {
			return err
		}
		return s.repo.InsertParticipation(txCtx, p)
	})
	if err != nil {
		var appErr *errors.Error
		switch {
		case stderrors.As(err, &appErr):
			return nil, err
		case isVersionConflict(err):
			return nil, err
		case stderrors.Is(err, repository.ErrAlreadyExists):
			return nil, errors.Internalf("participation id collision for %s", p.ID)
		}
		return nil, storeError(ctx, err, "draw")
	}

	return &ClaimReceipt{
		Participation: &p,
		DrawTitle:     draw.Title,
		TotalAmount:   draw.PricePerTicket.Mul(decimal.NewFromInt(int64(len(numbers)))),
		Currency:      draw.Currency,
	}, nil
}

// broadcastInventory pushes the current unavailable set to live clients.
// Failures only cost a stale view, so they are logged and dropped.
func (s *InventoryService) broadcastInventory(ctx context.Context, drawID string) {
	if s.broadcaster == nil {
		return
	}
	unavailable, err := s.ComputeUnavailable(ctx, drawID)
	if err != nil {
		s.log.Debug("Skipping inventory broadcast", "draw", drawID, "error", err)
		return
	}
	s.broadcaster.BroadcastInventory(drawID, unavailable)
}
