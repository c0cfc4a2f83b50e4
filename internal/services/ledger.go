package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"

	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/logger"
	"github.com/abrezinsky/rafflebook/internal/metrics"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/repository"
	"github.com/abrezinsky/rafflebook/pkg/receiptcheck"
)

// LedgerServiceRepository defines the repository methods needed by LedgerService
type LedgerServiceRepository interface {
	repository.TxRunner
	repository.ParticipationRepository
	GetDraw(ctx context.Context, id string) (*models.Draw, error)
	BumpDrawVersion(ctx context.Context, id string, expectedVersion int64, now time.Time) error
}

// LedgerService handles participation records and their payment status
type LedgerService struct {
	log         logger.Logger
	repo        LedgerServiceRepository
	audit       AuditServicer
	clock       clock.Clock
	receipts    receiptcheck.Client
	baseURL     string
	broadcaster Broadcaster
	tuning      tuning
}

// NewLedgerService creates a new LedgerService. receipts may be nil when no
// receipt checker is configured.
func NewLedgerService(log logger.Logger, repo LedgerServiceRepository, audit AuditServicer, clk clock.Clock, receipts receiptcheck.Client, baseURL string, opts ...Option) *LedgerService {
	return &LedgerService{
		log:      log,
		repo:     repo,
		audit:    audit,
		clock:    clk,
		receipts: receipts,
		baseURL:  strings.TrimRight(baseURL, "/"),
		tuning:   newTuning(opts),
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *LedgerService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// PaymentChange is the outcome of a payment status request
type PaymentChange struct {
	Participation *models.Participation `json:"participation"`
	Changed       bool                  `json:"changed"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// DeleteResult is the outcome of deleting a participation
type DeleteResult struct {
	Participation *models.Participation `json:"participation"`
	Warnings      []string              `json:"warnings,omitempty"`
}

// ProofRequest points at a payment receipt to check
type ProofRequest struct {
	ImageRef  string `json:"image_ref"`
	PayerName string `json:"payer_name,omitempty"`
}

// ProofResult is the advisory outcome of a receipt check
type ProofResult struct {
	ParticipationID string                `json:"participation_id"`
	ExpectedAmount  decimal.Decimal       `json:"expected_amount"`
	Verdict         *receiptcheck.Verdict `json:"verdict"`
	Warnings        []string              `json:"warnings,omitempty"`
}

// canSee reports whether actor may read participation p
func canSee(actor models.Actor, p *models.Participation) bool {
	return actor.Can(models.CapViewLedger) || (actor.ID != "" && actor.ID == p.PurchaserID)
}

// Get retrieves a participation. Purchasers see their own; ledger viewers see all.
func (s *LedgerService) Get(ctx context.Context, actor models.Actor, id string) (*models.Participation, error) {
	p, err := s.repo.GetParticipation(ctx, id)
	if err != nil {
		return nil, storeError(ctx, err, "participation")
	}
	if !canSee(actor, p) {
		return nil, errors.Unauthorized("participation belongs to another purchaser")
	}
	return p, nil
}

// ListByDraw returns every participation of a draw in purchase order
func (s *LedgerService) ListByDraw(ctx context.Context, actor models.Actor, drawID string) ([]models.Participation, error) {
	if err := requireCapability(actor, models.CapViewLedger); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetDraw(ctx, drawID); err != nil {
		return nil, storeError(ctx, err, "draw")
	}
	parts, err := s.repo.ListParticipationsByDraw(ctx, drawID)
	if err != nil {
		return nil, storeError(ctx, err, "participations")
	}
	if parts == nil {
		parts = []models.Participation{}
	}
	return parts, nil
}

// ListByPurchaser returns the actor's own participations
func (s *LedgerService) ListByPurchaser(ctx context.Context, actor models.Actor) ([]models.Participation, error) {
	if actor.ID == "" {
		return nil, errors.Unauthorized("missing actor identity")
	}
	parts, err := s.repo.ListParticipationsByPurchaser(ctx, actor.ID)
	if err != nil {
		return nil, storeError(ctx, err, "participations")
	}
	if parts == nil {
		parts = []models.Participation{}
	}
	return parts, nil
}

// SetPaymentStatus applies an operator's payment decision. Confirmation fails
// with ConflictingConfirmation when another confirmed participation of the
// draw already holds one of the numbers.
func (s *LedgerService) SetPaymentStatus(ctx context.Context, actor models.Actor, id string, status models.PaymentStatus) (*PaymentChange, error) {
	if err := requireCapability(actor, models.CapManagePayments); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, errors.InvalidInputf("unknown payment status %q", status)
	}

	change, err := s.setPaymentStatus(ctx, actor, id, status)
	if change == nil || change.Changed {
		metrics.RecordPaymentTransition(string(status), err == nil)
	}
	return change, err
}

func (s *LedgerService) setPaymentStatus(ctx context.Context, actor models.Actor, id string, status models.PaymentStatus) (*PaymentChange, error) {
	var lastErr error
	for attempt := 1; attempt <= s.tuning.maxRetries; attempt++ {
		p, err := s.repo.GetParticipation(ctx, id)
		if err != nil {
			return nil, storeError(ctx, err, "participation")
		}
		if p.PaymentStatus == status {
			return &PaymentChange{Participation: p}, nil
		}
		if !p.PaymentStatus.CanTransitionTo(status) {
			return nil, errors.InvalidInputf("payment cannot move from %s to %s", p.PaymentStatus, status)
		}

		now := s.clock.Now()
		if status == models.PaymentConfirmed {
			err = s.confirm(ctx, p, now)
		} else {
			err = s.repo.UpdatePaymentStatus(ctx, p.ID, p.Version, status, now)
		}
		if isVersionConflict(err) {
			lastErr = err
			s.log.Debug("Payment update lost a version race, retrying", "participation", id, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, storeError(ctx, err, "participation")
		}

		from := p.PaymentStatus
		p.PaymentStatus = status
		p.Version++
		p.UpdatedAt = now

		s.log.Info("Payment status changed", "participation", id, "draw", p.DrawID, "from", from, "to", status, "actor", actor.ID)

		action := models.AuditPaymentConfirmed
		if status == models.PaymentRejected {
			action = models.AuditPaymentRejected
		}
		warning := s.audit.Record(ctx, actor, action, participationRef(id), map[string]any{
			"draw_id":   p.DrawID,
			"numbers":   p.Numbers,
			"from":      from,
			"to":        status,
			"purchaser": p.PurchaserID,
		})
		if status == models.PaymentRejected {
			s.broadcastInventory(ctx, p.DrawID)
		}
		return &PaymentChange{Participation: p, Changed: true, Warnings: appendWarning(nil, warning)}, nil
	}
	return nil, errors.Contention(s.tuning.maxRetries, lastErr)
}

// confirm commits pending→confirmed after checking the draw's confirmed
// numbers. The check and the write share one transaction and the draw
// version bump serializes concurrent confirmations.
func (s *LedgerService) confirm(ctx context.Context, p *models.Participation, now time.Time) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		draw, err := s.repo.GetDraw(txCtx, p.DrawID)
		if err != nil {
			return storeError(ctx, err, "draw")
		}
		confirmed, err := s.repo.ListParticipationsByDraw(txCtx, p.DrawID, models.PaymentConfirmed)
		if err != nil {
			return storeError(ctx, err, "participations")
		}

		held := make(map[int]struct{})
		for _, other := range confirmed {
			if other.ID == p.ID {
				continue
			}
			for _, n := range other.Numbers {
				held[n] = struct{}{}
			}
		}
		var conflicts []int
		for _, n := range p.Numbers {
			if _, ok := held[n]; ok {
				conflicts = append(conflicts, n)
			}
		}
		if len(conflicts) > 0 {
			return errors.ConflictingConfirmation(conflicts)
		}

		if err := s.repo.BumpDrawVersion(txCtx, p.DrawID, draw.Version, now); err != nil {
			return err
		}
		return s.repo.UpdatePaymentStatus(txCtx, p.ID, p.Version, models.PaymentConfirmed, now)
	})
}

// Delete removes a participation in any status, freeing its numbers
func (s *LedgerService) Delete(ctx context.Context, actor models.Actor, id string) (*DeleteResult, error) {
	if err := requireCapability(actor, models.CapDeleteParticipations); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= s.tuning.maxRetries; attempt++ {
		p, err := s.repo.GetParticipation(ctx, id)
		if err != nil {
			return nil, storeError(ctx, err, "participation")
		}

		err = s.repo.DeleteParticipation(ctx, id, p.Version)
		if isVersionConflict(err) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, storeError(ctx, err, "participation")
		}

		s.log.Info("Participation deleted", "participation", id, "draw", p.DrawID, "status", p.PaymentStatus, "actor", actor.ID)
		warning := s.audit.Record(ctx, actor, models.AuditParticipationDeleted, participationRef(id), map[string]any{
			"draw_id":        p.DrawID,
			"numbers":        p.Numbers,
			"payment_status": p.PaymentStatus,
			"purchaser":      p.PurchaserID,
		})
		s.broadcastInventory(ctx, p.DrawID)
		return &DeleteResult{Participation: p, Warnings: appendWarning(nil, warning)}, nil
	}
	return nil, errors.Contention(s.tuning.maxRetries, lastErr)
}

// VerifyPaymentProof asks the receipt checker about a participation's payment.
// The verdict is advisory and never changes the payment status.
func (s *LedgerService) VerifyPaymentProof(ctx context.Context, actor models.Actor, id string, proof ProofRequest) (*ProofResult, error) {
	if err := requireCapability(actor, models.CapVerifyReceipts); err != nil {
		return nil, err
	}
	if s.receipts == nil {
		return nil, errors.Validation("receipt verification is not configured")
	}
	if strings.TrimSpace(proof.ImageRef) == "" {
		return nil, errors.InvalidInput("image_ref is required")
	}

	p, err := s.repo.GetParticipation(ctx, id)
	if err != nil {
		return nil, storeError(ctx, err, "participation")
	}
	draw, err := s.repo.GetDraw(ctx, p.DrawID)
	if err != nil {
		return nil, storeError(ctx, err, "draw")
	}

	payer := strings.TrimSpace(proof.PayerName)
	if payer == "" {
		payer = p.PurchaserName
	}
	expected := draw.PricePerTicket.Mul(decimal.NewFromInt(int64(len(p.Numbers))))

	verdict, err := s.receipts.Verify(ctx, receiptcheck.Request{
		ImageRef:       proof.ImageRef,
		ExpectedAmount: expected,
		Currency:       string(draw.Currency),
		PayerName:      payer,
		DrawName:       draw.Title,
	})
	if err != nil {
		s.log.Warn("Receipt check failed", "participation", id, "error", err)
		return nil, errors.Wrap(err, errors.ErrInternal, "receipt check failed")
	}

	warning := s.audit.Record(ctx, actor, models.AuditReceiptVerified, participationRef(id), map[string]any{
		"draw_id":         p.DrawID,
		"image_ref":       proof.ImageRef,
		"expected_amount": expected,
		"confirmed":       verdict.Confirmed,
		"notes":           verdict.Notes,
	})
	return &ProofResult{
		ParticipationID: id,
		ExpectedAmount:  expected,
		Verdict:         verdict,
		Warnings:        appendWarning(nil, warning),
	}, nil
}

// ParticipationURL returns the public link encoded in a participation's QR code
func (s *LedgerService) ParticipationURL(id string) string {
	return fmt.Sprintf("%s/participations/%s", s.baseURL, id)
}

// ParticipationQR renders a PNG QR code linking to the participation
func (s *LedgerService) ParticipationQR(ctx context.Context, actor models.Actor, id string) ([]byte, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return qrcode.Encode(s.ParticipationURL(id), qrcode.Medium, 256)
}

// broadcastInventory pushes the draw's unavailable numbers after numbers are freed
func (s *LedgerService) broadcastInventory(ctx context.Context, drawID string) {
	if s.broadcaster == nil {
		return
	}
	parts, err := s.repo.ListParticipationsByDraw(ctx, drawID, liveStatuses...)
	if err != nil {
		s.log.Debug("Skipping inventory broadcast", "draw", drawID, "error", err)
		return
	}
	s.broadcaster.BroadcastInventory(drawID, sortedKeys(unavailableSet(parts)))
}
