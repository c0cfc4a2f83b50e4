package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/logger"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/repository"
)

const (
	MinTotalNumbers = 10
	MaxTotalNumbers = 10000
	MaxPrizes       = 3
)

// CatalogServiceRepository defines the repository methods needed by CatalogService
type CatalogServiceRepository interface {
	repository.DrawRepository
	ListParticipationsByDraw(ctx context.Context, drawID string, statuses ...models.PaymentStatus) ([]models.Participation, error)
}

// CatalogService handles draw configuration and lifecycle
type CatalogService struct {
	log         logger.Logger
	repo        CatalogServiceRepository
	audit       AuditServicer
	clock       clock.Clock
	broadcaster Broadcaster
	tuning      tuning
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(log logger.Logger, repo CatalogServiceRepository, audit AuditServicer, clk clock.Clock, opts ...Option) *CatalogService {
	return &CatalogService{
		log:    log,
		repo:   repo,
		audit:  audit,
		clock:  clk,
		tuning: newTuning(opts),
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *CatalogService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// DrawInput is the organizer-supplied configuration of a new draw
type DrawInput struct {
	Title          string          `json:"title"`
	TotalNumbers   int             `json:"total_numbers"`
	PricePerTicket decimal.Decimal `json:"price_per_ticket"`
	Currency       models.Currency `json:"currency"`
	Prizes         []models.Prize  `json:"prizes"`
	MinPerPurchase *int            `json:"min_per_purchase,omitempty"`
	MaxPerPurchase *int            `json:"max_per_purchase,omitempty"`
	SalesStartAt   *time.Time      `json:"sales_start_at,omitempty"`
}

// DrawChange is the outcome of a draw write
type DrawChange struct {
	Draw     *models.Draw `json:"draw"`
	Warnings []string     `json:"warnings,omitempty"`
}

func validateDrawInput(in DrawInput) error {
	if in.TotalNumbers < MinTotalNumbers || in.TotalNumbers > MaxTotalNumbers {
		return errors.InvalidInputf("total_numbers must be between %d and %d", MinTotalNumbers, MaxTotalNumbers)
	}
	if in.PricePerTicket.IsNegative() {
		return errors.InvalidInput("price_per_ticket must not be negative")
	}
	if !in.Currency.Valid() {
		return errors.InvalidInputf("unsupported currency %q", in.Currency)
	}
	if len(in.Prizes) < 1 || len(in.Prizes) > MaxPrizes {
		return errors.InvalidInputf("a draw needs between 1 and %d prizes", MaxPrizes)
	}
	for i, p := range in.Prizes {
		if strings.TrimSpace(p.Description) == "" {
			return errors.InvalidInputf("prize %d needs a description", i+1)
		}
	}
	if in.MinPerPurchase != nil && (*in.MinPerPurchase < 1 || *in.MinPerPurchase > in.TotalNumbers) {
		return errors.InvalidInput("min_per_purchase is out of range")
	}
	if in.MaxPerPurchase != nil && (*in.MaxPerPurchase < 1 || *in.MaxPerPurchase > in.TotalNumbers) {
		return errors.InvalidInput("max_per_purchase is out of range")
	}
	if in.MinPerPurchase != nil && in.MaxPerPurchase != nil && *in.MinPerPurchase > *in.MaxPerPurchase {
		return errors.InvalidInput("min_per_purchase must not exceed max_per_purchase")
	}
	return nil
}

// CreateDraw validates and stores a new draw owned by actor. The draw starts
// scheduled when its sales start in the future, otherwise active.
func (s *CatalogService) CreateDraw(ctx context.Context, actor models.Actor, in DrawInput) (*DrawChange, error) {
	if err := requireCapability(actor, models.CapManageDraws); err != nil {
		return nil, err
	}
	if err := validateDrawInput(in); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	status := models.DrawActive
	if in.SalesStartAt != nil && in.SalesStartAt.After(now) {
		status = models.DrawScheduled
	}

	draw := models.Draw{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(in.Title),
		TotalNumbers:   in.TotalNumbers,
		PricePerTicket: in.PricePerTicket,
		Currency:       in.Currency,
		Prizes:         in.Prizes,
		MinPerPurchase: in.MinPerPurchase,
		MaxPerPurchase: in.MaxPerPurchase,
		Status:         status,
		CreatorID:      actor.ID,
		SalesStartAt:   in.SalesStartAt,
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateDraw(ctx, draw); err != nil {
		return nil, storeError(ctx, err, "draw")
	}

	s.log.Info("Draw created", "draw", draw.ID, "creator", actor.ID, "numbers", draw.TotalNumbers, "status", draw.Status)

	warning := s.audit.Record(ctx, actor, models.AuditDrawCreated, drawRef(draw.ID), map[string]any{
		"title":            draw.Title,
		"total_numbers":    draw.TotalNumbers,
		"price_per_ticket": draw.PricePerTicket,
		"currency":         draw.Currency,
		"prizes":           len(draw.Prizes),
		"status":           draw.Status,
	})
	return &DrawChange{Draw: &draw, Warnings: appendWarning(nil, warning)}, nil
}

// GetDraw retrieves a draw by ID
func (s *CatalogService) GetDraw(ctx context.Context, id string) (*models.Draw, error) {
	draw, err := s.repo.GetDraw(ctx, id)
	if err != nil {
		return nil, storeError(ctx, err, "draw")
	}
	return draw, nil
}

// ListDraws returns the draws created by actor
func (s *CatalogService) ListDraws(ctx context.Context, actor models.Actor) ([]models.Draw, error) {
	if err := requireCapability(actor, models.CapManageDraws); err != nil {
		return nil, err
	}
	draws, err := s.repo.ListDrawsByCreator(ctx, actor.ID)
	if err != nil {
		return nil, storeError(ctx, err, "draws")
	}
	if draws == nil {
		draws = []models.Draw{}
	}
	return draws, nil
}

// ListOpenDraws returns the draws currently selling numbers
func (s *CatalogService) ListOpenDraws(ctx context.Context) ([]models.Draw, error) {
	draws, err := s.repo.ListDrawsByStatus(ctx, models.DrawActive)
	if err != nil {
		return nil, storeError(ctx, err, "draws")
	}
	if draws == nil {
		draws = []models.Draw{}
	}
	return draws, nil
}

// AdvanceStatus moves a draw forward in its lifecycle. Completion only
// happens through resolution. Re-applying the current status is a no-op.
func (s *CatalogService) AdvanceStatus(ctx context.Context, actor models.Actor, drawID string, to models.DrawStatus) (*DrawChange, error) {
	if err := requireCapability(actor, models.CapManageDraws); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, errors.InvalidInputf("unknown draw status %q", to)
	}
	if to == models.DrawCompleted {
		return nil, errors.InvalidInput("a draw is completed by resolving it")
	}

	var lastErr error
	for attempt := 1; attempt <= s.tuning.maxRetries; attempt++ {
		draw, err := s.repo.GetDraw(ctx, drawID)
		if err != nil {
			return nil, storeError(ctx, err, "draw")
		}
		if draw.Status == to {
			return &DrawChange{Draw: draw}, nil
		}
		if !draw.Status.CanAdvanceTo(to) {
			return nil, errors.InvalidInputf("draw cannot move from %s to %s", draw.Status, to)
		}

		now := s.clock.Now()
		err = s.repo.UpdateDrawStatus(ctx, drawID, draw.Version, to, now)
		if isVersionConflict(err) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, storeError(ctx, err, "draw")
		}

		from := draw.Status
		draw.Status = to
		draw.Version++
		draw.UpdatedAt = now

		s.log.Info("Draw status changed", "draw", drawID, "from", from, "to", to, "actor", actor.ID)
		warning := s.audit.Record(ctx, actor, models.AuditDrawStatusChanged, drawRef(drawID), map[string]any{
			"from": from,
			"to":   to,
		})
		if s.broadcaster != nil {
			s.broadcaster.BroadcastDrawStatus(drawID, to)
		}
		return &DrawChange{Draw: draw, Warnings: appendWarning(nil, warning)}, nil
	}
	return nil, errors.Contention(s.tuning.maxRetries, lastErr)
}

// Cancel moves a non-completed draw to cancelled
func (s *CatalogService) Cancel(ctx context.Context, actor models.Actor, drawID string) (*DrawChange, error) {
	return s.AdvanceStatus(ctx, actor, drawID, models.DrawCancelled)
}

// Stats summarizes the participation ledger of a draw
func (s *CatalogService) Stats(ctx context.Context, actor models.Actor, drawID string) (*models.DrawStats, error) {
	if err := requireCapability(actor, models.CapViewLedger); err != nil {
		return nil, err
	}
	draw, err := s.repo.GetDraw(ctx, drawID)
	if err != nil {
		return nil, storeError(ctx, err, "draw")
	}
	parts, err := s.repo.ListParticipationsByDraw(ctx, drawID)
	if err != nil {
		return nil, storeError(ctx, err, "participations")
	}

	stats := &models.DrawStats{
		DrawID:           drawID,
		TotalNumbers:     draw.TotalNumbers,
		ConfirmedRevenue: decimal.Zero,
		Currency:         draw.Currency,
	}
	unavailable := make(map[int]struct{})
	for _, p := range parts {
		switch p.PaymentStatus {
		case models.PaymentPending:
			stats.Pending++
		case models.PaymentConfirmed:
			stats.Confirmed++
			stats.ConfirmedNumbers += len(p.Numbers)
		case models.PaymentRejected:
			stats.Rejected++
			continue
		}
		for _, n := range p.Numbers {
			unavailable[n] = struct{}{}
		}
	}
	stats.UnavailableCount = len(unavailable)
	stats.ConfirmedRevenue = draw.PricePerTicket.Mul(decimal.NewFromInt(int64(stats.ConfirmedNumbers)))
	return stats, nil
}
