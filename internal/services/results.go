package services

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/logger"
	"github.com/abrezinsky/rafflebook/internal/metrics"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/repository"
)

// ResultsServiceRepository defines the repository methods needed by ResultsService
type ResultsServiceRepository interface {
	repository.TxRunner
	repository.ResultRepository
	GetDraw(ctx context.Context, id string) (*models.Draw, error)
	UpdateDrawStatus(ctx context.Context, id string, expectedVersion int64, status models.DrawStatus, now time.Time) error
	ListParticipationsByDraw(ctx context.Context, drawID string, statuses ...models.PaymentStatus) ([]models.Participation, error)
}

// ResultsService resolves draws and serves their results
type ResultsService struct {
	log         logger.Logger
	repo        ResultsServiceRepository
	audit       AuditServicer
	clock       clock.Clock
	broadcaster Broadcaster
	tuning      tuning
}

// NewResultsService creates a new ResultsService
func NewResultsService(log logger.Logger, repo ResultsServiceRepository, audit AuditServicer, clk clock.Clock, opts ...Option) *ResultsService {
	return &ResultsService{
		log:    log,
		repo:   repo,
		audit:  audit,
		clock:  clk,
		tuning: newTuning(opts),
	}
}

// SetBroadcaster sets the broadcaster for sending updates to clients
func (s *ResultsService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Winner is an explicitly named winner for one prize slot
type Winner struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// ResolveRequest carries one winning number per prize slot, in prize order.
// A nil number leaves that slot without a winner. Winners is optional and
// aligned with the numbers; a nil or blank entry is filled from the ledger.
type ResolveRequest struct {
	WinningNumbers []*int    `json:"winning_numbers"`
	Winners        []*Winner `json:"winners,omitempty"`
}

// ResolveResult is the outcome of resolving a draw
type ResolveResult struct {
	Result   *models.DrawResult `json:"result"`
	Warnings []string           `json:"warnings,omitempty"`
}

// slotOutcome is the audited view of one prize slot
type slotOutcome struct {
	Prize           string  `json:"prize"`
	WinningNumber   *int    `json:"winning_number"`
	WinnerName      *string `json:"winner_name"`
	WinnerPhone     *string `json:"winner_phone"`
	ParticipationID *string `json:"participation_id"`
	Source          string  `json:"source"`
}

func validateResolve(draw *models.Draw, req ResolveRequest) error {
	switch draw.Status {
	case models.DrawCompleted:
		return errors.AlreadyResolved(draw.ID)
	case models.DrawActive, models.DrawPendingDraw:
	default:
		return errors.InvalidInputf("draw is %s and cannot be resolved", draw.Status)
	}
	if len(req.WinningNumbers) != len(draw.Prizes) {
		return errors.InvalidInputf("expected %d winning numbers, got %d", len(draw.Prizes), len(req.WinningNumbers))
	}
	if len(req.Winners) > len(draw.Prizes) {
		return errors.InvalidInputf("expected at most %d winners, got %d", len(draw.Prizes), len(req.Winners))
	}
	for i, n := range req.WinningNumbers {
		if n != nil && (*n < 1 || *n > draw.TotalNumbers) {
			return errors.InvalidInputf("winning number %d for prize %d is outside 1..%d", *n, i+1, draw.TotalNumbers)
		}
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// buildResult attributes each slot to an explicit winner or to the earliest
// confirmed participation holding the winning number. confirmed must be in
// purchase order.
func buildResult(draw *models.Draw, req ResolveRequest, confirmed []models.Participation, actor models.Actor, now time.Time) (*models.DrawResult, []slotOutcome) {
	slots := len(draw.Prizes)
	res := &models.DrawResult{
		DrawID:                 draw.ID,
		WinningNumbers:         make([]*int, slots),
		WinnerNames:            make([]*string, slots),
		WinnerPhones:           make([]*string, slots),
		WinnerParticipationIDs: make([]*string, slots),
		ResolvedBy:             actor.ID,
		ResolvedAt:             now,
	}
	outcomes := make([]slotOutcome, slots)

	for i := 0; i < slots; i++ {
		outcomes[i] = slotOutcome{Prize: draw.Prizes[i].Description, Source: "unclaimed"}
		if n := req.WinningNumbers[i]; n != nil {
			v := *n
			res.WinningNumbers[i] = &v
		}

		if i < len(req.Winners) && req.Winners[i] != nil && optional(req.Winners[i].Name) != nil {
			res.WinnerNames[i] = optional(req.Winners[i].Name)
			res.WinnerPhones[i] = optional(req.Winners[i].Phone)
			outcomes[i].Source = "explicit"
		} else if res.WinningNumbers[i] != nil {
			for _, p := range confirmed {
				if !p.Holds(*res.WinningNumbers[i]) {
					continue
				}
				id := p.ID
				res.WinnerNames[i] = optional(p.PurchaserName)
				res.WinnerPhones[i] = optional(p.PurchaserPhone)
				res.WinnerParticipationIDs[i] = &id
				outcomes[i].Source = "ledger"
				break
			}
		}

		outcomes[i].WinningNumber = res.WinningNumbers[i]
		outcomes[i].WinnerName = res.WinnerNames[i]
		outcomes[i].WinnerPhone = res.WinnerPhones[i]
		outcomes[i].ParticipationID = res.WinnerParticipationIDs[i]
	}
	return res, outcomes
}

// Resolve closes a draw with one winning number per prize. The result is
// written once together with the completed status; a second call fails
// with AlreadyResolved.
func (s *ResultsService) Resolve(ctx context.Context, actor models.Actor, drawID string, req ResolveRequest) (*ResolveResult, error) {
	if err := requireCapability(actor, models.CapResolveDraws); err != nil {
		return nil, err
	}

	res, err := s.resolve(ctx, actor, drawID, req)
	if err != nil {
		metrics.RecordResolution(errors.KindOf(err).String())
		return nil, err
	}
	metrics.RecordResolution("resolved")
	return res, nil
}

func (s *ResultsService) resolve(ctx context.Context, actor models.Actor, drawID string, req ResolveRequest) (*ResolveResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.tuning.maxRetries; attempt++ {
		var (
			result   *models.DrawResult
			outcomes []slotOutcome
		)
		// confirmed is read after the status write, inside the same transaction
		err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
			draw, err := s.repo.GetDraw(txCtx, drawID)
			if err != nil {
				return storeError(ctx, err, "draw")
			}
			if err := validateResolve(draw, req); err != nil {
				return err
			}

			now := s.clock.Now()
			if err := s.repo.UpdateDrawStatus(txCtx, drawID, draw.Version, models.DrawCompleted, now); err != nil {
				return err
			}
			confirmed, err := s.repo.ListParticipationsByDraw(txCtx, drawID, models.PaymentConfirmed)
			if err != nil {
				return storeError(ctx, err, "participations")
			}
			result, outcomes = buildResult(draw, req, confirmed, actor, now)
			return s.repo.InsertDrawResult(txCtx, *result)
		})
		var appErr *errors.Error
		switch {
		case err == nil:
		case stderrors.As(err, &appErr):
			return nil, err
		case isVersionConflict(err):
			lastErr = err
			s.log.Debug("Resolution lost a version race, retrying", "draw", drawID, "attempt", attempt)
			continue
		case stderrors.Is(err, repository.ErrAlreadyExists):
			return nil, errors.AlreadyResolved(drawID)
		default:
			return nil, storeError(ctx, err, "draw")
		}

		s.log.Info("Draw resolved", "draw", drawID, "prizes", len(outcomes), "actor", actor.ID)
		warning := s.audit.Record(ctx, actor, models.AuditWinnerRegistered, drawRef(drawID), map[string]any{
			"slots": outcomes,
		})
		if s.broadcaster != nil {
			s.broadcaster.BroadcastDrawStatus(drawID, models.DrawCompleted)
			s.broadcaster.BroadcastDrawResolved(result)
		}
		return &ResolveResult{Result: result, Warnings: appendWarning(nil, warning)}, nil
	}
	return nil, errors.Contention(s.tuning.maxRetries, lastErr)
}

// GetResult returns the result of a resolved draw
func (s *ResultsService) GetResult(ctx context.Context, drawID string) (*models.DrawResult, error) {
	res, err := s.repo.GetDrawResult(ctx, drawID)
	if err != nil {
		return nil, storeError(ctx, err, "draw result")
	}
	return res, nil
}
