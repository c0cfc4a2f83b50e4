package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/logger"
	"github.com/abrezinsky/rafflebook/internal/metrics"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/repository"
)

// AuditService appends and lists audit events
type AuditService struct {
	log   logger.Logger
	repo  repository.AuditRepository
	clock clock.Clock

	mu   sync.Mutex
	last time.Time
}

// NewAuditService creates a new AuditService
func NewAuditService(log logger.Logger, repo repository.AuditRepository, clk clock.Clock) *AuditService {
	return &AuditService{log: log, repo: repo, clock: clk}
}

// now returns a timestamp strictly after every one this service handed out before
func (s *AuditService) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.clock.Now()
	if !t.After(s.last) {
		t = s.last.Add(time.Nanosecond)
	}
	s.last = t
	return t
}

// Record appends one audit event. A failed write never fails the caller:
// it is logged, counted and returned as a warning message instead.
func (s *AuditService) Record(ctx context.Context, actor models.Actor, action models.AuditAction, targetRef string, details any) string {
	event := models.AuditEvent{
		ActorID:    actor.ID,
		ActionType: action,
		TargetRef:  targetRef,
		Timestamp:  s.now(),
	}

	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return s.fail(event, err)
		}
		event.Details = raw
	}

	id, err := s.repo.AppendAuditEvent(ctx, event)
	if err != nil {
		return s.fail(event, err)
	}

	s.log.Debug("Audit event recorded", "id", id, "action", action, "target", targetRef, "actor", actor.ID)
	return ""
}

func (s *AuditService) fail(event models.AuditEvent, err error) string {
	metrics.RecordAuditFailure()
	s.log.Warn("Failed to record audit event",
		"action", event.ActionType,
		"target", event.TargetRef,
		"actor", event.ActorID,
		"error", err)
	return fmt.Sprintf("audit event %s for %s was not recorded: %v", event.ActionType, event.TargetRef, err)
}

// List returns audit events matching filter
func (s *AuditService) List(ctx context.Context, actor models.Actor, filter models.AuditFilter) ([]models.AuditEvent, error) {
	if err := requireCapability(actor, models.CapViewAudit); err != nil {
		return nil, err
	}
	if filter.ActionType != "" && !filter.ActionType.Valid() {
		return nil, errors.InvalidInputf("unknown audit action %q", filter.ActionType)
	}
	if filter.Limit < 0 {
		return nil, errors.InvalidInput("limit must not be negative")
	}

	events, err := s.repo.ListAuditEvents(ctx, filter)
	if err != nil {
		return nil, storeError(ctx, err, "audit log")
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	return events, nil
}

func drawRef(id string) string {
	return "draw:" + id
}

func participationRef(id string) string {
	return "participation:" + id
}
