package services_test

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/abrezinsky/rafflebook/internal/errors"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/repository/mock"
	"github.com/abrezinsky/rafflebook/internal/services"
	"github.com/abrezinsky/rafflebook/internal/testutil"
)

func TestAuditService_TimestampsStrictlyIncrease(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	log, _ := testutil.NewLogger()
	clk := testutil.NewClock()
	svc := services.NewAuditService(log, repo, clk)
	ctx := context.Background()

	// The fixed clock never moves, so every event shares the same wall time.
	for i := 0; i < 3; i++ {
		if w := svc.Record(ctx, operator, models.AuditPaymentConfirmed, "participation:p", map[string]int{"i": i}); w != "" {
			t.Fatalf("unexpected warning: %s", w)
		}
	}

	events, err := svc.List(ctx, operator, models.AuditFilter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		if !events[i].Timestamp.After(events[i-1].Timestamp) {
			t.Errorf("event %d timestamp %v not after %v", i, events[i].Timestamp, events[i-1].Timestamp)
		}
	}

	var details map[string]int
	if err := json.Unmarshal(events[2].Details, &details); err != nil || details["i"] != 2 {
		t.Errorf("unexpected details %s (%v)", events[2].Details, err)
	}
	if events[0].ActorID != operator.ID {
		t.Errorf("expected actor %s, got %s", operator.ID, events[0].ActorID)
	}
}

func TestAuditService_FailureBecomesWarning(t *testing.T) {
	mockRepo := mock.NewRepository(testutil.NewTestRepository(t))
	mockRepo.AppendAuditEventError = stderrors.New("disk full")
	log, logs := testutil.NewLogger()
	svc := services.NewAuditService(log, mockRepo, testutil.NewClock())

	w := svc.Record(context.Background(), operator, models.AuditParticipationDeleted, "participation:p1", nil)
	if !strings.Contains(w, "PARTICIPATION_DELETED") || !strings.Contains(w, "disk full") {
		t.Errorf("unexpected warning %q", w)
	}
	if !strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("expected a WARN log line, got %q", logs.String())
	}
}

func TestAuditService_UnmarshalableDetails(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewAuditService(testLogger(), repo, testutil.NewClock())

	w := svc.Record(context.Background(), operator, models.AuditDrawCreated, "draw:d", map[string]any{"bad": make(chan int)})
	if w == "" {
		t.Error("expected a warning for details that cannot be encoded")
	}
}

func TestAuditService_List(t *testing.T) {
	repo := testutil.NewTestRepository(t)
	svc := services.NewAuditService(testLogger(), repo, testutil.NewClock())
	ctx := context.Background()

	svc.Record(ctx, operator, models.AuditPaymentConfirmed, "participation:a", nil)
	svc.Record(ctx, operator, models.AuditPaymentRejected, "participation:b", nil)

	tests := []struct {
		name     string
		actor    models.Actor
		filter   models.AuditFilter
		wantKind errors.Kind
		wantLen  int
	}{
		{name: "participant denied", actor: participant, wantKind: errors.ErrUnauthorized},
		{name: "unknown action", actor: operator, filter: models.AuditFilter{ActionType: "VOTED"}, wantKind: errors.ErrInvalidInput},
		{name: "negative limit", actor: operator, filter: models.AuditFilter{Limit: -1}, wantKind: errors.ErrInvalidInput},
		{name: "all", actor: operator, wantLen: 2},
		{name: "by target", actor: owner, filter: models.AuditFilter{TargetRef: "participation:b"}, wantLen: 1},
		{name: "no match", actor: owner, filter: models.AuditFilter{TargetRef: "participation:zzz"}, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := svc.List(ctx, tt.actor, tt.filter)
			if tt.wantKind != errors.ErrInternal {
				wantKind(t, err, tt.wantKind)
				return
			}
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if events == nil || len(events) != tt.wantLen {
				t.Errorf("expected %d events, got %v", tt.wantLen, events)
			}
		})
	}
}
