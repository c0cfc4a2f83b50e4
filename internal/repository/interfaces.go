package repository

import (
	"context"
	"time"

	"github.com/abrezinsky/rafflebook/internal/models"
)

// TxRunner runs fn inside a single store transaction. Repository calls made
// with the context passed to fn join that transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DrawRepository defines draw data operations
type DrawRepository interface {
	CreateDraw(ctx context.Context, draw models.Draw) error
	GetDraw(ctx context.Context, id string) (*models.Draw, error)
	ListDrawsByCreator(ctx context.Context, creatorID string) ([]models.Draw, error)
	ListDrawsByStatus(ctx context.Context, statuses ...models.DrawStatus) ([]models.Draw, error)
	UpdateDrawStatus(ctx context.Context, id string, expectedVersion int64, status models.DrawStatus, now time.Time) error
	BumpDrawVersion(ctx context.Context, id string, expectedVersion int64, now time.Time) error
}

// ParticipationRepository defines participation data operations
type ParticipationRepository interface {
	InsertParticipation(ctx context.Context, p models.Participation) error
	GetParticipation(ctx context.Context, id string) (*models.Participation, error)
	ListParticipationsByDraw(ctx context.Context, drawID string, statuses ...models.PaymentStatus) ([]models.Participation, error)
	ListParticipationsByPurchaser(ctx context.Context, purchaserID string) ([]models.Participation, error)
	UpdatePaymentStatus(ctx context.Context, id string, expectedVersion int64, status models.PaymentStatus, now time.Time) error
	DeleteParticipation(ctx context.Context, id string, expectedVersion int64) error
}

// ResultRepository defines draw result data operations
type ResultRepository interface {
	InsertDrawResult(ctx context.Context, result models.DrawResult) error
	GetDrawResult(ctx context.Context, drawID string) (*models.DrawResult, error)
}

// AuditRepository defines audit log data operations
type AuditRepository interface {
	AppendAuditEvent(ctx context.Context, event models.AuditEvent) (int64, error)
	ListAuditEvents(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error)
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	TxRunner
	DrawRepository
	ParticipationRepository
	ResultRepository
	AuditRepository
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)
