package services

import (
	"context"

	"github.com/abrezinsky/rafflebook/internal/models"
)

// Broadcaster defines the interface for broadcasting draw updates to clients
type Broadcaster interface {
	BroadcastInventory(drawID string, unavailable []int)
	BroadcastDrawStatus(drawID string, status models.DrawStatus)
	BroadcastDrawResolved(result *models.DrawResult)
}

// CatalogServicer defines the interface for draw catalog operations
type CatalogServicer interface {
	CreateDraw(ctx context.Context, actor models.Actor, in DrawInput) (*DrawChange, error)
	GetDraw(ctx context.Context, id string) (*models.Draw, error)
	ListDraws(ctx context.Context, actor models.Actor) ([]models.Draw, error)
	ListOpenDraws(ctx context.Context) ([]models.Draw, error)
	AdvanceStatus(ctx context.Context, actor models.Actor, drawID string, to models.DrawStatus) (*DrawChange, error)
	Cancel(ctx context.Context, actor models.Actor, drawID string) (*DrawChange, error)
	Stats(ctx context.Context, actor models.Actor, drawID string) (*models.DrawStats, error)
	SetBroadcaster(b Broadcaster)
}

// InventoryServicer defines the interface for number inventory operations
type InventoryServicer interface {
	ComputeUnavailable(ctx context.Context, drawID string) ([]int, error)
	AvailableNumbers(ctx context.Context, drawID string) ([]int, error)
	TryClaim(ctx context.Context, actor models.Actor, drawID string, req ClaimRequest) (*ClaimReceipt, error)
	SetBroadcaster(b Broadcaster)
}

// LedgerServicer defines the interface for participation ledger operations
type LedgerServicer interface {
	Get(ctx context.Context, actor models.Actor, id string) (*models.Participation, error)
	ListByDraw(ctx context.Context, actor models.Actor, drawID string) ([]models.Participation, error)
	ListByPurchaser(ctx context.Context, actor models.Actor) ([]models.Participation, error)
	SetPaymentStatus(ctx context.Context, actor models.Actor, id string, status models.PaymentStatus) (*PaymentChange, error)
	Delete(ctx context.Context, actor models.Actor, id string) (*DeleteResult, error)
	VerifyPaymentProof(ctx context.Context, actor models.Actor, id string, proof ProofRequest) (*ProofResult, error)
	ParticipationQR(ctx context.Context, actor models.Actor, id string) ([]byte, error)
	SetBroadcaster(b Broadcaster)
}

// ResultsServicer defines the interface for winner resolution
type ResultsServicer interface {
	Resolve(ctx context.Context, actor models.Actor, drawID string, req ResolveRequest) (*ResolveResult, error)
	GetResult(ctx context.Context, drawID string) (*models.DrawResult, error)
	SetBroadcaster(b Broadcaster)
}

// AuditServicer defines the interface for audit log operations
type AuditServicer interface {
	Record(ctx context.Context, actor models.Actor, action models.AuditAction, targetRef string, details any) string
	List(ctx context.Context, actor models.Actor, filter models.AuditFilter) ([]models.AuditEvent, error)
}

// Ensure concrete types implement interfaces
var (
	_ CatalogServicer   = (*CatalogService)(nil)
	_ InventoryServicer = (*InventoryService)(nil)
	_ LedgerServicer    = (*LedgerService)(nil)
	_ ResultsServicer   = (*ResultsService)(nil)
	_ AuditServicer     = (*AuditService)(nil)
)
