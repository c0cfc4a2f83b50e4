package mock

import (
	"context"
	"sync"
	"time"

	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.AppendAuditEventError = errors.New("database error")
//	svc := services.NewLedgerService(log, mockRepo, audit, clk)
//	res, err := svc.Delete(ctx, actor, id)
//	// res.Warnings will now mention the audit failure
type Repository struct {
	repository.FullRepository

	// ===== Draw Errors =====
	CreateDrawError         error
	GetDrawError            error
	ListDrawsByCreatorError error
	ListDrawsByStatusError  error
	UpdateDrawStatusError   error
	BumpDrawVersionError    error

	// BumpDrawVersionConflicts makes the next N version bumps fail with
	// ErrVersionConflict as if another writer got there first.
	BumpDrawVersionConflicts int

	// GetDrawDelay stalls GetDraw until the delay passes or ctx is done.
	GetDrawDelay time.Duration

	// BeforeUpdateDrawStatus runs with the caller's ctx just before the
	// status write, to simulate a write that lands mid-operation.
	BeforeUpdateDrawStatus func(ctx context.Context) error

	// ===== Participation Errors =====
	InsertParticipationError           error
	GetParticipationError              error
	ListParticipationsByDrawError      error
	ListParticipationsByPurchaserError error
	UpdatePaymentStatusError           error
	DeleteParticipationError           error

	// ===== Result Errors =====
	InsertDrawResultError error
	GetDrawResultError    error

	// ===== Audit Errors =====
	AppendAuditEventError error
	ListAuditEventsError  error

	mu             sync.Mutex
	bumpCalls      int
	insertPartCall int
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// BumpCalls returns how many times BumpDrawVersion was called
func (m *Repository) BumpCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bumpCalls
}

// InsertParticipationCalls returns how many times InsertParticipation was called
func (m *Repository) InsertParticipationCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertPartCall
}

// ===== Draw Methods =====

func (m *Repository) CreateDraw(ctx context.Context, d models.Draw) error {
	if m.CreateDrawError != nil {
		return m.CreateDrawError
	}
	return m.FullRepository.CreateDraw(ctx, d)
}

func (m *Repository) GetDraw(ctx context.Context, id string) (*models.Draw, error) {
	if m.GetDrawDelay > 0 {
		select {
		case <-time.After(m.GetDrawDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.GetDrawError != nil {
		return nil, m.GetDrawError
	}
	return m.FullRepository.GetDraw(ctx, id)
}

func (m *Repository) ListDrawsByCreator(ctx context.Context, creatorID string) ([]models.Draw, error) {
	if m.ListDrawsByCreatorError != nil {
		return nil, m.ListDrawsByCreatorError
	}
	return m.FullRepository.ListDrawsByCreator(ctx, creatorID)
}

func (m *Repository) ListDrawsByStatus(ctx context.Context, statuses ...models.DrawStatus) ([]models.Draw, error) {
	if m.ListDrawsByStatusError != nil {
		return nil, m.ListDrawsByStatusError
	}
	return m.FullRepository.ListDrawsByStatus(ctx, statuses...)
}

func (m *Repository) UpdateDrawStatus(ctx context.Context, id string, expectedVersion int64, status models.DrawStatus, now time.Time) error {
	if m.UpdateDrawStatusError != nil {
		return m.UpdateDrawStatusError
	}
	if m.BeforeUpdateDrawStatus != nil {
		if err := m.BeforeUpdateDrawStatus(ctx); err != nil {
			return err
		}
	}
	return m.FullRepository.UpdateDrawStatus(ctx, id, expectedVersion, status, now)
}

func (m *Repository) BumpDrawVersion(ctx context.Context, id string, expectedVersion int64, now time.Time) error {
	m.mu.Lock()
	m.bumpCalls++
	conflict := m.BumpDrawVersionConflicts > 0
	if conflict {
		m.BumpDrawVersionConflicts--
	}
	m.mu.Unlock()

	if conflict {
		return repository.ErrVersionConflict
	}
	if m.BumpDrawVersionError != nil {
		return m.BumpDrawVersionError
	}
	return m.FullRepository.BumpDrawVersion(ctx, id, expectedVersion, now)
}

// ===== Participation Methods =====

func (m *Repository) InsertParticipation(ctx context.Context, p models.Participation) error {
	m.mu.Lock()
	m.insertPartCall++
	m.mu.Unlock()

	if m.InsertParticipationError != nil {
		return m.InsertParticipationError
	}
	return m.FullRepository.InsertParticipation(ctx, p)
}

func (m *Repository) GetParticipation(ctx context.Context, id string) (*models.Participation, error) {
	if m.GetParticipationError != nil {
		return nil, m.GetParticipationError
	}
	return m.FullRepository.GetParticipation(ctx, id)
}

func (m *Repository) ListParticipationsByDraw(ctx context.Context, drawID string, statuses ...models.PaymentStatus) ([]models.Participation, error) {
	if m.ListParticipationsByDrawError != nil {
		return nil, m.ListParticipationsByDrawError
	}
	return m.FullRepository.ListParticipationsByDraw(ctx, drawID, statuses...)
}

func (m *Repository) ListParticipationsByPurchaser(ctx context.Context, purchaserID string) ([]models.Participation, error) {
	if m.ListParticipationsByPurchaserError != nil {
		return nil, m.ListParticipationsByPurchaserError
	}
	return m.FullRepository.ListParticipationsByPurchaser(ctx, purchaserID)
}

func (m *Repository) UpdatePaymentStatus(ctx context.Context, id string, expectedVersion int64, status models.PaymentStatus, now time.Time) error {
	if m.UpdatePaymentStatusError != nil {
		return m.UpdatePaymentStatusError
	}
	return m.FullRepository.UpdatePaymentStatus(ctx, id, expectedVersion, status, now)
}

func (m *Repository) DeleteParticipation(ctx context.Context, id string, expectedVersion int64) error {
	if m.DeleteParticipationError != nil {
		return m.DeleteParticipationError
	}
	return m.FullRepository.DeleteParticipation(ctx, id, expectedVersion)
}

// ===== Result Methods =====

func (m *Repository) InsertDrawResult(ctx context.Context, res models.DrawResult) error {
	if m.InsertDrawResultError != nil {
		return m.InsertDrawResultError
	}
	return m.FullRepository.InsertDrawResult(ctx, res)
}

func (m *Repository) GetDrawResult(ctx context.Context, drawID string) (*models.DrawResult, error) {
	if m.GetDrawResultError != nil {
		return nil, m.GetDrawResultError
	}
	return m.FullRepository.GetDrawResult(ctx, drawID)
}

// ===== Audit Methods =====

func (m *Repository) AppendAuditEvent(ctx context.Context, e models.AuditEvent) (int64, error) {
	if m.AppendAuditEventError != nil {
		return 0, m.AppendAuditEventError
	}
	return m.FullRepository.AppendAuditEvent(ctx, e)
}

func (m *Repository) ListAuditEvents(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	if m.ListAuditEventsError != nil {
		return nil, m.ListAuditEventsError
	}
	return m.FullRepository.ListAuditEvents(ctx, filter)
}
