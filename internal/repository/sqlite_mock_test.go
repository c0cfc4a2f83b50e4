package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/abrezinsky/rafflebook/internal/models"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &Repository{db: db}, mock
}

// TestGetDraw_BadPrice tests that an unparseable stored price surfaces as an error
func TestGetDraw_BadPrice(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "title", "total_numbers", "price_per_ticket", "currency", "prizes",
		"min_per_purchase", "max_per_purchase", "status", "creator_id", "sales_start_at", "version", "created_at", "updated_at"}).
		AddRow("d1", "t", 10, "not-a-price", "USD", "[]", nil, nil, "active", "org", nil, 1, testNow, testNow)
	mock.ExpectQuery("SELECT (.+) FROM draws WHERE id").WillReturnRows(rows)

	if _, err := repo.GetDraw(context.Background(), "d1"); err == nil {
		t.Error("expected error from bad price, got nil")
	}
}

// TestGetDraw_BadPrizes tests that corrupt prize JSON surfaces as an error
func TestGetDraw_BadPrizes(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "title", "total_numbers", "price_per_ticket", "currency", "prizes",
		"min_per_purchase", "max_per_purchase", "status", "creator_id", "sales_start_at", "version", "created_at", "updated_at"}).
		AddRow("d1", "t", 10, "1.00", "USD", "{broken", nil, nil, "active", "org", nil, 1, testNow, testNow)
	mock.ExpectQuery("SELECT (.+) FROM draws WHERE id").WillReturnRows(rows)

	if _, err := repo.GetDraw(context.Background(), "d1"); err == nil {
		t.Error("expected error from corrupt prizes, got nil")
	}
}

// TestListParticipationsByDraw_ScanError tests row scanning error
func TestListParticipationsByDraw_ScanError(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "draw_id", "numbers", "payment_status", "purchaser_id",
		"purchaser_name", "purchaser_phone", "purchased_at", "version", "updated_at"}).
		AddRow("p1", "d1", "not-json", "pending", "b", nil, nil, testNow, 1, testNow)
	mock.ExpectQuery("SELECT (.+) FROM participations WHERE draw_id").WillReturnRows(rows)

	if _, err := repo.ListParticipationsByDraw(context.Background(), "d1"); err == nil {
		t.Error("expected error from corrupt numbers, got nil")
	}
}

// TestListParticipationsByDraw_QueryError tests query failure
func TestListParticipationsByDraw_QueryError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM participations").WillReturnError(errors.New("disk I/O error"))

	if _, err := repo.ListParticipationsByDraw(context.Background(), "d1", models.PaymentPending); err == nil {
		t.Error("expected query error, got nil")
	}
}

// TestBumpDrawVersion_RowsAffectedError tests a driver that cannot report affected rows
func TestBumpDrawVersion_RowsAffectedError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE draws SET version").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows affected unavailable")))

	err := repo.BumpDrawVersion(context.Background(), "d1", 1, testNow)
	if err == nil || err == ErrVersionConflict {
		t.Errorf("expected driver error, got %v", err)
	}
}

// TestUpdatePaymentStatus_ExecError tests exec failure
func TestUpdatePaymentStatus_ExecError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("UPDATE participations SET payment_status").WillReturnError(errors.New("database is locked"))

	if err := repo.UpdatePaymentStatus(context.Background(), "p1", 1, models.PaymentConfirmed, testNow); err == nil {
		t.Error("expected exec error, got nil")
	}
}

// TestWithTx_BeginError tests transaction begin failure
func TestWithTx_BeginError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin().WillReturnError(errors.New("cannot begin"))

	called := false
	err := repo.WithTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Error("expected begin error, got nil")
	}
	if called {
		t.Error("fn should not run when begin fails")
	}
}

// TestWithTx_RollbackOnError tests that a failing fn rolls the transaction back
func TestWithTx_RollbackOnError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE draws SET version").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithTx(context.Background(), func(ctx context.Context) error {
		return repo.BumpDrawVersion(ctx, "d1", 1, testNow)
	})
	if err != ErrVersionConflict {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestWithTx_CommitError tests commit failure
func TestWithTx_CommitError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE draws SET version").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("commit failed"))

	err := repo.WithTx(context.Background(), func(ctx context.Context) error {
		return repo.BumpDrawVersion(ctx, "d1", 1, testNow)
	})
	if err == nil {
		t.Error("expected commit error, got nil")
	}
}

// TestListAuditEvents_ScanError tests row scanning error
func TestListAuditEvents_ScanError(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "actor_id", "action_type", "target_ref", "details", "ts"}).
		AddRow("bad-id", "op", "PAYMENT_CONFIRMED", "participation:p1", nil, 1)
	mock.ExpectQuery("SELECT (.+) FROM audit_events").WillReturnRows(rows)

	if _, err := repo.ListAuditEvents(context.Background(), models.AuditFilter{}); err == nil {
		t.Error("expected scan error, got nil")
	}
}

// TestAppendAuditEvent_ExecError tests exec failure
func TestAppendAuditEvent_ExecError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO audit_events").WillReturnError(errors.New("disk full"))

	if _, err := repo.AppendAuditEvent(context.Background(), models.AuditEvent{ActorID: "op"}); err == nil {
		t.Error("expected exec error, got nil")
	}
}

// TestGetDrawResult_CorruptJSON tests that corrupt result columns surface as an error
func TestGetDrawResult_CorruptJSON(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"draw_id", "winning_numbers", "winner_names", "winner_phones",
		"winner_participation_ids", "resolved_by", "resolved_at"}).
		AddRow("d1", "[7]", "[", "[null]", "[null]", "op", testNow)
	mock.ExpectQuery("SELECT (.+) FROM draw_results").WillReturnRows(rows)

	if _, err := repo.GetDrawResult(context.Background(), "d1"); err == nil {
		t.Error("expected error from corrupt names, got nil")
	}
}
