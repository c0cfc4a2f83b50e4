package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/rafflebook/internal/auth"
	"github.com/abrezinsky/rafflebook/internal/handlers"
	"github.com/abrezinsky/rafflebook/internal/metrics"
	"github.com/abrezinsky/rafflebook/internal/middleware"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/services"
	"github.com/abrezinsky/rafflebook/internal/testutil"
	"github.com/abrezinsky/rafflebook/pkg/receiptcheck"
)

var (
	owner       = models.Actor{ID: "org-1", Role: models.RoleOwner}
	operator    = models.Actor{ID: "op-1", Role: models.RoleOperator}
	participant = models.Actor{ID: "buyer-1", Role: models.RoleParticipant}
)

type testSetup struct {
	router  chi.Router
	auth    *auth.Auth
	catalog *services.CatalogService
	ledger  *services.LedgerService
}

func newTestSetup(t *testing.T) *testSetup {
	return newTestSetupWithLimiter(t, nil)
}

func newTestSetupWithLimiter(t *testing.T, limiter *middleware.RateLimiter) *testSetup {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	log, _ := testutil.NewLogger()
	clk := testutil.NewClock()

	audit := services.NewAuditService(log, repo, clk)
	catalog := services.NewCatalogService(log, repo, audit, clk)
	inventory := services.NewInventoryService(log, repo, clk)
	ledger := services.NewLedgerService(log, repo, audit, clk, receiptcheck.NewMockClient(), "https://raffle.example")
	results := services.NewResultsService(log, repo, audit, clk)
	identity := auth.New("test-password", true, clk)

	var limit func(http.Handler) http.Handler
	if limiter != nil {
		limit = limiter.Handler
	}

	h := handlers.New(catalog, inventory, ledger, results, audit, identity, nil, limit, metrics.Handler(), handlers.NoopHTTPLogger{})
	return &testSetup{router: h.Router(), auth: identity, catalog: catalog, ledger: ledger}
}

// do sends a JSON request as actor (anonymous when actor.ID is empty)
func (s *testSetup) do(t *testing.T, method, path string, as models.Actor, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as.ID != "" {
		req.Header.Set(auth.HeaderActorID, as.ID)
		req.Header.Set(auth.HeaderActorRole, string(as.Role))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rec, status)
	var apiErr handlers.APIError
	decode(t, rec, &apiErr)
	if apiErr.Code != code {
		t.Errorf("expected code %s, got %s (%s)", code, apiErr.Code, apiErr.Message)
	}
}

func drawBody(total int) map[string]interface{} {
	return map[string]interface{}{
		"title":            "School raffle",
		"total_numbers":    total,
		"price_per_ticket": "3.00",
		"currency":         "USD",
		"prizes":           []map[string]string{{"description": "Bike"}},
	}
}

// createDraw creates a draw through the API and returns its ID
func (s *testSetup) createDraw(t *testing.T) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/draws", owner, drawBody(20))
	expectStatus(t, rec, http.StatusCreated)
	var change services.DrawChange
	decode(t, rec, &change)
	return change.Draw.ID
}

// claim claims numbers through the API and returns the participation ID
func (s *testSetup) claim(t *testing.T, drawID string, as models.Actor, numbers ...int) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/draws/"+drawID+"/claims", as, map[string]interface{}{
		"numbers":         numbers,
		"purchaser_name":  "Jane Doe",
		"purchaser_phone": "555-0101",
	})
	expectStatus(t, rec, http.StatusCreated)
	var receipt services.ClaimReceipt
	decode(t, rec, &receipt)
	return receipt.Participation.ID
}
