package handlers

import (
	"net/http"

	"github.com/abrezinsky/rafflebook/internal/auth"
	"github.com/abrezinsky/rafflebook/internal/services"
)

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Catalog      services.CatalogServicer
	Inventory    services.InventoryServicer
	Ledger       services.LedgerServicer
	Results      services.ResultsServicer
	Audit        services.AuditServicer
	Auth         *auth.Auth
	Feed         http.HandlerFunc
	ClaimLimiter func(http.Handler) http.Handler
	Metrics      http.Handler
	Log          HTTPLogger
}

// HTTPLogger is an interface for loggers that support HTTP logging control
type HTTPLogger interface {
	IsHTTPLoggingEnabled() bool
	Error(msg string, args ...any)
}

// New creates a new Handlers instance with all dependencies. feed serves the
// live inventory websocket, claimLimiter wraps the claim route and metrics
// serves the Prometheus scrape endpoint; each may be nil.
func New(
	catalog services.CatalogServicer,
	inventory services.InventoryServicer,
	ledger services.LedgerServicer,
	results services.ResultsServicer,
	audit services.AuditServicer,
	identity *auth.Auth,
	feed http.HandlerFunc,
	claimLimiter func(http.Handler) http.Handler,
	metrics http.Handler,
	log HTTPLogger,
) *Handlers {
	return &Handlers{
		Catalog:      catalog,
		Inventory:    inventory,
		Ledger:       ledger,
		Results:      results,
		Audit:        audit,
		Auth:         identity,
		Feed:         feed,
		ClaimLimiter: claimLimiter,
		Metrics:      metrics,
		Log:          log,
	}
}

// NoopHTTPLogger is a test logger that always returns false for HTTP logging
type NoopHTTPLogger struct{}

func (NoopHTTPLogger) IsHTTPLoggingEnabled() bool { return false }

func (NoopHTTPLogger) Error(string, ...any) {}
