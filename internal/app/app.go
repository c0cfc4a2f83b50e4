package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abrezinsky/rafflebook/internal/auth"
	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/config"
	"github.com/abrezinsky/rafflebook/internal/handlers"
	"github.com/abrezinsky/rafflebook/internal/logger"
	"github.com/abrezinsky/rafflebook/internal/metrics"
	"github.com/abrezinsky/rafflebook/internal/middleware"
	"github.com/abrezinsky/rafflebook/internal/repository"
	"github.com/abrezinsky/rafflebook/internal/services"
	"github.com/abrezinsky/rafflebook/internal/websocket"
	"github.com/abrezinsky/rafflebook/pkg/receiptcheck"
)

const (
	shutdownTimeout     = 10 * time.Second
	limiterCleanupEvery = 5 * time.Minute
	limiterMaxIdle      = 15 * time.Minute
)

// App holds all application dependencies
type App struct {
	log       logger.Logger
	baseURL   string
	handlers  *handlers.Handlers
	repo      *repository.Repository
	scheduler *services.Scheduler
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New opens the database and wires services, the live feed, the scheduler
// and the HTTP handlers. Background workers run until Close.
func New(log logger.Logger, cfg *config.Config, identity *auth.Auth, clk clock.Clock) (*App, error) {
	repo, err := repository.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%d", lanAddress(systemInterfaces{}), cfg.Port)
	}

	var receipts receiptcheck.Client
	if cfg.ReceiptCheckURL != "" {
		receipts = receiptcheck.NewHTTPClient(cfg.ReceiptCheckURL, log)
	}

	opts := []services.Option{
		services.WithMaxRetries(cfg.ClaimMaxRetries),
		services.WithClaimTimeout(cfg.ClaimTimeout),
	}
	audit := services.NewAuditService(log, repo, clk)
	catalog := services.NewCatalogService(log, repo, audit, clk, opts...)
	inventory := services.NewInventoryService(log, repo, clk, opts...)
	ledger := services.NewLedgerService(log, repo, audit, clk, receipts, baseURL, opts...)
	results := services.NewResultsService(log, repo, audit, clk, opts...)

	ctx, cancel := context.WithCancel(context.Background())

	hub := websocket.New(log, inventory)
	hub.Start(ctx)
	catalog.SetBroadcaster(hub)
	inventory.SetBroadcaster(hub)
	ledger.SetBroadcaster(hub)
	results.SetBroadcaster(hub)

	scheduler := services.NewScheduler(log, repo, catalog, clk, cfg.Schedule)
	if err := scheduler.Start(); err != nil {
		cancel()
		repo.Close()
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.ClaimRate, cfg.ClaimBurst, log)
	limiter.StartCleanup(ctx, limiterCleanupEvery, limiterMaxIdle)

	h := handlers.New(
		catalog,
		inventory,
		ledger,
		results,
		audit,
		identity,
		hub.ServeWs,
		limiter.Handler,
		metrics.Handler(),
		log,
	)

	return &App{
		log:       log,
		baseURL:   baseURL,
		handlers:  h,
		repo:      repo,
		scheduler: scheduler,
		cancel:    cancel,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// BaseURL is the public address used in participation links
func (a *App) BaseURL() string {
	return a.baseURL
}

// Close stops background workers and closes the database. It is safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.cancel()
		<-a.scheduler.Stop().Done()
		if err := a.repo.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	})
}

// Run serves HTTP on addr until ctx is done, then shuts the server down gracefully
func (a *App) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	a.log.Info("Server starting", "addr", addr, "url", a.baseURL)

	select {
	case err := <-serverErr:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.log.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// networkInterface is the part of net.Interface lanAddress needs
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

// interfaceLister lists network interfaces
type interfaceLister interface {
	Interfaces() ([]networkInterface, error)
}

type systemInterface struct {
	iface net.Interface
}

func (s systemInterface) Flags() net.Flags           { return s.iface.Flags }
func (s systemInterface) Addrs() ([]net.Addr, error) { return s.iface.Addrs() }

type systemInterfaces struct{}

func (systemInterfaces) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]networkInterface, len(ifaces))
	for i := range ifaces {
		out[i] = systemInterface{iface: ifaces[i]}
	}
	return out, nil
}

// lanAddress picks the IPv4 address buyers on the local network can reach,
// preferring private ranges. It falls back to localhost.
func lanAddress(lister interfaceLister) string {
	ifaces, err := lister.Interfaces()
	if err != nil {
		return "localhost"
	}

	var fallback string
	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ip := addrIP(addr).To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ip.IsPrivate() {
				return ip.String()
			}
			if fallback == "" {
				fallback = ip.String()
			}
		}
	}

	if fallback != "" {
		return fallback
	}
	return "localhost"
}

func addrIP(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}
