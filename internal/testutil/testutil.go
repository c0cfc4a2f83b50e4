package testutil

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/logger"
	"github.com/abrezinsky/rafflebook/internal/repository"
)

// Epoch is the starting time of fixed test clocks.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// NewClock returns a fixed clock starting at Epoch.
func NewClock() *clock.Fixed {
	return clock.NewFixed(Epoch)
}

// LogBuffer is a goroutine-safe writer for capturing log output.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewLogger returns a debug-level logger writing to the returned buffer.
func NewLogger() (logger.Logger, *LogBuffer) {
	buf := &LogBuffer{}
	log := logger.NewWithOptions(logger.Options{Level: slog.LevelDebug, Output: buf})
	return log, buf
}
