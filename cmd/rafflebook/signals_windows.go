//go:build windows

package main

import (
	"context"

	"github.com/abrezinsky/rafflebook/internal/logger"
)

// listenForControlSignals is a no-op on Windows, which has no user signals
func listenForControlSignals(ctx context.Context, appLog logger.Logger) {
	<-ctx.Done()
}
