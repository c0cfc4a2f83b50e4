//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/abrezinsky/rafflebook/internal/logger"
)

// listenForControlSignals adjusts logging at runtime:
// SIGUSR1 toggles HTTP request logging, SIGUSR2 cycles the log level.
func listenForControlSignals(ctx context.Context, appLog logger.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			switch sig {
			case syscall.SIGUSR1:
				appLog.Info("HTTP request logging toggled", "enabled", toggleHTTPLogging(appLog))
			case syscall.SIGUSR2:
				appLog.Info("Log level changed", "level", cycleLogLevel(appLog))
			}
		}
	}
}
