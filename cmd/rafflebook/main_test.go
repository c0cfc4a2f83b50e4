package main

import (
	"flag"
	"io"
	"log/slog"
	"testing"

	"github.com/abrezinsky/rafflebook/internal/config"
	"github.com/abrezinsky/rafflebook/internal/logger"
)

func TestOverrides_OnlySetFlagsApply(t *testing.T) {
	var o overrides
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.IntVar(&o.port, "port", 8081, "")
	fs.StringVar(&o.dbPath, "db", "raffle.db", "")
	fs.StringVar(&o.logFormat, "logformat", "text", "")
	fs.BoolVar(&o.trustHeaders, "trust-headers", false, "")

	if err := fs.Parse([]string{"-port", "9000", "-trust-headers"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := &config.Config{Port: 8081, DatabasePath: "/data/env.db", LogFormat: "json"}
	o.apply(fs, cfg)

	if cfg.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Port)
	}
	if !cfg.TrustHeaders {
		t.Error("expected trust-headers to be set")
	}
	if cfg.DatabasePath != "/data/env.db" {
		t.Errorf("unset flag overwrote db path: %s", cfg.DatabasePath)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("unset flag overwrote log format: %s", cfg.LogFormat)
	}
}

func TestCycleLogLevel(t *testing.T) {
	appLog := logger.NewWithOptions(logger.Options{Level: slog.LevelDebug, Output: io.Discard})

	for _, want := range []string{"info", "warn", "error", "debug"} {
		if got := cycleLogLevel(appLog); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
	if appLog.GetLevel() != slog.LevelDebug {
		t.Errorf("expected debug after full cycle, got %s", appLog.GetLevel())
	}
}

func TestToggleHTTPLogging(t *testing.T) {
	appLog := logger.NewWithOptions(logger.Options{Output: io.Discard})

	if !toggleHTTPLogging(appLog) || !appLog.IsHTTPLoggingEnabled() {
		t.Error("expected logging enabled after first toggle")
	}
	if toggleHTTPLogging(appLog) || appLog.IsHTTPLoggingEnabled() {
		t.Error("expected logging disabled after second toggle")
	}
}
