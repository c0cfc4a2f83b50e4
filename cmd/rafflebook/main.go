package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/abrezinsky/rafflebook/internal/app"
	"github.com/abrezinsky/rafflebook/internal/auth"
	"github.com/abrezinsky/rafflebook/internal/clock"
	"github.com/abrezinsky/rafflebook/internal/config"
	"github.com/abrezinsky/rafflebook/internal/logger"
)

var (
	version = "dev"
)

// overrides holds command-line values that win over the environment
type overrides struct {
	port         int
	dbPath       string
	adminPw      string
	logLevel     string
	logFormat    string
	baseURL      string
	trustHeaders bool
}

// apply copies every flag the user actually set onto cfg
func (o overrides) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = o.port
		case "db":
			cfg.DatabasePath = o.dbPath
		case "adminpw":
			cfg.AdminPassword = o.adminPw
		case "loglevel":
			cfg.LogLevel = o.logLevel
		case "logformat":
			cfg.LogFormat = o.logFormat
		case "baseurl":
			cfg.BaseURL = o.baseURL
		case "trust-headers":
			cfg.TrustHeaders = o.trustHeaders
		}
	})
}

// cycleLogLevel cycles through debug -> info -> warn -> error
func cycleLogLevel(appLog logger.Logger) string {
	var next string
	switch appLog.GetLevel().String() {
	case "DEBUG":
		next = "info"
	case "INFO":
		next = "warn"
	case "WARN":
		next = "error"
	default:
		next = "debug"
	}
	appLog.SetLevel(logger.ParseLevel(next))
	return next
}

// toggleHTTPLogging flips request logging and reports the new state
func toggleHTTPLogging(appLog logger.Logger) bool {
	if appLog.IsHTTPLoggingEnabled() {
		appLog.DisableHTTPLogging()
		return false
	}
	appLog.EnableHTTPLogging()
	return true
}

func main() {
	var o overrides
	fs := flag.CommandLine
	envFile := fs.String("env", ".env", "Environment file to load (ignored if missing)")
	fs.IntVar(&o.port, "port", 8081, "HTTP server port")
	fs.StringVar(&o.dbPath, "db", "raffle.db", "SQLite database path")
	fs.StringVar(&o.adminPw, "adminpw", "", "Owner password (auto-generated if not set)")
	fs.StringVar(&o.logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "logformat", "text", "Log format (text, json)")
	fs.StringVar(&o.baseURL, "baseurl", "", "Public URL used in ticket links")
	fs.BoolVar(&o.trustHeaders, "trust-headers", false, "Accept X-Actor-ID / X-Actor-Role from a gateway")
	showVersion := fs.Bool("version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Rafflebook - raffle ticket inventory and payment ledger

Usage:
  rafflebook [options]

Options:
  -env string       Environment file (default ".env")
  -port int         HTTP server port (default 8081)
  -db string        SQLite database path (default "raffle.db")
  -adminpw str      Owner password (auto-generated if not set)
  -loglevel str     Log level: debug, info, warn, error (default "info")
  -logformat str    Log format: text, json (default "text")
  -baseurl str      Public URL used in ticket links (default: LAN address)
  -trust-headers    Accept caller identity headers from a gateway
  -version          Show version and exit
  -help             Show this help message

Every option can also be set with a RAFFLE_* environment variable;
flags win over the environment.

Signals:
  SIGUSR1           Toggle HTTP request logging
  SIGUSR2           Cycle log level (debug → info → warn → error)

Examples:
  rafflebook                               # Run on port 8081 with raffle.db
  rafflebook -port 8080 -db /data/raffle.db
  rafflebook -trust-headers -logformat json

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("rafflebook %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	o.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	appLog := logger.NewWithOptions(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
	})

	password := cfg.AdminPassword
	generated := password == ""
	if generated {
		password = auth.GeneratePassword()
	}

	clk := clock.NewSystem()
	a, err := app.New(appLog, cfg, auth.New(password, cfg.TrustHeaders, clk), clk)
	if err != nil {
		log.Fatal("Failed to initialize application: ", err)
	}

	if generated {
		appLog.Info("Owner password", "password", password)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go listenForControlSignals(ctx, appLog)

	err = a.Run(ctx, fmt.Sprintf(":%d", cfg.Port))
	a.Close()
	if err != nil {
		appLog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
