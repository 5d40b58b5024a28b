package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/emr/console/internal/config"
	"github.com/emr/console/internal/platform/audit"
	"github.com/emr/console/internal/platform/db"
	"github.com/emr/console/internal/platform/transport"
)

// app holds what the commands need from the outside world so tests can
// replace the backend.
type app struct {
	loadConfig func() (*config.Config, error)
	gateway    func(cfg *config.Config, logger zerolog.Logger) (transport.Gateway, error)
	// journal opens the audit store. pool is nil when no database is used.
	journal func(ctx context.Context, cfg *config.Config) (store audit.Store, pool *pgxpool.Pool, err error)
}

func defaultApp() *app {
	return &app{loadConfig: loadConfig, gateway: newGateway, journal: openJournal}
}

func main() {
	if err := newRootCmd(defaultApp()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "emr-console",
		Short:         "Administrative console for the EMR backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(serveCmd(a))
	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(deleteCmd(a))
	rootCmd.AddCommand(seedCmd(a))
	rootCmd.AddCommand(resourcesCmd())
	rootCmd.AddCommand(migrateCmd(a))
	return rootCmd
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes JSON to out, or human-readable lines in development.
func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// openJournal returns the Postgres journal when DATABASE_URL is set and an
// in-memory one otherwise.
func openJournal(ctx context.Context, cfg *config.Config) (audit.Store, *pgxpool.Pool, error) {
	if !cfg.AuditEnabled() {
		return audit.NewMemoryStore(0), nil, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect audit database: %w", err)
	}
	return audit.NewPGStore(pool), pool, nil
}

// newGateway builds the backend client from the configuration.
func newGateway(cfg *config.Config, logger zerolog.Logger) (transport.Gateway, error) {
	opts := []transport.Option{
		transport.WithTimeout(cfg.BackendTimeout),
		transport.WithRateLimit(cfg.BackendRateLimitRPS, cfg.BackendRateLimitBurst),
		transport.WithLogger(logger),
	}

	switch {
	case cfg.BackendJWTSecret != "":
		tokens, err := transport.NewJWTProvider(transport.JWTConfig{
			Secret:  []byte(cfg.BackendJWTSecret),
			Issuer:  cfg.BackendJWTIssuer,
			Subject: cfg.BackendJWTSubject,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithTokenProvider(tokens))
	case cfg.BackendToken != "":
		opts = append(opts, transport.WithTokenProvider(transport.StaticToken(cfg.BackendToken)))
	}

	return transport.New(cfg.BackendURL, opts...), nil
}
