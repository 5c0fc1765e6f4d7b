// cmd/libralyze/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"

	"libralyze/internal/catalog"
	"libralyze/internal/circulation"
	"libralyze/internal/config"
	"libralyze/internal/dashboard"
	"libralyze/internal/eventstore"
	"libralyze/internal/store"
	"libralyze/internal/telemetry"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	config.LoadEnvFiles()
	cfg, err := config.Load(args, stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})).With("session", uuid.NewString())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	st, journal, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	catalogue, err := st.Load(ctx)
	if err != nil {
		logger.Warn("could not load catalogue, starting empty", "error", err)
		catalogue = catalog.New()
	}
	logger.Info("catalogue loaded", "books", catalogue.Len())

	opts := []circulation.Option{
		circulation.WithUsername(cfg.Username),
		circulation.WithLogger(logger),
		circulation.WithTracerProvider(tp),
	}
	if journal != nil {
		opts = append(opts, circulation.WithJournal(journal))
	}
	svc := circulation.NewService(catalogue, st, opts...)

	err = dashboard.New(stdin, stdout, catalogue, svc, cfg.Username, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// openStore picks the catalogue backend. With a database URL the catalogue
// and the circulation journal live in PostgreSQL; otherwise the JSON file is
// used and nothing is journaled.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, circulation.Journal, func(), error) {
	if !cfg.UsePostgres() {
		logger.Info("using catalogue file", "path", cfg.DataPath)
		return store.NewFileStore(cfg.DataPath), nil, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("failed to close database", "error", err)
		}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		closeDB()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ps := store.NewPostgresStore(db)
	if err := ps.EnsureSchema(ctx); err != nil {
		closeDB()
		return nil, nil, nil, err
	}
	es := eventstore.NewEventStore(db)
	if err := es.EnsureSchema(ctx); err != nil {
		closeDB()
		return nil, nil, nil, err
	}

	logger.Info("using postgres catalogue and journal")
	return ps, es, closeDB, nil
}
