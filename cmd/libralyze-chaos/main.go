// cmd/libralyze-chaos/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"libralyze/internal/chaos"
	"libralyze/internal/circulation"
	"libralyze/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var dataPath, level string
	flagSet := pflag.NewFlagSet("libralyze-chaos", pflag.ContinueOnError)
	flagSet.StringVar(&dataPath, "data", "shared/libraryData.json", "catalogue file to copy into the experiment sandbox; it is never written")
	flagSet.StringVar(&level, "log-level", "warn", "log level: debug, info, warn or error")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalogue, err := store.NewFileStore(dataPath).Load(ctx)
	if err != nil {
		return err
	}

	sandbox, err := os.MkdirTemp("", "libralyze-chaos-")
	if err != nil {
		return fmt.Errorf("failed to create sandbox: %w", err)
	}
	defer os.RemoveAll(sandbox)

	fs := store.NewFileStore(filepath.Join(sandbox, filepath.Base(dataPath)))
	if err := fs.Save(ctx, catalogue); err != nil {
		return err
	}

	target := chaos.NewTarget(catalogue, fs, nil,
		circulation.WithUsername("chaos"),
		circulation.WithLogger(logger),
	)
	engine := chaos.NewEngine(logger)
	engine.RegisterExperiments(target)

	gameDay := chaos.GameDay{
		Name:      "Catalogue Chaos Game Day",
		Date:      time.Now(),
		Scenarios: engine.Experiments(),
	}
	if !engine.ExecuteGameDay(ctx, gameDay, os.Stdout) {
		return errors.New("one or more hypotheses did not hold")
	}
	return nil
}
