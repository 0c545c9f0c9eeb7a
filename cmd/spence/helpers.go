package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spence/internal/aggregate"
	"github.com/Veraticus/spence/internal/config"
	"github.com/Veraticus/spence/internal/engine"
	"github.com/Veraticus/spence/internal/forecast"
	"github.com/Veraticus/spence/internal/storage"
)

// initStorage opens the configured database and brings its schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := config.DatabasePath()
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// newEngine wires the forecaster and aggregator over store. A zero seed
// leaves the forecaster time-seeded.
func newEngine(store *storage.SQLiteStorage, seed uint64) (*engine.Engine, *time.Location, error) {
	loc, err := config.Location()
	if err != nil {
		return nil, nil, err
	}
	historyDays, err := config.HistoryDays()
	if err != nil {
		return nil, nil, err
	}

	opts := []forecast.Option{forecast.WithLogger(slog.Default()), forecast.WithLocation(loc)}
	if seed != 0 {
		opts = append(opts, forecast.WithSeed(seed))
	}
	forecaster, err := forecast.New(forecast.DefaultConfig(), opts...)
	if err != nil {
		return nil, nil, err
	}

	cfg := engine.DefaultConfig()
	cfg.HistoryDays = historyDays

	eng := engine.New(store, forecaster, aggregate.New(loc), cfg, engine.WithLogger(slog.Default()))
	return eng, loc, nil
}

// configuredSeed returns the --seed flag when set, otherwise forecast.seed.
func configuredSeed(flagSeed uint64) uint64 {
	if flagSeed != 0 {
		return flagSeed
	}
	return viper.GetUint64("forecast.seed")
}

// expandFiles resolves glob patterns into the files to import.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(config.ExpandPath(pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err == nil {
				files = append(files, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		files = append(files, matches...)
	}
	return files, nil
}
