// Package main provides the store node daemon: a local database plus
// the background scheduler that reconciles it with central.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fixline/bodyshop/internal/changelog"
	"github.com/fixline/bodyshop/internal/config"
	"github.com/fixline/bodyshop/internal/db"
	"github.com/fixline/bodyshop/internal/identity"
	"github.com/fixline/bodyshop/internal/logging"
	"github.com/fixline/bodyshop/internal/sync"
	"github.com/fixline/bodyshop/internal/sync/scheduler"
)

func main() {
	configPath := flag.String("config", "bodyshop.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateStore(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(os.Stdout, cfg.LogLevel)

	database, err := db.Open(cfg.Store.DataDir, "store.db")
	if err != nil {
		logging.Error("Failed to open database", err, nil)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.NewMigrator(database.DB).Up(); err != nil {
		logging.Error("Migration failed", err, nil)
		os.Exit(1)
	}

	writer := changelog.NewWriter()
	repo := db.NewRepository(database.DB, writer)
	defer repo.Close()

	resolver := identity.NewResolver(cfg.Store.DataDir, cfg.Store.MachineKey)
	client := sync.NewClient(cfg.Store.CentralURL, cfg.Store.RequestTimeout.Std())

	sched := scheduler.New(repo, client, resolver, &scheduler.Config{
		Interval:  cfg.Store.SyncInterval.Std(),
		BatchSize: cfg.Store.BatchSize,
	})

	purger := changelog.NewPurger(database.DB,
		cfg.Store.RetentionWindow.Std(), cfg.Store.RetentionInterval.Std())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched.Start(ctx)
	go purger.Run(ctx)

	logging.Info("Store node started",
		map[string]interface{}{
			"central":  cfg.Store.CentralURL,
			"interval": cfg.Store.SyncInterval.Std().String(),
		})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	cancel()
	sched.Stop()
	logging.Info("Store node stopped", nil)
}
