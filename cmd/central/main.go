// Package main provides the central sync server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fixline/bodyshop/cmd/central/handlers"
	"github.com/fixline/bodyshop/internal/auth"
	"github.com/fixline/bodyshop/internal/changelog"
	"github.com/fixline/bodyshop/internal/config"
	"github.com/fixline/bodyshop/internal/db"
	"github.com/fixline/bodyshop/internal/logging"
	"github.com/fixline/bodyshop/internal/models"
	"github.com/fixline/bodyshop/internal/sync"
	"github.com/fixline/bodyshop/internal/uuid"
)

func main() {
	configPath := flag.String("config", "bodyshop.yaml", "path to configuration file")
	register := flag.String("register", "", "provision a machine identity as machineKey,storeId,storeType,serverRole and exit; use - as machineKey to generate one")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateCentral(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(os.Stdout, cfg.LogLevel)

	database, err := db.Open(cfg.Central.DataDir, "central.db")
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

	if *register != "" {
		if err := provisionIdentity(repo, *register); err != nil {
			fmt.Fprintf(os.Stderr, "provisioning error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("machine identity registered")
		return
	}

	issuer := auth.NewIssuer(cfg.Central.JWTSecret, cfg.Central.TokenTTL.Std())
	authenticator := auth.NewAuthenticator(repo, issuer)

	service := sync.NewService(repo, writer, cfg.Central.PageSizeDefault, cfg.Central.PageSizeMax)
	hub := NewEventHub()
	service.SetBroadcaster(hub)

	syncHandler := handlers.NewSyncHandler(service)
	authHandler := handlers.NewAuthHandler(authenticator)

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", authHandler.Login)
	mux.Handle("/sync/upload", auth.RequireIdentity(issuer, http.HandlerFunc(syncHandler.Upload)))
	mux.Handle("/sync/changes", auth.RequireIdentity(issuer, http.HandlerFunc(syncHandler.Changes)))
	mux.HandleFunc("/sync/events", hub.ServeWS)
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"bodyshop-central"}`))
	})

	server := &http.Server{Addr: cfg.Central.ListenAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logging.Info("Central sync server starting",
		map[string]interface{}{"addr": cfg.Central.ListenAddr})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logging.Error("Server stopped", err, nil)
		os.Exit(1)
	case <-sigCh:
	}

	// In-flight uploads finish or the deadline cuts them off; either
	// way stores resume cleanly on their next tick.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logging.Error("Shutdown failed", err, nil)
	}
	logging.Info("Central sync server stopped", nil)
}

// provisionIdentity parses "machineKey,storeId,storeType,serverRole"
// and registers it in the machine identity table. A machineKey of "-"
// generates a fresh key and prints it; storeId and storeType stay
// blank for a CENTRAL registration.
func provisionIdentity(repo *db.Repository, spec string) error {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return fmt.Errorf("expected machineKey,storeId,storeType,serverRole")
	}

	role, err := models.ParseServerRole(parts[3])
	if err != nil {
		return err
	}

	identity := models.NodeIdentity{
		StoreID:    parts[1],
		ServerRole: role,
	}
	if role.IsStore() {
		storeType, err := models.ParseStoreType(parts[2])
		if err != nil {
			return err
		}
		identity.StoreType = storeType
	}

	machineKey := parts[0]
	if machineKey == "-" {
		machineKey = uuid.NewMachineKey()
		fmt.Printf("generated machine key: %s\n", machineKey)
	}

	return repo.RegisterMachineIdentity(machineKey, identity)
}
