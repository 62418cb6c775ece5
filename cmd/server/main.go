// Command server runs the digital-twin simulation engine's HTTP API: CRUD
// over the persistence store plus the simulation lifecycle endpoints.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/api"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/config"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/lifecycle"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/store"
)

func main() {
	var configPath = flag.String("config", "", "Path to JSON config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting digital-twin simulation server")
	log.Printf("  Database: %s", cfg.DatabasePath)
	log.Printf("  Listen address: %s", cfg.ServerAddress)
	log.Printf("  Tick interval: %v", cfg.TickIntervalDuration())

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := store.NewRepository(db)
	mgr := lifecycle.NewManager(repo, cfg.TickIntervalDuration())
	server := api.NewServer(repo, mgr, cfg.ServerAddress)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		done <- server.Start()
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down", sig)
		os.Exit(0)
	}
}
