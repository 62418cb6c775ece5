// Command simulate runs one simulation headlessly against a JSON-described
// machine model, for local testing of a graph without standing up the full
// server and persistence store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/lifecycle"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

// machineModelFile is the on-disk shape of a machine model description:
// the same entities as model.Snapshot, but JSON-friendly (component kind as
// a plain string, etc).
type machineModelFile struct {
	Components  []model.Component             `json:"components"`
	Connections []model.Connection             `json:"connections"`
	Bindings    []model.CommunicationBinding   `json:"bindings"`
}

// fileSnapshotLoader implements lifecycle.SnapshotLoader over a single
// pre-parsed machine model file; modelID and mode are accepted but ignored
// since there is exactly one model in this mode.
type fileSnapshotLoader struct {
	snapshot model.Snapshot
}

func (l *fileSnapshotLoader) Load(ctx context.Context, modelID uint64, mode model.Mode) (model.Snapshot, error) {
	return l.snapshot, nil
}

func main() {
	var (
		modelPath = flag.String("model", "", "Path to a JSON machine model file")
		mode      = flag.String("mode", "pure", "Execution mode: pure or hil")
		duration  = flag.Duration("duration", 30*time.Second, "How long to run before stopping")
		tick      = flag.Duration("tick", time.Second, "Tick cadence")
	)
	flag.Parse()

	if *modelPath == "" {
		log.Fatalf("Usage: simulate -model <path.json> [-mode pure|hil] [-duration 30s]")
	}

	snapshot, err := loadMachineModelFile(*modelPath)
	if err != nil {
		log.Fatalf("Failed to load machine model: %v", err)
	}

	simMode := model.Mode(*mode)
	if !simMode.IsValid() {
		log.Fatalf("Invalid mode %q: must be pure or hil", *mode)
	}

	log.Printf("Starting headless simulation")
	log.Printf("  Model: %s (%d components, %d connections, %d bindings)",
		*modelPath, len(snapshot.Components), len(snapshot.Connections), len(snapshot.Bindings))
	log.Printf("  Mode: %s", simMode)
	log.Printf("  Tick interval: %v", *tick)

	mgr := lifecycle.NewManager(&fileSnapshotLoader{snapshot: snapshot}, *tick)

	ctx := context.Background()
	id, err := mgr.Start(ctx, 1, simMode)
	if err != nil {
		log.Fatalf("Failed to start simulation: %v", err)
	}
	log.Printf("Simulation %d running", id)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-time.After(*duration):
		log.Printf("Duration elapsed, stopping simulation %d", id)
	case sig := <-sigChan:
		log.Printf("Received signal %v, stopping simulation %d", sig, id)
	}

	if _, err := mgr.Stop(id); err != nil {
		log.Fatalf("Failed to stop simulation: %v", err)
	}

	// Wait for cleanup to finish before reporting final status.
	time.Sleep(100 * time.Millisecond)
	view, _ := mgr.Status(id)
	log.Printf("Final status: %s", view.Status)
	for componentID, ports := range view.ComponentStates {
		log.Printf("  component %d: %v", componentID, ports)
	}
}

func loadMachineModelFile(path string) (model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read model file %s: %w", path, err)
	}
	var file machineModelFile
	if err := json.Unmarshal(data, &file); err != nil {
		return model.Snapshot{}, fmt.Errorf("parse model file %s: %w", path, err)
	}
	return model.Snapshot{
		Components:  file.Components,
		Connections: file.Connections,
		Bindings:    file.Bindings,
	}, nil
}
