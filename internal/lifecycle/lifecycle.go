// Package lifecycle owns the registry of running simulations: starting
// them (snapshot load, schedule, FMU load, bridge init, step loop spawn),
// reporting status, and guaranteeing teardown on every exit path. It is the
// single owner of both the active-simulations registry and the monotonic
// id counter the source used as a module-level global.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/engine"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/fmu"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/opcua"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/scheduler"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/simerr"
)

// Status is a simulation's lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
)

func (s Status) terminal() bool {
	return s == StatusStopped || s == StatusError
}

// SnapshotLoader fetches an immutable machine-model snapshot for model_id,
// fetching bindings only when mode is HIL. Implemented by the persistence
// collaborator (out of scope here; referenced only by contract).
type SnapshotLoader interface {
	Load(ctx context.Context, modelID uint64, mode model.Mode) (model.Snapshot, error)
}

// RunRecorder persists the audit trail of a simulation's status
// transitions. store.Repository implements this; callers that only have a
// SnapshotLoader (e.g. the headless cmd/simulate entrypoint) simply don't
// satisfy it, and the manager runs without an audit trail.
type RunRecorder interface {
	UpsertRun(runID string, machineModelID uint64, mode, status string, startedAt time.Time, stoppedAt *time.Time, errMsg string) error
}

// simulation is one registry entry: the lifecycle manager's exclusive view
// of a running (or finished) simulation.
type simulation struct {
	id        uint64
	modelID   uint64
	mode      model.Mode
	status    Status
	startTime time.Time
	errMsg    string

	runID string

	loop      *engine.Loop
	fmuHost   *fmu.Host
	bridge    *opcua.Bridge
	cancel    context.CancelFunc
}

// StateView is the read-only status projection returned to callers.
type StateView struct {
	SimulationID     uint64
	ModelID          uint64
	Status           Status
	StartTime        time.Time
	Error            string
	ComponentStates  map[uint64]model.PortValues
}

// Manager is the single owner of the active-simulations registry.
type Manager struct {
	loader   SnapshotLoader
	recorder RunRecorder
	nextID   uint64 // atomic
	tick     time.Duration

	mu   sync.RWMutex
	sims map[uint64]*simulation
}

// NewManager creates a lifecycle manager backed by loader. tickInterval
// defaults to one second when zero, per spec.md's default cadence. If
// loader also implements RunRecorder (store.Repository does), every status
// transition is additionally upserted as a RunRecord.
func NewManager(loader SnapshotLoader, tickInterval time.Duration) *Manager {
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	m := &Manager{
		loader: loader,
		tick:   tickInterval,
		sims:   make(map[uint64]*simulation),
	}
	if recorder, ok := loader.(RunRecorder); ok {
		m.recorder = recorder
	}
	return m
}

// recordRun is a best-effort audit write: a failure to persist the audit
// trail must never take down a running simulation, so it's only logged.
func (m *Manager) recordRun(sim *simulation, status Status, stoppedAt *time.Time) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.UpsertRun(sim.runID, sim.modelID, string(sim.mode), string(status), sim.startTime, stoppedAt, sim.errMsg); err != nil {
		log.Printf("[lifecycle] simulation %d: failed to record run status %s: %v", sim.id, status, err)
	}
}

// Start allocates a monotonically increasing id, loads the snapshot,
// schedules, loads FMUs, initializes the bridge (HIL only), and spawns the
// step loop. Any setup failure transitions the simulation to Error and runs
// the full cleanup before returning.
func (m *Manager) Start(ctx context.Context, modelID uint64, mode model.Mode) (uint64, error) {
	id := atomic.AddUint64(&m.nextID, 1)

	sim := &simulation{id: id, modelID: modelID, mode: mode, status: StatusStarting, runID: uuid.NewString(), startTime: time.Now()}
	m.register(sim)
	m.recordRun(sim, StatusStarting, nil)

	snapshot, err := m.loader.Load(ctx, modelID, mode)
	if err != nil {
		wrapped := simerr.Load(fmt.Sprintf("load snapshot for model %d", modelID), err)
		m.fail(sim, wrapped)
		return id, wrapped
	}

	order, cycle := scheduler.Order(snapshot.Components, snapshot.Connections)
	if cycle != nil {
		log.Printf("[lifecycle] simulation %d: cycle detected among %v, falling back to snapshot order", id, cycle.Remaining)
	}

	fmuHost := fmu.NewHost("")
	for _, c := range snapshot.Components {
		if c.Kind != model.KindFMU {
			continue
		}
		if err := fmuHost.Load(c); err != nil {
			fmuHost.Close()
			wrapped := simerr.Load(fmt.Sprintf("load FMU %q", c.Name), err)
			m.fail(sim, wrapped)
			return id, wrapped
		}
	}

	var bridge *opcua.Bridge
	if mode == model.ModeHIL {
		bridge = opcua.NewBridge()
		if err := bridge.Initialize(ctx, snapshot.Bindings); err != nil {
			fmuHost.Close()
			wrapped := simerr.Bridge("initialize OPC UA bridge", err)
			m.fail(sim, wrapped)
			return id, wrapped
		}
	}

	loopCfg := engine.Config{
		Snapshot:       snapshot,
		ExecutionOrder: order,
		Mode:           mode,
		TickInterval:   m.tick,
		FMURunner:      fmuHost,
	}
	if bridge != nil {
		loopCfg.Bridge = bridge
	}
	loop := engine.NewLoop(loopCfg)

	loopCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	sim.loop = loop
	sim.fmuHost = fmuHost
	sim.bridge = bridge
	sim.cancel = cancel
	sim.status = StatusRunning
	m.mu.Unlock()
	m.recordRun(sim, StatusRunning, nil)

	loop.Start(loopCtx)
	go m.supervise(sim)

	return id, nil
}

// supervise blocks until the step loop exits (via our own Stop call, its
// context being cancelled, or a panic unwinding it) and then runs
// guaranteed cleanup exactly once.
func (m *Manager) supervise(sim *simulation) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[lifecycle] simulation %d: supervision panicked: %v", sim.id, r)
			m.mu.Lock()
			sim.status = StatusError
			sim.errMsg = fmt.Sprintf("panic: %v", r)
			m.mu.Unlock()
		}
		m.cleanup(sim)
	}()
	sim.loop.Wait()
}

// cleanup terminates every FMU instance, disconnects the bridge, and sets
// the final status, regardless of how the simulation exited.
func (m *Manager) cleanup(sim *simulation) {
	if sim.fmuHost != nil {
		sim.fmuHost.Close()
	}
	if sim.bridge != nil {
		sim.bridge.DisconnectAll()
	}

	m.mu.Lock()
	if sim.status != StatusError {
		sim.status = StatusStopped
	}
	final := sim.status
	m.mu.Unlock()

	stoppedAt := time.Now()
	m.recordRun(sim, final, &stoppedAt)
}

// Status returns a point-in-time view of a simulation, if it exists.
func (m *Manager) Status(id uint64) (StateView, bool) {
	m.mu.RLock()
	sim, ok := m.sims[id]
	m.mu.RUnlock()
	if !ok {
		return StateView{}, false
	}

	m.mu.RLock()
	view := StateView{
		SimulationID: sim.id,
		ModelID:      sim.modelID,
		Status:       sim.status,
		StartTime:    sim.startTime,
		Error:        sim.errMsg,
	}
	loop := sim.loop
	m.mu.RUnlock()

	if loop != nil {
		view.ComponentStates = loop.States()
	}
	return view, true
}

// Stop requests a cooperative stop: if Running/Starting, status moves to
// Stopping and the step loop observes it at the next tick. If already
// terminal, this is an idempotent no-op that still schedules a bridge
// disconnect as a safety net. Returns whether a stop was accepted.
func (m *Manager) Stop(id uint64) (bool, error) {
	m.mu.Lock()
	sim, ok := m.sims[id]
	if !ok {
		m.mu.Unlock()
		return false, simerr.Lifecycle(fmt.Sprintf("stop simulation %d", id), fmt.Errorf("unknown simulation id"))
	}
	if sim.status.terminal() {
		m.mu.Unlock()
		if sim.bridge != nil {
			sim.bridge.DisconnectAll()
		}
		return true, nil
	}
	sim.status = StatusStopping
	loop := sim.loop
	cancel := sim.cancel
	m.mu.Unlock()

	if loop != nil {
		go func() {
			loop.Stop()
			if cancel != nil {
				cancel()
			}
		}()
	}
	return true, nil
}

func (m *Manager) register(sim *simulation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sims[sim.id] = sim
}

func (m *Manager) fail(sim *simulation, err error) {
	log.Printf("[lifecycle] simulation %d failed to start: %v", sim.id, err)
	m.mu.Lock()
	sim.status = StatusError
	sim.errMsg = err.Error()
	m.mu.Unlock()

	stoppedAt := time.Now()
	m.recordRun(sim, StatusError, &stoppedAt)
}
