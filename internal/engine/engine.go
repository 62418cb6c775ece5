// Package engine runs the per-tick step loop: gather inputs from the
// previous tick's state plus the HIL overlay, dispatch every component to
// its kernel in scheduled order, publish the merged state, and write HIL
// outputs. One Loop owns one simulation's step loop goroutine.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/kernel"
	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

// Bridge is the subset of the OPC UA bridge the step loop needs. Satisfied
// by *opcua.Bridge; kept as an interface here so pure-mode simulations never
// have to construct one.
type Bridge interface {
	Read() map[uint64]model.Value
	Write(ctx context.Context, valuesByBindingID map[uint64]model.Value)
}

// FMURunner is the subset of the FMU host the kernel dispatcher calls
// through. Satisfied by *fmu.Host.
type FMURunner interface {
	Step(componentID uint64, now float64, inputs model.PortValues) model.PortValues
}

// Config controls a Loop's timing and collaborators.
type Config struct {
	Snapshot       model.Snapshot
	ExecutionOrder []uint64
	Mode           model.Mode
	TickInterval   time.Duration // default 1s if zero
	Bridge         Bridge        // nil in pure mode
	FMURunner      FMURunner     // nil if the snapshot has no FMU components
}

// Loop owns one simulation's mutable runtime state: component_states and
// the goroutine advancing it.
type Loop struct {
	cfg       Config
	startTime time.Time

	mu             sync.RWMutex
	componentState map[uint64]model.PortValues

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewLoop builds a Loop with an empty state entry for every snapshot
// component, per the component_states invariant in spec §3.
func NewLoop(cfg Config) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	states := make(map[uint64]model.PortValues, len(cfg.Snapshot.Components))
	for _, c := range cfg.Snapshot.Components {
		states[c.ID] = model.PortValues{}
	}
	return &Loop{
		cfg:            cfg,
		componentState: states,
		stopChan:       make(chan struct{}),
	}
}

// Start begins the step loop in a new goroutine. The supplied context
// bounds the loop's lifetime in addition to Stop.
func (l *Loop) Start(ctx context.Context) {
	l.startTime = time.Now()
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop requests a graceful stop and blocks until the loop has exited its
// current tick.
func (l *Loop) Stop() {
	select {
	case <-l.stopChan:
	default:
		close(l.stopChan)
	}
	l.wg.Wait()
}

// Wait blocks until the step loop goroutine has exited, however it exited
// (Stop, context cancellation, or panic recovery unwinding run()). Safe to
// call without ever calling Stop.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// States returns a snapshot of every component's current port values.
func (l *Loop) States() map[uint64]model.PortValues {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[uint64]model.PortValues, len(l.componentState))
	for id, ports := range l.componentState {
		copied := make(model.PortValues, len(ports))
		for k, v := range ports {
			copied[k] = v
		}
		out[id] = copied
	}
	return out
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[engine] step loop panicked: %v", r)
		}
	}()

	ticker := time.NewTicker(l.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.tick()
		}
	}
}

func (l *Loop) tick() {
	now := time.Since(l.startTime).Seconds()

	var external map[uint64]model.Value
	if l.cfg.Mode == model.ModeHIL && l.cfg.Bridge != nil {
		external = l.cfg.Bridge.Read()
	}

	l.mu.RLock()
	prevStates := l.componentState
	l.mu.RUnlock()

	nextStates := make(map[uint64]model.PortValues, len(l.cfg.Snapshot.Components))
	for _, componentID := range l.cfg.ExecutionOrder {
		component, ok := l.cfg.Snapshot.ComponentByID(componentID)
		if !ok {
			continue
		}
		inputs := l.gatherInputs(componentID, prevStates, external)
		prev := prevStates[componentID]
		nextStates[componentID] = kernel.Update(component.Kind, componentID, now, component.Config, inputs, prev, l.cfg.FMURunner)
	}

	l.mu.Lock()
	merged := make(map[uint64]model.PortValues, len(prevStates))
	for id, ports := range prevStates {
		merged[id] = ports
	}
	for id, ports := range nextStates {
		merged[id] = ports
	}
	l.componentState = merged
	l.mu.Unlock()

	if l.cfg.Mode == model.ModeHIL && l.cfg.Bridge != nil {
		l.writeExternal(nextStates)
	}
}

// gatherInputs materializes one component's inputs for this tick: internal
// connections read the *previous* tick's state, and any Read binding on
// this component overlays (overrides) the internal value for the same
// port, per spec §4.6 step 4a.
func (l *Loop) gatherInputs(componentID uint64, prevStates map[uint64]model.PortValues, external map[uint64]model.Value) model.PortValues {
	inputs := model.PortValues{}

	for _, conn := range l.cfg.Snapshot.Connections {
		if conn.TargetComponentID != componentID || !conn.HasPorts() {
			continue
		}
		sourcePorts, ok := prevStates[conn.SourceComponentID]
		if !ok {
			continue
		}
		value, ok := sourcePorts[*conn.SourcePort]
		if !ok {
			continue
		}
		inputs[*conn.TargetPort] = value
	}

	for _, binding := range l.cfg.Snapshot.Bindings {
		if binding.ComponentID != componentID || binding.Direction != model.DirectionRead {
			continue
		}
		if value, ok := external[binding.ID]; ok {
			inputs[binding.ComponentPort] = value
		}
	}

	return inputs
}

// writeExternal batches every Write binding whose source port produced a
// value this tick and issues one bridge write call.
func (l *Loop) writeExternal(nextStates map[uint64]model.PortValues) {
	batch := make(map[uint64]model.Value)
	for _, binding := range l.cfg.Snapshot.Bindings {
		if binding.Direction != model.DirectionWrite {
			continue
		}
		ports, ok := nextStates[binding.ComponentID]
		if !ok {
			continue
		}
		value, ok := ports[binding.ComponentPort]
		if !ok {
			continue
		}
		batch[binding.ID] = value
	}
	if len(batch) == 0 {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), l.cfg.TickInterval)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[engine] HIL write panicked: %v", r)
		}
	}()
	l.cfg.Bridge.Write(writeCtx, batch)
}
