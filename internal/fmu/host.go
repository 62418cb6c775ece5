// Package fmu loads, steps, and tears down FMI 2.0 Co-Simulation models.
// Each simulation owns its own Host; instances are never shared across
// simulations. The native ABI call surface (dlopen/dlsym and the fmi2*
// entry points) lives in fmi_cgo.go, compiled only when cgo is available.
package fmu

import (
	"archive/zip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

// instance is one loaded FMU, owned exclusively by the Host that created
// it.
type instance struct {
	componentID uint64
	name        string
	scratchDir  string
	desc        *descriptor
	vars        map[string]scalarVariable
	outputs     []scalarVariable

	lib       *nativeLibrary
	component nativePtr

	// work serializes calls into the native library: fmi2DoStep is a
	// CPU-bound blocking call, and an FMU component handle must never be
	// touched from two goroutines at once.
	work chan func()
	done chan struct{}
}

// nativePtr is the opaque FMU component handle returned by fmi2Instantiate.
type nativePtr = unsafe.Pointer

// Host owns every FMU instance for one simulation.
type Host struct {
	mu        sync.Mutex
	instances map[uint64]*instance
	baseDir   string
}

// NewHost creates an FMU host rooted at baseDir for scratch extraction. An
// empty baseDir uses the OS temp directory.
func NewHost(baseDir string) *Host {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Host{
		instances: make(map[uint64]*instance),
		baseDir:   baseDir,
	}
}

// Load unpacks component's fmu_path archive, instantiates the Co-Simulation
// slave, and registers it under component.ID. Failure leaves the host
// exactly as it was before the call (nothing partially registered).
func (h *Host) Load(component model.Component) error {
	fmuPath, ok := component.Config["fmu_path"].(string)
	if !ok || fmuPath == "" {
		return fmt.Errorf("component %q (%d): missing required config key fmu_path", component.Name, component.ID)
	}

	scratchDir := filepath.Join(h.baseDir, fmt.Sprintf("fmu-%d-%s", component.ID, component.Name))
	if err := unpackArchive(fmuPath, scratchDir); err != nil {
		return fmt.Errorf("unpack %s: %w", fmuPath, err)
	}

	desc, err := parseDescriptor(scratchDir)
	if err != nil {
		return err
	}
	for _, v := range desc.outputs() {
		switch v.fmiType() {
		case "Real", "Integer", "Enumeration", "Boolean":
		default:
			log.Printf("[fmu] %s: output %q has an unsupported type and will be skipped", component.Name, v.Name)
		}
	}

	libPath := nativeLibraryPath(scratchDir, desc.CoSimulation.ModelIdentifier, runtime.GOOS, runtime.GOARCH)
	lib, err := openLibrary(libPath)
	if err != nil {
		return fmt.Errorf("load native library for %q: %w", component.Name, err)
	}

	resourceLocation := "file://" + filepath.Join(scratchDir, "resources")
	comp, err := lib.newInstance(component.Name, desc.GUID, resourceLocation)
	if err != nil {
		_ = lib.close()
		return fmt.Errorf("instantiate %q: %w", component.Name, err)
	}

	inst := &instance{
		componentID: component.ID,
		name:        component.Name,
		scratchDir:  scratchDir,
		desc:        desc,
		vars:        desc.variablesByName(),
		outputs:     desc.outputs(),
		lib:         lib,
		component:   comp,
		work:        make(chan func()),
		done:        make(chan struct{}),
	}
	go inst.loop()

	h.mu.Lock()
	h.instances[component.ID] = inst
	h.mu.Unlock()
	return nil
}

// loop runs every native call for this instance on one dedicated goroutine,
// so fmi2DoStep never races with get/set calls for the same component and
// a blocking native call never stalls the step loop's other kernels longer
// than this instance's own tick.
func (inst *instance) loop() {
	for fn := range inst.work {
		fn()
	}
	close(inst.done)
}

func (inst *instance) run(fn func()) {
	done := make(chan struct{})
	inst.work <- func() {
		fn()
		close(done)
	}
	<-done
}

// Step advances componentID's FMU by one tick (Δt = 1s), writing inputs by
// name/type before doStep and reading every output variable after. Per the
// FMU host contract, a doStep failure or a missing instance never aborts
// the simulation: it yields a diagnostic output value instead.
func (h *Host) Step(componentID uint64, now float64, inputs model.PortValues) model.PortValues {
	h.mu.Lock()
	inst, ok := h.instances[componentID]
	h.mu.Unlock()
	if !ok {
		return model.PortValues{"status": "error_fmu_not_found"}
	}

	var result model.PortValues
	inst.run(func() {
		inst.applyInputs(inputs)

		status := inst.lib.stepOnce(inst.component, now, 1.0)
		if status != 0 { // fmi2OK
			log.Printf("[fmu] %s: doStep returned non-OK status %d", inst.name, status)
			result = model.PortValues{"status": fmt.Sprintf("error_doStep_%d", status)}
			return
		}

		result = inst.readOutputs()
	})
	return result
}

func (inst *instance) applyInputs(inputs model.PortValues) {
	for port, value := range inputs {
		v, ok := inst.vars[port]
		if !ok {
			continue
		}
		switch v.fmiType() {
		case "Real":
			if f, ok := toFloat(value); ok {
				inst.lib.setReal(inst.component, []uint32{v.ValueReference}, []float64{f})
			}
		case "Integer", "Enumeration":
			if n, ok := toInt(value); ok {
				inst.lib.setInteger(inst.component, []uint32{v.ValueReference}, []int32{int32(n)})
			}
		case "Boolean":
			if b, ok := toBool(value); ok {
				inst.lib.setBoolean(inst.component, []uint32{v.ValueReference}, []int32{boolToFmi(b)})
			}
		default:
			log.Printf("[fmu] %s: skipping input %q of unsupported type", inst.name, port)
		}
	}
}

func (inst *instance) readOutputs() model.PortValues {
	out := make(model.PortValues, len(inst.outputs))
	for _, v := range inst.outputs {
		switch v.fmiType() {
		case "Real":
			values, status := inst.lib.getReal(inst.component, []uint32{v.ValueReference})
			if status == 0 && len(values) == 1 {
				out[v.Name] = values[0]
			}
		case "Integer", "Enumeration":
			values, status := inst.lib.getInteger(inst.component, []uint32{v.ValueReference})
			if status == 0 && len(values) == 1 {
				out[v.Name] = int64(values[0])
			}
		case "Boolean":
			values, status := inst.lib.getBoolean(inst.component, []uint32{v.ValueReference})
			if status == 0 && len(values) == 1 {
				out[v.Name] = values[0] != 0
			}
		default:
			// unsupported type: skip, already warned on load.
		}
	}
	return out
}

// Close terminates and frees every instance, in no particular order,
// logging but never propagating teardown failures. Safe to call more than
// once.
func (h *Host) Close() {
	h.mu.Lock()
	instances := h.instances
	h.instances = make(map[uint64]*instance)
	h.mu.Unlock()

	for _, inst := range instances {
		inst.run(func() {
			if status := inst.lib.terminate(inst.component); status != 0 {
				log.Printf("[fmu] %s: fmi2Terminate returned status %d", inst.name, status)
			}
			inst.lib.release(inst.component)
		})
		close(inst.work)
		<-inst.done
		if err := inst.lib.close(); err != nil {
			log.Printf("[fmu] %s: %v", inst.name, err)
		}
		if err := os.RemoveAll(inst.scratchDir); err != nil {
			log.Printf("[fmu] %s: cleanup scratch dir: %v", inst.name, err)
		}
	}
}

func toFloat(v model.Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v model.Value) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func toBool(v model.Value) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func boolToFmi(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// unpackArchive extracts a .fmu (a zip archive) into dir, which is created
// if needed. Existing contents are removed first so a retry never mixes
// stale and fresh files.
func unpackArchive(fmuPath, dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	r, err := zip.OpenReader(fmuPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(dir, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
