//go:build cgo && (linux || darwin)

package fmu

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

typedef void* fmi2Component;
typedef unsigned int fmi2ValueReference;
typedef double fmi2Real;
typedef int fmi2Integer;
typedef int fmi2Boolean;
typedef const char* fmi2String;
typedef int fmi2Status; // fmi2OK=0 fmi2Warning=1 fmi2Discard=2 fmi2Error=3 fmi2Fatal=4 fmi2Pending=5
typedef int fmi2Type;   // fmi2ModelExchange=0 fmi2CoSimulation=1

typedef struct {
    void* logger;
    void* allocateMemory;
    void* freeMemory;
    void* stepFinished;
    void* componentEnvironment;
} fmi2CallbackFunctions;

typedef fmi2Component (*instantiate_fn)(fmi2String, fmi2Type, fmi2String, fmi2String, const fmi2CallbackFunctions*, fmi2Boolean, fmi2Boolean);
typedef fmi2Status (*set_real_fn)(fmi2Component, const fmi2ValueReference*, size_t, const fmi2Real*);
typedef fmi2Status (*set_integer_fn)(fmi2Component, const fmi2ValueReference*, size_t, const fmi2Integer*);
typedef fmi2Status (*set_boolean_fn)(fmi2Component, const fmi2ValueReference*, size_t, const fmi2Boolean*);
typedef fmi2Status (*get_real_fn)(fmi2Component, const fmi2ValueReference*, size_t, fmi2Real*);
typedef fmi2Status (*get_integer_fn)(fmi2Component, const fmi2ValueReference*, size_t, fmi2Integer*);
typedef fmi2Status (*get_boolean_fn)(fmi2Component, const fmi2ValueReference*, size_t, fmi2Boolean*);
typedef fmi2Status (*do_step_fn)(fmi2Component, fmi2Real, fmi2Real, fmi2Boolean);
typedef fmi2Status (*terminate_fn)(fmi2Component);
typedef void (*free_instance_fn)(fmi2Component);

static fmi2Component call_instantiate(void *fn, const char *name, int type, const char *guid, const char *resourceLocation) {
    fmi2CallbackFunctions callbacks;
    memset(&callbacks, 0, sizeof(callbacks));
    return ((instantiate_fn)fn)(name, type, guid, resourceLocation, &callbacks, 0, 0);
}

static fmi2Status call_set_real(void *fn, fmi2Component c, const fmi2ValueReference *vr, size_t n, const fmi2Real *v) {
    return ((set_real_fn)fn)(c, vr, n, v);
}
static fmi2Status call_set_integer(void *fn, fmi2Component c, const fmi2ValueReference *vr, size_t n, const fmi2Integer *v) {
    return ((set_integer_fn)fn)(c, vr, n, v);
}
static fmi2Status call_set_boolean(void *fn, fmi2Component c, const fmi2ValueReference *vr, size_t n, const fmi2Boolean *v) {
    return ((set_boolean_fn)fn)(c, vr, n, v);
}
static fmi2Status call_get_real(void *fn, fmi2Component c, const fmi2ValueReference *vr, size_t n, fmi2Real *v) {
    return ((get_real_fn)fn)(c, vr, n, v);
}
static fmi2Status call_get_integer(void *fn, fmi2Component c, const fmi2ValueReference *vr, size_t n, fmi2Integer *v) {
    return ((get_integer_fn)fn)(c, vr, n, v);
}
static fmi2Status call_get_boolean(void *fn, fmi2Component c, const fmi2ValueReference *vr, size_t n, fmi2Boolean *v) {
    return ((get_boolean_fn)fn)(c, vr, n, v);
}
static fmi2Status call_do_step(void *fn, fmi2Component c, fmi2Real t, fmi2Real step, fmi2Boolean noSet) {
    return ((do_step_fn)fn)(c, t, step, noSet);
}
static fmi2Status call_terminate(void *fn, fmi2Component c) {
    return ((terminate_fn)fn)(c);
}
static void call_free_instance(void *fn, fmi2Component c) {
    ((free_instance_fn)fn)(c);
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// nativeLibrary is a dlopen'd FMI 2.0 Co-Simulation shared library with its
// entry points resolved once at load time. Every call into it happens on
// the instance's dedicated worker goroutine (see host.go) since fmi2DoStep
// is a CPU-bound, blocking native call.
type nativeLibrary struct {
	handle unsafe.Pointer

	instantiate  unsafe.Pointer
	setReal      unsafe.Pointer
	setInteger   unsafe.Pointer
	setBoolean   unsafe.Pointer
	getReal      unsafe.Pointer
	getInteger   unsafe.Pointer
	getBoolean   unsafe.Pointer
	doStep       unsafe.Pointer
	terminateFn  unsafe.Pointer
	freeInstance unsafe.Pointer
}

func dlsymRequired(handle unsafe.Pointer, name string) (unsafe.Pointer, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	sym := C.dlsym(handle, cname)
	if sym == nil {
		return nil, fmt.Errorf("symbol %s not found in FMU shared library", name)
	}
	return sym, nil
}

// openLibrary dlopens the shared library at path and resolves every FMI 2.0
// Co-Simulation entry point this host needs.
func openLibrary(path string) (*nativeLibrary, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	handle := C.dlopen(cpath, C.RTLD_NOW|C.RTLD_LOCAL)
	if handle == nil {
		return nil, fmt.Errorf("dlopen %s failed: %s", path, C.GoString(C.dlerror()))
	}

	lib := &nativeLibrary{handle: handle}
	symbols := map[string]*unsafe.Pointer{
		"fmi2Instantiate":  &lib.instantiate,
		"fmi2SetReal":      &lib.setReal,
		"fmi2SetInteger":   &lib.setInteger,
		"fmi2SetBoolean":   &lib.setBoolean,
		"fmi2GetReal":      &lib.getReal,
		"fmi2GetInteger":   &lib.getInteger,
		"fmi2GetBoolean":   &lib.getBoolean,
		"fmi2DoStep":       &lib.doStep,
		"fmi2Terminate":    &lib.terminateFn,
		"fmi2FreeInstance": &lib.freeInstance,
	}
	for name, slot := range symbols {
		sym, err := dlsymRequired(handle, name)
		if err != nil {
			C.dlclose(handle)
			return nil, err
		}
		*slot = sym
	}
	return lib, nil
}

const fmi2CoSimulation = C.int(1)

func (l *nativeLibrary) newInstance(instanceName, guid, resourceLocation string) (unsafe.Pointer, error) {
	cName := C.CString(instanceName)
	defer C.free(unsafe.Pointer(cName))
	cGUID := C.CString(guid)
	defer C.free(unsafe.Pointer(cGUID))
	cResource := C.CString(resourceLocation)
	defer C.free(unsafe.Pointer(cResource))

	component := C.call_instantiate(l.instantiate, cName, fmi2CoSimulation, cGUID, cResource)
	if component == nil {
		return nil, fmt.Errorf("fmi2Instantiate returned null for %s", instanceName)
	}
	return unsafe.Pointer(component), nil
}

func (l *nativeLibrary) setReal(component unsafe.Pointer, vr []uint32, values []float64) int {
	if len(vr) == 0 {
		return 0
	}
	return int(C.call_set_real(l.setReal, component, (*C.fmi2ValueReference)(unsafe.Pointer(&vr[0])), C.size_t(len(vr)), (*C.fmi2Real)(unsafe.Pointer(&values[0]))))
}

func (l *nativeLibrary) setInteger(component unsafe.Pointer, vr []uint32, values []int32) int {
	if len(vr) == 0 {
		return 0
	}
	return int(C.call_set_integer(l.setInteger, component, (*C.fmi2ValueReference)(unsafe.Pointer(&vr[0])), C.size_t(len(vr)), (*C.fmi2Integer)(unsafe.Pointer(&values[0]))))
}

func (l *nativeLibrary) setBoolean(component unsafe.Pointer, vr []uint32, values []int32) int {
	if len(vr) == 0 {
		return 0
	}
	return int(C.call_set_boolean(l.setBoolean, component, (*C.fmi2ValueReference)(unsafe.Pointer(&vr[0])), C.size_t(len(vr)), (*C.fmi2Boolean)(unsafe.Pointer(&values[0]))))
}

func (l *nativeLibrary) getReal(component unsafe.Pointer, vr []uint32) ([]float64, int) {
	if len(vr) == 0 {
		return nil, 0
	}
	out := make([]float64, len(vr))
	status := C.call_get_real(l.getReal, component, (*C.fmi2ValueReference)(unsafe.Pointer(&vr[0])), C.size_t(len(vr)), (*C.fmi2Real)(unsafe.Pointer(&out[0])))
	return out, int(status)
}

func (l *nativeLibrary) getInteger(component unsafe.Pointer, vr []uint32) ([]int32, int) {
	if len(vr) == 0 {
		return nil, 0
	}
	out := make([]int32, len(vr))
	status := C.call_get_integer(l.getInteger, component, (*C.fmi2ValueReference)(unsafe.Pointer(&vr[0])), C.size_t(len(vr)), (*C.fmi2Integer)(unsafe.Pointer(&out[0])))
	return out, int(status)
}

func (l *nativeLibrary) getBoolean(component unsafe.Pointer, vr []uint32) ([]int32, int) {
	if len(vr) == 0 {
		return nil, 0
	}
	out := make([]int32, len(vr))
	status := C.call_get_boolean(l.getBoolean, component, (*C.fmi2ValueReference)(unsafe.Pointer(&vr[0])), C.size_t(len(vr)), (*C.fmi2Boolean)(unsafe.Pointer(&out[0])))
	return out, int(status)
}

func (l *nativeLibrary) stepOnce(component unsafe.Pointer, currentTime, stepSize float64) int {
	return int(C.call_do_step(l.doStep, component, C.fmi2Real(currentTime), C.fmi2Real(stepSize), C.fmi2Boolean(0)))
}

func (l *nativeLibrary) terminate(component unsafe.Pointer) int {
	return int(C.call_terminate(l.terminateFn, component))
}

func (l *nativeLibrary) release(component unsafe.Pointer) {
	C.call_free_instance(l.freeInstance, component)
}

func (l *nativeLibrary) close() error {
	if C.dlclose(l.handle) != 0 {
		return fmt.Errorf("dlclose failed: %s", C.GoString(C.dlerror()))
	}
	return nil
}
