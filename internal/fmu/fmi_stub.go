//go:build !cgo || (!linux && !darwin)

package fmu

import (
	"fmt"
	"unsafe"
)

// nativeLibrary stub for platforms without a dlfcn-based FMI binding (cgo
// disabled, or an OS other than linux/darwin). Load always fails cleanly so
// callers see a LoadError rather than a build break.
type nativeLibrary struct{}

func openLibrary(path string) (*nativeLibrary, error) {
	return nil, fmt.Errorf("FMU support requires a cgo build on linux or darwin (got no native binding for %s)", path)
}

func (l *nativeLibrary) newInstance(instanceName, guid, resourceLocation string) (unsafe.Pointer, error) {
	return nil, fmt.Errorf("FMU native binding unavailable")
}

func (l *nativeLibrary) setReal(component unsafe.Pointer, vr []uint32, values []float64) int { return 3 }
func (l *nativeLibrary) setInteger(component unsafe.Pointer, vr []uint32, values []int32) int {
	return 3
}
func (l *nativeLibrary) setBoolean(component unsafe.Pointer, vr []uint32, values []int32) int {
	return 3
}
func (l *nativeLibrary) getReal(component unsafe.Pointer, vr []uint32) ([]float64, int) {
	return nil, 3
}
func (l *nativeLibrary) getInteger(component unsafe.Pointer, vr []uint32) ([]int32, int) {
	return nil, 3
}
func (l *nativeLibrary) getBoolean(component unsafe.Pointer, vr []uint32) ([]int32, int) {
	return nil, 3
}
func (l *nativeLibrary) stepOnce(component unsafe.Pointer, currentTime, stepSize float64) int {
	return 3
}
func (l *nativeLibrary) terminate(component unsafe.Pointer) int { return 0 }
func (l *nativeLibrary) release(component unsafe.Pointer)       {}
func (l *nativeLibrary) close() error                           { return nil }
