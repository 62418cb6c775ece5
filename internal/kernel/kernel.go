// Package kernel implements the per-type component update functions: the
// pure Sensor/Heater/Actuator/Valve kernels and the dispatch point for the
// opaque FMU kernel (handled by the fmu package, wired in through the
// FMURunner interface so this package never imports cgo).
package kernel

import (
	"math"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

// deltaT is the fixed per-tick step size the discrete kernels integrate
// over. Exposed as a constant rather than a parameter: every kernel in the
// teacher is clocked against one tick, and spec.md defines Δt = 1s for the
// Heater and FMU kernels explicitly.
const deltaT = 1.0

// FMURunner executes one FMI Co-Simulation step for a component and returns
// its new output state. Implemented by *fmu.Host; kept as an interface here
// so the pure kernels package carries no cgo dependency.
type FMURunner interface {
	Step(componentID uint64, now float64, inputs model.PortValues) model.PortValues
}

// Update dispatches to the kernel for kind and returns the component's new
// state for this tick. now is seconds since simulation start.
func Update(kind model.Kind, componentID uint64, now float64, config map[string]model.Value, inputs model.PortValues, prevState model.PortValues, fmuRunner FMURunner) model.PortValues {
	switch kind {
	case model.KindSensor:
		return sensor(now, config)
	case model.KindHeater:
		return heater(config, inputs, prevState)
	case model.KindActuator:
		return actuator(config, inputs)
	case model.KindValve:
		return valve(config, inputs)
	case model.KindFMU:
		if fmuRunner == nil {
			return model.PortValues{"status": "error_fmu_not_found"}
		}
		return fmuRunner.Step(componentID, now, inputs)
	default:
		return model.PortValues{"status": "unknown_type"}
	}
}

func floatConfig(config map[string]model.Value, key string, def float64) float64 {
	v, ok := config[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

func asFloat(v model.Value) (float64, bool) {
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

func portFloat(ports model.PortValues, key string) (float64, bool) {
	v, ok := ports[key]
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

// sensor implements the Sensor kernel: value = offset + amplitude *
// sin(2*pi*frequency*t).
func sensor(now float64, config map[string]model.Value) model.PortValues {
	frequency := floatConfig(config, "frequency", 0.1)
	amplitude := floatConfig(config, "amplitude", 1.0)
	offset := floatConfig(config, "offset", 0.0)

	value := offset + amplitude*math.Sin(2*math.Pi*frequency*now)
	return model.PortValues{"value": value}
}

// heater implements the Heater kernel: a bounded discrete step toward the
// effective setpoint, never overshooting it and never cooling below
// ambient.
func heater(config map[string]model.Value, inputs model.PortValues, prevState model.PortValues) model.PortValues {
	ambient := floatConfig(config, "ambient_temp", 20.0)
	heatingRate := floatConfig(config, "heating_rate", 5.0)
	coolingRate := floatConfig(config, "cooling_rate", 1.0)
	configSetpoint := floatConfig(config, "setpoint", 50.0)
	initialTemp := floatConfig(config, "initial_temp", ambient)

	setpoint := configSetpoint
	if v, ok := inputs["setpoint"]; ok {
		if f, ok := asFloat(v); ok {
			setpoint = f
		}
	}

	temp, ok := portFloat(prevState, "temperature")
	if !ok {
		temp = initialTemp
	}

	var next float64
	switch {
	case temp < setpoint:
		next = math.Min(temp+heatingRate*deltaT, setpoint)
	case temp > setpoint:
		next = math.Max(temp-coolingRate*deltaT, math.Max(ambient, setpoint))
	default:
		next = temp
	}

	return model.PortValues{"temperature": next}
}

// actuator implements the Actuator kernel: On iff command >= threshold.
func actuator(config map[string]model.Value, inputs model.PortValues) model.PortValues {
	threshold := floatConfig(config, "threshold", 0.5)

	command, ok := portFloat(inputs, "command")
	if !ok || command < threshold {
		return model.PortValues{"status": "Off"}
	}
	return model.PortValues{"status": "On"}
}

// valve implements the Valve kernel: Flow = 1.0 iff ControlSignal strictly
// exceeds threshold.
func valve(config map[string]model.Value, inputs model.PortValues) model.PortValues {
	threshold := floatConfig(config, "threshold", 0.5)

	signal, ok := portFloat(inputs, "ControlSignal")
	if !ok || signal <= threshold {
		return model.PortValues{"Flow": 0.0}
	}
	return model.PortValues{"Flow": 1.0}
}
