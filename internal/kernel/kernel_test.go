package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

type KernelTestSuite struct {
	suite.Suite
}

func TestKernelSuite(t *testing.T) {
	suite.Run(t, new(KernelTestSuite))
}

// Scenario 1 from the testable-properties worked examples: sine sensor,
// one tick.
func (s *KernelTestSuite) TestSensorSineAtOneSecond() {
	config := map[string]model.Value{
		"frequency": 0.25,
		"amplitude": 2.0,
		"offset":    1.0,
	}
	out := Update(model.KindSensor, 1, 1.0, config, nil, nil, nil)
	require.Contains(s.T(), out, "value")
	s.InDelta(3.0, out["value"].(float64), 1e-9)
}

func (s *KernelTestSuite) TestSensorDefaults() {
	out := Update(model.KindSensor, 1, 0.0, nil, nil, nil, nil)
	s.InDelta(0.0, out["value"].(float64), 1e-9)
}

func (s *KernelTestSuite) TestHeaterInitialTempDefaultsToAmbient() {
	config := map[string]model.Value{"ambient_temp": 10.0}
	out := Update(model.KindHeater, 1, 1.0, config, nil, nil, nil)
	// setpoint default 50, heating_rate default 5: temp rises from ambient.
	s.InDelta(15.0, out["temperature"].(float64), 1e-9)
}

func (s *KernelTestSuite) TestHeaterHeatsTowardSetpointWithoutOvershoot() {
	config := map[string]model.Value{"heating_rate": 10.0, "initial_temp": 15.0}
	prev := model.PortValues{}
	out := Update(model.KindHeater, 1, 1.0, config, nil, prev, nil)
	s.InDelta(25.0, out["temperature"].(float64), 1e-9)
}

func (s *KernelTestSuite) TestHeaterUsesInputSetpointOverConfig() {
	config := map[string]model.Value{"heating_rate": 10.0}
	prev := model.PortValues{"temperature": 25.0}
	inputs := model.PortValues{"setpoint": 26.0}
	out := Update(model.KindHeater, 1, 2.0, config, inputs, prev, nil)
	s.InDelta(26.0, out["temperature"].(float64), 1e-9)
}

func (s *KernelTestSuite) TestHeaterCoolsButNeverBelowAmbient() {
	config := map[string]model.Value{"ambient_temp": 20.0, "cooling_rate": 100.0, "setpoint": 25.0}
	prev := model.PortValues{"temperature": 90.0}
	out := Update(model.KindHeater, 1, 10.0, config, nil, prev, nil)
	s.InDelta(25.0, out["temperature"].(float64), 1e-9)
}

func (s *KernelTestSuite) TestHeaterAtSetpointUnchanged() {
	config := map[string]model.Value{"setpoint": 50.0}
	prev := model.PortValues{"temperature": 50.0}
	out := Update(model.KindHeater, 1, 10.0, config, nil, prev, nil)
	s.InDelta(50.0, out["temperature"].(float64), 1e-9)
}

func (s *KernelTestSuite) TestActuatorNoCommandIsOff() {
	out := Update(model.KindActuator, 1, 0, nil, model.PortValues{}, nil, nil)
	s.Equal("Off", out["status"])
}

func (s *KernelTestSuite) TestActuatorAboveThresholdIsOn() {
	config := map[string]model.Value{"threshold": 40.0}
	inputs := model.PortValues{"command": 41.0}
	out := Update(model.KindActuator, 1, 0, config, inputs, nil, nil)
	s.Equal("On", out["status"])
}

func (s *KernelTestSuite) TestActuatorAtThresholdIsOn() {
	config := map[string]model.Value{"threshold": 40.0}
	inputs := model.PortValues{"command": 40.0}
	out := Update(model.KindActuator, 1, 0, config, inputs, nil, nil)
	s.Equal("On", out["status"])
}

func (s *KernelTestSuite) TestValveAtThresholdIsClosed() {
	config := map[string]model.Value{"threshold": 0.5}
	inputs := model.PortValues{"ControlSignal": 0.5}
	out := Update(model.KindValve, 1, 0, config, inputs, nil, nil)
	s.InDelta(0.0, out["Flow"].(float64), 1e-9)
}

func (s *KernelTestSuite) TestValveAboveThresholdIsOpen() {
	config := map[string]model.Value{"threshold": 0.5}
	inputs := model.PortValues{"ControlSignal": 0.51}
	out := Update(model.KindValve, 1, 0, config, inputs, nil, nil)
	s.InDelta(1.0, out["Flow"].(float64), 1e-9)
}

func (s *KernelTestSuite) TestUnknownKindNeverAborts() {
	out := Update(model.Kind("turbine"), 1, 0, nil, nil, nil, nil)
	s.Equal("unknown_type", out["status"])
}

type stubFMU struct {
	lastInputs model.PortValues
	result     model.PortValues
}

func (f *stubFMU) Step(componentID uint64, now float64, inputs model.PortValues) model.PortValues {
	f.lastInputs = inputs
	return f.result
}

func (s *KernelTestSuite) TestFMUDispatchesToRunner() {
	stub := &stubFMU{result: model.PortValues{"out": 3.0}}
	out := Update(model.KindFMU, 7, 2.0, nil, model.PortValues{"in": 1.0}, nil, stub)
	s.Equal(model.PortValues{"out": 3.0}, out)
	s.Equal(model.PortValues{"in": 1.0}, stub.lastInputs)
}

func (s *KernelTestSuite) TestFMUMissingRunnerIsDefensiveError() {
	out := Update(model.KindFMU, 7, 2.0, nil, nil, nil, nil)
	s.Equal("error_fmu_not_found", out["status"])
}

func TestSensorAtQuarterPeriod(t *testing.T) {
	config := map[string]model.Value{"frequency": 1.0, "amplitude": 1.0, "offset": 0.0}
	a := Update(model.KindSensor, 1, 0.25, config, nil, nil, nil)["value"].(float64)
	assert.InDelta(t, math.Sin(2*math.Pi*0.25), a, 1e-9)
}
