// Package model holds the immutable per-simulation snapshot types: the
// component graph, its connections, and the communication bindings used in
// HIL mode. These are plain value types with no behavior of their own —
// behavior lives in the scheduler, kernel, and engine packages.
package model

// Kind identifies a component's behavioral type.
type Kind string

const (
	KindSensor   Kind = "sensor"
	KindHeater   Kind = "heater"
	KindActuator Kind = "actuator"
	KindValve    Kind = "valve"
	KindFMU      Kind = "fmu"
)

// ValidKinds returns every kind the kernel dispatcher recognizes.
func ValidKinds() []Kind {
	return []Kind{KindSensor, KindHeater, KindActuator, KindValve, KindFMU}
}

// IsValid reports whether k is one of the recognized component kinds.
func (k Kind) IsValid() bool {
	for _, valid := range ValidKinds() {
		if k == valid {
			return true
		}
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Direction is the data-flow direction of a CommunicationBinding.
type Direction string

const (
	DirectionRead  Direction = "read"
	DirectionWrite Direction = "write"
)

func (d Direction) IsValid() bool {
	return d == DirectionRead || d == DirectionWrite
}

func (d Direction) String() string { return string(d) }

// Mode selects whether a simulation exchanges data with external OPC UA
// servers.
type Mode string

const (
	ModePure Mode = "pure"
	ModeHIL  Mode = "hil"
)

func (m Mode) IsValid() bool { return m == ModePure || m == ModeHIL }

func (m Mode) String() string { return string(m) }

// Value is the dynamically-typed payload carried on a component port. Only
// float64, int64, bool, and string are meaningful to the kernels; anything
// else round-trips but is never interpreted.
type Value any

// PortValues is a component's state (or a tick's gathered inputs), keyed by
// port name.
type PortValues map[string]Value

// Component is one node of the machine model graph.
type Component struct {
	ID     uint64
	Name   string
	Kind   Kind
	Config map[string]Value
}

// Connection is a directed edge between two components' ports. A connection
// missing either port, or naming a component absent from the snapshot, is
// inert: the scheduler ignores it as an edge and the step loop never
// materializes an input from it.
type Connection struct {
	MachineModelID    uint64
	SourceComponentID uint64
	TargetComponentID uint64
	SourcePort        *string
	TargetPort        *string
}

// HasPorts reports whether both endpoint ports are specified.
func (c Connection) HasPorts() bool {
	return c.SourcePort != nil && c.TargetPort != nil
}

// CommunicationBinding maps one component port to an external OPC UA
// address.
type CommunicationBinding struct {
	ID            uint64
	ComponentID   uint64
	ComponentPort string
	Direction     Direction
	Protocol      string // defaults to "OPCUA"
	EndpointURL   string
	Address       string
	Config        map[string]Value
}

// Snapshot is the immutable, all-or-nothing materialization of a machine
// model at simulation start.
type Snapshot struct {
	Components  []Component
	Connections []Connection
	Bindings    []CommunicationBinding
}

// ComponentByID returns the component with the given id, if present.
func (s Snapshot) ComponentByID(id uint64) (Component, bool) {
	for _, c := range s.Components {
		if c.ID == id {
			return c, true
		}
	}
	return Component{}, false
}

// IDs returns every component id in snapshot order.
func (s Snapshot) IDs() []uint64 {
	ids := make([]uint64, len(s.Components))
	for i, c := range s.Components {
		ids[i] = c.ID
	}
	return ids
}
