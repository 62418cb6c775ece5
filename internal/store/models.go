package store

import "time"

// ProjectRecord groups machine models under a named workspace.
type ProjectRecord struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MachineModelRecord is one versioned component graph within a project.
type MachineModelRecord struct {
	ID        string `gorm:"primaryKey"`
	ProjectID string `gorm:"index"`
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComponentRecord is a graph node. Config is stored as a JSON-serialized
// TEXT column rather than a native JSON column, matching the teacher's
// database.Simulation.Config string pattern for sqlite portability.
type ComponentRecord struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	MachineModelID string `gorm:"index"`
	Name           string
	Kind           string
	Config         string // JSON object
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ConnectionRecord is a directed edge between two components' ports.
// SourcePort/TargetPort are nullable: an absent port makes the connection
// inert, per spec.md §3.
type ConnectionRecord struct {
	ID                uint64 `gorm:"primaryKey;autoIncrement"`
	MachineModelID     string `gorm:"index"`
	SourceComponentID  uint64
	TargetComponentID  uint64
	SourcePort         *string
	TargetPort         *string
	CreatedAt          time.Time
}

// BindingRecord maps one component port to an external OPC UA address.
type BindingRecord struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	MachineModelID string `gorm:"index"`
	ComponentID    uint64
	ComponentPort  string
	Direction      string // "read" | "write"
	Protocol       string // defaults to "OPCUA"
	EndpointURL    string
	Address        string
	Config         string // JSON object
	CreatedAt      time.Time
}

// RunRecord is an audit-trail row for one lifecycle-manager simulation,
// keyed by a uuid minted per simulation. The live simulation state remains
// in-memory and authoritative; status queries are answered from the
// in-memory registry only, and nothing reads this table to answer them.
type RunRecord struct {
	ID             string `gorm:"primaryKey"` // uuid
	MachineModelID string `gorm:"index"`
	Mode           string
	Status         string
	StartedAt      time.Time
	StoppedAt      *time.Time
	Error          string
}
