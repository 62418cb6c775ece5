package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

// Repository provides data access methods over a Store, including the
// lifecycle.SnapshotLoader contract the lifecycle manager consumes.
type Repository struct {
	db *Store
}

// NewRepository creates a new repository.
func NewRepository(db *Store) *Repository {
	return &Repository{db: db}
}

// Load fetches components and connections (always) and bindings (HIL mode
// only) for machineModelID and assembles an immutable snapshot. Any query
// failure aborts the whole load — spec.md §4.1's all-or-nothing contract.
func (r *Repository) Load(ctx context.Context, machineModelID uint64, mode model.Mode) (model.Snapshot, error) {
	modelIDStr := fmt.Sprint(machineModelID)

	var componentRows []ComponentRecord
	if err := r.db.WithContext(ctx).Where("machine_model_id = ?", modelIDStr).Find(&componentRows).Error; err != nil {
		return model.Snapshot{}, fmt.Errorf("fetch components for machine model %d: %w", machineModelID, err)
	}

	var connectionRows []ConnectionRecord
	if err := r.db.WithContext(ctx).Where("machine_model_id = ?", modelIDStr).Find(&connectionRows).Error; err != nil {
		return model.Snapshot{}, fmt.Errorf("fetch connections for machine model %d: %w", machineModelID, err)
	}

	var bindingRows []BindingRecord
	if mode == model.ModeHIL {
		if err := r.db.WithContext(ctx).Where("machine_model_id = ?", modelIDStr).Find(&bindingRows).Error; err != nil {
			return model.Snapshot{}, fmt.Errorf("fetch bindings for machine model %d: %w", machineModelID, err)
		}
	}

	snapshot := model.Snapshot{
		Components:  make([]model.Component, 0, len(componentRows)),
		Connections: make([]model.Connection, 0, len(connectionRows)),
		Bindings:    make([]model.CommunicationBinding, 0, len(bindingRows)),
	}

	for _, row := range componentRows {
		cfg, err := decodeConfig(row.Config)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("decode config for component %d: %w", row.ID, err)
		}
		snapshot.Components = append(snapshot.Components, model.Component{
			ID:     row.ID,
			Name:   row.Name,
			Kind:   model.Kind(row.Kind),
			Config: cfg,
		})
	}

	for _, row := range connectionRows {
		snapshot.Connections = append(snapshot.Connections, model.Connection{
			MachineModelID:    machineModelID,
			SourceComponentID: row.SourceComponentID,
			TargetComponentID: row.TargetComponentID,
			SourcePort:        row.SourcePort,
			TargetPort:        row.TargetPort,
		})
	}

	for _, row := range bindingRows {
		cfg, err := decodeConfig(row.Config)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("decode config for binding %d: %w", row.ID, err)
		}
		snapshot.Bindings = append(snapshot.Bindings, model.CommunicationBinding{
			ID:            row.ID,
			ComponentID:   row.ComponentID,
			ComponentPort: row.ComponentPort,
			Direction:     model.Direction(row.Direction),
			Protocol:      row.Protocol,
			EndpointURL:   row.EndpointURL,
			Address:       row.Address,
			Config:        cfg,
		})
	}

	return snapshot, nil
}

func decodeConfig(blob string) (map[string]model.Value, error) {
	if blob == "" {
		return map[string]model.Value{}, nil
	}
	var cfg map[string]model.Value
	if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func encodeConfig(cfg map[string]model.Value) (string, error) {
	if len(cfg) == 0 {
		return "", nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// --- Project CRUD ---

func (r *Repository) CreateProject(p *ProjectRecord) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return r.db.Create(p).Error
}

func (r *Repository) ListProjects() ([]ProjectRecord, error) {
	var rows []ProjectRecord
	err := r.db.Order("created_at DESC").Find(&rows).Error
	return rows, err
}

// --- Machine model CRUD ---

func (r *Repository) CreateMachineModel(m *MachineModelRecord) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return r.db.Create(m).Error
}

func (r *Repository) ListMachineModels(projectID string) ([]MachineModelRecord, error) {
	var rows []MachineModelRecord
	err := r.db.Where("project_id = ?", projectID).Find(&rows).Error
	return rows, err
}

// --- Component CRUD ---

func (r *Repository) CreateComponent(machineModelID string, c model.Component) (uint64, error) {
	cfg, err := encodeConfig(c.Config)
	if err != nil {
		return 0, err
	}
	row := ComponentRecord{
		MachineModelID: machineModelID,
		Name:           c.Name,
		Kind:           c.Kind.String(),
		Config:         cfg,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (r *Repository) DeleteComponent(id uint64) error {
	return r.db.Delete(&ComponentRecord{}, id).Error
}

// --- Connection CRUD ---

func (r *Repository) CreateConnection(machineModelID string, c model.Connection) (uint64, error) {
	row := ConnectionRecord{
		MachineModelID:    machineModelID,
		SourceComponentID: c.SourceComponentID,
		TargetComponentID: c.TargetComponentID,
		SourcePort:        c.SourcePort,
		TargetPort:        c.TargetPort,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (r *Repository) DeleteConnection(id uint64) error {
	return r.db.Delete(&ConnectionRecord{}, id).Error
}

// --- Communication binding CRUD ---

func (r *Repository) CreateBinding(machineModelID string, b model.CommunicationBinding) (uint64, error) {
	cfg, err := encodeConfig(b.Config)
	if err != nil {
		return 0, err
	}
	protocol := b.Protocol
	if protocol == "" {
		protocol = "OPCUA"
	}
	row := BindingRecord{
		MachineModelID: machineModelID,
		ComponentID:    b.ComponentID,
		ComponentPort:  b.ComponentPort,
		Direction:      b.Direction.String(),
		Protocol:       protocol,
		EndpointURL:    b.EndpointURL,
		Address:        b.Address,
		Config:         cfg,
	}
	if err := r.db.Create(&row).Error; err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (r *Repository) DeleteBinding(id uint64) error {
	return r.db.Delete(&BindingRecord{}, id).Error
}

// --- Run audit trail ---

// UpsertRun records a simulation's lifecycle transition. runID is a uuid
// string minted by the caller (the lifecycle manager) once per simulation.
func (r *Repository) UpsertRun(runID string, machineModelID uint64, mode, status string, startedAt time.Time, stoppedAt *time.Time, errMsg string) error {
	row := RunRecord{
		ID:             runID,
		MachineModelID: fmt.Sprint(machineModelID),
		Mode:           mode,
		Status:         status,
		StartedAt:      startedAt,
		StoppedAt:      stoppedAt,
		Error:          errMsg,
	}
	return r.db.Save(&row).Error
}

func (r *Repository) GetRun(runID string) (*RunRecord, error) {
	var row RunRecord
	if err := r.db.First(&row, "id = ?", runID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
