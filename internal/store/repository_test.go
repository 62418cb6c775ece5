package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

type RepositoryTestSuite struct {
	suite.Suite
	db   *Store
	repo *Repository
}

func (s *RepositoryTestSuite) SetupTest() {
	db, err := Open(":memory:")
	s.Require().NoError(err)
	s.db = db
	s.repo = NewRepository(db)
}

func (s *RepositoryTestSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) TestCreateProjectAssignsID() {
	p := &ProjectRecord{Name: "plant-1"}
	s.Require().NoError(s.repo.CreateProject(p))
	s.NotEmpty(p.ID)

	rows, err := s.repo.ListProjects()
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("plant-1", rows[0].Name)
}

func (s *RepositoryTestSuite) TestLoadAssemblesSnapshot() {
	componentID, err := s.repo.CreateComponent("1", model.Component{
		Name: "S", Kind: model.KindSensor, Config: map[string]model.Value{"frequency": 0.1},
	})
	s.Require().NoError(err)

	targetPort := "value"
	_, err = s.repo.CreateComponent("1", model.Component{Name: "H", Kind: model.KindHeater})
	s.Require().NoError(err)

	_, err = s.repo.CreateConnection("1", model.Connection{
		SourceComponentID: componentID,
		TargetComponentID: componentID + 1,
		SourcePort:        &targetPort,
		TargetPort:        strPtr("setpoint"),
	})
	s.Require().NoError(err)

	snapshot, err := s.repo.Load(context.Background(), 1, model.ModePure)
	s.Require().NoError(err)
	s.Len(snapshot.Components, 2)
	s.Len(snapshot.Connections, 1)
	s.Empty(snapshot.Bindings)

	sensor, ok := snapshot.ComponentByID(componentID)
	s.Require().True(ok)
	s.Equal(0.1, sensor.Config["frequency"])
}

func (s *RepositoryTestSuite) TestLoadSkipsBindingsInPureMode() {
	componentID, err := s.repo.CreateComponent("2", model.Component{Name: "H", Kind: model.KindHeater})
	s.Require().NoError(err)

	_, err = s.repo.CreateBinding("2", model.CommunicationBinding{
		ComponentID:   componentID,
		ComponentPort: "setpoint",
		Direction:     model.DirectionRead,
		EndpointURL:   "opc.tcp://x",
		Address:       "ns=2;s=Sp",
	})
	s.Require().NoError(err)

	pureSnapshot, err := s.repo.Load(context.Background(), 2, model.ModePure)
	s.Require().NoError(err)
	s.Empty(pureSnapshot.Bindings)

	hilSnapshot, err := s.repo.Load(context.Background(), 2, model.ModeHIL)
	s.Require().NoError(err)
	s.Require().Len(hilSnapshot.Bindings, 1)
	s.Equal("OPCUA", hilSnapshot.Bindings[0].Protocol)
}

func (s *RepositoryTestSuite) TestUpsertAndGetRun() {
	now := time.Now()
	err := s.repo.UpsertRun("run-1", 3, "pure", "running", now, nil, "")
	s.Require().NoError(err)

	row, err := s.repo.GetRun("run-1")
	s.Require().NoError(err)
	s.Equal("running", row.Status)

	stopped := now.Add(time.Minute)
	err = s.repo.UpsertRun("run-1", 3, "pure", "stopped", now, &stopped, "")
	s.Require().NoError(err)

	row, err = s.repo.GetRun("run-1")
	s.Require().NoError(err)
	s.Equal("stopped", row.Status)
}

func strPtr(s string) *string { return &s }
