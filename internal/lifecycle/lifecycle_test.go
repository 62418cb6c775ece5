package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

type fakeLoader struct {
	snapshot model.Snapshot
	err      error
}

func (f *fakeLoader) Load(ctx context.Context, modelID uint64, mode model.Mode) (model.Snapshot, error) {
	if f.err != nil {
		return model.Snapshot{}, f.err
	}
	return f.snapshot, nil
}

type LifecycleTestSuite struct {
	suite.Suite
}

func TestLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(LifecycleTestSuite))
}

func (s *LifecycleTestSuite) simpleSnapshot() model.Snapshot {
	return model.Snapshot{Components: []model.Component{
		{ID: 1, Name: "S", Kind: model.KindSensor, Config: map[string]model.Value{"frequency": 0.1}},
	}}
}

func (s *LifecycleTestSuite) TestStartAndStatusRunning() {
	mgr := NewManager(&fakeLoader{snapshot: s.simpleSnapshot()}, 10*time.Millisecond)
	id, err := mgr.Start(context.Background(), 1, model.ModePure)
	s.Require().NoError(err)

	view, ok := mgr.Status(id)
	s.Require().True(ok)
	s.Equal(StatusRunning, view.Status)

	ok, err = mgr.Stop(id)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *LifecycleTestSuite) TestStartFailureTransitionsToError() {
	mgr := NewManager(&fakeLoader{err: fmt.Errorf("db down")}, time.Millisecond)
	id, err := mgr.Start(context.Background(), 1, model.ModePure)
	s.Error(err)

	view, ok := mgr.Status(id)
	s.Require().True(ok)
	s.Equal(StatusError, view.Status)
}

func (s *LifecycleTestSuite) TestStopUnknownSimulationReturnsLifecycleError() {
	mgr := NewManager(&fakeLoader{snapshot: s.simpleSnapshot()}, time.Second)
	ok, err := mgr.Stop(999)
	s.False(ok)
	s.Error(err)
}

func (s *LifecycleTestSuite) TestIdempotentStopOnTerminalSimulation() {
	mgr := NewManager(&fakeLoader{snapshot: s.simpleSnapshot()}, 5*time.Millisecond)
	id, err := mgr.Start(context.Background(), 1, model.ModePure)
	s.Require().NoError(err)

	ok1, err1 := mgr.Stop(id)
	s.Require().NoError(err1)
	s.True(ok1)

	// Give the supervisor goroutine time to run cleanup and flip to Stopped.
	s.Require().Eventually(func() bool {
		view, _ := mgr.Status(id)
		return view.Status == StatusStopped
	}, time.Second, 5*time.Millisecond)

	ok2, err2 := mgr.Stop(id)
	s.Require().NoError(err2)
	s.True(ok2)
}

func (s *LifecycleTestSuite) TestCleanupLeavesStatusQueryable() {
	mgr := NewManager(&fakeLoader{snapshot: s.simpleSnapshot()}, 5*time.Millisecond)
	id, err := mgr.Start(context.Background(), 1, model.ModePure)
	s.Require().NoError(err)

	_, _ = mgr.Stop(id)
	s.Require().Eventually(func() bool {
		view, _ := mgr.Status(id)
		return view.Status == StatusStopped
	}, time.Second, 5*time.Millisecond)

	view, ok := mgr.Status(id)
	s.Require().True(ok)
	s.Equal(StatusStopped, view.Status)
}
