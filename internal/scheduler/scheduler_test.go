package scheduler

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/casperlundberg/colony-process-offloader-algorithm/internal/model"
)

type SchedulerTestSuite struct {
	suite.Suite
}

func TestSchedulerSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func port(name string) *string { return &name }

func comp(id uint64) model.Component {
	return model.Component{ID: id, Name: "c", Kind: model.KindSensor}
}

func (s *SchedulerTestSuite) TestLinearChain() {
	components := []model.Component{comp(1), comp(2), comp(3)}
	connections := []model.Connection{
		{SourceComponentID: 1, TargetComponentID: 2, SourcePort: port("value"), TargetPort: port("setpoint")},
		{SourceComponentID: 2, TargetComponentID: 3, SourcePort: port("temperature"), TargetPort: port("command")},
	}
	order, cycle := Order(components, connections)
	s.Nil(cycle)
	s.Equal([]uint64{1, 2, 3}, order)
}

func (s *SchedulerTestSuite) TestExecutionOrderIsPermutationOfComponents() {
	components := []model.Component{comp(3), comp(1), comp(2)}
	order, _ := Order(components, nil)
	s.ElementsMatch([]uint64{1, 2, 3}, order)
}

func (s *SchedulerTestSuite) TestFIFOTieBreakOnSimultaneousZeroInDegree() {
	components := []model.Component{comp(5), comp(2), comp(9)}
	order, cycle := Order(components, nil)
	s.Nil(cycle)
	s.Equal([]uint64{5, 2, 9}, order)
}

func (s *SchedulerTestSuite) TestDuplicateEdgesCountOnce() {
	components := []model.Component{comp(1), comp(2)}
	connections := []model.Connection{
		{SourceComponentID: 1, TargetComponentID: 2, SourcePort: port("a"), TargetPort: port("b")},
		{SourceComponentID: 1, TargetComponentID: 2, SourcePort: port("a"), TargetPort: port("b")},
	}
	order, cycle := Order(components, connections)
	s.Nil(cycle)
	s.Equal([]uint64{1, 2}, order)
}

func (s *SchedulerTestSuite) TestMissingPortConnectionIsIgnored() {
	components := []model.Component{comp(1), comp(2)}
	connections := []model.Connection{
		{SourceComponentID: 1, TargetComponentID: 2, SourcePort: port("a"), TargetPort: nil},
	}
	order, cycle := Order(components, connections)
	s.Nil(cycle)
	// No edge was registered, so insertion order (snapshot order) wins.
	s.Equal([]uint64{1, 2}, order)
}

func (s *SchedulerTestSuite) TestConnectionToUnknownComponentIgnored() {
	components := []model.Component{comp(1)}
	connections := []model.Connection{
		{SourceComponentID: 1, TargetComponentID: 99, SourcePort: port("a"), TargetPort: port("b")},
	}
	order, cycle := Order(components, connections)
	s.Nil(cycle)
	s.Equal([]uint64{1}, order)
}

func (s *SchedulerTestSuite) TestCycleFallsBackToSnapshotOrder() {
	components := []model.Component{comp(1), comp(2)}
	connections := []model.Connection{
		{SourceComponentID: 1, TargetComponentID: 2, SourcePort: port("a"), TargetPort: port("b")},
		{SourceComponentID: 2, TargetComponentID: 1, SourcePort: port("c"), TargetPort: port("d")},
	}
	order, cycle := Order(components, connections)
	s.Require().NotNil(cycle)
	s.ElementsMatch([]uint64{1, 2}, cycle.Remaining)
	s.Equal([]uint64{1, 2}, order)
}

func (s *SchedulerTestSuite) TestLongerCycleStillRuns() {
	components := []model.Component{comp(1), comp(2), comp(3)}
	connections := []model.Connection{
		{SourceComponentID: 1, TargetComponentID: 2, SourcePort: port("a"), TargetPort: port("b")},
		{SourceComponentID: 2, TargetComponentID: 3, SourcePort: port("a"), TargetPort: port("b")},
		{SourceComponentID: 3, TargetComponentID: 1, SourcePort: port("a"), TargetPort: port("b")},
	}
	order, cycle := Order(components, connections)
	s.Require().NotNil(cycle)
	s.Len(cycle.Remaining, 3)
	s.Equal([]uint64{1, 2, 3}, order)
}
