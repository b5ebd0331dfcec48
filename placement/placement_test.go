package placement

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type PlacementTestSuite struct {
	suite.Suite
}

func TestPlacementTestSuite(t *testing.T) {
	suite.Run(t, new(PlacementTestSuite))
}

func (ts *PlacementTestSuite) TestRoundRobinCyclesThroughWorkers() {
	r := NewRoundRobin()
	seen := make([]int32, 6)
	for i := range seen {
		seen[i] = r.Place(Any, 0, 3)
	}
	ts.Equal([]int32{0, 1, 2, 0, 1, 2}, seen)
}

func (ts *PlacementTestSuite) TestRoundRobinHonorsExplicitTarget() {
	r := NewRoundRobin()
	idx := r.Place(ForThread(2), 0, 5)
	ts.EqualValues(2, idx)

	idx = r.Place(Any, 0, 5)
	ts.EqualValues(0, idx)
}

func (ts *PlacementTestSuite) TestRoundRobinZeroWorkersReturnsZero() {
	r := NewRoundRobin()
	ts.EqualValues(0, r.Place(Any, 0, 0))
}

func (ts *PlacementTestSuite) TestTargetThreadIgnoresRequestedAnyFallback() {
	p := TargetThread{Index: 4}
	ts.EqualValues(4, p.Place(Any, 0, 8))
}

func (ts *PlacementTestSuite) TestTargetThreadHonorsExplicitOverride() {
	p := TargetThread{Index: 4}
	ts.EqualValues(1, p.Place(ForThread(1), 0, 8))
}

func (ts *PlacementTestSuite) TestNamesAreStable() {
	ts.Equal("round-robin", NewRoundRobin().Name())
	ts.Equal("target-thread", TargetThread{}.Name())
}
