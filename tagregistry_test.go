package jobsystem

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type TagRegistryTestSuite struct {
	suite.Suite
}

func TestTagRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(TagRegistryTestSuite))
}

func (ts *TagRegistryTestSuite) TestDrainUnknownTagReportsFalse() {
	r := newTagRegistry()
	_, ok := r.drain(TagID(42))
	ts.False(ok)
}

func (ts *TagRegistryTestSuite) TestParkThenDrainPreservesFIFOOrder() {
	r := newTagRegistry()
	a := &workUnit{id: 1}
	b := &workUnit{id: 2}
	r.park(a, TagID(1))
	r.park(b, TagID(1))

	q, ok := r.drain(TagID(1))
	ts.True(ok)
	ts.Equal(2, q.Len())

	first, _ := q.pop()
	ts.Same(a, first)
	second, _ := q.pop()
	ts.Same(b, second)
}

func (ts *TagRegistryTestSuite) TestSeparateTagsDoNotMix() {
	r := newTagRegistry()
	r.park(&workUnit{id: 1}, TagID(1))
	r.park(&workUnit{id: 2}, TagID(2))

	q1, _ := r.drain(TagID(1))
	q2, _ := r.drain(TagID(2))
	ts.Equal(1, q1.Len())
	ts.Equal(1, q2.Len())
}

func (ts *TagRegistryTestSuite) TestParkDoesNotTouchParentOrChildren() {
	r := newTagRegistry()
	u := &workUnit{kind: kindFunction}
	u.children.Store(7)
	u.parent = &workUnit{}

	r.park(u, TagID(5))

	ts.EqualValues(7, u.children.Load())
	ts.NotNil(u.parent)
}

func (ts *TagRegistryTestSuite) TestDrainAllDestroyEmptiesEveryTag() {
	r := newTagRegistry()
	fc1, fc2 := &fakeCoro{}, &fakeCoro{}
	r.park(newCoroutineUnit(fc1), TagID(1))
	r.park(newCoroutineUnit(fc2), TagID(2))

	r.drainAllDestroy()

	ts.True(fc1.destroyCalled)
	ts.True(fc2.destroyCalled)
}
