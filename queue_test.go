package jobsystem

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type QueueTestSuite struct {
	suite.Suite
}

func TestQueueTestSuite(t *testing.T) {
	suite.Run(t, new(QueueTestSuite))
}

func (ts *QueueTestSuite) TestPushPopFIFOOrder() {
	q := newQueue(unbounded)
	a := &workUnit{id: 1}
	b := &workUnit{id: 2}
	c := &workUnit{id: 3}

	ts.True(q.push(a))
	ts.True(q.push(b))
	ts.True(q.push(c))
	ts.Equal(3, q.Len())

	got, ok := q.pop()
	ts.True(ok)
	ts.Same(a, got)

	got, ok = q.pop()
	ts.True(ok)
	ts.Same(b, got)

	got, ok = q.pop()
	ts.True(ok)
	ts.Same(c, got)

	_, ok = q.pop()
	ts.False(ok)
}

func (ts *QueueTestSuite) TestPopEmpty() {
	q := newQueue(unbounded)
	_, ok := q.pop()
	ts.False(ok)
}

func (ts *QueueTestSuite) TestBoundedRejectsOverCapacity() {
	q := newQueue(2)
	ts.True(q.push(&workUnit{}))
	ts.True(q.push(&workUnit{}))
	ts.False(q.push(&workUnit{}))
	ts.Equal(2, q.Len())
}

func (ts *QueueTestSuite) TestPopThenPushReusesTailPointer() {
	q := newQueue(unbounded)
	a := &workUnit{id: 1}
	ts.True(q.push(a))
	_, _ = q.pop()
	ts.Equal(0, q.Len())

	b := &workUnit{id: 2}
	ts.True(q.push(b))
	got, ok := q.pop()
	ts.True(ok)
	ts.Same(b, got)
}

func (ts *QueueTestSuite) TestDrainDestroyEmptiesQueue() {
	q := newQueue(unbounded)
	q.push(&workUnit{kind: kindFunction})
	q.push(&workUnit{kind: kindFunction})
	q.drainDestroy()
	ts.Equal(0, q.Len())
}

func (ts *QueueTestSuite) TestDrainDestroyCallsForceDestroyOnCoroutines() {
	q := newQueue(unbounded)
	fc := &fakeCoro{}
	u := newCoroutineUnit(fc)
	q.push(u)
	q.drainDestroy()
	ts.True(fc.destroyCalled)
}

// fakeCoro is a minimal coroResumer test double.
type fakeCoro struct {
	destroyCalled bool
}

func (f *fakeCoro) resume(ThreadIndex) {}
func (f *fakeCoro) destroyed() bool    { return f.destroyCalled }
func (f *fakeCoro) forceDestroy()      { f.destroyCalled = true }
