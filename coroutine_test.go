package jobsystem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type CoroutineTestSuite struct {
	suite.Suite
}

func TestCoroutineTestSuite(t *testing.T) {
	suite.Run(t, new(CoroutineTestSuite))
}

func (ts *CoroutineTestSuite) newScheduler(workers int) *Scheduler {
	cfg := DefaultConfig()
	cfg.NumWorkers = workers
	cfg.IdleSleep = time.Millisecond
	s := New(cfg, nil, nil)
	ts.Require().NoError(s.Start())
	ts.T().Cleanup(func() {
		s.Terminate()
		s.Wait()
	})
	return s
}

func (ts *CoroutineTestSuite) TestScheduleCoroutineRejectsNilBody() {
	s := ts.newScheduler(1)
	_, err := ScheduleCoroutine[int](s, context.Background(), nil, DefaultJobOptions(), NoTag, -1)
	ts.ErrorIs(err, ErrNoProcessor)
}

func (ts *CoroutineTestSuite) TestScheduleCoroutineAfterShutdownIsRejected() {
	s := ts.newScheduler(1)
	s.Terminate()
	s.Wait()
	_, err := ScheduleCoroutine(s, context.Background(), func(*Coro[int]) (int, error) {
		return 0, nil
	}, DefaultJobOptions(), NoTag, -1)
	ts.ErrorIs(err, ErrShutdown)
}

func (ts *CoroutineTestSuite) TestScheduleCoroutineReportsAllocationFailure() {
	cfg := DefaultConfig()
	cfg.NumWorkers = 1
	cfg.IdleSleep = time.Millisecond
	s := New(cfg, nil, NewBoundedAllocator(1))
	ts.Require().NoError(s.Start())
	ts.T().Cleanup(func() { s.Terminate(); s.Wait() })

	block := make(chan struct{})
	first, err := ScheduleCoroutine(s, context.Background(), func(*Coro[int]) (int, error) {
		<-block
		return 0, nil
	}, DefaultJobOptions(), NoTag, -1)
	ts.Require().NoError(err)

	_, err = ScheduleCoroutine(s, context.Background(), func(*Coro[int]) (int, error) {
		return 0, nil
	}, DefaultJobOptions(), NoTag, -1)
	ts.ErrorIs(err, ErrAllocationFailure)

	close(block)
	_, _ = first.Get()
}

func (ts *CoroutineTestSuite) TestRootCoroutineRunsToCompletionAndGetReturnsResult() {
	s := ts.newScheduler(2)
	handle, err := ScheduleCoroutine(s, context.Background(), func(*Coro[string]) (string, error) {
		return "done", nil
	}, DefaultJobOptions(), NoTag, -1)
	ts.Require().NoError(err)

	v, err := handle.Get()
	ts.NoError(err)
	ts.Equal("done", v)
	ts.True(handle.destroyed())
}

func (ts *CoroutineTestSuite) TestTryGetReportsFalseBeforeCompletion() {
	s := ts.newScheduler(1)
	block := make(chan struct{})
	handle, err := ScheduleCoroutine(s, context.Background(), func(*Coro[int]) (int, error) {
		<-block
		return 1, nil
	}, DefaultJobOptions(), NoTag, -1)
	ts.Require().NoError(err)

	_, _, ok := handle.TryGet()
	ts.False(ok)

	close(block)
	_, err = handle.Get()
	ts.NoError(err)

	v, err, ok := handle.TryGet()
	ts.True(ok)
	ts.NoError(err)
	ts.Equal(1, v)
}

func (ts *CoroutineTestSuite) TestForceDestroyUnwindsAPendingCoroutine() {
	s := New(func() Config {
		c := DefaultConfig()
		c.NumWorkers = 1
		c.IdleSleep = time.Millisecond
		return c
	}(), nil, nil)
	ts.Require().NoError(s.Start())

	var ran bool
	_, err := ScheduleCoroutine(s, context.Background(), func(*Coro[int]) (int, error) {
		ran = true
		return 0, nil
	}, JobOptions{TargetThread: NoThread}, TagID(1), -1)
	ts.Require().NoError(err)

	// Never drained: the coroutine stays parked under the tag and must be
	// force-destroyed during teardown instead of running.
	s.Terminate()
	s.Wait()
	ts.False(ran)
}

func (ts *CoroutineTestSuite) TestMisuseSchedulingCoroutineFromWithinFunctionPanics() {
	ts.Panics(func() {
		u := &workUnit{kind: kindFunction}
		ctx := withCurrent(context.Background(), u, 0)
		s := New(DefaultConfig(), nil, nil)
		_, _ = ScheduleCoroutine(s, ctx, func(*Coro[int]) (int, error) { return 0, nil }, DefaultJobOptions(), NoTag, -1)
	})
}
