package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLockSkipsWhenHeld(t *testing.T) {
	t.Parallel()

	locker := &fakeLocker{}
	unlock, ok, err := locker.TryLock(context.Background(), PipelineLockName)
	require.NoError(t, err)
	require.True(t, ok)

	called := false
	ran, err := WithLock(context.Background(), locker, PipelineLockName, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)
	assert.False(t, called)

	unlock()
	ran, err = WithLock(context.Background(), locker, PipelineLockName, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, called)
	assert.Empty(t, locker.held, "lock released after fn returns")
}

func TestWithLockReportsLockErrors(t *testing.T) {
	t.Parallel()

	locker := &fakeLocker{err: errors.New("connection reset")}
	ran, err := WithLock(context.Background(), locker, "x", func(context.Context) error { return nil })

	assert.False(t, ran)
	assert.ErrorContains(t, err, "connection reset")
}

func TestWithLockWithoutLockerRuns(t *testing.T) {
	t.Parallel()

	ran, err := WithLock(context.Background(), nil, "x", func(context.Context) error { return errors.New("boom") })
	assert.True(t, ran)
	assert.EqualError(t, err, "boom")
}

func TestSchedulerRunOnceSkipsOverlappingRun(t *testing.T) {
	t.Parallel()

	rec := &recordingStages{}
	locker := &fakeLocker{}
	s := NewScheduler(nil, newTestPipeline(rec, nil, nil, nil), locker, PipelineOptions{}, nil)

	run, skipped, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.True(t, run.Success)

	unlock, _, _ := locker.TryLock(context.Background(), PipelineLockName)
	defer unlock()

	_, skipped, err = s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Len(t, rec.order, len(StepOrder))
}
