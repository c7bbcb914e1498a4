package event_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/arc-self/neatoo/correlation"
	"github.com/arc-self/neatoo/event"
)

func TestEnqueueRunsTaskAsynchronously(t *testing.T) {
	s := event.New(zap.NewNop())
	var ran int32

	s.Enqueue(context.Background(), func(ctx context.Context) {
		atomic.StoreInt32(&ran, 1)
	})

	require := assert.New(t)
	require.True(s.Drain(time.Second))
	require.Equal(int32(1), atomic.LoadInt32(&ran))
}

func TestEnqueueCarriesCorrelationIdIntoDetachedScope(t *testing.T) {
	s := event.New(zap.NewNop())
	ctx := correlation.With(context.Background(), "corr-123")

	var seen string
	s.Enqueue(ctx, func(taskCtx context.Context) {
		id, _ := correlation.Get(taskCtx)
		seen = id
	})

	s.Drain(time.Second)
	assert.Equal(t, "corr-123", seen)
}

func TestEnqueueSurvivesCancelledTriggeringContext(t *testing.T) {
	s := event.New(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran int32
	s.Enqueue(ctx, func(taskCtx context.Context) {
		atomic.StoreInt32(&ran, 1)
		assert.NoError(t, taskCtx.Err())
	})

	s.Drain(time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
}

func TestEnqueueFailableSwallowsError(t *testing.T) {
	s := event.New(zap.NewNop())
	s.EnqueueFailable(context.Background(), func(ctx context.Context) error {
		return errors.New("boom")
	})

	assert.True(t, s.Drain(time.Second)) // drain completes; error never surfaces
}

func TestDrainReportsTimeoutWithTasksStillRunning(t *testing.T) {
	s := event.New(zap.NewNop())
	release := make(chan struct{})
	s.Enqueue(context.Background(), func(ctx context.Context) {
		<-release
	})

	ok := s.Drain(10 * time.Millisecond)
	assert.False(t, ok)
	close(release)
	s.Drain(time.Second)
}
