package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/tests/testutil"
)

func newQueue(t *testing.T, cfg model.TasksConfig) (*Queue, *Metrics) {
	t.Helper()
	s := testutil.NewTestStore(t)
	m := NewMetrics(prometheus.NewRegistry())
	return NewQueue(s, cfg, m), m
}

func TestScheduleSyncRunsInline(t *testing.T) {
	q, m := newQueue(t, model.TasksConfig{Sync: true})
	var got []int64
	q.Register(KindRecomputeThread, func(_ context.Context, payload any) error {
		got = append(got, payload.(ThreadPayload).ThreadID)
		return nil
	})

	ctx := context.Background()
	require.NoError(t, q.Schedule(ctx, KindRecomputeThread, ThreadPayload{ThreadID: 4}))
	require.NoError(t, q.Schedule(ctx, KindRecomputeThread, ThreadPayload{ThreadID: 4}))

	assert.Equal(t, []int64{4, 4}, got)
	assert.Equal(t, 2.0, promtest.ToFloat64(m.completed.WithLabelValues(string(KindRecomputeThread))))
}

func TestScheduleDeduplicatesPendingTasks(t *testing.T) {
	q, m := newQueue(t, model.TasksConfig{Workers: 2})
	var runs atomic.Int32
	q.Register(KindCheckOrphans, func(context.Context, any) error {
		runs.Add(1)
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Schedule(ctx, KindCheckOrphans, EmailPayload{EmailID: 1}))
	}
	require.NoError(t, q.Schedule(ctx, KindCheckOrphans, EmailPayload{EmailID: 2}))

	q.Start(ctx)
	q.Stop()

	assert.Equal(t, int32(2), runs.Load())
	kind := string(KindCheckOrphans)
	assert.Equal(t, 2.0, promtest.ToFloat64(m.scheduled.WithLabelValues(kind)))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.deduplicated.WithLabelValues(kind)))

	// Once run, the same task can be scheduled again.
	q.Start(ctx)
	require.NoError(t, q.Schedule(ctx, KindCheckOrphans, EmailPayload{EmailID: 1}))
	q.Stop()
	assert.Equal(t, int32(3), runs.Load())
}

func TestScheduleDeduplicatesAcrossQueues(t *testing.T) {
	s := testutil.NewTestStore(t)
	first := NewQueue(s, model.TasksConfig{}, NewMetrics(prometheus.NewRegistry()))
	secondMetrics := NewMetrics(prometheus.NewRegistry())
	second := NewQueue(s, model.TasksConfig{}, secondMetrics)

	var runs atomic.Int32
	handler := func(context.Context, any) error {
		runs.Add(1)
		return nil
	}
	first.Register(KindRecomputeThread, handler)
	second.Register(KindRecomputeThread, handler)

	ctx := context.Background()
	require.NoError(t, first.Schedule(ctx, KindRecomputeThread, ThreadPayload{ThreadID: 7}))
	require.NoError(t, second.Schedule(ctx, KindRecomputeThread, ThreadPayload{ThreadID: 7}))
	assert.Equal(t, 1.0, promtest.ToFloat64(secondMetrics.deduplicated.WithLabelValues(string(KindRecomputeThread))))

	first.Start(ctx)
	first.Stop()
	second.Start(ctx)
	second.Stop()
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduleUnknownKind(t *testing.T) {
	q, _ := newQueue(t, model.TasksConfig{})
	err := q.Schedule(context.Background(), Kind("nope"), nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestScheduleQueueFull(t *testing.T) {
	q, _ := newQueue(t, model.TasksConfig{QueueSize: 1})
	q.Register(KindSyncList, func(context.Context, any) error { return nil })

	ctx := context.Background()
	require.NoError(t, q.Schedule(ctx, KindSyncList, ListPayload{ListName: "a@example.com"}))
	err := q.Schedule(ctx, KindSyncList, ListPayload{ListName: "b@example.com"})
	assert.ErrorIs(t, err, ErrQueueFull)

	// The rejected task released its lease.
	q.Start(ctx)
	q.Stop()
	require.NoError(t, q.Schedule(ctx, KindSyncList, ListPayload{ListName: "b@example.com"}))
}

func TestFailuresAreCounted(t *testing.T) {
	q, m := newQueue(t, model.TasksConfig{Sync: true})
	q.Register(KindSyncSender, func(context.Context, any) error { return errors.New("directory down") })
	q.Register(KindSyncList, func(context.Context, any) error { panic("boom") })

	ctx := context.Background()
	require.NoError(t, q.Schedule(ctx, KindSyncSender, SenderPayload{SenderID: 1}))
	require.NoError(t, q.Schedule(ctx, KindSyncList, ListPayload{ListName: "list@example.com"}))

	assert.Equal(t, 1.0, promtest.ToFloat64(m.failed.WithLabelValues(string(KindSyncSender))))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.failed.WithLabelValues(string(KindSyncList))))
}

func TestKeyIsStable(t *testing.T) {
	a, err := Key(KindRecomputeThread, ThreadPayload{ThreadID: 9})
	require.NoError(t, err)
	b, err := Key(KindRecomputeThread, ThreadPayload{ThreadID: 9})
	require.NoError(t, err)
	c, err := Key(KindRecomputeThread, ThreadPayload{ThreadID: 10})
	require.NoError(t, err)
	d, err := Key(KindCheckOrphans, ThreadPayload{ThreadID: 9})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
}

func TestRunWithLock(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	var inner bool
	ran, err := RunWithLock(ctx, s, "update_index", time.Minute, func(ctx context.Context) error {
		// A second holder is turned away while the first runs.
		again, err := RunWithLock(ctx, s, "update_index", time.Minute, func(context.Context) error {
			inner = true
			return nil
		})
		assert.False(t, again)
		return err
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, inner)

	// Released afterwards.
	ran, err = RunWithLock(ctx, s, "update_index", time.Minute, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, ran)
}
