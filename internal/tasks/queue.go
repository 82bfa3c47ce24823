// Package tasks runs deferred archive work. Identical tasks scheduled
// while one is still pending collapse into one.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/nhle/listarchive/internal/log"
	"github.com/nhle/listarchive/internal/model"
)

var (
	ErrUnknownKind = errors.New("unknown task kind")
	ErrQueueFull   = errors.New("task queue full")
)

// Leaser stores named leases with an expiry. store.Store implements it.
type Leaser interface {
	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) error
}

// Handler runs one task. payload is the value given to Schedule.
type Handler func(ctx context.Context, payload any) error

type job struct {
	id      string
	kind    Kind
	key     string
	payload any
	queued  time.Time
}

// Queue dispatches scheduled tasks to a bounded pool of workers.
type Queue struct {
	leases   Leaser
	workers  int
	ttl      time.Duration
	sync     bool
	metrics  *Metrics
	logger   log.Logger
	jobs     chan job
	stopCh   chan struct{}
	done     chan struct{}
	mu       sync.Mutex
	handlers map[Kind]Handler
	running  bool
}

// NewQueue creates a queue backed by leases. Nothing runs until Start,
// except in sync mode where handlers run inside Schedule.
func NewQueue(leases Leaser, cfg model.TasksConfig, metrics *Metrics) *Queue {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = 1024
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	ttl := cfg.LockTTL()
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Queue{
		leases:   leases,
		workers:  workers,
		ttl:      ttl,
		sync:     cfg.Sync,
		metrics:  metrics,
		logger:   log.NewLogger("tasks"),
		jobs:     make(chan job, size),
		handlers: make(map[Kind]Handler),
	}
}

// Register sets the handler for kind, replacing any previous one.
func (q *Queue) Register(kind Kind, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

func (q *Queue) handler(kind Kind) (Handler, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	h, ok := q.handlers[kind]
	return h, ok
}

// Key returns the deduplication key of a task.
func Key(kind Kind, payload any) (string, error) {
	h, err := hashstructure.Hash(payload, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("hashing %s payload: %w", kind, err)
	}
	return fmt.Sprintf("task:%s:%x", kind, h), nil
}

// Schedule queues a task. It returns nil without queueing when the same
// task is already pending. Handler failures are logged, never returned.
func (q *Queue) Schedule(ctx context.Context, kind Kind, payload any) error {
	h, ok := q.handler(kind)
	if !ok {
		return fmt.Errorf("scheduling %s: %w", kind, ErrUnknownKind)
	}

	j := job{id: uuid.NewString(), kind: kind, payload: payload, queued: time.Now()}
	if q.sync {
		q.metrics.scheduled.WithLabelValues(string(kind)).Inc()
		q.run(ctx, h, j)
		return nil
	}

	key, err := Key(kind, payload)
	if err != nil {
		return err
	}
	j.key = key

	// Each job owns its lease, so a second Schedule of a pending key is
	// refused instead of extending the first job's lease.
	acquired, err := q.leases.AcquireLease(ctx, key, j.id, q.ttl)
	if err != nil {
		return fmt.Errorf("scheduling %s: %w", kind, err)
	}
	if !acquired {
		q.metrics.deduplicated.WithLabelValues(string(kind)).Inc()
		q.logger.Tracef("%s already pending, skipping", key)
		return nil
	}

	select {
	case q.jobs <- j:
		q.metrics.scheduled.WithLabelValues(string(kind)).Inc()
		q.metrics.queueDepth.Inc()
		return nil
	default:
		if err := q.leases.ReleaseLease(ctx, key, j.id); err != nil {
			q.logger.Warnf("releasing %s: %v", key, err)
		}
		return fmt.Errorf("scheduling %s: %w", kind, ErrQueueFull)
	}
}

// Start launches the dispatcher. Tasks run on at most Workers goroutines
// until Stop is called or ctx is done.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.running || q.sync {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.done = make(chan struct{})
	q.mu.Unlock()

	go q.dispatch(ctx)
}

func (q *Queue) dispatch(ctx context.Context) {
	defer close(q.done)

	p := pool.New().WithMaxGoroutines(q.workers)
	defer p.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			q.drain(ctx, p)
			return
		case j := <-q.jobs:
			q.submit(ctx, p, j)
		}
	}
}

// drain hands every job still buffered to the pool.
func (q *Queue) drain(ctx context.Context, p *pool.Pool) {
	for {
		select {
		case j := <-q.jobs:
			q.submit(ctx, p, j)
		default:
			return
		}
	}
}

func (q *Queue) submit(ctx context.Context, p *pool.Pool, j job) {
	q.metrics.queueDepth.Dec()
	p.Go(func() {
		// The lease goes first so a change arriving while the
		// handler runs schedules a fresh pass.
		if err := q.leases.ReleaseLease(ctx, j.key, j.id); err != nil {
			q.logger.Warnf("releasing %s: %v", j.key, err)
		}
		h, ok := q.handler(j.kind)
		if !ok {
			q.logger.Errorf("no handler for %s", j.kind)
			return
		}
		q.run(ctx, h, j)
	})
}

func (q *Queue) run(ctx context.Context, h Handler, j job) {
	kind := string(j.kind)
	start := time.Now()

	var err error
	var pc panics.Catcher
	pc.Try(func() { err = h(ctx, j.payload) })
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}

	q.metrics.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		q.metrics.failed.WithLabelValues(kind).Inc()
		q.logger.Errorf("task %s (%s) failed: %v", j.kind, j.id, err)
		return
	}
	q.metrics.completed.WithLabelValues(kind).Inc()
	q.logger.Debugf("task %s (%s) done in %s", j.kind, j.id, time.Since(j.queued))
}

// Stop runs the tasks still queued and waits for all workers to finish.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return
	}
	q.running = false
	close(q.stopCh)
	done := q.done
	q.mu.Unlock()

	<-done
}

// Sync reports whether handlers run inline.
func (q *Queue) Sync() bool {
	return q.sync
}
