// Package sync runs the archive's periodic maintenance jobs, such as
// refreshing recent-thread caches and draining the index queue, each on
// its own schedule and on demand.
package sync

import (
	"context"
	"sort"
	gosync "sync"
	"time"

	"github.com/nhle/listarchive/internal/log"
)

// JobState represents the current state of a job.
type JobState int

const (
	JobIdle JobState = iota
	JobRunning
	JobError
)

func (s JobState) String() string {
	switch s {
	case JobIdle:
		return "idle"
	case JobRunning:
		return "running"
	case JobError:
		return "error"
	}
	return "unknown"
}

// JobStatus holds the state of a single job.
type JobStatus struct {
	Name     string
	State    JobState
	LastRun  time.Time
	Duration time.Duration
	Error    error
}

// Result is sent when a job run completes.
type Result struct {
	Job      string
	Error    error
	Duration time.Duration
}

// Job is a unit of periodic work.
type Job struct {
	Name     string
	Interval time.Duration

	// Timeout bounds one run; zero means defaultTimeout.
	Timeout time.Duration

	// RunAtStart runs the job as soon as the poller starts.
	RunAtStart bool

	Run func(ctx context.Context) error
}

const (
	defaultInterval = time.Hour
	defaultTimeout  = 10 * time.Minute
)

type jobEntry struct {
	job     Job
	trigger chan struct{}
}

// Poller orchestrates the registered jobs in background goroutines.
type Poller struct {
	jobs     []jobEntry
	statuses map[string]*JobStatus
	resultCh chan Result
	stopCh   chan struct{}
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	running  bool
	logger   log.Logger
}

// New creates an empty poller.
func New() *Poller {
	return &Poller{
		statuses: make(map[string]*JobStatus),
		resultCh: make(chan Result, 16),
		stopCh:   make(chan struct{}),
		logger:   log.NewLogger("sync"),
	}
}

// Register adds a job. Jobs registered after Start are not run.
func (p *Poller) Register(job Job) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if job.Interval <= 0 {
		job.Interval = defaultInterval
	}
	if job.Timeout <= 0 {
		job.Timeout = defaultTimeout
	}
	p.jobs = append(p.jobs, jobEntry{job: job, trigger: make(chan struct{}, 1)})
	p.statuses[job.Name] = &JobStatus{Name: job.Name, State: JobIdle}
}

// Start starts one goroutine per job.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true

	for _, entry := range p.jobs {
		p.wg.Add(1)
		go p.loop(ctx, entry)
	}
}

// Stop halts all job goroutines and waits for running jobs to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

// Refresh triggers an immediate run of the named job. A trigger for a job
// that is already pending is dropped.
func (p *Poller) Refresh(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, entry := range p.jobs {
		if entry.job.Name == name {
			select {
			case entry.trigger <- struct{}{}:
			default:
			}
		}
	}
}

// RefreshAll triggers an immediate run of every job.
func (p *Poller) RefreshAll() {
	p.mu.Lock()
	names := make([]string, len(p.jobs))
	for i, entry := range p.jobs {
		names[i] = entry.job.Name
	}
	p.mu.Unlock()

	for _, name := range names {
		p.Refresh(name)
	}
}

// Statuses returns the state of every job, sorted by name.
func (p *Poller) Statuses() []JobStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]JobStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// Results returns the channel on which completed runs are reported.
// Results are dropped when nobody reads them.
func (p *Poller) Results() <-chan Result {
	return p.resultCh
}

func (p *Poller) loop(ctx context.Context, entry jobEntry) {
	defer p.wg.Done()

	ticker := time.NewTicker(entry.job.Interval)
	defer ticker.Stop()

	if entry.job.RunAtStart {
		p.run(ctx, entry.job)
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx, entry.job)
		case <-entry.trigger:
			p.run(ctx, entry.job)
		}
	}
}

// run performs a single job run and reports it.
func (p *Poller) run(ctx context.Context, job Job) {
	p.setStatus(job.Name, JobRunning, nil, 0)

	ctx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)

	if err != nil {
		p.logger.Errorf("job %s failed after %s: %v", job.Name, elapsed, err)
		p.setStatus(job.Name, JobError, err, elapsed)
	} else {
		p.logger.Debugf("job %s done in %s", job.Name, elapsed)
		p.setStatus(job.Name, JobIdle, nil, elapsed)
	}
	p.sendResult(Result{Job: job.Name, Error: err, Duration: elapsed})
}

func (p *Poller) setStatus(name string, state JobState, err error, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}
	status.State = state
	status.Error = err
	if state != JobRunning {
		status.LastRun = time.Now()
		status.Duration = elapsed
	}
}

// sendResult sends a Result without blocking.
func (p *Poller) sendResult(r Result) {
	select {
	case p.resultCh <- r:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}
