package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appsync "github.com/nhle/listarchive/internal/sync"
)

// Job names.
const (
	JobRebuildRecent = "rebuild_recent"
	JobUpdateIndex   = "update_index"
	JobSyncDirectory = "sync_directory"
)

// Jobs returns the periodic maintenance jobs of the service.
func (a *App) Jobs() []appsync.Job {
	cfg := a.Config
	jobs := []appsync.Job{
		{
			Name:     JobRebuildRecent,
			Interval: time.Duration(cfg.Cache.RebuildIntervalSec) * time.Second,
			Run:      a.RebuildRecent,
		},
		{
			Name:       JobUpdateIndex,
			Interval:   time.Duration(cfg.Index.IntervalSec) * time.Second,
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				_, err := a.Index.Update(ctx)
				return err
			},
		},
	}
	if a.Directory != nil {
		jobs = append(jobs, appsync.Job{
			Name:       JobSyncDirectory,
			Interval:   time.Duration(cfg.Serve.DirectoryIntervalSec) * time.Second,
			RunAtStart: true,
			Run: func(ctx context.Context) error {
				return a.SyncDirectory(ctx, false)
			},
		})
	}
	return jobs
}

// Serve runs the task workers, the periodic jobs and the metrics
// endpoint until ctx is done. SIGHUP runs every job immediately.
func (a *App) Serve(ctx context.Context) error {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "listarchive_job_runs_total",
		Help: "Periodic job runs, by job and result.",
	}, []string{"job", "result"})
	if err := a.Registry.Register(runs); err != nil {
		return err
	}
	defer a.Registry.Unregister(runs)

	a.Start(ctx)

	poller := appsync.New()
	for _, job := range a.Jobs() {
		poller.Register(job)
	}
	poller.Start(ctx)
	defer poller.Stop()

	var srv *http.Server
	errCh := make(chan error, 1)
	if addr := a.Config.Serve.MetricsListen; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}))
		srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			a.logger.Infof("serving metrics on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	results := poller.Results()
	for {
		select {
		case <-ctx.Done():
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Warnf("stopping metrics server: %v", err)
				}
			}
			return nil
		case err := <-errCh:
			return err
		case <-hup:
			for _, st := range poller.Statuses() {
				a.logger.Infof("job %s: %s, last run %s", st.Name, st.State, st.LastRun.Format(time.RFC3339))
			}
			poller.RefreshAll()
		case r := <-results:
			result := "ok"
			if r.Error != nil {
				result = "error"
			}
			runs.WithLabelValues(r.Job, result).Inc()
		}
	}
}
