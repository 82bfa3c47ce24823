// Package app assembles the archive components from the configuration
// and runs them as a command or as a long-running service.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nhle/listarchive/internal/archive"
	"github.com/nhle/listarchive/internal/cache"
	"github.com/nhle/listarchive/internal/credential"
	"github.com/nhle/listarchive/internal/events"
	"github.com/nhle/listarchive/internal/index"
	"github.com/nhle/listarchive/internal/listdir"
	"github.com/nhle/listarchive/internal/log"
	"github.com/nhle/listarchive/internal/model"
	"github.com/nhle/listarchive/internal/store"
	"github.com/nhle/listarchive/internal/tasks"
)

// App holds every wired component. Fields are read-only after New.
type App struct {
	Config   *model.AppConfig
	Store    *store.SQLiteStore
	Registry *prometheus.Registry
	Tasks    *tasks.Queue
	Bus      *events.Bus
	Stats    *cache.Stats
	Archive  *archive.Archiver
	Index    *index.Dispatcher

	// Search is nil when the index only logs updates.
	Search *index.BoltIndexer

	// Directory is nil when the list directory is disabled.
	Directory *listdir.Syncer

	backend cache.Backend
	indexer index.Indexer
	logger  log.Logger
}

// New opens the store and caches named by cfg and connects the
// components through the task queue and the event bus.
func New(cfg *model.AppConfig) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		Bus:      events.NewBus(),
		logger:   log.NewLogger("app"),
	}
	a.Registry.MustRegister(collectors.NewGoCollector())

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	a.Store = s

	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg := a.Config
	a.Tasks = tasks.NewQueue(a.Store, cfg.Tasks, tasks.NewMetrics(a.Registry))

	backend, err := openBackend(cfg.Cache)
	if err != nil {
		return err
	}
	a.backend = backend
	a.Stats = cache.NewStats(backend, a.Store, cfg.Cache.RecentDays)

	inv := cache.NewInvalidator(a.Stats, a.Tasks)
	inv.Subscribe(a.Bus)
	a.Tasks.Register(tasks.KindRebuildCache, inv.Handle)

	opts := archive.Options{
		Store:            a.Store,
		Tasks:            a.Tasks,
		Bus:              a.Bus,
		Stats:            a.Stats,
		AttachmentFolder: cfg.Archive.AttachmentFolder,
	}
	if cfg.Directory.Enabled {
		syncer, err := newDirectory(cfg.Directory, a.Store)
		if err != nil {
			return err
		}
		a.Directory = syncer
		opts.Syncer = syncer
	}
	a.Archive = archive.New(opts)

	if cfg.Index.Path != "" {
		search, err := index.OpenBolt(cfg.Index.Path)
		if err != nil {
			return err
		}
		a.Search = search
		a.indexer = search
	} else {
		a.indexer = index.NewLogIndexer()
	}
	a.Index = index.NewDispatcher(a.Store, a.indexer, cfg.Index)
	a.Index.Subscribe(a.Bus)

	return nil
}

func openBackend(cfg model.CacheConfig) (cache.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemoryBackend(0), nil
	case "bolt":
		return cache.OpenBolt(cfg.BoltPath)
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

func newDirectory(cfg model.DirectoryConfig, s store.Querier) (*listdir.Syncer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("directory enabled without base_url")
	}
	password, err := credential.Resolve(cfg.Password, cfg.PasswordKey)
	if err != nil {
		return nil, fmt.Errorf("loading directory password: %w", err)
	}
	client := listdir.NewClient(
		cfg.BaseURL, cfg.Username, password,
		time.Duration(cfg.TimeoutSec)*time.Second,
	)
	return listdir.NewSyncer(client, s), nil
}

// Start runs the task workers until ctx is done or Close is called.
func (a *App) Start(ctx context.Context) {
	a.Tasks.Start(ctx)
}

// Close drains the task queue and closes the stores.
func (a *App) Close() {
	if a.Tasks != nil {
		a.Tasks.Stop()
	}
	if a.Search != nil {
		if err := a.Search.Close(); err != nil {
			a.logger.Warnf("closing index: %v", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Warnf("closing cache: %v", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.logger.Warnf("closing store: %v", err)
		}
	}
}
