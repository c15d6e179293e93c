// Package main provides the browsercore CLI application.
package main

import (
	stderrors "errors"
	"io"
	"io/fs"

	"github.com/browsercore/browsercore/pkg/cache"
	"github.com/browsercore/browsercore/pkg/config"
	"github.com/browsercore/browsercore/pkg/dispatch"
	"github.com/browsercore/browsercore/pkg/errors"
	"github.com/browsercore/browsercore/pkg/fetch"
	"github.com/browsercore/browsercore/pkg/observability"
	"gopkg.in/natefinch/lumberjack.v2"
)

// app holds the components one command run works with.
type app struct {
	cfg        *config.Config
	metrics    *observability.Metrics
	cache      *cache.BoundedCache
	gate       *dispatch.ResourceGate
	dispatcher *dispatch.TaskDispatcher
	loader     *fetch.Loader
	prefetcher *fetch.Prefetcher
	settings   fetch.Settings
	persist    bool
	eventLog   io.WriteCloser
}

// newApp builds the cache, gate, dispatcher and loader from cfg. The
// fetcher is synthetic; pageSize overrides its body size when positive.
func newApp(cfg *config.Config, mode fetch.Mode, pageSize int) (*app, error) {
	a := &app{
		cfg:     cfg,
		metrics: observability.NewMetrics("browsercore"),
	}

	c, err := cache.NewBoundedCache(cfg.Cache.CapacityBytes(),
		cache.WithRecorder(a.metrics),
		cache.WithOnEvicted(func(key string, size int64) {
			logger.Debug("evicted", observability.String("key", key), observability.Int64("bytes", size))
		}))
	if err != nil {
		return nil, errors.ConfigError("cannot create cache", err)
	}
	a.cache = c

	if cfg.Cache.SnapshotPath != "" {
		n, err := cache.LoadSnapshot(c, cfg.Cache.SnapshotPath)
		if err != nil && !stderrors.Is(err, fs.ErrNotExist) {
			logger.Warn("cannot restore cache snapshot", observability.Err(err))
		} else if n > 0 {
			logger.Info("restored cache snapshot", observability.Int("entries", n))
		}
	}

	// Applied after the restore so turbo and incognito start empty.
	a.settings = fetch.ApplyMode(c, mode)
	a.persist = cfg.Cache.SnapshotPath != "" && mode != fetch.ModeIncognito

	a.gate, err = dispatch.NewResourceGate(cfg.Gate.MaxConnections, dispatch.WithGateRecorder(a.metrics))
	if err != nil {
		return nil, errors.ConfigError("cannot create gate", err)
	}

	a.dispatcher, err = dispatch.NewTaskDispatcher(cfg.Dispatcher.Workers, a.reportTaskError,
		dispatch.WithLogger(logger),
		dispatch.WithRecorder(a.metrics))
	if err != nil {
		return nil, errors.ConfigError("cannot create dispatcher", err)
	}

	fetcher := fetch.NewSyntheticFetcher()
	if pageSize > 0 {
		fetcher.Size = pageSize
	}

	opts := []fetch.LoaderOption{
		fetch.WithBackoff(fetch.Backoff{
			MaxAttempts: cfg.Fetch.MaxAttempts,
			BaseDelay:   cfg.Fetch.BaseDelay,
			MaxDelay:    cfg.Fetch.MaxDelay,
		}),
		fetch.WithTimeout(cfg.Fetch.Timeout),
		fetch.WithLoaderLogger(logger),
		fetch.WithObserver(a.metrics),
	}
	if a.settings.Prefetch && cfg.Fetch.PrefetchLimit > 0 {
		a.prefetcher = fetch.NewPrefetcher(cfg.Fetch.PrefetchLimit)
		opts = append(opts, fetch.WithPrefetcher(a.prefetcher))
	}
	if cfg.Fetch.EventLog != "" {
		a.eventLog = &lumberjack.Logger{
			LocalTime:  true,
			MaxSize:    cfg.Fetch.LogMaxSizeMB,
			MaxAge:     cfg.Fetch.LogMaxAgeDays,
			MaxBackups: cfg.Fetch.LogMaxBackups,
			Filename:   cfg.Fetch.EventLog,
			Compress:   true,
		}
		opts = append(opts, fetch.WithEventLog(a.eventLog))
	}
	a.loader = fetch.NewLoader(c, a.gate, fetcher, opts...)

	logger.Debug("components ready",
		observability.Int64("cache_bytes", cfg.Cache.CapacityBytes()),
		observability.Int("connections", cfg.Gate.MaxConnections),
		observability.Int("workers", cfg.Dispatcher.Workers),
		observability.String("mode", mode.String()))
	return a, nil
}

func (a *app) reportTaskError(err error) {
	logger.Warn("task error", observability.Err(err))
}

// close drains the dispatcher, then persists the cache and closes the event log.
// Incognito runs never write a snapshot.
func (a *app) close() {
	a.dispatcher.Shutdown()

	if a.persist {
		if err := cache.SaveSnapshot(a.cache, a.cfg.Cache.SnapshotPath); err != nil {
			logger.Warn("cannot save cache snapshot", observability.Err(err))
		}
	}
	if a.eventLog != nil {
		if err := a.eventLog.Close(); err != nil {
			logger.Warn("cannot close fetch log", observability.Err(err))
		}
	}
}
