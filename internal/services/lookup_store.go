package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/metrics"
	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/internal/telemetry"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/sirupsen/logrus"
)

// ErrLookupNotLoaded is returned while no lookup table has been loaded.
var ErrLookupNotLoaded = errors.New("lookup table not loaded")

// ErrRefreshInProgress is returned when a refresh is requested while one
// is already running.
var ErrRefreshInProgress = errors.New("lookup refresh already in progress")

// LookupStore holds the current historical lookup table. Refresh loads a new
// table and swaps it in atomically; analyses keep the snapshot they started
// with.
type LookupStore struct {
	source   interfaces.LookupSource
	timeouts *TimeoutManager
	metrics  *metrics.Recorder
	tracer   *telemetry.BusinessTracer
	logger   *logrus.Logger
	onLoad   RefreshHook

	table      atomic.Pointer[models.LookupTable]
	refreshing atomic.Bool
	lastError  atomic.Value // string

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewLookupStore(source interfaces.LookupSource, timeouts *TimeoutManager, recorder *metrics.Recorder, logger *logrus.Logger) *LookupStore {
	if logger == nil {
		logger = logrus.New()
	}
	if timeouts == nil {
		timeouts = NewTimeoutManager(nil, logger)
	}
	return &LookupStore{
		source:   source,
		timeouts: timeouts,
		metrics:  recorder,
		tracer:   telemetry.NewBusinessTracer(),
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// RefreshHook observes every completed refresh attempt.
type RefreshHook func(source string, records int, took time.Duration, err error)

// OnRefresh installs hook. Call it before the first refresh.
func (s *LookupStore) OnRefresh(hook RefreshHook) {
	s.onLoad = hook
}

// Snapshot returns the current table or ErrLookupNotLoaded.
func (s *LookupStore) Snapshot() (*models.LookupTable, error) {
	t := s.table.Load()
	if t == nil {
		return nil, ErrLookupNotLoaded
	}
	return t, nil
}

// Set installs a table directly. Used by tests and the CLI.
func (s *LookupStore) Set(t *models.LookupTable) {
	s.table.Store(t)
	if t != nil {
		s.metrics.SetLookupRecords(t.Source, t.Len())
	}
}

// Loaded reports whether a table is available.
func (s *LookupStore) Loaded() bool {
	return s.table.Load() != nil
}

// Records returns the size of the current table, or 0.
func (s *LookupStore) Records() int {
	return s.table.Load().Len()
}

// LoadedAt returns when the current table was loaded.
func (s *LookupStore) LoadedAt() time.Time {
	if t := s.table.Load(); t != nil {
		return t.LoadedAt
	}
	return time.Time{}
}

// LastError returns the message of the most recent failed refresh.
func (s *LookupStore) LastError() string {
	if v, ok := s.lastError.Load().(string); ok {
		return v
	}
	return ""
}

// Refresh loads the table from the source and swaps it in. A failed load
// keeps the previous table.
func (s *LookupStore) Refresh(ctx context.Context) error {
	if s.source == nil {
		return ErrLookupNotLoaded
	}
	if !s.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)

	ctx, span := s.tracer.TraceLookupLoad(ctx, s.source.Name())
	defer span.End()

	start := time.Now()
	var table *models.LookupTable
	err := s.timeouts.Run(ctx, OpLookupLoad, func(ctx context.Context) error {
		t, err := s.source.Load(ctx)
		table = t
		return err
	})
	if err == nil && table == nil {
		err = ErrLookupNotLoaded
	}
	s.tracer.RecordLookupResult(span, table.Len(), err)
	if s.onLoad != nil {
		s.onLoad(s.source.Name(), table.Len(), time.Since(start), err)
	}
	if err != nil {
		s.lastError.Store(err.Error())
		s.logger.WithFields(logrus.Fields{
			"source": s.source.Name(),
			"error":  err.Error(),
		}).Error("Lookup table refresh failed, keeping previous table")
		return err
	}

	s.Set(table)
	s.lastError.Store("")
	s.logger.WithFields(logrus.Fields{
		"source":      s.source.Name(),
		"records":     table.Len(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Lookup table refreshed")
	return nil
}

// RefreshAsync starts a refresh in the background and reports whether it
// was started.
func (s *LookupStore) RefreshAsync() bool {
	if s.refreshing.Load() {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.Refresh(context.Background()); err != nil && !errors.Is(err, ErrRefreshInProgress) {
			s.logger.WithError(err).Warn("Background lookup refresh failed")
		}
	}()
	return true
}

// StartAutoRefresh reloads the table every interval until Stop is called.
func (s *LookupStore) StartAutoRefresh(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				if err := s.Refresh(context.Background()); err != nil && !errors.Is(err, ErrRefreshInProgress) {
					s.logger.WithError(err).Warn("Scheduled lookup refresh failed")
				}
			}
		}
	}()
}

// Stop ends auto-refresh and waits for background refreshes to finish.
func (s *LookupStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}
