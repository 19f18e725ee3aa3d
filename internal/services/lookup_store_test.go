package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu      sync.Mutex
	table   *models.LookupTable
	err     error
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Load(ctx context.Context) (*models.LookupTable, error) {
	f.mu.Lock()
	f.calls++
	entered, release := f.entered, f.release
	table, err := f.table, f.err
	f.mu.Unlock()

	if entered != nil {
		close(entered)
		<-release
	}
	return table, err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestLookupStore_Refresh(t *testing.T) {
	src := &fakeSource{table: lookupTable(laneRec("Acme", 1000, 5), laneRec("Beta", 1100, 5))}
	store := NewLookupStore(src, nil, nil, quietLogger())

	_, err := store.Snapshot()
	assert.ErrorIs(t, err, ErrLookupNotLoaded)
	assert.False(t, store.Loaded())

	require.NoError(t, store.Refresh(context.Background()))
	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Same(t, src.table, snap)
	assert.Equal(t, 2, store.Records())
	assert.Equal(t, refPickup, store.LoadedAt())
	assert.Empty(t, store.LastError())
}

func TestLookupStore_FailedRefreshKeepsPreviousTable(t *testing.T) {
	src := &fakeSource{table: lookupTable(laneRec("Acme", 1000, 5))}
	store := NewLookupStore(src, nil, nil, quietLogger())
	require.NoError(t, store.Refresh(context.Background()))
	previous, _ := store.Snapshot()

	src.err = errors.New("blob not found")
	src.table = nil
	assert.Error(t, store.Refresh(context.Background()))
	assert.Equal(t, "blob not found", store.LastError())

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Same(t, previous, snap)

	src.err = nil
	assert.ErrorIs(t, store.Refresh(context.Background()), ErrLookupNotLoaded)
	assert.Same(t, previous, mustSnapshot(t, store))
}

func mustSnapshot(t *testing.T, s *LookupStore) *models.LookupTable {
	t.Helper()
	snap, err := s.Snapshot()
	require.NoError(t, err)
	return snap
}

func TestLookupStore_NoSource(t *testing.T) {
	store := NewLookupStore(nil, nil, nil, quietLogger())
	assert.ErrorIs(t, store.Refresh(context.Background()), ErrLookupNotLoaded)

	store.Set(lookupTable())
	assert.True(t, store.Loaded())
	assert.Zero(t, store.Records())
}

func TestLookupStore_SingleRefreshAtATime(t *testing.T) {
	src := &fakeSource{
		table:   lookupTable(laneRec("Acme", 1000, 5)),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	store := NewLookupStore(src, nil, nil, quietLogger())

	done := make(chan error, 1)
	go func() { done <- store.Refresh(context.Background()) }()
	<-src.entered

	assert.ErrorIs(t, store.Refresh(context.Background()), ErrRefreshInProgress)
	assert.False(t, store.RefreshAsync())

	close(src.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, src.callCount())
}

func TestLookupStore_AutoRefresh(t *testing.T) {
	src := &fakeSource{table: lookupTable(laneRec("Acme", 1000, 5))}
	store := NewLookupStore(src, nil, nil, quietLogger())

	store.StartAutoRefresh(10 * time.Millisecond)
	assert.Eventually(t, func() bool { return src.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	store.Stop()

	calls := src.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, src.callCount())
	assert.True(t, store.Loaded())
}

func TestLookupStore_RefreshAsync(t *testing.T) {
	src := &fakeSource{table: lookupTable(laneRec("Acme", 1000, 5))}
	store := NewLookupStore(src, nil, nil, quietLogger())

	assert.True(t, store.RefreshAsync())
	store.Stop()
	assert.True(t, store.Loaded())
}

func TestLookupStore_OnRefresh(t *testing.T) {
	src := &fakeSource{table: lookupTable(laneRec("Acme", 1000, 5), laneRec("Beta", 1100, 5))}
	store := NewLookupStore(src, nil, nil, quietLogger())

	type event struct {
		source  string
		records int
		err     error
	}
	var events []event
	store.OnRefresh(func(source string, records int, took time.Duration, err error) {
		events = append(events, event{source, records, err})
	})

	require.NoError(t, store.Refresh(context.Background()))
	src.err = errors.New("timeout")
	_ = store.Refresh(context.Background())

	require.Len(t, events, 2)
	assert.Equal(t, event{"fake", 2, nil}, events[0])
	assert.Equal(t, "fake", events[1].source)
	assert.EqualError(t, events[1].err, "timeout")
}
