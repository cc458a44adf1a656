package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"goldchecker/internal/backend"
	"goldchecker/internal/gold"
	"goldchecker/internal/storage"
)

// 10:00 in Dubai.
var fixedNow = time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchLive(ctx context.Context) (gold.Snapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(gold.Snapshot), args.Error(1)
}

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) TodayVsYesterday(ctx context.Context) (backend.Comparison, error) {
	args := m.Called(ctx)
	return args.Get(0).(backend.Comparison), args.Error(1)
}

func (m *MockBackend) Chart(ctx context.Context, q backend.ChartQuery) (backend.ChartData, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(backend.ChartData), args.Error(1)
}

func (m *MockBackend) PushRates(ctx context.Context, req backend.IngestRequest) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) UpsertSnapshot(ctx context.Context, snap gold.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}

func (m *MockArchive) LatestSnapshot(ctx context.Context) (gold.Snapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(gold.Snapshot), args.Error(1)
}

func (m *MockArchive) LatestBefore(ctx context.Context, businessDate string) (gold.Snapshot, error) {
	args := m.Called(ctx, businessDate)
	return args.Get(0).(gold.Snapshot), args.Error(1)
}

func (m *MockArchive) ListBetween(ctx context.Context, from, to string) ([]gold.Snapshot, error) {
	args := m.Called(ctx, from, to)
	snaps, _ := args.Get(0).([]gold.Snapshot)
	return snaps, args.Error(1)
}

// lockingArchive adds advisory locking to the archive mock.
type lockingArchive struct {
	*MockArchive
	acquired bool
	unlocked bool
}

func (l *lockingArchive) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	if !l.acquired {
		return nil, false, nil
	}
	return func() { l.unlocked = true }, true, nil
}

// auditingArchive records sync runs in memory.
type auditingArchive struct {
	*lockingArchive
	runs []storage.SyncRun
}

func (a *auditingArchive) InsertSyncRun(ctx context.Context, run storage.SyncRun) (storage.SyncRun, error) {
	run.ID = int64(len(a.runs) + 1)
	a.runs = append(a.runs, run)
	return run, nil
}

func (a *auditingArchive) ListRecentSyncRuns(ctx context.Context, limit int) ([]storage.SyncRun, error) {
	if limit > len(a.runs) {
		limit = len(a.runs)
	}
	return a.runs[len(a.runs)-limit:], nil
}

// inlineJobs runs submitted jobs synchronously so effects are observable.
type inlineJobs struct {
	mu    sync.Mutex
	names []string
	errs  []error
}

func (j *inlineJobs) Submit(job Job) bool {
	err := job.Run(context.Background())
	j.mu.Lock()
	defer j.mu.Unlock()
	j.names = append(j.names, job.Name)
	j.errs = append(j.errs, err)
	return true
}

func (j *inlineJobs) submitted(name string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := 0
	for _, s := range j.names {
		if s == name {
			n++
		}
	}
	return n
}

func snap24(t *testing.T, day, k24, source string) gold.Snapshot {
	t.Helper()
	d, err := time.ParseInLocation(gold.DateLayout, day, gold.Dubai())
	require.NoError(t, err)
	s, err := gold.NewSnapshot(d.Add(9*time.Hour), day, source, map[gold.Karat]decimal.Decimal{
		gold.K24: decimal.RequireFromString(k24),
	})
	require.NoError(t, err)
	return s
}

func dayRates(day string, k24 float64) *backend.DayRates {
	v := decimal.NewFromFloat(k24)
	return &backend.DayRates{Date: day, Source: gold.SourceDCOG, Rates: backend.Rates{K24: &v}}
}

func rate(s gold.Snapshot, k gold.Karat) decimal.Decimal {
	r, _ := s.Rate(k)
	return r
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
