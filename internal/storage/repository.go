package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"goldchecker/internal/gold"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound indicates no archived snapshot matched.
	ErrNotFound = errors.New("storage: snapshot not found")
)

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS rate_snapshots (
        business_date DATE        NOT NULL,
        source        TEXT        NOT NULL,
        captured_at   TIMESTAMPTZ NOT NULL,
        rate_id       TEXT        NOT NULL DEFAULT '',
        k24           NUMERIC(14,6) NOT NULL,
        k22           NUMERIC(14,6) NOT NULL,
        k21           NUMERIC(14,6) NOT NULL,
        k20           NUMERIC(14,6) NOT NULL,
        k18           NUMERIC(14,6) NOT NULL,
        k14           NUMERIC(14,6) NOT NULL,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (business_date, source)
    );
    CREATE INDEX IF NOT EXISTS rate_snapshots_captured_at_idx ON rate_snapshots (captured_at DESC);
    CREATE TABLE IF NOT EXISTS sync_runs (
        id            BIGSERIAL   PRIMARY KEY,
        trigger       TEXT        NOT NULL,
        business_date DATE,
        status        TEXT        NOT NULL,
        error         TEXT,
        created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
    );`

	upsertSnapshotSQL = `INSERT INTO rate_snapshots (
        business_date,
        source,
        captured_at,
        rate_id,
        k24, k22, k21, k20, k18, k14
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (business_date, source) DO UPDATE
    SET
        captured_at = EXCLUDED.captured_at,
        rate_id     = EXCLUDED.rate_id,
        k24         = EXCLUDED.k24,
        k22         = EXCLUDED.k22,
        k21         = EXCLUDED.k21,
        k20         = EXCLUDED.k20,
        k18         = EXCLUDED.k18,
        k14         = EXCLUDED.k14
    WHERE rate_snapshots.captured_at <= EXCLUDED.captured_at;`

	snapshotColumns = `business_date, source, captured_at, rate_id,
        k24::text, k22::text, k21::text, k18::text, k14::text`

	latestSnapshotSQL = `SELECT ` + snapshotColumns + `
    FROM rate_snapshots
    ORDER BY business_date DESC, captured_at DESC
    LIMIT 1;`

	latestBeforeSQL = `SELECT ` + snapshotColumns + `
    FROM rate_snapshots
    WHERE business_date < $1
    ORDER BY business_date DESC, captured_at DESC
    LIMIT 1;`

	listBetweenSQL = `SELECT DISTINCT ON (business_date) ` + snapshotColumns + `
    FROM rate_snapshots
    WHERE business_date >= $1
      AND business_date <= $2
    ORDER BY business_date, captured_at DESC;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM rate_snapshots;`

	deleteSnapshotsBeforeSQL = `DELETE FROM rate_snapshots WHERE business_date < $1;`

	insertSyncRunSQL = `INSERT INTO sync_runs (
        trigger,
        business_date,
        status,
        error
    ) VALUES (
        $1,$2,$3,$4
    )
    RETURNING id, created_at;`

	listRecentSyncRunsSQL = `SELECT
        id,
        trigger,
        business_date,
        status,
        error,
        created_at
    FROM sync_runs
    ORDER BY created_at DESC, id DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore defines operations for the snapshot archive.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snap gold.Snapshot) error
	LatestSnapshot(ctx context.Context) (gold.Snapshot, error)
	LatestBefore(ctx context.Context, businessDate string) (gold.Snapshot, error)
	ListBetween(ctx context.Context, from, to string) ([]gold.Snapshot, error)
}

// SyncRunStore defines operations for sync auditing.
type SyncRunStore interface {
	InsertSyncRun(ctx context.Context, run SyncRun) (SyncRun, error)
	ListRecentSyncRuns(ctx context.Context, limit int) ([]SyncRun, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to archived snapshots and sync runs.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the archive tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// a failed unlock is released with the session when the conn is recycled
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertSnapshot archives a snapshot, keeping the latest capture per
// business date and source.
func (s *Store) UpsertSnapshot(ctx context.Context, snap gold.Snapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if snap.IsZero() {
		return fmt.Errorf("upsert snapshot: empty snapshot")
	}

	day, err := time.Parse(gold.DateLayout, snap.BusinessDate)
	if err != nil {
		return fmt.Errorf("upsert snapshot: business date %q: %w", snap.BusinessDate, err)
	}

	args := []any{day, snap.Source, snap.CapturedAt, snap.RateID}
	for _, k := range gold.Karats {
		r, _ := snap.Rate(k)
		args = append(args, r.String())
	}

	if _, execErr := pool.Exec(ctx, upsertSnapshotSQL, args...); execErr != nil {
		return fmt.Errorf("upsert snapshot: %w", execErr)
	}
	return nil
}

// LatestSnapshot returns the most recent archived snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (gold.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return gold.Snapshot{}, err
	}
	snap, err := scanSnapshot(pool.QueryRow(ctx, latestSnapshotSQL))
	if err != nil {
		return gold.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return snap, nil
}

// LatestBefore returns the most recent snapshot from a business date strictly
// earlier than businessDate.
func (s *Store) LatestBefore(ctx context.Context, businessDate string) (gold.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return gold.Snapshot{}, err
	}
	day, err := time.Parse(gold.DateLayout, businessDate)
	if err != nil {
		return gold.Snapshot{}, fmt.Errorf("latest before: business date %q: %w", businessDate, err)
	}
	snap, err := scanSnapshot(pool.QueryRow(ctx, latestBeforeSQL, day))
	if err != nil {
		return gold.Snapshot{}, fmt.Errorf("latest before %s: %w", businessDate, err)
	}
	return snap, nil
}

// ListBetween lists one snapshot per business date in [from, to], oldest first.
func (s *Store) ListBetween(ctx context.Context, from, to string) ([]gold.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	fromDay, err := time.Parse(gold.DateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("list between: from %q: %w", from, err)
	}
	toDay, err := time.Parse(gold.DateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("list between: to %q: %w", to, err)
	}

	rows, queryErr := pool.Query(ctx, listBetweenSQL, fromDay, toDay)
	if queryErr != nil {
		return nil, fmt.Errorf("list between: %w", queryErr)
	}
	defer rows.Close()

	snaps := make([]gold.Snapshot, 0)
	for rows.Next() {
		snap, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}

// CountSnapshots counts archived snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// DeleteSnapshotsBefore prunes snapshots older than businessDate.
func (s *Store) DeleteSnapshotsBefore(ctx context.Context, businessDate string) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	day, err := time.Parse(gold.DateLayout, businessDate)
	if err != nil {
		return 0, fmt.Errorf("delete snapshots before: business date %q: %w", businessDate, err)
	}
	tag, execErr := pool.Exec(ctx, deleteSnapshotsBeforeSQL, day)
	if execErr != nil {
		return 0, fmt.Errorf("delete snapshots before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

// InsertSyncRun records a sync attempt.
func (s *Store) InsertSyncRun(ctx context.Context, run SyncRun) (SyncRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return SyncRun{}, err
	}

	var day any
	if run.BusinessDate != "" {
		parsed, parseErr := time.Parse(gold.DateLayout, run.BusinessDate)
		if parseErr != nil {
			return SyncRun{}, fmt.Errorf("insert sync run: business date %q: %w", run.BusinessDate, parseErr)
		}
		day = parsed
	}

	var errMsg any
	if run.Error != nil {
		errMsg = *run.Error
	}

	if scanErr := pool.QueryRow(ctx, insertSyncRunSQL,
		run.Trigger,
		day,
		run.Status,
		errMsg,
	).Scan(&run.ID, &run.CreatedAt); scanErr != nil {
		return SyncRun{}, fmt.Errorf("insert sync run: %w", scanErr)
	}
	return run, nil
}

// ListRecentSyncRuns lists the most recent sync attempts.
func (s *Store) ListRecentSyncRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSyncRunsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent sync runs: %w", queryErr)
	}
	defer rows.Close()

	runs := make([]SyncRun, 0, limit)
	for rows.Next() {
		var (
			run    SyncRun
			day    sql.NullTime
			errMsg sql.NullString
		)
		if err := rows.Scan(
			&run.ID,
			&run.Trigger,
			&day,
			&run.Status,
			&errMsg,
			&run.CreatedAt,
		); err != nil {
			return nil, err
		}
		if day.Valid {
			run.BusinessDate = day.Time.Format(gold.DateLayout)
		}
		if errMsg.Valid {
			msg := errMsg.String
			run.Error = &msg
		}
		runs = append(runs, run)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return runs, nil
}

// scanSnapshot rebuilds a snapshot from a row. The stored 20K rate is not
// read back; it is derived again from 24K.
func scanSnapshot(row pgx.Row) (gold.Snapshot, error) {
	var (
		day        time.Time
		source     string
		capturedAt time.Time
		rateID     string
		raw        [5]string
	)
	if err := row.Scan(&day, &source, &capturedAt, &rateID, &raw[0], &raw[1], &raw[2], &raw[3], &raw[4]); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return gold.Snapshot{}, ErrNotFound
		}
		return gold.Snapshot{}, err
	}

	karats := []gold.Karat{gold.K24, gold.K22, gold.K21, gold.K18, gold.K14}
	rates := make(map[gold.Karat]decimal.Decimal, len(karats))
	for i, k := range karats {
		v, err := decimal.NewFromString(raw[i])
		if err != nil {
			return gold.Snapshot{}, fmt.Errorf("parse %s rate: %w", k, err)
		}
		rates[k] = v
	}

	snap, err := gold.NewSnapshot(capturedAt, day.Format(gold.DateLayout), source, rates)
	if err != nil {
		return gold.Snapshot{}, fmt.Errorf("archived snapshot %s: %w", day.Format(gold.DateLayout), err)
	}
	return snap.WithRateID(rateID), nil
}

var (
	_ SnapshotStore  = (*Store)(nil)
	_ SyncRunStore   = (*Store)(nil)
	_ AdvisoryLocker = (*Store)(nil)
)
