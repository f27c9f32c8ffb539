package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"whisperqueue/internal/domain"
	"whisperqueue/internal/store"
)

// SQLStore is the gorm/SQLite-backed store.Store implementation used for
// local development and the test suite. It mirrors the connection
// tuning of the teacher's internal/database.Initialize, but pins the
// pool to a single connection: SQLite has no native in-transaction
// aggregate count, so serializing every writer onto one connection is
// what makes RunTransaction's count-then-claim sequence race-free
// (spec §4.2's "required guarantee" / §9's fallback for stores without
// native in-transaction aggregates).
type SQLStore struct {
	db *gorm.DB
}

// Open creates (or reuses) the SQLite database at path and migrates the
// whisper_jobs schema.
func Open(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_timeout=30000", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(&jobRow{}); err != nil {
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Seed inserts a job directly, bypassing any transition rules. Used by
// tests to stand in for the upstream writer of new jobs.
func (s *SQLStore) Seed(ctx context.Context, job domain.Job) error {
	row := jobToRow(job)
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *SQLStore) Get(ctx context.Context, jobID string) (domain.Job, error) {
	var row jobRow
	err := s.db.WithContext(ctx).First(&row, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Job{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Job{}, err
	}
	return rowToJob(row), nil
}

func (s *SQLStore) Update(ctx context.Context, jobID string, patch domain.Patch) error {
	updates := patchToUpdates(patch)
	res := s.db.WithContext(ctx).Model(&jobRow{}).Where("job_id = ?", jobID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLStore) CountByStatus(ctx context.Context, status domain.Status) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&jobRow{}).Where("status = ?", string(status)).Count(&count).Error
	return int(count), err
}

func (s *SQLStore) ListByStatus(ctx context.Context, status domain.Status, order store.ListOrder, limit int) ([]domain.Job, error) {
	q := s.db.WithContext(ctx).Where("status = ?", string(status)).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []jobRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	jobs := make([]domain.Job, len(rows))
	for i, r := range rows {
		jobs[i] = rowToJob(r)
	}
	return jobs, nil
}

func (s *SQLStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
			return fn(ctx, &sqlTx{db: gtx})
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if !isBusyErr(err) {
			return err
		}
	}
	return fmt.Errorf("sqlstore: transaction aborted after %d attempts: %w", maxAttempts, lastErr)
}

func isBusyErr(err error) bool {
	// SQLite reports contention as "database is locked"/"database table
	// is locked"; with MaxOpenConns(1) this should be rare (only cross
	// process contention), but the retry keeps the adapter's
	// contention-handling contract (spec §7) uniform with Firestore's.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

type sqlTx struct {
	db *gorm.DB
}

func (t *sqlTx) Get(ctx context.Context, jobID string) (domain.Job, error) {
	var row jobRow
	err := t.db.WithContext(ctx).First(&row, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Job{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Job{}, err
	}
	return rowToJob(row), nil
}

func (t *sqlTx) Update(ctx context.Context, jobID string, patch domain.Patch) error {
	updates := patchToUpdates(patch)
	res := t.db.WithContext(ctx).Model(&jobRow{}).Where("job_id = ?", jobID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *sqlTx) CountByStatus(ctx context.Context, status domain.Status) (int, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&jobRow{}).Where("status = ?", string(status)).Count(&count).Error
	return int(count), err
}

func (t *sqlTx) ListByStatus(ctx context.Context, status domain.Status, order store.ListOrder, limit int) ([]domain.Job, error) {
	q := t.db.WithContext(ctx).Where("status = ?", string(status)).Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []jobRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	jobs := make([]domain.Job, len(rows))
	for i, r := range rows {
		jobs[i] = rowToJob(r)
	}
	return jobs, nil
}

// patchToUpdates converts a domain.Patch into a gorm column map,
// stamping server-clock columns with the local wall clock (SQLite has
// no SERVER_TIMESTAMP equivalent; this backend approximates it, which is
// acceptable for the single-process dev/test profile it targets).
func patchToUpdates(patch domain.Patch) map[string]interface{} {
	now := time.Now().UTC()
	updates := map[string]interface{}{}

	if patch.Status != nil {
		updates["status"] = string(*patch.Status)
	}
	if patch.ErrorMessage != nil {
		updates["error_message"] = *patch.ErrorMessage
	}
	if patch.BatchHandle != nil {
		updates["batch_handle"] = *patch.BatchHandle
	}
	if patch.ProcessStartedAt {
		updates["process_started_at"] = now
	}
	if patch.ProcessEndedAt {
		updates["process_ended_at"] = now
	}
	if patch.TouchUpdatedAt || patch.ProcessStartedAt || patch.ProcessEndedAt || patch.Status != nil {
		updates["updated_at"] = now
	}
	return updates
}
