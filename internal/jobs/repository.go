// inputs: job table rows, handlers map
// outputs: job status updates, dead-letter moves on permanent failure
// error modes: db errors, handler errors
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/VYBRANDMEDIA/nannygo/internal/db"
)

type Repository struct {
	db *db.DB
}

func NewRepository(d *db.DB) *Repository { return &Repository{db: d} }

const jobColumns = `id, type, payload, status, attempts, max_attempts, priority, scheduled_at, next_try_at, last_error, created, updated`

// Enqueue inserts a job into the jobs table and returns the new ID
func (r *Repository) Enqueue(ctx context.Context, j *Job) (int64, error) {
	if j.MaxAttempts == 0 {
		j.MaxAttempts = 5
	}
	if j.ScheduledAt.IsZero() {
		j.ScheduledAt = time.Now()
	}
	now := time.Now().UTC().UnixMilli()
	q := `INSERT INTO jobs(type, payload, status, attempts, max_attempts, priority, scheduled_at, created, updated) VALUES(?,?,?,?,?,?,?,?,?) RETURNING id`
	var id int64
	err := r.db.QueryRow(ctx, q, j.Type, string(j.Payload), StatusQueued, j.Attempts, j.MaxAttempts, j.Priority, j.ScheduledAt.UTC().UnixMilli(), now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueue failed: %w", err)
	}
	return id, nil
}

// ClaimNext picks the next due job by priority and schedule and marks it
// running. The claim is a conditional update, so a job picked by two workers
// is only returned to one of them; the loser gets (nil, nil).
func (r *Repository) ClaimNext(ctx context.Context) (*Job, error) {
	now := time.Now().UTC().UnixMilli()
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN ('queued', 'retry') AND (next_try_at IS NULL OR next_try_at <= ?) AND scheduled_at <= ? ORDER BY priority ASC, scheduled_at ASC, id ASC LIMIT 1`
	j, err := scanJob(r.db.QueryRow(ctx, q, now, now))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch next job: %w", err)
	}

	res, err := r.db.Exec(ctx, `UPDATE jobs SET status = ?, updated = ? WHERE id = ? AND status IN ('queued', 'retry')`, StatusRunning, now, j.ID)
	if err != nil {
		return nil, fmt.Errorf("claim job %d: %w", j.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return nil, err
	}
	j.Status = StatusRunning
	return j, nil
}

// Get returns a job by id, or (nil, nil).
func (r *Repository) Get(ctx context.Context, id int64) (*Job, error) {
	j, err := scanJob(r.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

func scanJob(row *sql.Row) (*Job, error) {
	var (
		j           Job
		payload     sql.NullString
		scheduledAt int64
		nextTry     sql.NullInt64
		lastError   sql.NullString
		created     int64
		updated     int64
	)
	if err := row.Scan(&j.ID, &j.Type, &payload, &j.Status, &j.Attempts, &j.MaxAttempts, &j.Priority, &scheduledAt, &nextTry, &lastError, &created, &updated); err != nil {
		return nil, err
	}
	j.ScheduledAt = time.UnixMilli(scheduledAt).UTC()
	j.Created = time.UnixMilli(created).UTC()
	j.Updated = time.UnixMilli(updated).UTC()
	if payload.Valid {
		j.Payload = json.RawMessage(payload.String)
	}
	if nextTry.Valid {
		t := time.UnixMilli(nextTry.Int64).UTC()
		j.NextTryAt = &t
	}
	if lastError.Valid {
		j.LastError = lastError.String
	}
	return &j, nil
}

// UpdateJob updates attempts, status, next_try_at, last_error
func (r *Repository) UpdateJob(ctx context.Context, j *Job) error {
	var nextTry any
	if j.NextTryAt != nil {
		nextTry = j.NextTryAt.UTC().UnixMilli()
	}
	q := `UPDATE jobs SET status = ?, attempts = ?, next_try_at = ?, last_error = ?, updated = ? WHERE id = ?`
	_, err := r.db.Exec(ctx, q, j.Status, j.Attempts, nextTry, j.LastError, time.Now().UTC().UnixMilli(), j.ID)
	return err
}

// MoveToDeadLetter moves a job to dead_letter_jobs and deletes the original
func (r *Repository) MoveToDeadLetter(ctx context.Context, j *Job) error {
	tx, err := r.db.GetConn().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	insert := r.db.Rebind(`INSERT INTO dead_letter_jobs(job_id, type, payload, attempts, last_error, failed_at) VALUES(?,?,?,?,?,?)`)
	if _, err := tx.ExecContext(ctx, insert, j.ID, j.Type, string(j.Payload), j.Attempts, j.LastError, time.Now().UTC().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM jobs WHERE id = ?`), j.ID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CountDeadLetters returns the number of dead-lettered jobs of a type.
func (r *Repository) CountDeadLetters(ctx context.Context, typ string) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM dead_letter_jobs WHERE type = ?`, typ).Scan(&n)
	return n, err
}
