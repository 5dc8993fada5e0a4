package job

import (
	"database/sql"
	"time"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
)

// Store handles persistence of jobs and job definitions. It runs against
// either a *sql.DB or a *sql.Tx; handlers are expected to pass their
// transaction so job mutations commit atomically with their side effects.
type Store struct {
	db db.DBTX
}

// NewStore creates a job store over the given connection or transaction.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{db: dbtx}
}

const jobSelectColumns = `id, job_definition_id, handler_type, configuration,
	due_date, retries, lock_owner, lock_expiration, tenant_id, created_at`

// Create inserts a new job.
func (s *Store) Create(j *Job) error {
	query := `
		INSERT INTO jobs (
			id, job_definition_id, handler_type, configuration,
			due_date, retries, lock_owner, lock_expiration, tenant_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	definitionID := sql.NullString{String: j.DefinitionID, Valid: j.DefinitionID != ""}
	configuration := sql.NullString{String: string(j.Configuration), Valid: len(j.Configuration) > 0}
	lockOwner := sql.NullString{String: j.LockOwner, Valid: j.LockOwner != ""}
	tenantID := sql.NullString{String: j.TenantID, Valid: j.TenantID != ""}

	_, err := s.db.Exec(query,
		j.ID,
		definitionID,
		j.HandlerType,
		configuration,
		nullableTime(j.DueDate),
		j.Retries,
		lockOwner,
		nullableTime(j.LockExpiration),
		tenantID,
		j.CreatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to create job")
	}

	return nil
}

// Get retrieves a job by ID.
func (s *Store) Get(id string) (*Job, error) {
	query := `SELECT ` + jobSelectColumns + ` FROM jobs WHERE id = ?`

	j, err := scanJob(s.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job")
	}

	return j, nil
}

// ListByDefinition returns all jobs bound to a job definition, oldest first.
func (s *Store) ListByDefinition(definitionID string) ([]*Job, error) {
	query := `SELECT ` + jobSelectColumns + `
		FROM jobs
		WHERE job_definition_id = ?
		ORDER BY created_at ASC`

	rows, err := s.db.Query(query, definitionID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list jobs by definition")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, j)
	}

	return jobs, rows.Err()
}

// CountByDefinition returns the number of jobs bound to a job definition.
// This count query is the batch completion signal: zero remaining
// execution jobs means the batch is done.
func (s *Store) CountByDefinition(definitionID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE job_definition_id = ?`, definitionID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count jobs by definition")
	}
	return count, nil
}

// Delete removes a job row.
func (s *Store) Delete(id string) error {
	result, err := s.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete job")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("job %s", id)
	}

	return nil
}

// DeleteByDefinition removes all jobs bound to a job definition. Used by
// batch deletion, where pending successor jobs must not survive the batch.
func (s *Store) DeleteByDefinition(definitionID string) error {
	_, err := s.db.Exec(`DELETE FROM jobs WHERE job_definition_id = ?`, definitionID)
	if err != nil {
		return errors.Wrap(err, "failed to delete jobs by definition")
	}
	return nil
}

// SetRetries updates a job's remaining retries. Raising retries on an
// incident-stalled job makes it acquirable again (operator retry).
func (s *Store) SetRetries(id string, retries int) error {
	if retries < 0 {
		return errors.InvalidParameterf("retries must be >= 0, got %d", retries)
	}

	result, err := s.db.Exec(`UPDATE jobs SET retries = ? WHERE id = ?`, retries, id)
	if err != nil {
		return errors.Wrap(err, "failed to set job retries")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.NewNotFoundError("job %s", id)
	}

	return nil
}

// AcquireDue claims the oldest due, unlocked job with retries remaining.
// Returns nil if no job is acquirable. The lock is a lease: a crashed
// owner's claim expires and the job becomes acquirable again.
func (s *Store) AcquireDue(owner string, now time.Time, lockDuration time.Duration) (*Job, error) {
	now = now.UTC()

	query := `SELECT ` + jobSelectColumns + `
		FROM jobs
		WHERE (due_date IS NULL OR due_date <= ?)
		  AND retries > 0
		  AND (lock_expiration IS NULL OR lock_expiration <= ?)
		ORDER BY due_date ASC
		LIMIT 1`

	j, err := scanJob(s.db.QueryRow(query, now, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find due job")
	}

	expiration := now.Add(lockDuration)
	result, err := s.db.Exec(`
		UPDATE jobs
		SET lock_owner = ?, lock_expiration = ?
		WHERE id = ? AND (lock_expiration IS NULL OR lock_expiration <= ?)`,
		owner, expiration, j.ID, now,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock job")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		// Lost the race to another owner.
		return nil, nil
	}

	j.LockOwner = owner
	j.LockExpiration = &expiration
	return j, nil
}

// Reschedule clears a job's lock and sets a new due date (retry backoff).
func (s *Store) Reschedule(id string, dueDate time.Time, retries int) error {
	_, err := s.db.Exec(`
		UPDATE jobs
		SET due_date = ?, retries = ?, lock_owner = NULL, lock_expiration = NULL
		WHERE id = ?`,
		dueDate.UTC(), retries, id,
	)
	if err != nil {
		return errors.Wrap(err, "failed to reschedule job")
	}
	return nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var definitionID, configuration, lockOwner, tenantID sql.NullString
	var dueDate, lockExpiration sql.NullTime

	err := row.Scan(
		&j.ID,
		&definitionID,
		&j.HandlerType,
		&configuration,
		&dueDate,
		&j.Retries,
		&lockOwner,
		&lockExpiration,
		&tenantID,
		&j.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if definitionID.Valid {
		j.DefinitionID = definitionID.String
	}
	if configuration.Valid {
		j.Configuration = []byte(configuration.String)
	}
	if lockOwner.Valid {
		j.LockOwner = lockOwner.String
	}
	if tenantID.Valid {
		j.TenantID = tenantID.String
	}
	if dueDate.Valid {
		j.DueDate = &dueDate.Time
	}
	if lockExpiration.Valid {
		j.LockExpiration = &lockExpiration.Time
	}

	return &j, nil
}
