package batch

import (
	"database/sql"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
)

// Store provides batch persistence. It operates on a db.DBTX so it can
// run standalone or inside a job handler's transaction.
type Store struct {
	db db.DBTX
}

// NewStore creates a batch store backed by the given database handle.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{db: dbtx}
}

const batchSelectColumns = `id, type, size, jobs_per_seed, invocations_per_job,
	seed_job_definition_id, monitor_job_definition_id, batch_job_definition_id,
	configuration, tenant_id, revision, created_at`

// Insert persists a new batch at revision 1.
func (s *Store) Insert(b *Batch) error {
	_, err := s.db.Exec(`
		INSERT INTO batches (id, type, size, jobs_per_seed, invocations_per_job,
			seed_job_definition_id, monitor_job_definition_id, batch_job_definition_id,
			configuration, tenant_id, revision, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Type, b.Size, b.JobsPerSeed, b.InvocationsPerJob,
		b.SeedJobDefinitionID, b.MonitorJobDefinitionID, b.BatchJobDefinitionID,
		b.Configuration, b.TenantID, b.Revision, b.CreatedAt.UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to insert batch %s", b.ID)
	}
	return nil
}

// Get retrieves a batch by id. A missing row yields ErrNotFound: the
// batch either never existed or has already completed and been removed.
func (s *Store) Get(id string) (*Batch, error) {
	row := s.db.QueryRow(`SELECT `+batchSelectColumns+` FROM batches WHERE id = ?`, id)

	b, err := scanBatch(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "batch %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get batch %s", id)
	}
	return b, nil
}

// List returns all live batches, oldest first.
func (s *Store) List() ([]*Batch, error) {
	rows, err := s.db.Query(`SELECT ` + batchSelectColumns + ` FROM batches ORDER BY created_at, id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list batches")
	}
	defer rows.Close()

	var batches []*Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan batch")
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Update persists the batch's mutable fields, guarded by its revision.
// A concurrent writer that bumped the revision first makes this update
// match zero rows, which surfaces as ErrConcurrentModification. On
// success the in-memory revision is advanced to match the row.
func (s *Store) Update(b *Batch) error {
	result, err := s.db.Exec(`
		UPDATE batches
		SET seed_job_definition_id = ?, monitor_job_definition_id = ?, batch_job_definition_id = ?,
			configuration = ?, revision = revision + 1
		WHERE id = ? AND revision = ?`,
		b.SeedJobDefinitionID, b.MonitorJobDefinitionID, b.BatchJobDefinitionID,
		b.Configuration, b.ID, b.Revision)
	if err != nil {
		return errors.Wrapf(err, "failed to update batch %s", b.ID)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to check update of batch %s", b.ID)
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrConcurrentModification, "batch %s at revision %d", b.ID, b.Revision)
	}

	b.Revision++
	return nil
}

// Delete removes the batch row and its inline configuration payload.
func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM batches WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete batch %s", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.Type, &b.Size, &b.JobsPerSeed, &b.InvocationsPerJob,
		&b.SeedJobDefinitionID, &b.MonitorJobDefinitionID, &b.BatchJobDefinitionID,
		&b.Configuration, &b.TenantID, &b.Revision, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
