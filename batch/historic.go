package batch

import (
	"database/sql"
	"time"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
)

// HistoricBatch is the audit record of a batch. It is created together
// with the batch and outlives it unless removal cascades to history.
type HistoricBatch struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Size      int        `json:"size"`
	TenantID  string     `json:"tenant_id,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"` // nil while the batch is live
}

// HistoricStore persists historic batch records.
type HistoricStore struct {
	db db.DBTX
}

// NewHistoricStore creates a historic batch store backed by the given
// database handle.
func NewHistoricStore(dbtx db.DBTX) *HistoricStore {
	return &HistoricStore{db: dbtx}
}

// Insert records the start of a batch.
func (s *HistoricStore) Insert(b *Batch, startTime time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO historic_batches (id, type, size, tenant_id, start_time)
		VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.Type, b.Size, b.TenantID, startTime.UTC())
	if err != nil {
		return errors.Wrapf(err, "failed to insert historic batch %s", b.ID)
	}
	return nil
}

// Get retrieves a historic batch record by batch id.
func (s *HistoricStore) Get(id string) (*HistoricBatch, error) {
	row := s.db.QueryRow(`SELECT id, type, size, tenant_id, start_time, end_time FROM historic_batches WHERE id = ?`, id)

	var h HistoricBatch
	var endTime sql.NullTime
	err := row.Scan(&h.ID, &h.Type, &h.Size, &h.TenantID, &h.StartTime, &endTime)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "historic batch %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get historic batch %s", id)
	}
	if endTime.Valid {
		t := endTime.Time
		h.EndTime = &t
	}
	return &h, nil
}

// Complete closes the historic record with the given end time. Closing a
// record that does not exist is a no-op so finalization stays safe after
// a cascading removal.
func (s *HistoricStore) Complete(id string, endTime time.Time) error {
	_, err := s.db.Exec(`UPDATE historic_batches SET end_time = ? WHERE id = ?`, endTime.UTC(), id)
	if err != nil {
		return errors.Wrapf(err, "failed to complete historic batch %s", id)
	}
	return nil
}

// Delete removes the historic record.
func (s *HistoricStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM historic_batches WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "failed to delete historic batch %s", id)
	}
	return nil
}
