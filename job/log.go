package job

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
)

// Log entry states.
const (
	LogStateCreated = "created"
	LogStateSuccess = "success"
	LogStateFailed  = "failed"
)

// LogEntry is a historic record of a job execution event. Entries are
// keyed by job definition so a batch can purge the logs of all its jobs
// when it cascades its deletion into history.
type LogEntry struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	DefinitionID string    `json:"definition_id,omitempty"`
	HandlerType  string    `json:"handler_type"`
	State        string    `json:"state"`
	Message      string    `json:"message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LogStore handles persistence of historic job logs.
type LogStore struct {
	db db.DBTX
}

// NewLogStore creates a log store over the given connection or transaction.
func NewLogStore(dbtx db.DBTX) *LogStore {
	return &LogStore{db: dbtx}
}

// Append records a job execution event.
func (s *LogStore) Append(j *Job, state, message string) error {
	query := `
		INSERT INTO historic_job_logs (id, job_id, job_definition_id, handler_type, state, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		uuid.NewString(),
		j.ID,
		sql.NullString{String: j.DefinitionID, Valid: j.DefinitionID != ""},
		j.HandlerType,
		state,
		sql.NullString{String: message, Valid: message != ""},
		time.Now().UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to append job log")
	}

	return nil
}

// ListByJob returns all log entries for a job, oldest first.
func (s *LogStore) ListByJob(jobID string) ([]*LogEntry, error) {
	query := `SELECT id, job_id, job_definition_id, handler_type, state, message, created_at
		FROM historic_job_logs
		WHERE job_id = ?
		ORDER BY created_at ASC`

	rows, err := s.db.Query(query, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list job logs for job %s", jobID)
	}
	defer rows.Close()

	var entries []*LogEntry
	for rows.Next() {
		var e LogEntry
		var definitionID, message sql.NullString
		if err := rows.Scan(&e.ID, &e.JobID, &definitionID, &e.HandlerType, &e.State, &message, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan job log")
		}
		if definitionID.Valid {
			e.DefinitionID = definitionID.String
		}
		if message.Valid {
			e.Message = message.String
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// CountByDefinition returns the number of log entries for a job definition.
func (s *LogStore) CountByDefinition(definitionID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM historic_job_logs WHERE job_definition_id = ?`, definitionID).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count job logs")
	}
	return count, nil
}

// DeleteByDefinition purges all log entries for a job definition.
func (s *LogStore) DeleteByDefinition(definitionID string) error {
	_, err := s.db.Exec(`DELETE FROM historic_job_logs WHERE job_definition_id = ?`, definitionID)
	if err != nil {
		return errors.Wrap(err, "failed to delete job logs by definition")
	}
	return nil
}
