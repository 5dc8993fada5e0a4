package job

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
)

// IncidentStore handles persistence of incidents.
type IncidentStore struct {
	db db.DBTX
}

// NewIncidentStore creates an incident store over the given connection
// or transaction.
func NewIncidentStore(dbtx db.DBTX) *IncidentStore {
	return &IncidentStore{db: dbtx}
}

// Create records an incident for a job.
func (s *IncidentStore) Create(j *Job, incidentType, message string) (*Incident, error) {
	incident := &Incident{
		ID:           uuid.NewString(),
		JobID:        j.ID,
		DefinitionID: j.DefinitionID,
		Type:         incidentType,
		Message:      message,
		CreatedAt:    time.Now().UTC(),
	}

	query := `
		INSERT INTO incidents (id, job_id, job_definition_id, incident_type, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	definitionID := sql.NullString{String: incident.DefinitionID, Valid: incident.DefinitionID != ""}
	msg := sql.NullString{String: incident.Message, Valid: incident.Message != ""}

	_, err := s.db.Exec(query, incident.ID, incident.JobID, definitionID, incident.Type, msg, incident.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create incident")
	}

	return incident, nil
}

// ListByJob returns all incidents recorded for a job, oldest first.
func (s *IncidentStore) ListByJob(jobID string) ([]*Incident, error) {
	query := `SELECT id, job_id, job_definition_id, incident_type, message, created_at
		FROM incidents
		WHERE job_id = ?
		ORDER BY created_at ASC`

	rows, err := s.db.Query(query, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list incidents for job %s", jobID)
	}
	defer rows.Close()

	var incidents []*Incident
	for rows.Next() {
		var in Incident
		var definitionID, message sql.NullString
		if err := rows.Scan(&in.ID, &in.JobID, &definitionID, &in.Type, &message, &in.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan incident")
		}
		if definitionID.Valid {
			in.DefinitionID = definitionID.String
		}
		if message.Valid {
			in.Message = message.String
		}
		incidents = append(incidents, &in)
	}

	return incidents, rows.Err()
}

// DeleteByJob removes all incidents recorded for a job.
func (s *IncidentStore) DeleteByJob(jobID string) error {
	_, err := s.db.Exec(`DELETE FROM incidents WHERE job_id = ?`, jobID)
	if err != nil {
		return errors.Wrap(err, "failed to delete incidents by job")
	}
	return nil
}
