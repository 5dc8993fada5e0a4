package job

import (
	"database/sql"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
)

// DefinitionStore handles persistence of job definitions.
type DefinitionStore struct {
	db db.DBTX
}

// NewDefinitionStore creates a definition store over the given connection
// or transaction.
func NewDefinitionStore(dbtx db.DBTX) *DefinitionStore {
	return &DefinitionStore{db: dbtx}
}

// Create inserts a new job definition.
func (s *DefinitionStore) Create(d *Definition) error {
	query := `
		INSERT INTO job_definitions (id, handler_type, configuration, tenant_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	configuration := sql.NullString{String: d.Configuration, Valid: d.Configuration != ""}
	tenantID := sql.NullString{String: d.TenantID, Valid: d.TenantID != ""}

	_, err := s.db.Exec(query, d.ID, d.HandlerType, configuration, tenantID, d.CreatedAt.UTC())
	if err != nil {
		return errors.Wrap(err, "failed to create job definition")
	}

	return nil
}

// Get retrieves a job definition by ID.
func (s *DefinitionStore) Get(id string) (*Definition, error) {
	query := `SELECT id, handler_type, configuration, tenant_id, created_at
		FROM job_definitions WHERE id = ?`

	var d Definition
	var configuration, tenantID sql.NullString

	err := s.db.QueryRow(query, id).Scan(&d.ID, &d.HandlerType, &configuration, &tenantID, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("job definition %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get job definition")
	}

	if configuration.Valid {
		d.Configuration = configuration.String
	}
	if tenantID.Valid {
		d.TenantID = tenantID.String
	}

	return &d, nil
}

// Delete removes a job definition row.
func (s *DefinitionStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM job_definitions WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete job definition")
	}
	return nil
}
