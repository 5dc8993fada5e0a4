package procdef

import (
	"database/sql"

	"github.com/teranos/cascade/db"
	"github.com/teranos/cascade/errors"
)

// Store persists process definitions and instances and applies
// suspension-state updates across the tenant-scope query vocabulary.
type Store struct {
	db db.DBTX
}

// NewStore creates a store backed by the given database handle.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{db: dbtx}
}

// CreateDefinition persists a process definition.
func (s *Store) CreateDefinition(d *ProcessDefinition) error {
	_, err := s.db.Exec(`
		INSERT INTO process_definitions (id, def_key, version, tenant_id, suspended)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Key, d.Version, d.TenantID, d.Suspended)
	if err != nil {
		return errors.Wrapf(err, "failed to create process definition %s", d.ID)
	}
	return nil
}

// GetDefinition retrieves a process definition by id.
func (s *Store) GetDefinition(id string) (*ProcessDefinition, error) {
	row := s.db.QueryRow(`SELECT id, def_key, version, tenant_id, suspended FROM process_definitions WHERE id = ?`, id)

	var d ProcessDefinition
	err := row.Scan(&d.ID, &d.Key, &d.Version, &d.TenantID, &d.Suspended)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "process definition %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get process definition %s", id)
	}
	return &d, nil
}

// ListDefinitionsByKey returns all definitions sharing the key under the
// tenant filter, ordered by tenant id.
func (s *Store) ListDefinitionsByKey(key string, tenants tenantFilter) ([]*ProcessDefinition, error) {
	query := `SELECT id, def_key, version, tenant_id, suspended FROM process_definitions WHERE def_key = ?`
	args := []any{key}
	if clause, clauseArgs := tenants.clause(); clause != "" {
		query += ` AND ` + clause
		args = append(args, clauseArgs...)
	}
	query += ` ORDER BY tenant_id, version`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list process definitions for key %s", key)
	}
	defer rows.Close()

	var definitions []*ProcessDefinition
	for rows.Next() {
		var d ProcessDefinition
		if err := rows.Scan(&d.ID, &d.Key, &d.Version, &d.TenantID, &d.Suspended); err != nil {
			return nil, errors.Wrap(err, "failed to scan process definition")
		}
		definitions = append(definitions, &d)
	}
	return definitions, rows.Err()
}

// SetDefinitionSuspendedByID updates the suspension state of a single
// definition.
func (s *Store) SetDefinitionSuspendedByID(id string, suspended bool) error {
	result, err := s.db.Exec(`UPDATE process_definitions SET suspended = ? WHERE id = ?`, suspended, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update suspension of process definition %s", id)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to check suspension update of process definition %s", id)
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "process definition %s", id)
	}
	return nil
}

// SetDefinitionSuspendedByKey updates the suspension state of every
// definition sharing the key under the tenant filter. Returns the number
// of definitions updated.
func (s *Store) SetDefinitionSuspendedByKey(key string, tenants tenantFilter, suspended bool) (int64, error) {
	query := `UPDATE process_definitions SET suspended = ? WHERE def_key = ?`
	args := []any{suspended, key}
	if clause, clauseArgs := tenants.clause(); clause != "" {
		query += ` AND ` + clause
		args = append(args, clauseArgs...)
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to update suspension of process definitions for key %s", key)
	}
	return result.RowsAffected()
}

// CountDefinitions returns how many definitions with the key are in the
// given suspension state, across all tenants.
func (s *Store) CountDefinitions(key string, suspended bool) (int, error) {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM process_definitions WHERE def_key = ? AND suspended = ?`, key, suspended)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, errors.Wrapf(err, "failed to count process definitions for key %s", key)
	}
	return count, nil
}

// CreateInstance persists a process instance.
func (s *Store) CreateInstance(i *ProcessInstance) error {
	_, err := s.db.Exec(`
		INSERT INTO process_instances (id, process_definition_id, def_key, tenant_id, suspended)
		VALUES (?, ?, ?, ?, ?)`,
		i.ID, i.DefinitionID, i.Key, i.TenantID, i.Suspended)
	if err != nil {
		return errors.Wrapf(err, "failed to create process instance %s", i.ID)
	}
	return nil
}

// GetInstance retrieves a process instance by id.
func (s *Store) GetInstance(id string) (*ProcessInstance, error) {
	row := s.db.QueryRow(`SELECT id, process_definition_id, def_key, tenant_id, suspended FROM process_instances WHERE id = ?`, id)

	var i ProcessInstance
	err := row.Scan(&i.ID, &i.DefinitionID, &i.Key, &i.TenantID, &i.Suspended)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "process instance %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get process instance %s", id)
	}
	return &i, nil
}

// SetInstancesSuspendedByDefinitionID updates the suspension state of
// all instances of one definition.
func (s *Store) SetInstancesSuspendedByDefinitionID(definitionID string, suspended bool) (int64, error) {
	result, err := s.db.Exec(`UPDATE process_instances SET suspended = ? WHERE process_definition_id = ?`,
		suspended, definitionID)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to update suspension of instances for definition %s", definitionID)
	}
	return result.RowsAffected()
}

// SetInstancesSuspendedByKey updates the suspension state of every
// instance whose definition key matches, under the tenant filter.
func (s *Store) SetInstancesSuspendedByKey(key string, tenants tenantFilter, suspended bool) (int64, error) {
	query := `UPDATE process_instances SET suspended = ? WHERE def_key = ?`
	args := []any{suspended, key}
	if clause, clauseArgs := tenants.clause(); clause != "" {
		query += ` AND ` + clause
		args = append(args, clauseArgs...)
	}

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to update suspension of instances for key %s", key)
	}
	return result.RowsAffected()
}

// SetInstanceSuspendedByID updates the suspension state of one instance.
func (s *Store) SetInstanceSuspendedByID(id string, suspended bool) error {
	_, err := s.db.Exec(`UPDATE process_instances SET suspended = ? WHERE id = ?`, suspended, id)
	if err != nil {
		return errors.Wrapf(err, "failed to update suspension of process instance %s", id)
	}
	return nil
}

// CountInstances returns how many instances with the key are in the
// given suspension state, across all tenants.
func (s *Store) CountInstances(key string, suspended bool) (int, error) {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM process_instances WHERE def_key = ? AND suspended = ?`, key, suspended)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, errors.Wrapf(err, "failed to count process instances for key %s", key)
	}
	return count, nil
}
