package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Revision cache operations

// PutCacheEntry memoizes a lag resolution. Writes use INSERT OR IGNORE, so
// the first entry under a key wins and concurrent workers never clobber
// each other.
func (s *Store) PutCacheEntry(e *CacheEntry) error {
	query := `
		INSERT OR IGNORE INTO revision_cache
		(package, installed_version, catalog_head, lag_offset, schema_version,
		 version_label, revision_handle, definition_path, commit_time, shallow)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		e.Package,
		e.InstalledVersion,
		e.CatalogHead,
		e.LagOffset,
		e.SchemaVersion,
		e.VersionLabel,
		e.RevisionHandle,
		e.DefinitionPath,
		e.CommitTime,
		e.Shallow,
	)

	if err != nil {
		return fmt.Errorf("failed to cache resolution for %s: %w", e.Package, err)
	}

	return nil
}

// GetCacheEntry looks up a memoized resolution by its full key.
// Returns nil when no entry matches; a miss is not an error.
func (s *Store) GetCacheEntry(pkg, installedVersion, catalogHead string, lagOffset, schemaVersion int) (*CacheEntry, error) {
	query := `
		SELECT package, installed_version, catalog_head, lag_offset, schema_version,
		       version_label, revision_handle, definition_path, commit_time, shallow
		FROM revision_cache
		WHERE package = ? AND installed_version = ? AND catalog_head = ?
		  AND lag_offset = ? AND schema_version = ?
	`

	var e CacheEntry
	err := s.db.QueryRow(query, pkg, installedVersion, catalogHead, lagOffset, schemaVersion).Scan(
		&e.Package,
		&e.InstalledVersion,
		&e.CatalogHead,
		&e.LagOffset,
		&e.SchemaVersion,
		&e.VersionLabel,
		&e.RevisionHandle,
		&e.DefinitionPath,
		&e.CommitTime,
		&e.Shallow,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached resolution for %s: %w", pkg, err)
	}

	return &e, nil
}

// CacheCount returns the number of memoized resolutions.
func (s *Store) CacheCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM revision_cache").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return count, nil
}

// Exception operations

// AddException excludes a package from lag control. Returns false when the
// package was already excepted.
func (s *Store) AddException(name string) (bool, error) {
	query := `INSERT OR IGNORE INTO exceptions (name, added_at) VALUES (?, ?)`

	result, err := s.db.Exec(query, name, time.Now().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("failed to add exception %s: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// RemoveException puts a package back under lag control. Returns false when
// the package was not excepted.
func (s *Store) RemoveException(name string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM exceptions WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("failed to remove exception %s: %w", name, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows > 0, nil
}

// ListExceptions returns all excepted packages ordered by name.
func (s *Store) ListExceptions() ([]*Exception, error) {
	rows, err := s.db.Query(`SELECT name, added_at FROM exceptions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list exceptions: %w", err)
	}
	defer rows.Close()

	var exceptions []*Exception
	for rows.Next() {
		var e Exception
		var addedAt string

		if err := rows.Scan(&e.Name, &addedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exception row: %w", err)
		}

		e.AddedAt, err = time.Parse(time.RFC3339, addedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse added_at for %s: %w", e.Name, err)
		}

		exceptions = append(exceptions, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating exceptions: %w", err)
	}

	return exceptions, nil
}

// ExceptionNames returns the excepted packages as a lookup set.
func (s *Store) ExceptionNames() (map[string]bool, error) {
	exceptions, err := s.ListExceptions()
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(exceptions))
	for _, e := range exceptions {
		names[e.Name] = true
	}
	return names, nil
}

// Resolution snapshot operations

// ReplaceResolvedEntries atomically swaps the resolution snapshot for the
// given entries. Every plan run rebuilds the snapshot wholesale.
func (s *Store) ReplaceResolvedEntries(entries []*ResolvedEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot swap: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM resolved_entries`); err != nil {
		return fmt.Errorf("failed to clear resolution snapshot: %w", err)
	}

	query := `
		INSERT INTO resolved_entries
		(package, installed_version, version_label, revision_handle, definition_path, final_time, moved)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range entries {
		_, err := tx.Exec(query,
			e.Package,
			e.InstalledVersion,
			e.VersionLabel,
			e.RevisionHandle,
			e.DefinitionPath,
			e.FinalTime,
			e.Moved,
		)
		if err != nil {
			return fmt.Errorf("failed to insert resolved entry %s: %w", e.Package, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit resolution snapshot: %w", err)
	}

	return nil
}

// GetResolvedEntry retrieves one snapshot row by package name.
// Returns nil when the package is not in the snapshot.
func (s *Store) GetResolvedEntry(pkg string) (*ResolvedEntry, error) {
	query := `
		SELECT package, installed_version, version_label, revision_handle, definition_path, final_time, moved
		FROM resolved_entries
		WHERE package = ?
	`

	var e ResolvedEntry
	err := s.db.QueryRow(query, pkg).Scan(
		&e.Package,
		&e.InstalledVersion,
		&e.VersionLabel,
		&e.RevisionHandle,
		&e.DefinitionPath,
		&e.FinalTime,
		&e.Moved,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resolved entry %s: %w", pkg, err)
	}

	return &e, nil
}

// ListResolvedEntries returns the full resolution snapshot ordered by name.
func (s *Store) ListResolvedEntries() ([]*ResolvedEntry, error) {
	query := `
		SELECT package, installed_version, version_label, revision_handle, definition_path, final_time, moved
		FROM resolved_entries
		ORDER BY package
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved entries: %w", err)
	}
	defer rows.Close()

	var entries []*ResolvedEntry
	for rows.Next() {
		var e ResolvedEntry

		err := rows.Scan(
			&e.Package,
			&e.InstalledVersion,
			&e.VersionLabel,
			&e.RevisionHandle,
			&e.DefinitionPath,
			&e.FinalTime,
			&e.Moved,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolved entry row: %w", err)
		}

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resolved entries: %w", err)
	}

	return entries, nil
}

// ResolvedCount returns the number of packages in the resolution snapshot.
func (s *Store) ResolvedCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM resolved_entries").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count resolved entries: %w", err)
	}
	return count, nil
}

// Change set operations

// ReplaceChangeSet atomically swaps the stored change set. Positions are
// assigned from slice order.
func (s *Store) ReplaceChangeSet(changes []*Change) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin change set swap: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM change_set`); err != nil {
		return fmt.Errorf("failed to clear change set: %w", err)
	}

	query := `
		INSERT INTO change_set
		(position, package, action, target_label, revision_handle, definition_path)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for i, c := range changes {
		_, err := tx.Exec(query,
			i,
			c.Package,
			string(c.Action),
			c.TargetLabel,
			c.RevisionHandle,
			c.DefinitionPath,
		)
		if err != nil {
			return fmt.Errorf("failed to insert change for %s: %w", c.Package, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit change set: %w", err)
	}

	return nil
}

// ListChangeSet returns the stored change set in replay order.
func (s *Store) ListChangeSet() ([]*Change, error) {
	query := `
		SELECT position, package, action, target_label, revision_handle, definition_path
		FROM change_set
		ORDER BY position
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list change set: %w", err)
	}
	defer rows.Close()

	var changes []*Change
	for rows.Next() {
		var c Change
		var action string

		err := rows.Scan(
			&c.Position,
			&c.Package,
			&action,
			&c.TargetLabel,
			&c.RevisionHandle,
			&c.DefinitionPath,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change row: %w", err)
		}

		c.Action = Action(action)
		changes = append(changes, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change set: %w", err)
	}

	return changes, nil
}

// DeleteChangeSet drops the stored change set. Apply calls this after a
// pass whether or not every change succeeded; a change set is consumed
// exactly once.
func (s *Store) DeleteChangeSet() error {
	if _, err := s.db.Exec(`DELETE FROM change_set`); err != nil {
		return fmt.Errorf("failed to delete change set: %w", err)
	}
	return nil
}

// ChangeCount returns the number of queued changes.
func (s *Store) ChangeCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM change_set").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count changes: %w", err)
	}
	return count, nil
}

// Plan metadata operations

// PutPlanMeta records the context of the plan that was just compiled,
// replacing any previous record.
func (s *Store) PutPlanMeta(m *PlanMeta) error {
	query := `
		INSERT OR REPLACE INTO plan_meta (id, catalog_head, lag_offset, created_at, stale)
		VALUES (1, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		m.CatalogHead,
		m.LagOffset,
		m.CreatedAt.Format(time.RFC3339),
		m.Stale,
	)
	if err != nil {
		return fmt.Errorf("failed to put plan metadata: %w", err)
	}

	return nil
}

// GetPlanMeta returns the stored plan context, or nil when no plan has been
// compiled yet.
func (s *Store) GetPlanMeta() (*PlanMeta, error) {
	query := `SELECT catalog_head, lag_offset, created_at, stale FROM plan_meta WHERE id = 1`

	var m PlanMeta
	var createdAt string

	err := s.db.QueryRow(query).Scan(&m.CatalogHead, &m.LagOffset, &createdAt, &m.Stale)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan metadata: %w", err)
	}

	m.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan created_at: %w", err)
	}

	return &m, nil
}

// MarkPlanStale flags the stored plan as compiled against an outdated
// catalog. The watch daemon calls this when the tap head moves.
func (s *Store) MarkPlanStale() error {
	if _, err := s.db.Exec(`UPDATE plan_meta SET stale = 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("failed to mark plan stale: %w", err)
	}
	return nil
}
