package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/dashql/pkg/catalog"
)

// SaveSnapshot stores the schemas fetched from a source.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, source string, schemas []catalog.SchemaDescriptor) (*Snapshot, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}
	snap := &Snapshot{
		ID:        uuid.New().String(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	for _, schema := range schemas {
		snap.TableCount += len(schema.Tables)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, source_name, created_at, table_count) VALUES (?, ?, ?, ?)`,
		snap.ID, snap.Source, snap.CreatedAt, snap.TableCount,
	); err != nil {
		return nil, fmt.Errorf("insert snapshot for %s: %w", source, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_columns
		(snapshot_id, database_name, schema_name, table_index, table_name, column_index, column_name)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	tableIndex := 0
	for _, schema := range schemas {
		for _, table := range schema.Tables {
			// Tables without columns keep a placeholder row with a NULL name.
			if len(table.Columns) == 0 {
				if _, err := stmt.ExecContext(ctx, snap.ID, schema.DatabaseName, schema.SchemaName,
					tableIndex, table.TableName, 0, nil); err != nil {
					return nil, fmt.Errorf("insert table %s: %w", table.TableName, err)
				}
			}
			for i, col := range table.Columns {
				if _, err := stmt.ExecContext(ctx, snap.ID, schema.DatabaseName, schema.SchemaName,
					tableIndex, table.TableName, i, col.ColumnName); err != nil {
					return nil, fmt.Errorf("insert column %s.%s: %w", table.TableName, col.ColumnName, err)
				}
			}
			tableIndex++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	s.logger.Debug("snapshot saved", "source", source, "id", snap.ID, "tables", snap.TableCount)
	return snap, nil
}

// LatestSnapshot returns the newest snapshot of a source with its schemas.
// It returns nil without error when the source has no snapshot.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, source string) (*Snapshot, []catalog.SchemaDescriptor, error) {
	if s.db == nil {
		return nil, nil, ErrNotOpened
	}
	snap := &Snapshot{Source: source}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, table_count FROM snapshots
		WHERE source_name = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, source).Scan(&snap.ID, &snap.CreatedAt, &snap.TableCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get latest snapshot: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT database_name, schema_name, table_index, table_name, column_name
		FROM snapshot_columns
		WHERE snapshot_id = ?
		ORDER BY table_index, column_index
	`, snap.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("query snapshot columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		schemas   []catalog.SchemaDescriptor
		lastTable = -1
	)
	for rows.Next() {
		var (
			database, schema, table string
			tableIndex              int
			column                  sql.NullString
		)
		if err := rows.Scan(&database, &schema, &tableIndex, &table, &column); err != nil {
			return nil, nil, fmt.Errorf("scan column: %w", err)
		}
		n := len(schemas)
		if n == 0 || schemas[n-1].DatabaseName != database || schemas[n-1].SchemaName != schema {
			schemas = append(schemas, catalog.SchemaDescriptor{DatabaseName: database, SchemaName: schema})
			n++
		}
		sd := &schemas[n-1]
		if tableIndex != lastTable {
			sd.Tables = append(sd.Tables, catalog.TableDescriptor{TableName: table})
			lastTable = tableIndex
		}
		if column.Valid {
			t := &sd.Tables[len(sd.Tables)-1]
			t.Columns = append(t.Columns, catalog.ColumnDescriptor{ColumnName: column.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows error: %w", err)
	}
	return snap, schemas, nil
}

// PruneSnapshots keeps the newest keep snapshots of a source and returns
// the number of deleted ones.
func (s *SQLiteStore) PruneSnapshots(ctx context.Context, source string, keep int) (int64, error) {
	if s.db == nil {
		return 0, ErrNotOpened
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE source_name = ? AND id NOT IN (
			SELECT id FROM snapshots
			WHERE source_name = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		)
	`, source, source, keep)
	if err != nil {
		return 0, fmt.Errorf("delete old snapshots: %w", err)
	}
	return res.RowsAffected()
}

// RestoreCatalog adds one descriptor pool per source with a snapshot. Pools
// that already exist are replaced.
func (s *SQLiteStore) RestoreCatalog(ctx context.Context, cat *catalog.Catalog) (int, error) {
	sources, err := s.ListSources(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, src := range sources {
		snap, schemas, err := s.LatestSnapshot(ctx, src.Name)
		if err != nil {
			return restored, err
		}
		if snap == nil {
			continue
		}
		if err := cat.ReplaceDescriptorPool(src.ExternalID, src.Rank, schemas); err != nil {
			return restored, fmt.Errorf("restore %s: %w", src.Name, err)
		}
		restored++
	}
	s.logger.Debug("catalog restored", "pools", restored)
	return restored, nil
}

// ListSnapshots returns the snapshots of a source, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, source string) ([]Snapshot, error) {
	if s.db == nil {
		return nil, ErrNotOpened
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_name, created_at, table_count FROM snapshots
		WHERE source_name = ?
		ORDER BY created_at DESC, rowid DESC
	`, source)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.Source, &snap.CreatedAt, &snap.TableCount); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
