// Package drawabledb is the per-case drawables database: the set of files
// recognized as supported images or videos, the per-data-source build status,
// and the append-only result caches (EXIF, hash-set hits, tags).
package drawabledb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sleuthgo/galleryd/internal/datamodel"
)

// BuildStatus is the drawables build state for one data source.
type BuildStatus int

const (
	// StatusDefault means analysis has not started, or completed with files
	// whose type is still undetermined, so more drawables may surface.
	StatusDefault BuildStatus = iota
	// StatusInProgress means ingest is currently analyzing the data source.
	StatusInProgress
	// StatusComplete means analysis finished and every file has a
	// determined type.
	StatusComplete
)

func (s BuildStatus) String() string {
	switch s {
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusComplete:
		return "COMPLETE"
	default:
		return "DEFAULT"
	}
}

// ParseBuildStatus maps a stored status string back to a BuildStatus.
func ParseBuildStatus(s string) BuildStatus {
	switch s {
	case "IN_PROGRESS":
		return StatusInProgress
	case "COMPLETE":
		return StatusComplete
	default:
		return StatusDefault
	}
}

// DataSourceStatus is one data source's build state row.
type DataSourceStatus struct {
	DataSourceID int64
	Status       BuildStatus
	UpdatedAt    time.Time
}

// DB is the SQLite drawables database for one case.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the drawables database at dbPath.
func Open(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dbPath+sqliteDSNParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open drawables database: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate drawables database: %w", err)
	}
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS drawable_files (
			obj_id INTEGER PRIMARY KEY,
			data_source_id INTEGER NOT NULL,
			path TEXT NOT NULL,
			mime_type TEXT,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS datasource_status (
			data_source_id INTEGER PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'DEFAULT',
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS exif_cache (
			obj_id INTEGER PRIMARY KEY
		)`,

		`CREATE TABLE IF NOT EXISTS hashset_cache (
			obj_id INTEGER PRIMARY KEY
		)`,

		`CREATE TABLE IF NOT EXISTS tag_cache (
			obj_id INTEGER PRIMARY KEY
		)`,

		`CREATE INDEX IF NOT EXISTS idx_drawable_files_data_source ON drawable_files(data_source_id)`,
	}

	for _, migration := range migrations {
		if _, err := d.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// InsertOrUpdateFile records a file as drawable. Idempotent on object id.
func (d *DB) InsertOrUpdateFile(ctx context.Context, f datamodel.File) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO drawable_files (obj_id, data_source_id, path, mime_type, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(obj_id) DO UPDATE SET
			data_source_id = excluded.data_source_id,
			path = excluded.path,
			mime_type = excluded.mime_type,
			updated_at = excluded.updated_at`,
		f.ObjID, f.DataSourceID, f.Path, f.MIMEType, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert drawable file %d: %w", f.ObjID, err)
	}
	return nil
}

// RemoveFile deletes a drawable record, e.g. when a file turns out to be
// known after a hash-set hit.
func (d *DB) RemoveFile(ctx context.Context, objID int64) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM drawable_files WHERE obj_id = ?`, objID)
	if err != nil {
		return fmt.Errorf("failed to remove drawable file %d: %w", objID, err)
	}
	return nil
}

// IsInDB reports whether an object id has a drawable record.
func (d *DB) IsInDB(ctx context.Context, objID int64) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx,
		`SELECT 1 FROM drawable_files WHERE obj_id = ?`, objID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query drawable file %d: %w", objID, err)
	}
	return true, nil
}

// CountFiles returns the number of drawable records.
func (d *DB) CountFiles(ctx context.Context) (int, error) {
	var count int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drawable_files`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count drawable files: %w", err)
	}
	return count, nil
}

// InsertOrUpdateDataSource sets the build status for a data source.
func (d *DB) InsertOrUpdateDataSource(ctx context.Context, dataSourceID int64, status BuildStatus) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO datasource_status (data_source_id, status, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(data_source_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`,
		dataSourceID, status.String(), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set status for data source %d: %w", dataSourceID, err)
	}
	return nil
}

// DataSourceStatus returns the build status for a data source. Data sources
// with no row read as DEFAULT.
func (d *DB) DataSourceStatus(ctx context.Context, dataSourceID int64) (BuildStatus, error) {
	var status string
	err := d.db.QueryRowContext(ctx,
		`SELECT status FROM datasource_status WHERE data_source_id = ?`, dataSourceID).Scan(&status)
	if err == sql.ErrNoRows {
		return StatusDefault, nil
	}
	if err != nil {
		return StatusDefault, fmt.Errorf("failed to query status for data source %d: %w", dataSourceID, err)
	}
	return ParseBuildStatus(status), nil
}

// ListDataSourceStatuses returns all known data source build states.
func (d *DB) ListDataSourceStatuses(ctx context.Context) ([]DataSourceStatus, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT data_source_id, status, updated_at FROM datasource_status ORDER BY data_source_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data source statuses: %w", err)
	}
	defer rows.Close()

	var statuses []DataSourceStatus
	for rows.Next() {
		var st DataSourceStatus
		var status string
		var updatedAt int64
		if err := rows.Scan(&st.DataSourceID, &status, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan data source status: %w", err)
		}
		st.Status = ParseBuildStatus(status)
		st.UpdatedAt = time.Unix(updatedAt, 0)
		statuses = append(statuses, st)
	}
	return statuses, rows.Err()
}

// AddExifCache records that an object has EXIF metadata. Idempotent.
func (d *DB) AddExifCache(ctx context.Context, objID int64) error {
	return d.addCache(ctx, "exif_cache", objID)
}

// AddHashSetCache records that an object hit a hash set. Idempotent.
func (d *DB) AddHashSetCache(ctx context.Context, objID int64) error {
	return d.addCache(ctx, "hashset_cache", objID)
}

// AddTagCache records that an object has been tagged. Idempotent.
func (d *DB) AddTagCache(ctx context.Context, objID int64) error {
	return d.addCache(ctx, "tag_cache", objID)
}

func (d *DB) addCache(ctx context.Context, table string, objID int64) error {
	_, err := d.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR IGNORE INTO %s (obj_id) VALUES (?)`, table), objID)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

// InCache reports whether an object id is present in the named cache table.
// Exposed for tests and the rebuild path.
func (d *DB) InCache(ctx context.Context, table string, objID int64) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s WHERE obj_id = ?`, table), objID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return true, nil
}

// ClearFiles removes all drawable records, keeping caches and statuses.
// Used by a full rebuild before re-cataloging.
func (d *DB) ClearFiles(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM drawable_files`)
	if err != nil {
		return fmt.Errorf("failed to clear drawable files: %w", err)
	}
	return nil
}
