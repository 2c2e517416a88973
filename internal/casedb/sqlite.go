// Package casedb is the case service: it stores case metadata, the file
// catalog, data sources and tags in a per-case SQLite database, and owns the
// process-wide current case.
package casedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sleuthgo/galleryd/internal/datamodel"
)

// Store is the SQLite storage for one case.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the case database at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dbPath+sqliteDSNParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open case database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate case database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS case_info (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			directory TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS data_sources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			path TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS files (
			obj_id INTEGER PRIMARY KEY AUTOINCREMENT,
			data_source_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			path TEXT NOT NULL,
			mime_type TEXT,
			size INTEGER NOT NULL DEFAULT 0,
			known TEXT NOT NULL DEFAULT 'unknown',
			is_dir INTEGER NOT NULL DEFAULT 0,
			sha256 TEXT,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (data_source_id) REFERENCES data_sources(id)
		)`,

		`CREATE TABLE IF NOT EXISTS tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			obj_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (obj_id) REFERENCES files(obj_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_files_data_source ON files(data_source_id)`,
		`CREATE INDEX IF NOT EXISTS idx_files_mime_type ON files(mime_type)`,
		`CREATE INDEX IF NOT EXISTS idx_files_path ON files(path)`,
		`CREATE INDEX IF NOT EXISTS idx_tags_obj_id ON tags(obj_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

// SaveCaseInfo records the case identity row. Idempotent on case ID.
func (s *Store) SaveCaseInfo(ctx context.Context, c *datamodel.Case) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO case_info (id, name, directory, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, directory = excluded.directory`,
		c.ID, c.Name, c.Directory, c.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save case info: %w", err)
	}
	return nil
}

// CaseInfo loads the case identity row, if present.
func (s *Store) CaseInfo(ctx context.Context) (*datamodel.Case, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, directory, created_at FROM case_info LIMIT 1`)
	var c datamodel.Case
	var createdAt int64
	if err := row.Scan(&c.ID, &c.Name, &c.Directory, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("case database has no case info row")
		}
		return nil, fmt.Errorf("failed to load case info: %w", err)
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	return &c, nil
}

// AddDataSource registers a data source and returns it with its assigned id.
func (s *Store) AddDataSource(ctx context.Context, caseID, name, path string) (datamodel.DataSource, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO data_sources (name, path) VALUES (?, ?)`, name, path)
	if err != nil {
		return datamodel.DataSource{}, fmt.Errorf("failed to add data source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return datamodel.DataSource{}, fmt.Errorf("failed to get data source id: %w", err)
	}
	return datamodel.DataSource{ID: id, CaseID: caseID, Name: name, Path: path}, nil
}

// ListDataSources returns all data sources in the case.
func (s *Store) ListDataSources(ctx context.Context) ([]datamodel.DataSource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, path FROM data_sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	defer rows.Close()

	var sources []datamodel.DataSource
	for rows.Next() {
		var ds datamodel.DataSource
		if err := rows.Scan(&ds.ID, &ds.Name, &ds.Path); err != nil {
			return nil, fmt.Errorf("failed to scan data source: %w", err)
		}
		sources = append(sources, ds)
	}
	return sources, rows.Err()
}

// AddFile catalogs one file and returns it with its assigned object id.
func (s *Store) AddFile(ctx context.Context, f datamodel.File) (datamodel.File, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files (data_source_id, name, path, mime_type, size, known, is_dir, sha256, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.DataSourceID, f.Name, f.Path, f.MIMEType, f.Size, f.Known.String(), boolToInt(f.IsDir), f.SHA256, time.Now().Unix())
	if err != nil {
		return datamodel.File{}, fmt.Errorf("failed to add file %s: %w", f.Path, err)
	}
	objID, err := res.LastInsertId()
	if err != nil {
		return datamodel.File{}, fmt.Errorf("failed to get file object id: %w", err)
	}
	f.ObjID = objID
	return f, nil
}

// FileByObjID loads one cataloged file.
func (s *Store) FileByObjID(ctx context.Context, objID int64) (datamodel.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT obj_id, data_source_id, name, path, COALESCE(mime_type, ''), size, known, is_dir, COALESCE(sha256, '')
		 FROM files WHERE obj_id = ?`, objID)
	return scanFile(row)
}

// FileByPath loads one cataloged file by its path within a data source.
func (s *Store) FileByPath(ctx context.Context, dataSourceID int64, path string) (datamodel.File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT obj_id, data_source_id, name, path, COALESCE(mime_type, ''), size, known, is_dir, COALESCE(sha256, '')
		 FROM files WHERE data_source_id = ? AND path = ?`, dataSourceID, path)
	return scanFile(row)
}

// FilesByDataSource returns all non-directory files cataloged for a data source.
func (s *Store) FilesByDataSource(ctx context.Context, dataSourceID int64) ([]datamodel.File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT obj_id, data_source_id, name, path, COALESCE(mime_type, ''), size, known, is_dir, COALESCE(sha256, '')
		 FROM files WHERE data_source_id = ? AND is_dir = 0 ORDER BY obj_id`, dataSourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	var files []datamodel.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// HasFilesWithNoMimeType reports whether the data source still has files
// whose type detection has not run. Used to decide whether a completed
// ingest job leaves the drawables database COMPLETE or DEFAULT.
func (s *Store) HasFilesWithNoMimeType(ctx context.Context, dataSourceID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files
		 WHERE data_source_id = ? AND is_dir = 0 AND (mime_type IS NULL OR mime_type = '')`,
		dataSourceID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count files with no mime type: %w", err)
	}
	return count > 0, nil
}

// AddTag records a tag on a file object.
func (s *Store) AddTag(ctx context.Context, tag datamodel.Tag) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tags (obj_id, name, created_at) VALUES (?, ?, ?)`,
		tag.ObjID, tag.Name, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to add tag %s on object %d: %w", tag.Name, tag.ObjID, err)
	}
	return nil
}

// DeleteTag removes a tag from a file object.
func (s *Store) DeleteTag(ctx context.Context, tag datamodel.Tag) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM tags WHERE obj_id = ? AND name = ?`, tag.ObjID, tag.Name)
	if err != nil {
		return fmt.Errorf("failed to delete tag %s on object %d: %w", tag.Name, tag.ObjID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFile(row rowScanner) (datamodel.File, error) {
	var f datamodel.File
	var known string
	var isDir int
	if err := row.Scan(&f.ObjID, &f.DataSourceID, &f.Name, &f.Path, &f.MIMEType, &f.Size, &known, &isDir, &f.SHA256); err != nil {
		return datamodel.File{}, fmt.Errorf("failed to scan file row: %w", err)
	}
	f.Known = datamodel.ParseKnownStatus(known)
	f.IsDir = isDir != 0
	return f, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
