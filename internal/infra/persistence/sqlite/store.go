// Package sqlite provides a durable document store on a single SQLite file.
// Live documents live in one table; each kind has a companion
// {kind}_revisions table whose (document_id, revision) primary key is the
// concurrent-update control.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite3 "modernc.org/sqlite"

	"samplecore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.Store         = (*Store)(nil)
	_ domain.PrimaryStore  = (*Store)(nil)
	_ domain.RevisionStore = (*Store)(nil)
)

// SQLite extended result codes for primary-key and unique violations.
const (
	codeConstraintPrimaryKey = 1555
	codeConstraintUnique     = 2067
)

// Store is a SQLite-backed primary and revision store.
type Store struct {
	db    *sql.DB
	path  string
	nowFn func() time.Time
}

// NewStore opens (creating if needed) the database at path and applies the
// schema.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "samplecore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The revision-append conflict check relies on immediate constraint
	// enforcement; a single writer connection keeps SQLITE_BUSY out of the
	// mutation path.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, path: path, nowFn: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := []string{`CREATE TABLE IF NOT EXISTS documents (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		revision INTEGER NOT NULL,
		fields BLOB NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	)`}
	for _, kind := range domain.Kinds() {
		ddl = append(ddl, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		document_id TEXT NOT NULL,
		revision INTEGER NOT NULL,
		fields BLOB NOT NULL,
		recorded_at TEXT NOT NULL,
		PRIMARY KEY (document_id, revision)
	)`, revisionTable(kind)))
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// revisionTable names the revision log table for a kind, by convention
// {kind}_revisions.
func revisionTable(kind domain.Kind) string {
	return string(kind) + "_revisions"
}

// Primary returns the live-document store.
func (s *Store) Primary() domain.PrimaryStore { return s }

// Revisions returns the revision log.
func (s *Store) Revisions() domain.RevisionStore { return s }

// DB exposes the underlying handle for integration tests.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the live document for the id.
func (s *Store) Get(ctx context.Context, kind domain.Kind, id string) (domain.Document, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT revision, fields, created_at, updated_at FROM documents WHERE kind = ? AND id = ?`, kind, id)
	doc, err := scanDocument(row, kind, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, false, nil
	}
	if err != nil {
		return domain.Document{}, false, domain.StorageError{Op: "get", Err: err}
	}
	return doc, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner, kind domain.Kind, id string) (domain.Document, error) {
	var (
		revision             int
		payload              []byte
		createdAt, updatedAt string
	)
	if err := row.Scan(&revision, &payload, &createdAt, &updatedAt); err != nil {
		return domain.Document{}, err
	}
	var fields domain.Fields
	if err := json.Unmarshal(payload, &fields); err != nil {
		return domain.Document{}, fmt.Errorf("decode fields: %w", err)
	}
	doc := domain.Document{ID: id, Kind: kind, Revision: revision, Fields: fields}
	doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return doc, nil
}

// Put inserts or replaces a document.
func (s *Store) Put(ctx context.Context, doc domain.Document) error {
	payload, err := json.Marshal(doc.Fields)
	if err != nil {
		return domain.StorageError{Op: "put", Err: err}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (kind, id, revision, fields, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (kind, id) DO UPDATE SET
		   revision = excluded.revision,
		   fields = excluded.fields,
		   updated_at = excluded.updated_at`,
		doc.Kind, doc.ID, doc.Revision, payload,
		doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		doc.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return domain.StorageError{Op: "put", Err: err}
	}
	return nil
}

// Query returns every document of the kind matching the filter. Filter
// evaluation happens in process; the store only narrows by kind.
func (s *Store) Query(ctx context.Context, kind domain.Kind, filter domain.Filter) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, revision, fields, created_at, updated_at FROM documents WHERE kind = ?`, kind)
	if err != nil {
		return nil, domain.StorageError{Op: "query", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Document
	for rows.Next() {
		var (
			id                   string
			revision             int
			payload              []byte
			createdAt, updatedAt string
		)
		if err := rows.Scan(&id, &revision, &payload, &createdAt, &updatedAt); err != nil {
			return nil, domain.StorageError{Op: "query", Err: err}
		}
		var fields domain.Fields
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, domain.StorageError{Op: "query", Err: err}
		}
		doc := domain.Document{ID: id, Kind: kind, Revision: revision, Fields: fields}
		doc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		doc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		if filter.Matches(doc) {
			out = append(out, doc)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError{Op: "query", Err: err}
	}
	return out, nil
}

// UpdateFields applies the changes and increments the revision counter inside
// one database transaction.
func (s *Store) UpdateFields(ctx context.Context, kind domain.Kind, id string, changes domain.Fields) (domain.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, domain.StorageError{Op: "update", Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT revision, fields, created_at, updated_at FROM documents WHERE kind = ? AND id = ?`, kind, id)
	doc, err := scanDocument(row, kind, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, domain.NotFoundError{Kind: kind, ID: id}
	}
	if err != nil {
		return domain.Document{}, domain.StorageError{Op: "update", Err: err}
	}

	for name, value := range changes {
		doc.Fields[name] = value
	}
	doc.Revision++
	doc.UpdatedAt = s.nowFn()

	payload, err := json.Marshal(doc.Fields)
	if err != nil {
		return domain.Document{}, domain.StorageError{Op: "update", Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET revision = ?, fields = ?, updated_at = ? WHERE kind = ? AND id = ?`,
		doc.Revision, payload, doc.UpdatedAt.UTC().Format(time.RFC3339Nano), kind, id); err != nil {
		return domain.Document{}, domain.StorageError{Op: "update", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return domain.Document{}, domain.StorageError{Op: "update", Err: err}
	}
	committed = true
	return doc, nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, kind domain.Kind, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = ? AND id = ?`, kind, id)
	if err != nil {
		return domain.StorageError{Op: "delete", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// Append records a pre-mutation snapshot. The (document_id, revision) primary
// key turns a snapshot race into a visible conflict.
func (s *Store) Append(ctx context.Context, record domain.RevisionRecord) error {
	payload, err := json.Marshal(record.Fields)
	if err != nil {
		return domain.StorageError{Op: "append", Err: err}
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (document_id, revision, fields, recorded_at) VALUES (?, ?, ?, ?)`,
			revisionTable(record.Kind)),
		record.DocumentID, record.Revision, payload,
		record.RecordedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isConstraintViolation(err) {
			return domain.ConflictError{ID: record.DocumentID, Revision: record.Revision}
		}
		return domain.StorageError{Op: "append", Err: err}
	}
	return nil
}

func isConstraintViolation(err error) bool {
	var serr *sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code() == codeConstraintPrimaryKey || serr.Code() == codeConstraintUnique
}

// History returns all records for the id, revision descending.
func (s *Store) History(ctx context.Context, kind domain.Kind, id string) ([]domain.RevisionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT revision, fields, recorded_at FROM %s WHERE document_id = ? ORDER BY revision DESC`,
			revisionTable(kind)), id)
	if err != nil {
		return nil, domain.StorageError{Op: "history", Err: err}
	}
	defer func() { _ = rows.Close() }()

	out := []domain.RevisionRecord{}
	for rows.Next() {
		var (
			revision   int
			payload    []byte
			recordedAt string
		)
		if err := rows.Scan(&revision, &payload, &recordedAt); err != nil {
			return nil, domain.StorageError{Op: "history", Err: err}
		}
		var fields domain.Fields
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, domain.StorageError{Op: "history", Err: err}
		}
		rec := domain.RevisionRecord{DocumentID: id, Kind: kind, Revision: revision, Fields: fields}
		rec.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError{Op: "history", Err: err}
	}
	return out, nil
}

// Remove deletes a single revision record.
func (s *Store) Remove(ctx context.Context, kind domain.Kind, id string, revision int) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE document_id = ? AND revision = ?`, revisionTable(kind)),
		id, revision)
	if err != nil {
		return domain.StorageError{Op: "remove", Err: err}
	}
	return nil
}
