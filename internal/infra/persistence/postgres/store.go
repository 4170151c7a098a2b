// Package postgres provides a Postgres-backed document store with the same
// contract as the sqlite and memory backends. Field payloads are stored as
// JSONB; the per-kind {kind}_revisions primary key enforces the
// concurrent-update control.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"samplecore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.Store         = (*Store)(nil)
	_ domain.PrimaryStore  = (*Store)(nil)
	_ domain.RevisionStore = (*Store)(nil)
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/samplecore?sslmode=disable"

	uniqueViolation = "23505"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store is a Postgres-backed primary and revision store.
type Store struct {
	db    *sql.DB
	nowFn func() time.Time
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), pings the server, and applies the schema.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db, nowFn: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := []string{`CREATE TABLE IF NOT EXISTS documents (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		revision INTEGER NOT NULL,
		fields JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (kind, id)
	)`}
	for _, kind := range domain.Kinds() {
		ddl = append(ddl, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		document_id TEXT NOT NULL,
		revision INTEGER NOT NULL,
		fields JSONB NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL,
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

func revisionTable(kind domain.Kind) string {
	return string(kind) + "_revisions"
}

// Primary returns the live-document store.
func (s *Store) Primary() domain.PrimaryStore { return s }

// Revisions returns the revision log.
func (s *Store) Revisions() domain.RevisionStore { return s }

// DB exposes the underlying handle for integration tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the live document for the id.
func (s *Store) Get(ctx context.Context, kind domain.Kind, id string) (domain.Document, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT revision, fields, created_at, updated_at FROM documents WHERE kind = $1 AND id = $2`, kind, id)
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
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&revision, &payload, &createdAt, &updatedAt); err != nil {
		return domain.Document{}, err
	}
	var fields domain.Fields
	if err := json.Unmarshal(payload, &fields); err != nil {
		return domain.Document{}, fmt.Errorf("decode fields: %w", err)
	}
	return domain.Document{
		ID: id, Kind: kind, Revision: revision, Fields: fields,
		CreatedAt: createdAt.UTC(), UpdatedAt: updatedAt.UTC(),
	}, nil
}

// Put inserts or replaces a document.
func (s *Store) Put(ctx context.Context, doc domain.Document) error {
	payload, err := json.Marshal(doc.Fields)
	if err != nil {
		return domain.StorageError{Op: "put", Err: err}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (kind, id, revision, fields, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (kind, id) DO UPDATE SET
		   revision = EXCLUDED.revision,
		   fields = EXCLUDED.fields,
		   updated_at = EXCLUDED.updated_at`,
		doc.Kind, doc.ID, doc.Revision, payload, doc.CreatedAt.UTC(), doc.UpdatedAt.UTC())
	if err != nil {
		return domain.StorageError{Op: "put", Err: err}
	}
	return nil
}

// Query returns every document of the kind matching the filter.
func (s *Store) Query(ctx context.Context, kind domain.Kind, filter domain.Filter) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, revision, fields, created_at, updated_at FROM documents WHERE kind = $1`, kind)
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
			createdAt, updatedAt time.Time
		)
		if err := rows.Scan(&id, &revision, &payload, &createdAt, &updatedAt); err != nil {
			return nil, domain.StorageError{Op: "query", Err: err}
		}
		var fields domain.Fields
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, domain.StorageError{Op: "query", Err: err}
		}
		doc := domain.Document{
			ID: id, Kind: kind, Revision: revision, Fields: fields,
			CreatedAt: createdAt.UTC(), UpdatedAt: updatedAt.UTC(),
		}
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
// one database transaction, locking the row for the duration.
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
		`SELECT revision, fields, created_at, updated_at FROM documents WHERE kind = $1 AND id = $2 FOR UPDATE`, kind, id)
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
		`UPDATE documents SET revision = $1, fields = $2, updated_at = $3 WHERE kind = $4 AND id = $5`,
		doc.Revision, payload, doc.UpdatedAt, kind, id); err != nil {
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
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = $1 AND id = $2`, kind, id)
	if err != nil {
		return domain.StorageError{Op: "delete", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// Append records a pre-mutation snapshot; a unique violation on the
// (document_id, revision) key reports the concurrent-update race.
func (s *Store) Append(ctx context.Context, record domain.RevisionRecord) error {
	payload, err := json.Marshal(record.Fields)
	if err != nil {
		return domain.StorageError{Op: "append", Err: err}
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (document_id, revision, fields, recorded_at) VALUES ($1, $2, $3, $4)`,
			revisionTable(record.Kind)),
		record.DocumentID, record.Revision, payload, record.RecordedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ConflictError{ID: record.DocumentID, Revision: record.Revision}
		}
		return domain.StorageError{Op: "append", Err: err}
	}
	return nil
}

// History returns all records for the id, revision descending.
func (s *Store) History(ctx context.Context, kind domain.Kind, id string) ([]domain.RevisionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT revision, fields, recorded_at FROM %s WHERE document_id = $1 ORDER BY revision DESC`,
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
			recordedAt time.Time
		)
		if err := rows.Scan(&revision, &payload, &recordedAt); err != nil {
			return nil, domain.StorageError{Op: "history", Err: err}
		}
		var fields domain.Fields
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, domain.StorageError{Op: "history", Err: err}
		}
		out = append(out, domain.RevisionRecord{
			DocumentID: id, Kind: kind, Revision: revision,
			Fields: fields, RecordedAt: recordedAt.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError{Op: "history", Err: err}
	}
	return out, nil
}

// Remove deletes a single revision record.
func (s *Store) Remove(ctx context.Context, kind domain.Kind, id string, revision int) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE document_id = $1 AND revision = $2`, revisionTable(kind)),
		id, revision)
	if err != nil {
		return domain.StorageError{Op: "remove", Err: err}
	}
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
