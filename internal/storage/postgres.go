package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/abhilashshingan/collaborative-editor/internal/algebra"
)

// PostgresStore persists document snapshots and operation logs to the
// two-table schema described in §3.1: document_snapshots (latest-wins
// per document) and document_operations (append-only, ordered by
// revision).
type PostgresStore struct {
	db *sql.DB
}

// PostgresConfig holds connection parameters for OpenPostgres.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

func (c PostgresConfig) dsn() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslMode)
}

// OpenPostgres opens a connection pool and verifies it with a ping.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Schema returns the DDL for the two tables this store reads and
// writes. Callers run this once at startup (or via a migration tool);
// it is exposed here rather than baked into a migrations/ directory
// since this store has no other setup dependencies.
const Schema = `
CREATE TABLE IF NOT EXISTS document_snapshots (
	document_id TEXT PRIMARY KEY,
	revision    BIGINT NOT NULL,
	content     TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS document_operations (
	document_id   TEXT NOT NULL,
	revision      BIGINT NOT NULL,
	author_id     TEXT NOT NULL,
	operation_id  TEXT NOT NULL,
	encoded_op    JSONB NOT NULL,
	applied_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (document_id, revision)
);
`

func (s *PostgresStore) CreateDocument(ctx context.Context, docID, initialContent string) error {
	exists, err := s.DocumentExists(ctx, docID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDocumentExists
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_snapshots (document_id, revision, content) VALUES ($1, 0, $2)`,
		docID, initialContent)
	if err != nil {
		return fmt.Errorf("storage: create document: %w", err)
	}
	return nil
}

func (s *PostgresStore) DocumentExists(ctx context.Context, docID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM document_snapshots WHERE document_id = $1)`, docID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("storage: document exists: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document_id FROM document_snapshots ORDER BY document_id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, docID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document_snapshots WHERE document_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("storage: delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM document_operations WHERE document_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("storage: delete document operations: %w", err)
	}
	return nil
}

func (s *PostgresStore) RenameDocument(ctx context.Context, oldID, newID string) error {
	exists, err := s.DocumentExists(ctx, newID)
	if err != nil {
		return err
	}
	if exists {
		return ErrDocumentExists
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin rename: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE document_snapshots SET document_id = $2 WHERE document_id = $1`, oldID, newID)
	if err != nil {
		return fmt.Errorf("storage: rename snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE document_operations SET document_id = $2 WHERE document_id = $1`, oldID, newID); err != nil {
		return fmt.Errorf("storage: rename operations: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, docID string, revision uint64, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE document_snapshots SET revision = $2, content = $3, created_at = now() WHERE document_id = $1`,
		docID, revision, content)
	if err != nil {
		return fmt.Errorf("storage: save snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDocumentNotFound
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM document_operations WHERE document_id = $1 AND revision <= $2`, docID, revision); err != nil {
		return fmt.Errorf("storage: prune operations: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, docID string) (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT document_id, revision, content, created_at FROM document_snapshots WHERE document_id = $1`,
		docID).Scan(&snap.DocID, &snap.Revision, &snap.Content, &snap.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrDocumentNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("storage: load snapshot: %w", err)
	}
	return snap, nil
}

func (s *PostgresStore) AppendOperation(ctx context.Context, op LoggedOperation) error {
	encoded, err := op.Op.MarshalJSON()
	if err != nil {
		return fmt.Errorf("storage: encode operation: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO document_operations (document_id, revision, author_id, operation_id, encoded_op)
		 VALUES ($1, $2, $3, $4, $5)`,
		op.DocID, op.Revision, op.Op.UserID, op.Op.ID.String(), encoded)
	if err != nil {
		return fmt.Errorf("storage: append operation: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadOperations(ctx context.Context, docID string, sinceRevision uint64) ([]LoggedOperation, error) {
	exists, err := s.DocumentExists(ctx, docID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrDocumentNotFound
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT revision, encoded_op FROM document_operations
		 WHERE document_id = $1 AND revision > $2 ORDER BY revision ASC`,
		docID, sinceRevision)
	if err != nil {
		return nil, fmt.Errorf("storage: load operations: %w", err)
	}
	defer rows.Close()

	var result []LoggedOperation
	for rows.Next() {
		var revision uint64
		var encoded []byte
		if err := rows.Scan(&revision, &encoded); err != nil {
			return nil, fmt.Errorf("storage: scan operation: %w", err)
		}
		var op algebra.Operation
		if err := op.UnmarshalJSON(encoded); err != nil {
			return nil, fmt.Errorf("storage: decode operation: %w", err)
		}
		result = append(result, LoggedOperation{DocID: docID, Revision: revision, Op: op})
	}
	return result, rows.Err()
}

func (s *PostgresStore) LatestRevision(ctx context.Context, docID string) (uint64, error) {
	exists, err := s.DocumentExists(ctx, docID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrDocumentNotFound
	}

	var opRevision sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT MAX(revision) FROM document_operations WHERE document_id = $1`, docID).Scan(&opRevision)
	if err != nil {
		return 0, fmt.Errorf("storage: latest operation revision: %w", err)
	}
	if opRevision.Valid {
		return uint64(opRevision.Int64), nil
	}

	var snapRevision uint64
	err = s.db.QueryRowContext(ctx,
		`SELECT revision FROM document_snapshots WHERE document_id = $1`, docID).Scan(&snapRevision)
	if err != nil {
		return 0, fmt.Errorf("storage: snapshot revision: %w", err)
	}
	return snapRevision, nil
}

// Ensure PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
