// Package postgres implements rowstore.Client on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/hotspot/internal/rowstore"
)

var (
	_ rowstore.Client   = (*Store)(nil)
	_ rowstore.Document = (*document)(nil)
)

// Store is a PostgreSQL-backed row store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn (a postgres:// URL) and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// ensureSchema is idempotent. All statements run in one implicit
// transaction.
func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS rowstore_documents (
    seq   BIGINT GENERATED ALWAYS AS IDENTITY,
    id    TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS rowstore_sheets (
    document_id TEXT  NOT NULL REFERENCES rowstore_documents(id) ON DELETE CASCADE,
    name        TEXT  NOT NULL,
    header      JSONB NOT NULL DEFAULT '[]',
    PRIMARY KEY (document_id, name)
);

CREATE TABLE IF NOT EXISTS rowstore_rows (
    seq         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    document_id TEXT  NOT NULL,
    sheet       TEXT  NOT NULL,
    row_id      TEXT  NOT NULL DEFAULT '',
    cells       JSONB NOT NULL,
    FOREIGN KEY (document_id, sheet) REFERENCES rowstore_sheets(document_id, name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_rowstore_rows_sheet ON rowstore_rows (document_id, sheet, seq);
CREATE INDEX IF NOT EXISTS idx_rowstore_rows_row_id ON rowstore_rows (document_id, sheet, row_id);
`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// CreateDocument creates an empty document with a random id.
func (s *Store) CreateDocument(ctx context.Context, title string) (string, error) {
	id := "doc_" + uuid.NewString()
	if _, err := s.pool.Exec(ctx, `INSERT INTO rowstore_documents (id, title) VALUES ($1, $2)`, id, title); err != nil {
		return "", fmt.Errorf("creating document: %w", err)
	}
	return id, nil
}

// OpenDocument returns a handle to document id.
func (s *Store) OpenDocument(ctx context.Context, id string) (rowstore.Document, error) {
	if err := documentExists(ctx, s.pool, id); err != nil {
		return nil, err
	}
	return &document{pool: s.pool, id: id}, nil
}

// ListDocuments returns document ids in creation order.
func (s *Store) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM rowstore_documents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning documents: %w", err)
	}
	return ids, nil
}

// DeleteDocument removes document id. Sheets and rows cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM rowstore_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete %s: %w", id, rowstore.ErrDocumentNotFound)
	}
	return nil
}

// queryRower is satisfied by *pgxpool.Pool and pgx.Tx.
type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func documentExists(ctx context.Context, q queryRower, id string) error {
	var one int
	err := q.QueryRow(ctx, `SELECT 1 FROM rowstore_documents WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("document %s: %w", id, rowstore.ErrDocumentNotFound)
	}
	if err != nil {
		return fmt.Errorf("document %s: %w", id, err)
	}
	return nil
}

type document struct {
	pool *pgxpool.Pool
	id   string
}

func (d *document) ID() string { return d.id }

func (d *document) requireSheet(ctx context.Context, q queryRower, sheet string) error {
	var one int
	err := q.QueryRow(ctx,
		`SELECT 1 FROM rowstore_sheets WHERE document_id = $1 AND name = $2`, d.id, sheet).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("sheet %s: %w", sheet, rowstore.ErrSheetNotFound)
	}
	if err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	return nil
}

func (d *document) EnsureSheetExists(ctx context.Context, sheet string) error {
	if err := documentExists(ctx, d.pool, d.id); err != nil {
		return err
	}
	_, err := d.pool.Exec(ctx,
		`INSERT INTO rowstore_sheets (document_id, name) VALUES ($1, $2) ON CONFLICT DO NOTHING`, d.id, sheet)
	if err != nil {
		return fmt.Errorf("ensuring sheet %s: %w", sheet, err)
	}
	return nil
}

func (d *document) SetupHeaders(ctx context.Context, sheet string, header []string) error {
	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshaling header: %w", err)
	}
	tag, err := d.pool.Exec(ctx,
		`UPDATE rowstore_sheets SET header = $1 WHERE document_id = $2 AND name = $3`, data, d.id, sheet)
	if err != nil {
		return fmt.Errorf("setting headers of %s: %w", sheet, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sheet %s: %w", sheet, rowstore.ErrSheetNotFound)
	}
	return nil
}

func (d *document) Headers(ctx context.Context, sheet string) ([]string, error) {
	var data []byte
	err := d.pool.QueryRow(ctx,
		`SELECT header::text FROM rowstore_sheets WHERE document_id = $1 AND name = $2`, d.id, sheet).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("sheet %s: %w", sheet, rowstore.ErrSheetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading headers of %s: %w", sheet, err)
	}
	var header []string
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("unmarshaling header: %w", err)
	}
	return header, nil
}

func (d *document) AppendRow(ctx context.Context, sheet string, row []any) error {
	data, id, err := encode(row)
	if err != nil {
		return err
	}
	if err := d.requireSheet(ctx, d.pool, sheet); err != nil {
		return err
	}
	_, err = d.pool.Exec(ctx,
		`INSERT INTO rowstore_rows (document_id, sheet, row_id, cells) VALUES ($1, $2, $3, $4)`,
		d.id, sheet, id, data)
	if err != nil {
		return fmt.Errorf("appending row to %s: %w", sheet, err)
	}
	return nil
}

func (d *document) GetAllRows(ctx context.Context, sheet string) ([][]any, error) {
	if err := d.requireSheet(ctx, d.pool, sheet); err != nil {
		return nil, err
	}
	rows, err := d.pool.Query(ctx,
		`SELECT cells::text FROM rowstore_rows WHERE document_id = $1 AND sheet = $2 ORDER BY seq`, d.id, sheet)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", sheet, err)
	}
	raw, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", sheet, err)
	}
	out := make([][]any, 0, len(raw))
	for _, data := range raw {
		row, err := rowstore.DecodeRow(data)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

func (d *document) UpdateRowByID(ctx context.Context, sheet, id string, row []any) (bool, error) {
	data, newID, err := encode(row)
	if err != nil {
		return false, err
	}
	if err := d.requireSheet(ctx, d.pool, sheet); err != nil {
		return false, err
	}
	tag, err := d.pool.Exec(ctx, `
UPDATE rowstore_rows SET cells = $1, row_id = $2
WHERE seq = (
    SELECT seq FROM rowstore_rows
    WHERE document_id = $3 AND sheet = $4 AND row_id = $5
    ORDER BY seq LIMIT 1
)`, data, newID, d.id, sheet, id)
	if err != nil {
		return false, fmt.Errorf("updating %s in %s: %w", id, sheet, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (d *document) DeleteRowByID(ctx context.Context, sheet, id string) (bool, error) {
	if err := d.requireSheet(ctx, d.pool, sheet); err != nil {
		return false, err
	}
	tag, err := d.pool.Exec(ctx, `
DELETE FROM rowstore_rows
WHERE seq = (
    SELECT seq FROM rowstore_rows
    WHERE document_id = $1 AND sheet = $2 AND row_id = $3
    ORDER BY seq LIMIT 1
)`, d.id, sheet, id)
	if err != nil {
		return false, fmt.Errorf("deleting %s from %s: %w", id, sheet, err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteRowsByColumnValue compares display values in Go so numeric and
// boolean cells match the other implementations exactly.
func (d *document) DeleteRowsByColumnValue(ctx context.Context, sheet string, column int, value any) (int, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := d.requireSheet(ctx, tx, sheet); err != nil {
		return 0, err
	}

	rows, err := tx.Query(ctx,
		`SELECT seq, cells::text FROM rowstore_rows WHERE document_id = $1 AND sheet = $2 FOR UPDATE`, d.id, sheet)
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", sheet, err)
	}
	type stored struct {
		Seq   int64
		Cells []byte
	}
	all, err := pgx.CollectRows(rows, pgx.RowToStructByPos[stored])
	if err != nil {
		return 0, fmt.Errorf("scanning %s: %w", sheet, err)
	}

	var doomed []int64
	for _, r := range all {
		row, err := rowstore.DecodeRow(r.Cells)
		if err != nil {
			return 0, err
		}
		if column < len(row) && rowstore.CellEqual(row[column], value) {
			doomed = append(doomed, r.Seq)
		}
	}
	if len(doomed) > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM rowstore_rows WHERE seq = ANY($1)`, doomed); err != nil {
			return 0, fmt.Errorf("deleting from %s: %w", sheet, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing: %w", err)
	}
	return len(doomed), nil
}

func encode(row []any) (string, string, error) {
	norm, err := rowstore.NormalizeRow(row)
	if err != nil {
		return "", "", err
	}
	data, err := rowstore.EncodeRow(norm)
	if err != nil {
		return "", "", err
	}
	return string(data), rowstore.RowID(norm), nil
}
