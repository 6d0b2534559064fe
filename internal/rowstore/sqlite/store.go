// Package sqlite implements rowstore.Client on a SQLite database.
//
// Documents, sheets and rows live in three tables (see schema.sql). Cells are
// stored as a JSON array per row, so a row read back has the same Go types
// as one read from the in-memory store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/hotspot/internal/rowstore"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on sheet_rows.row_id for id lookups
const currentSchemaVersion = 1

var (
	_ rowstore.Client   = (*Store)(nil)
	_ rowstore.Document = (*document)(nil)
)

// Store is a SQLite-backed row store.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement, which cascades document deletes
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time. A single connection also
	// keeps ":memory:" databases alive for the life of the Store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenDSN opens the database named by a sqlite:// DSN.
func OpenDSN(ctx context.Context, dsn string) (*Store, error) {
	path, err := ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing sqlite DSN: %w", err)
	}
	return Open(ctx, path)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_sheet_rows_row_id
		ON sheet_rows(document_id, sheet, row_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// CreateDocument creates an empty document with a random id.
func (s *Store) CreateDocument(ctx context.Context, title string) (string, error) {
	id := "doc_" + uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO documents (id, title) VALUES (?, ?)`, id, title); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return id, nil
}

// OpenDocument returns a handle to document id.
func (s *Store) OpenDocument(ctx context.Context, id string) (rowstore.Document, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open %s: %w", id, rowstore.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", id, err)
	}
	return &document{db: s.db, id: id}, nil
}

// ListDocuments returns document ids in creation order.
func (s *Store) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM documents ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteDocument removes document id. Sheets and rows cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %s: %w", id, rowstore.ErrDocumentNotFound)
	}
	return nil
}

type document struct {
	db *sql.DB
	id string
}

func (d *document) ID() string { return d.id }

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (d *document) requireSheet(ctx context.Context, q querier, sheet string) error {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM sheets WHERE document_id = ? AND name = ?`, d.id, sheet).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sheet %s: %w", sheet, rowstore.ErrSheetNotFound)
	}
	if err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	return nil
}

func (d *document) EnsureSheetExists(ctx context.Context, sheet string) error {
	var one int
	err := d.db.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE id = ?`, d.id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("document %s: %w", d.id, rowstore.ErrDocumentNotFound)
	}
	if err != nil {
		return fmt.Errorf("document %s: %w", d.id, err)
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO sheets (document_id, name) VALUES (?, ?) ON CONFLICT DO NOTHING`, d.id, sheet)
	if err != nil {
		return fmt.Errorf("ensure sheet %s: %w", sheet, err)
	}
	return nil
}

func (d *document) SetupHeaders(ctx context.Context, sheet string, header []string) error {
	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	res, err := d.db.ExecContext(ctx,
		`UPDATE sheets SET header = ? WHERE document_id = ? AND name = ?`, string(data), d.id, sheet)
	if err != nil {
		return fmt.Errorf("setup headers %s: %w", sheet, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("sheet %s: %w", sheet, rowstore.ErrSheetNotFound)
	}
	return nil
}

func (d *document) Headers(ctx context.Context, sheet string) ([]string, error) {
	var data string
	err := d.db.QueryRowContext(ctx,
		`SELECT header FROM sheets WHERE document_id = ? AND name = ?`, d.id, sheet).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sheet %s: %w", sheet, rowstore.ErrSheetNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("headers %s: %w", sheet, err)
	}
	var header []string
	if err := json.Unmarshal([]byte(data), &header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return header, nil
}

func (d *document) AppendRow(ctx context.Context, sheet string, row []any) error {
	data, id, err := encode(row)
	if err != nil {
		return err
	}
	if err := d.requireSheet(ctx, d.db, sheet); err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO sheet_rows (document_id, sheet, row_id, cells) VALUES (?, ?, ?, ?)`,
		d.id, sheet, id, data)
	if err != nil {
		return fmt.Errorf("append row to %s: %w", sheet, err)
	}
	return nil
}

func (d *document) GetAllRows(ctx context.Context, sheet string) ([][]any, error) {
	if err := d.requireSheet(ctx, d.db, sheet); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT cells FROM sheet_rows WHERE document_id = ? AND sheet = ? ORDER BY seq`, d.id, sheet)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	defer rows.Close()

	out := [][]any{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row, err := rowstore.DecodeRow([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *document) UpdateRowByID(ctx context.Context, sheet, id string, row []any) (bool, error) {
	data, newID, err := encode(row)
	if err != nil {
		return false, err
	}
	if err := d.requireSheet(ctx, d.db, sheet); err != nil {
		return false, err
	}
	res, err := d.db.ExecContext(ctx, `
		UPDATE sheet_rows SET cells = ?, row_id = ?
		WHERE seq = (
			SELECT seq FROM sheet_rows
			WHERE document_id = ? AND sheet = ? AND row_id = ?
			ORDER BY seq LIMIT 1
		)`, data, newID, d.id, sheet, id)
	if err != nil {
		return false, fmt.Errorf("update %s in %s: %w", id, sheet, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update %s in %s: %w", id, sheet, err)
	}
	return n > 0, nil
}

func (d *document) DeleteRowByID(ctx context.Context, sheet, id string) (bool, error) {
	if err := d.requireSheet(ctx, d.db, sheet); err != nil {
		return false, err
	}
	res, err := d.db.ExecContext(ctx, `
		DELETE FROM sheet_rows
		WHERE seq = (
			SELECT seq FROM sheet_rows
			WHERE document_id = ? AND sheet = ? AND row_id = ?
			ORDER BY seq LIMIT 1
		)`, d.id, sheet, id)
	if err != nil {
		return false, fmt.Errorf("delete %s from %s: %w", id, sheet, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s from %s: %w", id, sheet, err)
	}
	return n > 0, nil
}

// DeleteRowsByColumnValue compares display values in Go, so it matches the
// in-memory store exactly for numeric and boolean cells.
func (d *document) DeleteRowsByColumnValue(ctx context.Context, sheet string, column int, value any) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := d.requireSheet(ctx, tx, sheet); err != nil {
		return 0, err
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT seq, cells FROM sheet_rows WHERE document_id = ? AND sheet = ?`, d.id, sheet)
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", sheet, err)
	}
	var doomed []int64
	for rows.Next() {
		var seq int64
		var data string
		if err := rows.Scan(&seq, &data); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan row: %w", err)
		}
		row, err := rowstore.DecodeRow([]byte(data))
		if err != nil {
			rows.Close()
			return 0, err
		}
		if column < len(row) && rowstore.CellEqual(row[column], value) {
			doomed = append(doomed, seq)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, seq := range doomed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE seq = ?`, seq); err != nil {
			return 0, fmt.Errorf("delete row %d: %w", seq, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
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
