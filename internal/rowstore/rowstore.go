// Package rowstore defines the row-oriented document store the persistence
// adapter writes through, plus an in-memory implementation.
//
// A document is a set of named sheets. Each sheet has a header row and an
// ordered list of data rows; a row is a slice of schemaless cells (string,
// float64, bool or nil). Column 0 of every sheet holds the row id.
//
// Implementations: Memory (this package), sqlite and postgres subpackages.
// All of them normalize cells through JSON, so a row read back from any
// implementation has the same Go types regardless of what was written.
package rowstore

import (
	"context"
	"errors"
)

// IDColumn is the column holding the row id in every sheet.
const IDColumn = 0

var (
	// ErrDocumentNotFound is returned when a document id is unknown.
	ErrDocumentNotFound = errors.New("rowstore: document not found")

	// ErrSheetNotFound is returned when writing to or reading from a sheet
	// that EnsureSheetExists has not created.
	ErrSheetNotFound = errors.New("rowstore: sheet not found")
)

// Document is one row-store document. Every method addresses a sheet by
// name.
type Document interface {
	// ID returns the document id.
	ID() string

	// EnsureSheetExists creates the sheet if it is missing. Idempotent.
	EnsureSheetExists(ctx context.Context, sheet string) error

	// SetupHeaders writes the header row of the sheet. Idempotent.
	SetupHeaders(ctx context.Context, sheet string, header []string) error

	// Headers returns the header row of the sheet.
	Headers(ctx context.Context, sheet string) ([]string, error)

	// AppendRow adds a row after the last data row.
	AppendRow(ctx context.Context, sheet string, row []any) error

	// GetAllRows returns every data row in sheet order. The header row is
	// never included.
	GetAllRows(ctx context.Context, sheet string) ([][]any, error)

	// UpdateRowByID overwrites the first row whose id cell equals id. It
	// returns false when no row matches.
	UpdateRowByID(ctx context.Context, sheet, id string, row []any) (bool, error)

	// DeleteRowByID removes the first row whose id cell equals id. It
	// returns false when no row matches.
	DeleteRowByID(ctx context.Context, sheet, id string) (bool, error)

	// DeleteRowsByColumnValue removes every row whose cell at column equals
	// value and returns how many were removed.
	DeleteRowsByColumnValue(ctx context.Context, sheet string, column int, value any) (int, error)
}

// Client opens and manages documents.
type Client interface {
	// CreateDocument creates an empty document and returns its id.
	CreateDocument(ctx context.Context, title string) (string, error)

	// OpenDocument returns a handle to an existing document.
	OpenDocument(ctx context.Context, id string) (Document, error)

	// ListDocuments returns the ids of all documents in creation order.
	ListDocuments(ctx context.Context) ([]string, error)

	// DeleteDocument removes a document and all of its sheets.
	DeleteDocument(ctx context.Context, id string) error

	// Close releases any underlying resources.
	Close() error
}
