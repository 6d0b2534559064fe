package rowstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

var (
	_ Client   = (*Memory)(nil)
	_ Document = (*memoryDocument)(nil)
)

// Memory is an in-process Client. It backs tests, scripted scenarios and
// the memory:// DSN.
//
// Thread-safety: Memory and its documents share one mutex and are safe for
// concurrent use.
type Memory struct {
	mu    sync.Mutex
	docs  map[string]*memoryDocData
	order []string
	next  int
}

type memoryDocData struct {
	title  string
	sheets map[string]*memorySheet
}

type memorySheet struct {
	header []string
	rows   [][]any
}

// NewMemory creates an empty in-memory row store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]*memoryDocData)}
}

// CreateDocument creates an empty document with id doc_<n>.
func (m *Memory) CreateDocument(ctx context.Context, title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := fmt.Sprintf("doc_%d", m.next)
	m.docs[id] = &memoryDocData{title: title, sheets: make(map[string]*memorySheet)}
	m.order = append(m.order, id)
	return id, nil
}

// OpenDocument returns a handle to document id.
func (m *Memory) OpenDocument(ctx context.Context, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return nil, fmt.Errorf("open %s: %w", id, ErrDocumentNotFound)
	}
	return &memoryDocument{m: m, id: id}, nil
}

// ListDocuments returns document ids in creation order.
func (m *Memory) ListDocuments(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.order), nil
}

// DeleteDocument removes document id.
func (m *Memory) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrDocumentNotFound)
	}
	delete(m.docs, id)
	m.order = slices.DeleteFunc(m.order, func(d string) bool { return d == id })
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

type memoryDocument struct {
	m  *Memory
	id string
}

func (d *memoryDocument) ID() string { return d.id }

// sheetLocked returns the named sheet. Must be called with d.m.mu held.
func (d *memoryDocument) sheetLocked(sheet string) (*memorySheet, error) {
	doc, ok := d.m.docs[d.id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", d.id, ErrDocumentNotFound)
	}
	s, ok := doc.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("sheet %s: %w", sheet, ErrSheetNotFound)
	}
	return s, nil
}

func (d *memoryDocument) EnsureSheetExists(ctx context.Context, sheet string) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	doc, ok := d.m.docs[d.id]
	if !ok {
		return fmt.Errorf("document %s: %w", d.id, ErrDocumentNotFound)
	}
	if _, ok := doc.sheets[sheet]; !ok {
		doc.sheets[sheet] = &memorySheet{}
	}
	return nil
}

func (d *memoryDocument) SetupHeaders(ctx context.Context, sheet string, header []string) error {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	s, err := d.sheetLocked(sheet)
	if err != nil {
		return err
	}
	s.header = slices.Clone(header)
	return nil
}

func (d *memoryDocument) Headers(ctx context.Context, sheet string) ([]string, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	s, err := d.sheetLocked(sheet)
	if err != nil {
		return nil, err
	}
	return slices.Clone(s.header), nil
}

func (d *memoryDocument) AppendRow(ctx context.Context, sheet string, row []any) error {
	norm, err := NormalizeRow(row)
	if err != nil {
		return err
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	s, err := d.sheetLocked(sheet)
	if err != nil {
		return err
	}
	s.rows = append(s.rows, norm)
	return nil
}

func (d *memoryDocument) GetAllRows(ctx context.Context, sheet string) ([][]any, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	s, err := d.sheetLocked(sheet)
	if err != nil {
		return nil, err
	}
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = slices.Clone(r)
	}
	return out, nil
}

func (d *memoryDocument) UpdateRowByID(ctx context.Context, sheet, id string, row []any) (bool, error) {
	norm, err := NormalizeRow(row)
	if err != nil {
		return false, err
	}
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	s, err := d.sheetLocked(sheet)
	if err != nil {
		return false, err
	}
	for i, r := range s.rows {
		if RowID(r) == id {
			s.rows[i] = norm
			return true, nil
		}
	}
	return false, nil
}

func (d *memoryDocument) DeleteRowByID(ctx context.Context, sheet, id string) (bool, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	s, err := d.sheetLocked(sheet)
	if err != nil {
		return false, err
	}
	for i, r := range s.rows {
		if RowID(r) == id {
			s.rows = slices.Delete(s.rows, i, i+1)
			return true, nil
		}
	}
	return false, nil
}

func (d *memoryDocument) DeleteRowsByColumnValue(ctx context.Context, sheet string, column int, value any) (int, error) {
	d.m.mu.Lock()
	defer d.m.mu.Unlock()
	s, err := d.sheetLocked(sheet)
	if err != nil {
		return 0, err
	}
	before := len(s.rows)
	s.rows = slices.DeleteFunc(s.rows, func(r []any) bool {
		return column < len(r) && CellEqual(r[column], value)
	})
	return before - len(s.rows), nil
}
