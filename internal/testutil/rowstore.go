package testutil

import (
	"context"
	"sync"

	"github.com/roach88/hotspot/internal/rowstore"
)

// Row-store operation names, as counted by RecordingClient.
const (
	OpCreateDocument          = "CreateDocument"
	OpDeleteDocument          = "DeleteDocument"
	OpEnsureSheetExists       = "EnsureSheetExists"
	OpSetupHeaders            = "SetupHeaders"
	OpAppendRow               = "AppendRow"
	OpGetAllRows              = "GetAllRows"
	OpUpdateRowByID           = "UpdateRowByID"
	OpDeleteRowByID           = "DeleteRowByID"
	OpDeleteRowsByColumnValue = "DeleteRowsByColumnValue"
)

// rowWriteOps are the operations that change row contents.
var rowWriteOps = []string{OpAppendRow, OpUpdateRowByID, OpDeleteRowByID, OpDeleteRowsByColumnValue}

// RecordingClient wraps a rowstore.Client, counting calls per operation and
// optionally failing the next calls of an operation with an injected error.
//
// Thread-safety: RecordingClient is safe for concurrent use.
type RecordingClient struct {
	rowstore.Client

	mu       sync.Mutex
	calls    map[string]int
	log      []string
	failures map[string]*injected
}

type injected struct {
	remaining int
	err       error
}

// NewRecordingClient wraps inner.
func NewRecordingClient(inner rowstore.Client) *RecordingClient {
	return &RecordingClient{
		Client:   inner,
		calls:    make(map[string]int),
		failures: make(map[string]*injected),
	}
}

// FailNext makes the next n calls of op return err without reaching the
// wrapped store.
func (c *RecordingClient) FailNext(op string, n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = &injected{remaining: n, err: err}
}

// Calls returns how many times op was called, failed calls included.
func (c *RecordingClient) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// RowWrites returns the number of row-changing calls.
func (c *RecordingClient) RowWrites() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, op := range rowWriteOps {
		n += c.calls[op]
	}
	return n
}

// Log returns every recorded call as "op sheet" (or "op" for document
// level calls), in call order.
func (c *RecordingClient) Log() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

// Reset clears the counters and the log. Pending injected failures are kept.
func (c *RecordingClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = make(map[string]int)
	c.log = nil
}

// record counts a call and returns the injected error, if any.
func (c *RecordingClient) record(op, sheet string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[op]++
	if sheet != "" {
		c.log = append(c.log, op+" "+sheet)
	} else {
		c.log = append(c.log, op)
	}
	f, ok := c.failures[op]
	if !ok || f.remaining == 0 {
		return nil
	}
	f.remaining--
	return f.err
}

func (c *RecordingClient) CreateDocument(ctx context.Context, title string) (string, error) {
	if err := c.record(OpCreateDocument, ""); err != nil {
		return "", err
	}
	return c.Client.CreateDocument(ctx, title)
}

func (c *RecordingClient) OpenDocument(ctx context.Context, id string) (rowstore.Document, error) {
	doc, err := c.Client.OpenDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return &recordingDocument{Document: doc, c: c}, nil
}

func (c *RecordingClient) DeleteDocument(ctx context.Context, id string) error {
	if err := c.record(OpDeleteDocument, ""); err != nil {
		return err
	}
	return c.Client.DeleteDocument(ctx, id)
}

type recordingDocument struct {
	rowstore.Document
	c *RecordingClient
}

func (d *recordingDocument) EnsureSheetExists(ctx context.Context, sheet string) error {
	if err := d.c.record(OpEnsureSheetExists, sheet); err != nil {
		return err
	}
	return d.Document.EnsureSheetExists(ctx, sheet)
}

func (d *recordingDocument) SetupHeaders(ctx context.Context, sheet string, header []string) error {
	if err := d.c.record(OpSetupHeaders, sheet); err != nil {
		return err
	}
	return d.Document.SetupHeaders(ctx, sheet, header)
}

func (d *recordingDocument) AppendRow(ctx context.Context, sheet string, row []any) error {
	if err := d.c.record(OpAppendRow, sheet); err != nil {
		return err
	}
	return d.Document.AppendRow(ctx, sheet, row)
}

func (d *recordingDocument) GetAllRows(ctx context.Context, sheet string) ([][]any, error) {
	if err := d.c.record(OpGetAllRows, sheet); err != nil {
		return nil, err
	}
	return d.Document.GetAllRows(ctx, sheet)
}

func (d *recordingDocument) UpdateRowByID(ctx context.Context, sheet, id string, row []any) (bool, error) {
	if err := d.c.record(OpUpdateRowByID, sheet); err != nil {
		return false, err
	}
	return d.Document.UpdateRowByID(ctx, sheet, id, row)
}

func (d *recordingDocument) DeleteRowByID(ctx context.Context, sheet, id string) (bool, error) {
	if err := d.c.record(OpDeleteRowByID, sheet); err != nil {
		return false, err
	}
	return d.Document.DeleteRowByID(ctx, sheet, id)
}

func (d *recordingDocument) DeleteRowsByColumnValue(ctx context.Context, sheet string, column int, value any) (int, error) {
	if err := d.c.record(OpDeleteRowsByColumnValue, sheet); err != nil {
		return 0, err
	}
	return d.Document.DeleteRowsByColumnValue(ctx, sheet, column, value)
}
