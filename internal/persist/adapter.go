// Package persist is the persistence adapter between editor entities and a
// row-oriented document store.
//
// Every project lives in its own row-store document with one sheet per
// entity kind (projects, slides, hotspots, analytics) plus a meta sheet
// recording the layout version. Rows are laid out by the fixed column
// tables in layout.go and decoded leniently.
//
// Writes go through read-before-write upserts, so replaying a batch is
// idempotent. Deletes cascade hotspots → slides → project. Writes to one
// document are serialized by a per-document mutex.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/hotspot/internal/model"
	"github.com/roach88/hotspot/internal/rowstore"
	"github.com/roach88/hotspot/internal/schema"
)

// DefaultBatchSize bounds the number of rows written per SaveHotspots chunk.
const DefaultBatchSize = 100

// metaSheet holds key/value rows describing the document itself.
const metaSheet = "meta"

const metaLayoutVersion = "layoutVersion"

// Adapter translates entities to rows and back.
//
// Thread-safety: Adapter is safe for concurrent use. The only long-lived
// state is the project → document cache.
type Adapter struct {
	client    rowstore.Client
	validator *schema.Validator
	ids       model.IDGenerator
	now       func() time.Time
	logger    *slog.Logger
	batchSize int

	mu    sync.Mutex
	docs  map[string]string      // project id → document id
	ready map[string]bool        // document id → sheets bootstrapped
	locks map[string]*sync.Mutex // document id → write lock
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithBatchSize sets the SaveHotspots chunk size. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithIDGenerator sets the generator for project and analytics ids.
// Default: model.TimestampIDs.
func WithIDGenerator(g model.IDGenerator) Option {
	return func(a *Adapter) { a.ids = g }
}

// WithNow sets the time source for project timestamps. Default: time.Now.
func WithNow(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithValidator sets the schema validator used for projects.
// Default: schema.MustNew().
func WithValidator(v *schema.Validator) Option {
	return func(a *Adapter) { a.validator = v }
}

// New creates an Adapter over client.
func New(client rowstore.Client, opts ...Option) *Adapter {
	a := &Adapter{
		client:    client,
		ids:       model.TimestampIDs{},
		now:       time.Now,
		logger:    slog.Default(),
		batchSize: DefaultBatchSize,
		docs:      make(map[string]string),
		ready:     make(map[string]bool),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.validator == nil {
		a.validator = schema.MustNew()
	}
	return a
}

// BatchSize returns the configured chunk size.
func (a *Adapter) BatchSize() int { return a.batchSize }

// lockDocument serializes writers of docID. The returned func unlocks.
func (a *Adapter) lockDocument(docID string) func() {
	a.mu.Lock()
	l, ok := a.locks[docID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[docID] = l
	}
	a.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (a *Adapter) cachedDocument(projectID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id, ok := a.docs[projectID]
	return id, ok
}

func (a *Adapter) cacheDocument(projectID, docID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.docs[projectID] = docID
}

func (a *Adapter) forget(projectID, docID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.docs, projectID)
	delete(a.ready, docID)
	delete(a.locks, docID)
}

// DocumentID returns the row-store document of projectID.
func (a *Adapter) DocumentID(ctx context.Context, projectID string) (string, error) {
	doc, err := a.document(ctx, projectID)
	if err != nil {
		return "", err
	}
	return doc.ID(), nil
}

// document resolves and opens the document of projectID, scanning every
// document's projects sheet on a cache miss.
func (a *Adapter) document(ctx context.Context, projectID string) (rowstore.Document, error) {
	if docID, ok := a.cachedDocument(projectID); ok {
		doc, err := a.client.OpenDocument(ctx, docID)
		if err == nil {
			return doc, a.bootstrap(ctx, doc)
		}
		if !errors.Is(err, rowstore.ErrDocumentNotFound) {
			return nil, model.NewPersistenceError("open document", err)
		}
		a.forget(projectID, docID)
	}

	ids, err := a.client.ListDocuments(ctx)
	if err != nil {
		return nil, model.NewPersistenceError("list documents", err)
	}
	for _, docID := range ids {
		doc, err := a.client.OpenDocument(ctx, docID)
		if err != nil {
			return nil, model.NewPersistenceError("open document", err)
		}
		rows, err := doc.GetAllRows(ctx, string(model.KindProject))
		if errors.Is(err, rowstore.ErrSheetNotFound) {
			continue
		}
		if err != nil {
			return nil, model.NewPersistenceError("read projects", err)
		}
		if findRow(rows, projectID) >= 0 {
			a.cacheDocument(projectID, docID)
			return doc, a.bootstrap(ctx, doc)
		}
	}
	return nil, model.NewNotFoundError(model.KindProject, projectID)
}

// bootstrap ensures every sheet of doc exists with the expected header and
// the layout version is one this build understands. Runs once per document,
// under the document lock.
func (a *Adapter) bootstrap(ctx context.Context, doc rowstore.Document) error {
	if a.isReady(doc.ID()) {
		return nil
	}
	unlock := a.lockDocument(doc.ID())
	defer unlock()
	if a.isReady(doc.ID()) {
		return nil
	}

	for _, l := range layouts {
		sheet := string(l.Kind)
		if err := doc.EnsureSheetExists(ctx, sheet); err != nil {
			return model.NewPersistenceError("ensure sheet "+sheet, err)
		}
		header, err := doc.Headers(ctx, sheet)
		if err != nil {
			return model.NewPersistenceError("read header of "+sheet, err)
		}
		switch {
		case len(header) == 0:
			if err := doc.SetupHeaders(ctx, sheet, l.Columns); err != nil {
				return model.NewPersistenceError("setup header of "+sheet, err)
			}
		case !l.Matches(header):
			return model.NewPersistenceError("bootstrap",
				fmt.Errorf("sheet %s header %v does not match layout v%d", sheet, header, LayoutVersion))
		}
	}

	if err := a.checkLayoutVersion(ctx, doc); err != nil {
		return err
	}

	a.mu.Lock()
	a.ready[doc.ID()] = true
	a.mu.Unlock()
	return nil
}

func (a *Adapter) isReady(docID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready[docID]
}

func (a *Adapter) checkLayoutVersion(ctx context.Context, doc rowstore.Document) error {
	if err := doc.EnsureSheetExists(ctx, metaSheet); err != nil {
		return model.NewPersistenceError("ensure meta sheet", err)
	}
	rows, err := doc.GetAllRows(ctx, metaSheet)
	if err != nil {
		return model.NewPersistenceError("read meta sheet", err)
	}
	if i := findRow(rows, metaLayoutVersion); i >= 0 {
		rec := Record{"value": nil}
		if len(rows[i]) > 1 {
			rec["value"] = rows[i][1]
		}
		if v := rec.Int("value", 0); v != LayoutVersion {
			return model.NewPersistenceError("bootstrap",
				fmt.Errorf("document %s has layout v%d, this build reads v%d", doc.ID(), v, LayoutVersion))
		}
		return nil
	}
	if err := doc.SetupHeaders(ctx, metaSheet, []string{"key", "value"}); err != nil {
		return model.NewPersistenceError("setup meta header", err)
	}
	if err := doc.AppendRow(ctx, metaSheet, []any{metaLayoutVersion, LayoutVersion}); err != nil {
		return model.NewPersistenceError("write layout version", err)
	}
	return nil
}

// findRow returns the index of the first row whose id cell is id, or -1.
func findRow(rows [][]any, id string) int {
	for i, r := range rows {
		if rowstore.RowID(r) == id {
			return i
		}
	}
	return -1
}

// GetAllRows returns every data row of kind in the project's document.
func (a *Adapter) GetAllRows(ctx context.Context, projectID string, kind model.EntityKind) ([][]any, error) {
	if _, err := LayoutFor(kind); err != nil {
		return nil, err
	}
	doc, err := a.document(ctx, projectID)
	if err != nil {
		return nil, err
	}
	rows, err := doc.GetAllRows(ctx, string(kind))
	if err != nil {
		return nil, model.NewPersistenceError("read "+string(kind), err)
	}
	return rows, nil
}

// GetRowByID returns the first row of kind whose id cell is id. The scan is
// linear; per-project row counts are small.
func (a *Adapter) GetRowByID(ctx context.Context, projectID string, kind model.EntityKind, id string) ([]any, error) {
	rows, err := a.GetAllRows(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}
	if i := findRow(rows, id); i >= 0 {
		return rows[i], nil
	}
	return nil, model.NewNotFoundError(kind, id)
}
