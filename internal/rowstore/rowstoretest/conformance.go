// Package rowstoretest holds a behavioral suite every rowstore.Client
// implementation must pass.
package rowstoretest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hotspot/internal/rowstore"
)

// RunConformance runs the shared suite. newClient must return a fresh,
// empty client for every call.
func RunConformance(t *testing.T, newClient func(t *testing.T) rowstore.Client) {
	t.Helper()

	open := func(t *testing.T) (rowstore.Client, rowstore.Document) {
		t.Helper()
		ctx := context.Background()
		c := newClient(t)
		t.Cleanup(func() { _ = c.Close() })
		id, err := c.CreateDocument(ctx, "Walkthrough")
		require.NoError(t, err)
		doc, err := c.OpenDocument(ctx, id)
		require.NoError(t, err)
		require.NoError(t, doc.EnsureSheetExists(ctx, "hotspots"))
		return c, doc
	}

	t.Run("documents", func(t *testing.T) {
		ctx := context.Background()
		c := newClient(t)
		defer c.Close()

		a, err := c.CreateDocument(ctx, "A")
		require.NoError(t, err)
		b, err := c.CreateDocument(ctx, "B")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)

		ids, err := c.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{a, b}, ids)

		require.NoError(t, c.DeleteDocument(ctx, a))
		ids, err = c.ListDocuments(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{b}, ids)

		_, err = c.OpenDocument(ctx, a)
		assert.ErrorIs(t, err, rowstore.ErrDocumentNotFound)
		assert.ErrorIs(t, c.DeleteDocument(ctx, a), rowstore.ErrDocumentNotFound)
	})

	t.Run("missing sheet", func(t *testing.T) {
		ctx := context.Background()
		_, doc := open(t)
		_, err := doc.GetAllRows(ctx, "slides")
		assert.ErrorIs(t, err, rowstore.ErrSheetNotFound)
		assert.ErrorIs(t, doc.AppendRow(ctx, "slides", []any{"x"}), rowstore.ErrSheetNotFound)
	})

	t.Run("ensure sheet is idempotent", func(t *testing.T) {
		ctx := context.Background()
		_, doc := open(t)
		require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_1"}))
		require.NoError(t, doc.EnsureSheetExists(ctx, "hotspots"))
		rows, err := doc.GetAllRows(ctx, "hotspots")
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("headers", func(t *testing.T) {
		ctx := context.Background()
		_, doc := open(t)
		header := []string{"id", "slideId", "name"}
		require.NoError(t, doc.SetupHeaders(ctx, "hotspots", header))
		require.NoError(t, doc.SetupHeaders(ctx, "hotspots", header))
		got, err := doc.Headers(ctx, "hotspots")
		require.NoError(t, err)
		assert.Equal(t, header, got)

		rows, err := doc.GetAllRows(ctx, "hotspots")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("append keeps order and normalizes cells", func(t *testing.T) {
		ctx := context.Background()
		_, doc := open(t)
		require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_1", 1, true, nil}))
		require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_2", 2.5, false, "x"}))

		rows, err := doc.GetAllRows(ctx, "hotspots")
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, []any{"hs_1", float64(1), true, nil}, rows[0])
		assert.Equal(t, []any{"hs_2", 2.5, false, "x"}, rows[1])
	})

	t.Run("unsupported cell type", func(t *testing.T) {
		ctx := context.Background()
		_, doc := open(t)
		err := doc.AppendRow(ctx, "hotspots", []any{"hs_1", struct{}{}})
		assert.Error(t, err)
	})

	t.Run("update by id", func(t *testing.T) {
		ctx := context.Background()
		_, doc := open(t)
		require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_1", "a"}))
		require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_2", "b"}))

		ok, err := doc.UpdateRowByID(ctx, "hotspots", "hs_1", []any{"hs_1", "A"})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = doc.UpdateRowByID(ctx, "hotspots", "hs_9", []any{"hs_9", "Z"})
		require.NoError(t, err)
		assert.False(t, ok)

		rows, err := doc.GetAllRows(ctx, "hotspots")
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"hs_1", "A"}, {"hs_2", "b"}}, rows)
	})

	t.Run("delete by id", func(t *testing.T) {
		ctx := context.Background()
		_, doc := open(t)
		for _, id := range []string{"hs_1", "hs_2", "hs_3"} {
			require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{id}))
		}

		ok, err := doc.DeleteRowByID(ctx, "hotspots", "hs_2")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = doc.DeleteRowByID(ctx, "hotspots", "hs_2")
		require.NoError(t, err)
		assert.False(t, ok)

		rows, err := doc.GetAllRows(ctx, "hotspots")
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"hs_1"}, {"hs_3"}}, rows)
	})

	t.Run("delete by column value", func(t *testing.T) {
		ctx := context.Background()
		_, doc := open(t)
		require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_1", "slide_a"}))
		require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_2", "slide_b"}))
		require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_3", "slide_a"}))

		n, err := doc.DeleteRowsByColumnValue(ctx, "hotspots", 1, "slide_a")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = doc.DeleteRowsByColumnValue(ctx, "hotspots", 1, "slide_a")
		require.NoError(t, err)
		assert.Zero(t, n)

		rows, err := doc.GetAllRows(ctx, "hotspots")
		require.NoError(t, err)
		assert.Equal(t, [][]any{{"hs_2", "slide_b"}}, rows)
	})

	t.Run("documents are isolated", func(t *testing.T) {
		ctx := context.Background()
		c, doc := open(t)
		otherID, err := c.CreateDocument(ctx, "Other")
		require.NoError(t, err)
		other, err := c.OpenDocument(ctx, otherID)
		require.NoError(t, err)
		require.NoError(t, other.EnsureSheetExists(ctx, "hotspots"))

		require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_1"}))
		rows, err := other.GetAllRows(ctx, "hotspots")
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	t.Run("delete document drops sheets", func(t *testing.T) {
		ctx := context.Background()
		c, doc := open(t)
		require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_1"}))
		require.NoError(t, c.DeleteDocument(ctx, doc.ID()))
		_, err := doc.GetAllRows(ctx, "hotspots")
		assert.Error(t, err)
	})
}
