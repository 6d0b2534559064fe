package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hotspot/internal/rowstore"
	"github.com/roach88/hotspot/internal/rowstore/rowstoretest"
)

func TestStore_Conformance(t *testing.T) {
	rowstoretest.RunConformance(t, func(t *testing.T) rowstore.Client {
		s, err := Open(context.Background(), filepath.Join(t.TempDir(), "rows.db"))
		require.NoError(t, err)
		return s
	})
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(ctx, path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, s.Close())
	}

	s, err := Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"documents", "sheets", "sheet_rows"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		assert.NoError(t, err, "table %q missing", table)
	}

	var version int
	require.NoError(t, s.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_Pragmas(t *testing.T) {
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()

	var mode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestStore_RowsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	id, err := s.CreateDocument(ctx, "Tour")
	require.NoError(t, err)
	doc, err := s.OpenDocument(ctx, id)
	require.NoError(t, err)
	require.NoError(t, doc.EnsureSheetExists(ctx, "slides"))
	require.NoError(t, doc.AppendRow(ctx, "slides", []any{"slide_1", "Intro", 0}))
	require.NoError(t, s.Close())

	s, err = OpenDSN(ctx, "sqlite://"+path)
	require.NoError(t, err)
	defer s.Close()
	doc, err = s.OpenDocument(ctx, id)
	require.NoError(t, err)
	rows, err := doc.GetAllRows(ctx, "slides")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"slide_1", "Intro", float64(0)}}, rows)
}

func TestStore_DeleteDocumentCascadesRows(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	id, err := s.CreateDocument(ctx, "Tour")
	require.NoError(t, err)
	doc, err := s.OpenDocument(ctx, id)
	require.NoError(t, err)
	require.NoError(t, doc.EnsureSheetExists(ctx, "hotspots"))
	require.NoError(t, doc.AppendRow(ctx, "hotspots", []any{"hs_1"}))
	require.NoError(t, s.DeleteDocument(ctx, id))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM sheet_rows").Scan(&n))
	assert.Zero(t, n)
}
