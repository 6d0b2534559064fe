//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hotspot/internal/rowstore"
	"github.com/roach88/hotspot/internal/rowstore/rowstoretest"
)

// Requires HOTSPOT_TEST_POSTGRES_DSN pointing at a disposable database.
func TestStore_Conformance(t *testing.T) {
	dsn := os.Getenv("HOTSPOT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("HOTSPOT_TEST_POSTGRES_DSN not set")
	}

	rowstoretest.RunConformance(t, func(t *testing.T) rowstore.Client {
		ctx := context.Background()
		s, err := Open(ctx, dsn)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE rowstore_documents CASCADE`)
		require.NoError(t, err)
		return s
	})
}
