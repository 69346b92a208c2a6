package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-resale/migrations"
)

func TestPendingFilesOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b.sql": {Data: []byte("SELECT 1")},
		"0001_a.sql": {Data: []byte("SELECT 1")},
		"README.md":  {Data: []byte("notes")},
		"sub/x.sql":  {Data: []byte("SELECT 1")},
	}
	names, err := PendingFiles(fsys)
	require.NoError(t, err)
	require.Equal(t, []string{"0001_a.sql", "0002_b.sql"}, names)
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	names, err := PendingFiles(migrations.FS)
	require.NoError(t, err)
	require.Equal(t, []string{"0001_resale_inventory.sql", "0002_sale_settlement.sql"}, names)
}
