package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"owl-widget/migrations"
)

func TestMigrationVersion(t *testing.T) {
	assert.Equal(t, 1, migrationVersion("001_send_events.sql"))
	assert.Equal(t, 12, migrationVersion("012_more.sql"))
	assert.Equal(t, 0, migrationVersion("abc_nope.sql"))
	assert.Equal(t, 0, migrationVersion("x.s"))
}

func TestPendingMigrations_Ordered(t *testing.T) {
	fsys := fstest.MapFS{
		"002_b.sql":  {Data: []byte("SELECT 2")},
		"001_a.sql":  {Data: []byte("SELECT 1")},
		"readme.sql": {Data: []byte("--")},
		"003_c.txt":  {Data: []byte("ignored")},
	}

	names, err := pendingMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, names)
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := pendingMigrations(migrations.FS)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_send_events.sql", "002_send_events_chat.sql"}, names)
}
