package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townbox/internal/db"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	migrations, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	latest := migrations[len(migrations)-1].Version

	ctx := context.Background()
	v, err := Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, latest, v)

	v, err = Migrate(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, latest, v)

	for _, table := range []string{"tenants", "tenant_configs", "records", "events", "api_keys"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(t, err, table)
	}
}
