package app_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townbox/internal/app"
	"townbox/internal/config"
	"townbox/internal/db"
	"townbox/internal/engine"
	"townbox/internal/migrate"
	"townbox/internal/tenant"
)

func newEngine(t *testing.T, dir string) engine.Engine {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: dir})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	eng, err := engine.New(conn, nil)
	require.NoError(t, err)
	return eng
}

func TestResolveCreatesTenantFromDefaults(t *testing.T) {
	dir := t.TempDir()
	eng := newEngine(t, dir)

	_, _, err := app.ResolveTenantAndConfig(context.Background(), dir, "", "clerk", eng)
	require.Error(t, err, "no tenant and no override")

	ctx, cfg, err := app.ResolveTenantAndConfig(context.Background(), dir, "town-1", "clerk", eng)
	require.NoError(t, err)
	assert.Equal(t, "town-1", cfg.Tenant.ID)
	assert.Equal(t, "IN", cfg.Tenant.Jurisdiction)
	tc, ok := tenant.From(ctx)
	require.True(t, ok)
	assert.Equal(t, "clerk", tc.UserID)

	// single tenant is picked without an override
	_, cfg, err = app.ResolveTenantAndConfig(context.Background(), dir, "", "clerk", eng)
	require.NoError(t, err)
	assert.Equal(t, "town-1", cfg.Tenant.ID)
}

func TestResolveSeedsFromWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	eng := newEngine(t, dir)
	cfg := config.Default("town-1")
	cfg.Meetings.NoticeHours = 72
	data, err := cfg.ToYAML()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "townbox.yml"), data, 0o644))

	_, got, err := app.ResolveTenantAndConfig(context.Background(), dir, "town-1", "", eng)
	require.NoError(t, err)
	assert.Equal(t, 72.0, got.Meetings.NoticeHours)
}
