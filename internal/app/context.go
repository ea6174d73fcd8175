package app

import (
	"context"
	"errors"
	"fmt"

	"townbox/internal/config"
	"townbox/internal/engine"
	"townbox/internal/repo"
	"townbox/internal/tenant"
)

// ResolveTenantAndConfig picks the active tenant and ensures it exists in the
// DB with a config. It prefers the override, then a single-tenant DB. A
// missing tenant is created on the fly, seeded from the workspace townbox.yml
// when present and from defaults otherwise. The returned context carries the
// tenant and actorID.
func ResolveTenantAndConfig(ctx context.Context, workspace, tenantOverride, actorID string, eng engine.Engine) (context.Context, *config.Config, error) {
	tenantID := tenantOverride
	if tenantID == "" {
		t, err := eng.Repo.SingleTenant(ctx)
		if err != nil {
			return ctx, nil, fmt.Errorf("tenant not specified; use --tenant")
		}
		tenantID = t.ID
	}
	ctx = tenant.With(ctx, tenant.Context{TenantID: tenantID, UserID: actorID})

	if _, err := eng.Repo.GetTenant(ctx, tenantID); err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return ctx, nil, err
		}
		seed, err := config.LoadOptional(workspace)
		if err != nil {
			return ctx, nil, err
		}
		if seed != nil && seed.Tenant.ID != "" && seed.Tenant.ID != tenantID {
			seed = nil
		}
		if seed != nil {
			seed.Tenant.ID = tenantID
		}
		if _, err := eng.InitTenant(ctx, tenantID, "", seed); err != nil {
			return ctx, nil, fmt.Errorf("init tenant: %w", err)
		}
	}
	cfg, err := eng.ConfigFor(ctx, tenantID)
	if err != nil {
		return ctx, nil, err
	}
	cfg.Tenant.ID = tenantID
	return ctx, cfg, nil
}
