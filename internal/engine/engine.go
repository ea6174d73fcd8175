package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"townbox/internal/compliance"
	"townbox/internal/config"
	"townbox/internal/domain"
	"townbox/internal/events"
	"townbox/internal/findings"
	"townbox/internal/metrics"
	"townbox/internal/repo"
	"townbox/internal/rules"
	"townbox/internal/tenant"
)

// Engine runs every governed operation as read, validate, write and audit
// inside a single transaction. Stale reads surface as repo.ErrConflict.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Rules   *rules.Registry
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// New wires an engine around db. cfg may be nil, in which case each tenant's
// stored config is used.
func New(db *sql.DB, cfg *config.Config) (Engine, error) {
	reg, err := rules.Default()
	if err != nil {
		return Engine{}, err
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Rules:  reg,
		Now:    time.Now,
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func newID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return uuid.NewString()
}

// withTx runs fn in a transaction, committing only when fn succeeds.
func (e Engine) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return e.observe(ctx, err)
	}
	return tx.Commit()
}

// observe counts and logs refused operations before handing the error back.
func (e Engine) observe(ctx context.Context, err error) error {
	var (
		ce *compliance.ComplianceError
		fe *findings.FindingsError
	)
	switch {
	case errors.As(err, &ce):
		e.Metrics.Violation(string(ce.Code))
		e.logger().WarnContext(ctx, "compliance check refused operation",
			slog.String("code", string(ce.Code)),
			slog.String("cite", ce.StatutoryCite),
			slog.String("message", ce.Message))
	case errors.As(err, &fe):
		e.Metrics.Violation(string(fe.Code))
	}
	return err
}

// ConfigFor returns the engine's pinned config when it belongs to tenantID,
// then the stored tenant config, then defaults.
func (e Engine) ConfigFor(ctx context.Context, tenantID string) (*config.Config, error) {
	if e.Config != nil && e.Config.Tenant.ID == tenantID {
		return e.Config, nil
	}
	cfg, err := e.Repo.GetTenantConfig(ctx, tenantID)
	if errors.Is(err, repo.ErrNotFound) {
		return config.Default(tenantID), nil
	}
	return cfg, err
}

// InitTenant creates the tenant with cfg (defaults when nil).
func (e Engine) InitTenant(ctx context.Context, tenantID, name string, cfg *config.Config) (domain.Tenant, error) {
	if strings.TrimSpace(tenantID) == "" {
		return domain.Tenant{}, errors.New("tenant id is required")
	}
	if cfg == nil {
		cfg = config.Default(tenantID)
	}
	if name != "" {
		cfg.Tenant.Name = name
	}
	t := domain.Tenant{ID: tenantID, Name: cfg.Tenant.Name, CreatedAt: e.now().Format(time.RFC3339)}
	tc := tenant.Context{TenantID: tenantID}
	if caller, ok := tenant.From(ctx); ok {
		tc.UserID = caller.UserID
	}
	err := e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.EnsureTenant(ctx, tx, t); err != nil {
			return fmt.Errorf("ensure tenant: %w", err)
		}
		if err := e.Repo.UpsertTenantConfig(ctx, tx, tenantID, cfg); err != nil {
			return fmt.Errorf("tenant config: %w", err)
		}
		return e.Events.Append(ctx, tx, tc, "tenant.init", "tenant", tenantID, events.EventPayload{
			"name":         t.Name,
			"jurisdiction": cfg.Tenant.Jurisdiction,
		})
	})
	return t, err
}

// UpdateTenantConfig replaces the stored tenant config.
func (e Engine) UpdateTenantConfig(ctx context.Context, cfg *config.Config) error {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return err
	}
	if _, err := cfg.Rules(e.Rules); err != nil {
		return err
	}
	return e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpsertTenantConfig(ctx, tx, tc.TenantID, cfg); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "tenant.config_updated", "tenant", tc.TenantID, events.EventPayload{
			"overrides": cfg.OverriddenReasons(),
		})
	})
}

func (e Engine) ListEvents(ctx context.Context, f repo.EventFilter) ([]domain.Event, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return nil, err
	}
	f.TenantID = tc.TenantID
	return e.Repo.LatestEvents(ctx, f)
}

// CreateAPIKey mints a key for actorID and returns the plaintext once.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	tc, err := tenant.MustFrom(ctx)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	if actorID == "" {
		actorID = tc.Actor()
	}
	secret := "tb_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	key := domain.APIKey{
		ID:        uuid.NewString(),
		TenantID:  tc.TenantID,
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(secret),
		CreatedAt: e.now().Format(time.RFC3339),
	}
	err = e.withTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, tc, "apikey.created", "api_key", key.ID, events.EventPayload{"actor_id": actorID, "name": name})
	})
	if err != nil {
		return domain.APIKey{}, "", err
	}
	return key, secret, nil
}
