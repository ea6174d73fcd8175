package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"townbox/internal/config"
	"townbox/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ConflictError reports a write against a version that has since changed.
type ConflictError struct {
	Kind     string
	ID       string
	Expected int
	Current  int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently (version %d, now %d)", e.Kind, e.ID, e.Expected, e.Current)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// stampLayout is fixed width so stored timestamps sort lexically.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func stamp(t time.Time) string {
	return t.UTC().Format(stampLayout)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func (r Repo) q(tx *sql.Tx) DBTX {
	if tx != nil {
		return tx
	}
	return r.DB
}

// EnsureTenant inserts the tenant if it does not exist yet.
func (r Repo) EnsureTenant(ctx context.Context, tx *sql.Tx, t domain.Tenant) error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("tenant id required")
	}
	if t.CreatedAt == "" {
		t.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO tenants(id,name,created_at) VALUES (?,?,?) ON CONFLICT(id) DO NOTHING`,
		t.ID, nullable(t.Name), t.CreatedAt)
	return err
}

func (r Repo) GetTenant(ctx context.Context, id string) (domain.Tenant, error) {
	var t domain.Tenant
	err := r.DB.QueryRowContext(ctx, `SELECT id,COALESCE(name,''),created_at FROM tenants WHERE id=?`, id).Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, fmt.Errorf("tenant %s: %w", id, ErrNotFound)
	}
	return t, err
}

func (r Repo) ListTenants(ctx context.Context) ([]domain.Tenant, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,COALESCE(name,''),created_at FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// SingleTenant returns the only tenant in the database.
func (r Repo) SingleTenant(ctx context.Context) (domain.Tenant, error) {
	tenants, err := r.ListTenants(ctx)
	if err != nil {
		return domain.Tenant{}, err
	}
	if len(tenants) == 0 {
		return domain.Tenant{}, ErrNotFound
	}
	if len(tenants) > 1 {
		return domain.Tenant{}, fmt.Errorf("multiple tenants exist; specify --tenant")
	}
	return tenants[0], nil
}

// UpsertTenantConfig validates and stores cfg as YAML for tenantID.
func (r Repo) UpsertTenantConfig(ctx context.Context, tx *sql.Tx, tenantID string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Tenant.ID = tenantID
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := cfg.ToYAML()
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.q(tx).ExecContext(ctx, `INSERT INTO tenant_configs(tenant_id,config_yaml,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(tenant_id) DO UPDATE SET config_yaml=excluded.config_yaml, updated_at=excluded.updated_at`, tenantID, string(payload), now, now)
	return err
}

func (r Repo) GetTenantConfig(ctx context.Context, tenantID string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_yaml FROM tenant_configs WHERE tenant_id=?`, tenantID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("config for tenant %s: %w", tenantID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return config.FromYAML([]byte(payload))
}

// EventFilter narrows event queries. Cursor is exclusive.
type EventFilter struct {
	TenantID   string
	Type       string
	EntityKind string
	EntityID   string
	Cursor     int64
	Limit      int
}

// LatestEvents returns matching events newest first, strictly before Cursor
// when it is set.
func (r Repo) LatestEvents(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	clauses, args := f.clauses()
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	return r.queryEvents(ctx, clauses, args, "DESC", f.Limit)
}

// EventsAfter returns events with IDs greater than the cursor in ascending order.
func (r Repo) EventsAfter(ctx context.Context, f EventFilter) ([]domain.Event, error) {
	clauses, args := f.clauses()
	if f.Cursor > 0 {
		clauses = append(clauses, "id>?")
		args = append(args, f.Cursor)
	}
	return r.queryEvents(ctx, clauses, args, "ASC", f.Limit)
}

func (f EventFilter) clauses() ([]string, []any) {
	clauses := []string{"1=1"}
	var args []any
	if f.TenantID != "" {
		clauses = append(clauses, "tenant_id=?")
		args = append(args, f.TenantID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	return clauses, args
}

func (r Repo) queryEvents(ctx context.Context, clauses []string, args []any, order string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id,ts,type,COALESCE(tenant_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE %s ORDER BY id %s LIMIT ?`,
		strings.Join(clauses, " AND "), order)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.TenantID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// LatestEventID returns the most recent event ID for a tenant.
func (r Repo) LatestEventID(ctx context.Context, tenantID string) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id),0) FROM events WHERE tenant_id=?`, tenantID).Scan(&id)
	return id, err
}
