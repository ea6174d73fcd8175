// Package events appends to the tenant audit trail. The engine calls Append
// inside the same transaction as the write it records.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"townbox/internal/tenant"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one event stamped with the tenant and user from tc.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, tc tenant.Context, evtType, entityKind, entityID string, payload EventPayload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,tenant_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, nullable(tc.TenantID), entityKind, nullable(entityID), tc.Actor(), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
