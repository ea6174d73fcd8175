package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"townbox/internal/config"
	"townbox/internal/domain"
	"townbox/internal/engine"
	"townbox/internal/repo"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// webhookDispatcher polls the audit log of every tenant and posts new
// events to the webhooks listed in that tenant's configuration. Delivery is
// at-least-once; a failed post is retried on the next tick.
type webhookDispatcher struct {
	engine  engine.Engine
	logger  *slog.Logger
	client  *http.Client
	mu      sync.Mutex
	cursors map[string]int64
}

func newWebhookDispatcher(e engine.Engine, logger *slog.Logger) *webhookDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &webhookDispatcher{
		engine:  e,
		logger:  logger.With(slog.String("component", "webhooks")),
		client:  &http.Client{Timeout: defaultWebhookTimeout},
		cursors: make(map[string]int64),
	}
}

// StartWebhooks delivers tenant audit events to configured webhooks until
// ctx is cancelled. Only events recorded after startup are delivered.
func StartWebhooks(ctx context.Context, e engine.Engine, logger *slog.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = defaultWebhookInterval
	}
	d := newWebhookDispatcher(e, logger)
	go d.run(ctx, interval)
}

func (d *webhookDispatcher) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	tenants, err := d.engine.Repo.ListTenants(ctx)
	if err != nil {
		d.logger.Error("list tenants failed", slog.String("error", err.Error()))
		return
	}
	for _, t := range tenants {
		cfg, err := d.engine.ConfigFor(ctx, t.ID)
		if err != nil {
			d.logger.Warn("load tenant config failed", slog.String("tenant_id", t.ID), slog.String("error", err.Error()))
			continue
		}
		for i, hook := range cfg.Webhooks {
			if hook.Enabled != nil && !*hook.Enabled {
				continue
			}
			if strings.TrimSpace(hook.URL) == "" {
				continue
			}
			d.dispatchWebhook(ctx, t.ID, i, hook)
		}
	}
}

func cursorKey(tenantID string, idx int, hook config.Webhook) string {
	return fmt.Sprintf("%s/%d/%s", tenantID, idx, hook.URL)
}

func (d *webhookDispatcher) dispatchWebhook(ctx context.Context, tenantID string, idx int, hook config.Webhook) {
	key := cursorKey(tenantID, idx, hook)
	cursor := d.cursorFor(ctx, key, tenantID)
	events, err := d.engine.Repo.EventsAfter(ctx, repo.EventFilter{
		TenantID: tenantID,
		Cursor:   cursor,
		Limit:    defaultWebhookBatch,
	})
	if err != nil {
		d.logger.Error("fetch events failed", slog.String("tenant_id", tenantID), slog.String("error", err.Error()))
		return
	}
	filter := newEventFilter(hook.Events)
	for _, evt := range events {
		if !filter.match(evt.Type) {
			d.setCursor(key, evt.ID)
			continue
		}
		if err := d.postEvent(ctx, hook, evt); err != nil {
			d.logger.Warn("webhook delivery failed",
				slog.String("tenant_id", tenantID),
				slog.String("url", hook.URL),
				slog.Int64("event_id", evt.ID),
				slog.String("error", err.Error()))
			return
		}
		d.logger.Debug("webhook delivered",
			slog.String("tenant_id", tenantID),
			slog.String("type", evt.Type),
			slog.Int64("event_id", evt.ID))
		d.setCursor(key, evt.ID)
	}
}

func (d *webhookDispatcher) cursorFor(ctx context.Context, key, tenantID string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.cursors[key]; ok {
		return cur
	}
	cur, err := d.engine.Repo.LatestEventID(ctx, tenantID)
	if err != nil {
		d.logger.Warn("init cursor failed", slog.String("tenant_id", tenantID), slog.String("error", err.Error()))
		cur = 0
	}
	d.cursors[key] = cur
	return cur
}

func (d *webhookDispatcher) setCursor(key string, value int64) {
	d.mu.Lock()
	d.cursors[key] = value
	d.mu.Unlock()
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	TenantID   string          `json:"tenant_id"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    string          `json:"actor_id"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

func (d *webhookDispatcher) postEvent(ctx context.Context, hook config.Webhook, evt domain.Event) error {
	payload := json.RawMessage("{}")
	var raw string
	if evt.Payload != "" {
		if json.Valid([]byte(evt.Payload)) {
			payload = json.RawMessage(evt.Payload)
		} else {
			raw = evt.Payload
		}
	}
	data, err := json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		TenantID:   evt.TenantID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		TS:         evt.TS,
		Payload:    payload,
		PayloadRaw: raw,
	})
	if err != nil {
		return err
	}
	client := d.client
	if hook.TimeoutSeconds > 0 {
		client = &http.Client{Timeout: time.Duration(hook.TimeoutSeconds) * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Townbox-Event", evt.Type)
	req.Header.Set("X-Townbox-Delivery", fmt.Sprintf("%d", evt.ID))
	req.Header.Set("X-Townbox-Tenant", evt.TenantID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Townbox-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		if key := strings.TrimSpace(evt); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
