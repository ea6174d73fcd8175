package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townbox/internal/config"
	"townbox/internal/domain"
	"townbox/internal/tenant"
)

type receiver struct {
	mu      sync.Mutex
	events  []webhookEvent
	headers []http.Header
	status  int
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != 0 && r.status != http.StatusOK {
		w.WriteHeader(r.status)
		return
	}
	data, _ := io.ReadAll(req.Body)
	var evt webhookEvent
	_ = json.Unmarshal(data, &evt)
	r.events = append(r.events, evt)
	r.headers = append(r.headers, req.Header.Clone())
}

func (r *receiver) received() []webhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]webhookEvent(nil), r.events...)
}

func TestWebhookDeliversNewTenantEvents(t *testing.T) {
	srv := newTestServer(t)
	rcv := &receiver{}
	hook := httptest.NewServer(rcv)
	t.Cleanup(hook.Close)

	ctx := tenant.With(context.Background(), tenant.Context{TenantID: testTenant, UserID: "clerk"})
	cfg := config.Default(testTenant)
	cfg.Webhooks = []config.Webhook{{URL: hook.URL, Events: []string{"body.created"}, Secret: "s3cret"}}
	require.NoError(t, srv.Engine.UpdateTenantConfig(ctx, cfg))

	d := newWebhookDispatcher(srv.Engine, nil)
	d.dispatchAll(ctx)
	assert.Empty(t, rcv.received(), "events before startup are not replayed")

	body, err := srv.Engine.CreateBody(ctx, domain.GoverningBody{Name: "Board of Zoning Appeals", TotalSeats: 5})
	require.NoError(t, err)
	_, err = srv.Engine.InitTenant(ctx, "town-2", "Elsewhere", nil)
	require.NoError(t, err)

	d.dispatchAll(ctx)
	got := rcv.received()
	require.Len(t, got, 1)
	assert.Equal(t, "body.created", got[0].Type)
	assert.Equal(t, body.ID, got[0].EntityID)
	assert.Equal(t, testTenant, got[0].TenantID)
	assert.Equal(t, "s3cret", rcv.headers[0].Get("X-Townbox-Secret"))
	assert.Equal(t, testTenant, rcv.headers[0].Get("X-Townbox-Tenant"))

	d.dispatchAll(ctx)
	assert.Len(t, rcv.received(), 1, "delivered events are not resent")
}

func TestWebhookRetriesFailedDelivery(t *testing.T) {
	srv := newTestServer(t)
	rcv := &receiver{status: http.StatusServiceUnavailable}
	hook := httptest.NewServer(rcv)
	t.Cleanup(hook.Close)

	ctx := tenant.With(context.Background(), tenant.Context{TenantID: testTenant, UserID: "clerk"})
	cfg := config.Default(testTenant)
	cfg.Webhooks = []config.Webhook{{URL: hook.URL}}
	require.NoError(t, srv.Engine.UpdateTenantConfig(ctx, cfg))

	d := newWebhookDispatcher(srv.Engine, nil)
	d.dispatchAll(ctx)
	_, err := srv.Engine.CreateBody(ctx, domain.GoverningBody{Name: "Plan Commission", TotalSeats: 7})
	require.NoError(t, err)

	d.dispatchAll(ctx)
	assert.Empty(t, rcv.received())

	rcv.mu.Lock()
	rcv.status = http.StatusOK
	rcv.mu.Unlock()
	d.dispatchAll(ctx)
	got := rcv.received()
	require.Len(t, got, 1)
	assert.Equal(t, "body.created", got[0].Type)
}

func TestEventFilter(t *testing.T) {
	assert.True(t, newEventFilter(nil).match("anything"))
	assert.True(t, newEventFilter([]string{" ", ""}).match("anything"))
	f := newEventFilter([]string{"hearing.risk_changed"})
	assert.True(t, f.match("hearing.risk_changed"))
	assert.False(t, f.match("meeting.created"))
}
