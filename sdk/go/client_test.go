package townboxsdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendsCredentialsAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/deadlines/calculate", r.URL.Path)
		assert.Equal(t, "tb_secret", r.Header.Get("X-Api-Key"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "BOND_HEARING", body["notice_reason"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"notice_reason":"BOND_HEARING","has_deadline":true,"risk_level":"LOW","required_publications":[{"number":1},{"number":2}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "tb_secret"
	d, err := c.CalculateDeadlines(context.Background(), "2025-03-20", "BOND_HEARING")
	require.NoError(t, err)
	assert.True(t, d.HasDeadline)
	assert.Equal(t, "LOW", d.RiskLevel)
	assert.Len(t, d.RequiredPublications, 2)
}

func TestClientParsesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INSUFFICIENT_NOTICE","message":"too late","statutoryCite":"IC 5-14-1.5-5"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.BearerToken = "tok"
	_, err := c.TransitionMeeting(context.Background(), "m-1", "NOTICED")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "INSUFFICIENT_NOTICE", apiErr.Code)
	assert.Equal(t, "IC 5-14-1.5-5", apiErr.StatutoryCite)
}

func TestEventsPageQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/events", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "42", r.URL.Query().Get("cursor"))
		_, _ = w.Write([]byte(`{"items":[{"id":41,"type":"meeting.created"}],"next_cursor":"41"}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).EventsPage(context.Background(), 5, "42")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "meeting.created", page.Items[0].Type)
	assert.Equal(t, "41", page.NextCursor)
}
