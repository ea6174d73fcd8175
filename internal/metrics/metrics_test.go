package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metric:
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metric
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestCounters(t *testing.T) {
	m := New()
	m.Violation("QUORUM_NOT_MET")
	m.Violation("QUORUM_NOT_MET")
	m.Transition("meeting", "NOTICED")
	m.Deadline("BOND_HEARING", "LOW")
	m.Vote("RECUSED")

	assert.Equal(t, 2.0, counterValue(t, m, "townbox_compliance_violations_total", map[string]string{"code": "QUORUM_NOT_MET"}))
	assert.Equal(t, 1.0, counterValue(t, m, "townbox_transitions_total", map[string]string{"entity": "meeting", "to": "NOTICED"}))
	assert.Equal(t, 1.0, counterValue(t, m, "townbox_deadline_calculations_total", map[string]string{"reason": "BOND_HEARING", "risk": "LOW"}))
	assert.Equal(t, 1.0, counterValue(t, m, "townbox_votes_recorded_total", map[string]string{"vote": "RECUSED"}))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Violation("X")
		m.Transition("meeting", "DRAFT")
		m.Deadline("R", "LOW")
		m.Vote("YEA")
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Violation("INSUFFICIENT_NOTICE")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `townbox_compliance_violations_total{code="INSUFFICIENT_NOTICE"} 1`)
}
