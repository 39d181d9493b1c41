package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contentmix/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		MinRuns:              5,
		CostThresholdUSD:     50.0,
	}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	snap := &Snapshot{
		Total:   20,
		CostUSD: 10,
		Flows: []FlowHealth{
			{Flow: "brandSafety", Total: 20, Completed: 19, Failed: 1, FailRate: 0.05},
		},
		LookbackHours: 24,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	snap := &Snapshot{
		Flows: []FlowHealth{
			{Flow: "assetAnalysis", Completed: 6, Failed: 4, FailRate: 0.4},
			{Flow: "brandSafety", Completed: 1, Failed: 2, FailRate: 0.67},
		},
		LookbackHours: 24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1, "brandSafety is under the minimum run count")
	assert.Equal(t, AlertFailureRate, alerts[0].Type)
	assert.Equal(t, "assetAnalysis", alerts[0].Flow)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Equal(t, 10, alerts[0].Details["finished"])
}

func TestAlerter_Evaluate_SchemaDrift(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	snap := &Snapshot{
		Flows:         []FlowHealth{{Flow: "creativeScorecard", Completed: 1, Failed: 1, Schema: 1, FailRate: 0.5}},
		LookbackHours: 12,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSchemaDrift, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "1 schema-invalid")
}

func TestAlerter_Evaluate_CostOverrun(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	alerts := a.Evaluate(&Snapshot{Total: 300, CostUSD: 75.5, LookbackHours: 24})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCostOverrun, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "$75.50")
}

func TestAlerter_Evaluate_CostThresholdDisabled(t *testing.T) {
	cfg := testMonitoringConfig()
	cfg.CostThresholdUSD = 0
	alerts := NewAlerter(cfg).Evaluate(&Snapshot{CostUSD: 1000})
	assert.Empty(t, alerts)
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertCostOverrun, Severity: "high", Message: "over"}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
	assert.Equal(t, AlertCostOverrun, got.Type)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	sent := NewAlerter(cfg).SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}})
	assert.Zero(t, sent)
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	assert.Zero(t, a.SendAlerts(context.Background(), []Alert{{Type: AlertFailureRate}}))
}
