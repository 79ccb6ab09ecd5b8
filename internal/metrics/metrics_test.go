package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// counterValue は指定メトリクスのカウンタ値を取得するテストヘルパー。
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordPollOutcome_IncrementsCounter はポーリング結果カウンタが増加することを検証する。
func TestRecordPollOutcome_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPollOutcome("success")
	c.RecordPollOutcome("success")
	c.RecordPollOutcome("transient")

	if val := counterValue(t, reg, "viewtracker_poll_outcome_total"); val != 3 {
		t.Errorf("poll_outcome_total = %v, want 3", val)
	}
}

// TestRecordProviderStatus_LabelsByStatusCode はステータスコード別にカウントされることを検証する。
func TestRecordProviderStatus_LabelsByStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderStatus(200)
	c.RecordProviderStatus(200)
	c.RecordProviderStatus(429)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != "viewtracker_provider_status_total" {
			continue
		}
		if len(mf.GetMetric()) != 2 {
			t.Fatalf("expected 2 label values, got %d", len(mf.GetMetric()))
		}
		return
	}
	t.Error("viewtracker_provider_status_total metric not found")
}

// TestRecordProviderLatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordProviderLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordProviderLatency(120 * time.Millisecond)
	c.RecordProviderLatency(80 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != "viewtracker_provider_latency_seconds" {
			continue
		}
		if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 2 {
			t.Errorf("histogram sample count = %d, want 2", count)
		}
		return
	}
	t.Error("viewtracker_provider_latency_seconds metric not found")
}

// TestSetActiveSessions_SetsGauge はアクティブセッション数のゲージが設定されることを検証する。
func TestSetActiveSessions_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetActiveSessions(3)
	c.SetActiveSessions(1)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != "viewtracker_active_sessions" {
			continue
		}
		if val := mf.GetMetric()[0].GetGauge().GetValue(); val != 1 {
			t.Errorf("active_sessions = %v, want 1", val)
		}
		return
	}
	t.Error("viewtracker_active_sessions metric not found")
}

// TestSetupMetricsRoute_ServesMetrics は/metricsパスでメトリクスが返ることを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordPollOutcome("success")

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "viewtracker_poll_outcome_total") {
		t.Error("メトリクス出力にviewtracker_poll_outcome_totalが含まれるべき")
	}
}

// TestSetupMetricsRoute_NotFoundForOtherPaths は/metrics以外のパスが404になることを検証する。
func TestSetupMetricsRoute_NotFoundForOtherPaths(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/other", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}
