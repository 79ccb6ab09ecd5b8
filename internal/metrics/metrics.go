// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// プロバイダクライアントのRequestRecorderとセッションレジストリの
// SessionRecorderの両方を実装する。
type Collector struct {
	pollOutcome     *prometheus.CounterVec
	providerStatus  *prometheus.CounterVec
	providerLatency prometheus.Histogram
	activeSessions  prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pollOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewtracker_poll_outcome_total",
			Help: "ポーリング結果別の合計数",
		}, []string{"outcome"}),
		providerStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "viewtracker_provider_status_total",
			Help: "プロバイダAPIのHTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		providerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "viewtracker_provider_latency_seconds",
			Help:    "プロバイダAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "viewtracker_active_sessions",
			Help: "非停止トラッキングセッションの現在数",
		}),
	}

	reg.MustRegister(
		c.pollOutcome,
		c.providerStatus,
		c.providerLatency,
		c.activeSessions,
	)

	return c
}

// RecordPollOutcome はポーリング結果を記録する。
// outcomeは"success"またはエラー分類名。
func (c *Collector) RecordPollOutcome(outcome string) {
	c.pollOutcome.WithLabelValues(outcome).Inc()
}

// RecordProviderStatus はプロバイダAPIのHTTPステータスコードを記録する。
func (c *Collector) RecordProviderStatus(statusCode int) {
	c.providerStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordProviderLatency はプロバイダAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordProviderLatency(duration time.Duration) {
	c.providerLatency.Observe(duration.Seconds())
}

// SetActiveSessions は非停止セッション数を記録する。
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
