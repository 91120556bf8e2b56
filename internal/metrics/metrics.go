// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// ハンドラー層から利用する。
type Recorder interface {
	RecordTaskOperation(op string, err error)
	RecordOperationLatency(op string, duration time.Duration)
	RecordFailure(kind string)
	RecordSignIn()
	RecordSignOut()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	taskOps        *prometheus.CounterVec
	opLatency      *prometheus.HistogramVec
	failures       *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		taskOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_task_operations_total",
			Help: "タスク操作の合計数（操作・結果別）",
		}, []string{"op", "outcome"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskman_operation_latency_seconds",
			Help:    "タスク操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskman_failures_total",
			Help: "失敗分類別の障害数",
		}, []string{"kind"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "taskman_active_sessions",
			Help: "有効なログインセッション数の概算",
		}),
	}

	reg.MustRegister(
		c.taskOps,
		c.opLatency,
		c.failures,
		c.activeSessions,
	)

	return c
}

// RecordTaskOperation はタスク操作の成否を記録する。
func (c *Collector) RecordTaskOperation(op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.taskOps.WithLabelValues(op, outcome).Inc()
}

// RecordOperationLatency はタスク操作のレイテンシを記録する。
func (c *Collector) RecordOperationLatency(op string, duration time.Duration) {
	c.opLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordFailure は失敗分類別の障害を記録する。
func (c *Collector) RecordFailure(kind string) {
	c.failures.WithLabelValues(kind).Inc()
}

// RecordSignIn はサインインによるセッション増加を記録する。
func (c *Collector) RecordSignIn() {
	c.activeSessions.Inc()
}

// RecordSignOut はサインアウトによるセッション減少を記録する。
func (c *Collector) RecordSignOut() {
	c.activeSessions.Dec()
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
