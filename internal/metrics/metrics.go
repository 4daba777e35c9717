// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordContentOperation(resource, operation, outcome string)
	ObserveMediaResolve(backend, outcome string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordMediaReaped(outcome string)
	RecordOrphanQueued(reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	contentOps    *prometheus.CounterVec
	mediaResolve  *prometheus.HistogramVec
	httpStatus    *prometheus.CounterVec
	mediaReaped   *prometheus.CounterVec
	orphansQueued *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		contentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediashare_content_operations_total",
			Help: "コンテンツ操作の結果別の合計数",
		}, []string{"resource", "operation", "outcome"}),
		mediaResolve: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mediashare_media_resolve_seconds",
			Help:    "メディア解決（アップロード）のレイテンシ（秒）",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"backend", "outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediashare_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		mediaReaped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediashare_media_reaped_total",
			Help: "削除待ちメディアの削除試行の結果別の合計数",
		}, []string{"outcome"}),
		orphansQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mediashare_orphaned_media_queued_total",
			Help: "削除待ちとして登録されたメディアの理由別の合計数",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.contentOps,
		c.mediaResolve,
		c.httpStatus,
		c.mediaReaped,
		c.orphansQueued,
	)

	return c
}

// RecordContentOperation はコンテンツ操作の結果を記録する。
// outcomeは success またはエラーコード（VIDEO_NOT_FOUND等）。
func (c *Collector) RecordContentOperation(resource, operation, outcome string) {
	c.contentOps.WithLabelValues(resource, operation, outcome).Inc()
}

// ObserveMediaResolve はメディア解決のレイテンシを記録する。
func (c *Collector) ObserveMediaResolve(backend, outcome string, duration time.Duration) {
	c.mediaResolve.WithLabelValues(backend, outcome).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordMediaReaped は削除待ちメディアの削除試行結果を記録する。
// outcomeは deleted, retry, abandoned のいずれか。
func (c *Collector) RecordMediaReaped(outcome string) {
	c.mediaReaped.WithLabelValues(outcome).Inc()
}

// RecordOrphanQueued は削除待ちメディアの登録を記録する。
func (c *Collector) RecordOrphanQueued(reason string) {
	c.orphansQueued.WithLabelValues(reason).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// ワーカーのコンテナヘルスチェック用に/healthも応答する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
