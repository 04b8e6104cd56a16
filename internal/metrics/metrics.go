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
// ミドルウェア、通知、記事、AIの各層から利用する。
type MetricsCollector interface {
	ObserveStatus(statusCode int)
	RecordRateLimited(policy string)
	RecordNotification(outcome string, count int)
	RecordPostView()
	RecordAIRequest(kind, outcome string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reg           prometheus.Registerer
	httpStatus    *prometheus.CounterVec
	rateLimited   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	postViews     prometheus.Counter
	aiRequests    *prometheus.CounterVec
	aiLatency     *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reg: reg,
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writeflow_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writeflow_rate_limited_total",
			Help: "レート制限で拒否したリクエスト数",
		}, []string{"policy"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writeflow_notifications_total",
			Help: "メール通知の宛先数（結果別）",
		}, []string{"outcome"}),
		postViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "writeflow_post_views_total",
			Help: "記事の閲覧数の合計",
		}),
		aiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writeflow_ai_requests_total",
			Help: "AI生成リクエスト数（種別・結果別）",
		}, []string{"kind", "outcome"}),
		aiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "writeflow_ai_latency_seconds",
			Help:    "AI生成リクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.rateLimited,
		c.notifications,
		c.postViews,
		c.aiRequests,
		c.aiLatency,
	)

	return c
}

// ObserveStatus はHTTPステータスコードを記録する。
func (c *Collector) ObserveStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRateLimited はレート制限による拒否を記録する。
func (c *Collector) RecordRateLimited(policy string) {
	c.rateLimited.WithLabelValues(policy).Inc()
}

// RecordNotification は通知の宛先数を結果別に加算する。
func (c *Collector) RecordNotification(outcome string, count int) {
	if count <= 0 {
		return
	}
	c.notifications.WithLabelValues(outcome).Add(float64(count))
}

// RecordPostView は記事の閲覧を記録する。
func (c *Collector) RecordPostView() {
	c.postViews.Inc()
}

// RecordAIRequest はAI生成リクエストの結果とレイテンシを記録する。
func (c *Collector) RecordAIRequest(kind, outcome string, duration time.Duration) {
	c.aiRequests.WithLabelValues(kind, outcome).Inc()
	c.aiLatency.WithLabelValues(kind).Observe(duration.Seconds())
}

// RegisterRateLimitBuckets はレート制限バケット数のゲージを登録する。
// countはスクレイプのたびに呼ばれる。
func (c *Collector) RegisterRateLimitBuckets(count func() int) {
	c.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "writeflow_rate_limit_buckets",
		Help: "メモリ上のレート制限バケット数",
	}, func() float64 {
		return float64(count())
	}))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
