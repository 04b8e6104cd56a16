package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestObserveStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestObserveStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveStatus(200)
	c.ObserveStatus(200)
	c.ObserveStatus(429)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "writeflow_http_status_total" {
			found = true
			if len(mf.GetMetric()) != 2 {
				t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
			}
			for _, m := range mf.GetMetric() {
				label := m.GetLabel()[0].GetValue()
				val := m.GetCounter().GetValue()
				switch label {
				case "200":
					if val != 2 {
						t.Errorf("http_status_total{status_code=200} = %v, want 2", val)
					}
				case "429":
					if val != 1 {
						t.Errorf("http_status_total{status_code=429} = %v, want 1", val)
					}
				default:
					t.Errorf("unexpected label value: %s", label)
				}
			}
		}
	}
	if !found {
		t.Error("writeflow_http_status_total metric not found")
	}
}

// TestRecordRateLimited_CountsPerPolicy はポリシー別に拒否数が数えられることを検証する。
func TestRecordRateLimited_CountsPerPolicy(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordRateLimited("login")
	c.RecordRateLimited("login")
	c.RecordRateLimited("ai")

	if got := testutil.ToFloat64(c.rateLimited.WithLabelValues("login")); got != 2 {
		t.Errorf("rate_limited_total{policy=login} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.rateLimited.WithLabelValues("ai")); got != 1 {
		t.Errorf("rate_limited_total{policy=ai} = %v, want 1", got)
	}
}

// TestRecordNotification_AddsRecipientCounts は通知結果が宛先数で加算されることを検証する。
func TestRecordNotification_AddsRecipientCounts(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordNotification("sent", 50)
	c.RecordNotification("sent", 7)
	c.RecordNotification("skipped", 0)

	if got := testutil.ToFloat64(c.notifications.WithLabelValues("sent")); got != 57 {
		t.Errorf("notifications_total{outcome=sent} = %v, want 57", got)
	}
	if got := testutil.CollectAndCount(c.notifications); got != 1 {
		t.Errorf("label combinations = %d, want 1 (zero counts are not recorded)", got)
	}
}

// TestRecordPostView_IncrementsCounter は閲覧数カウンタが増加することを検証する。
func TestRecordPostView_IncrementsCounter(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordPostView()
	c.RecordPostView()

	if got := testutil.ToFloat64(c.postViews); got != 2 {
		t.Errorf("post_views_total = %v, want 2", got)
	}
}

// TestRecordAIRequest_ObservesCounterAndHistogram はAIリクエストの件数とレイテンシが記録されることを検証する。
func TestRecordAIRequest_ObservesCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAIRequest("content", "success", 100*time.Millisecond)
	c.RecordAIRequest("content", "error", 2*time.Second)

	if got := testutil.ToFloat64(c.aiRequests.WithLabelValues("content", "success")); got != 1 {
		t.Errorf("ai_requests_total{success} = %v, want 1", got)
	}

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	found := false
	for _, mf := range metrics {
		if mf.GetName() == "writeflow_ai_latency_seconds" {
			found = true
			h := mf.GetMetric()[0].GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("writeflow_ai_latency_seconds metric not found")
	}
}

// TestRegisterRateLimitBuckets_ReadsOnScrape はゲージがスクレイプ時の値を返すことを検証する。
func TestRegisterRateLimitBuckets_ReadsOnScrape(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	n := 3
	c.RegisterRateLimitBuckets(func() int { return n })
	n = 8

	expected := `
# HELP writeflow_rate_limit_buckets メモリ上のレート制限バケット数
# TYPE writeflow_rate_limit_buckets gauge
writeflow_rate_limit_buckets 8
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "writeflow_rate_limit_buckets"); err != nil {
		t.Error(err)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveStatus(200)
	c.RecordRateLimited("api")
	c.RecordNotification("skipped", 1)
	c.RecordPostView()
	c.RecordAIRequest("seo", "success", 500*time.Millisecond)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"writeflow_http_status_total",
		"writeflow_rate_limited_total",
		"writeflow_notifications_total",
		"writeflow_post_views_total",
		"writeflow_ai_requests_total",
		"writeflow_ai_latency_seconds",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorがMetricsCollectorインターフェースを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	c1 := NewCollector(prometheus.NewRegistry())
	c2 := NewCollector(prometheus.NewRegistry())

	c1.RecordPostView()
	c2.RecordPostView()
	c2.RecordPostView()

	if got := testutil.ToFloat64(c1.postViews); got != 1 {
		t.Errorf("c1 post_views = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c2.postViews); got != 2 {
		t.Errorf("c2 post_views = %v, want 2", got)
	}
}
