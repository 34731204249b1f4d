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
// サービス層、外部APIクライアント、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordPlaylistCreated(attachFailed bool)
	RecordTrackResolution(matched, unmatched int)
	RecordShareIssued(reused bool)
	RecordSharedView(found bool)
	RecordUpstreamCall(service, operation string, statusCode int, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	playlistsCreated *prometheus.CounterVec
	tracksResolved   *prometheus.CounterVec
	sharesIssued     *prometheus.CounterVec
	sharedViews      *prometheus.CounterVec
	upstreamCalls    *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		playlistsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "setlister_playlists_created_total",
			Help: "作成したプレイリストの合計数",
		}, []string{"attach"}),
		tracksResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "setlister_tracks_resolved_total",
			Help: "曲名検索の結果別合計数",
		}, []string{"result"}),
		sharesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "setlister_shares_issued_total",
			Help: "共有URL発行の合計数（新規採番/既存再利用）",
		}, []string{"kind"}),
		sharedViews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "setlister_shared_views_total",
			Help: "共有URL閲覧の合計数",
		}, []string{"result"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "setlister_upstream_requests_total",
			Help: "外部API呼び出しのステータスコード別合計数",
		}, []string{"service", "operation", "status_code"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "setlister_upstream_latency_seconds",
			Help:    "外部API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "setlister_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.playlistsCreated,
		c.tracksResolved,
		c.sharesIssued,
		c.sharedViews,
		c.upstreamCalls,
		c.upstreamLatency,
		c.httpStatus,
	)

	return c
}

// RecordPlaylistCreated はプレイリスト作成を記録する。
func (c *Collector) RecordPlaylistCreated(attachFailed bool) {
	label := "ok"
	if attachFailed {
		label = "failed"
	}
	c.playlistsCreated.WithLabelValues(label).Inc()
}

// RecordTrackResolution は曲名検索の一致数と不一致数を記録する。
func (c *Collector) RecordTrackResolution(matched, unmatched int) {
	c.tracksResolved.WithLabelValues("matched").Add(float64(matched))
	c.tracksResolved.WithLabelValues("unmatched").Add(float64(unmatched))
}

// RecordShareIssued は共有URL発行を記録する。
func (c *Collector) RecordShareIssued(reused bool) {
	kind := "minted"
	if reused {
		kind = "reused"
	}
	c.sharesIssued.WithLabelValues(kind).Inc()
}

// RecordSharedView は共有URLの閲覧を記録する。
func (c *Collector) RecordSharedView(found bool) {
	result := "found"
	if !found {
		result = "not_found"
	}
	c.sharedViews.WithLabelValues(result).Inc()
}

// RecordUpstreamCall は外部API呼び出しの結果とレイテンシを記録する。
// statusCode が0の場合は通信エラーを表す。
func (c *Collector) RecordUpstreamCall(service, operation string, statusCode int, duration time.Duration) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	c.upstreamCalls.WithLabelValues(service, operation, status).Inc()
	c.upstreamLatency.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordPlaylistCreated(bool)                            {}
func (Nop) RecordTrackResolution(int, int)                        {}
func (Nop) RecordShareIssued(bool)                                {}
func (Nop) RecordSharedView(bool)                                 {}
func (Nop) RecordUpstreamCall(string, string, int, time.Duration) {}
func (Nop) RecordHTTPStatus(int)                                  {}

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

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
