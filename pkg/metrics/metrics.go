// Package metrics は全サービスで共有するPrometheusメトリクスを定義する。
//
// メトリクスはパッケージ初期化時にデフォルトレジストリへ登録され、
// 各サービスの /metrics で公開される。
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "microtienda"

// サービス間通信の結果ラベル。
const (
	OutcomeResponse         = "response"
	OutcomeTransportFailure = "transport_failure"
)

// UpstreamRequestsTotal はサービス間HTTP呼び出しの件数。
// ラベル: service（呼び出し先）, outcome（response / transport_failure）
var UpstreamRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Total number of outbound calls to peer services.",
	},
	[]string{"service", "outcome"},
)

// UpstreamRequestDuration はサービス間HTTP呼び出しの所要時間。
var UpstreamRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Duration of outbound calls to peer services.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"service"},
)

// AuthDecisionsTotal は認証ゲートの判定件数。
// ラベル: service（判定したサービス）, method（disabled / api_key / jwt / none）
var AuthDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_decisions_total",
		Help:      "Total number of authentication gate decisions.",
	},
	[]string{"service", "method"},
)

// PeerHealth は直近のヘルスチェックで観測した連携先の状態（1=healthy）。
var PeerHealth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "peer_healthy",
		Help:      "Whether the peer reported healthy on the last aggregated health check.",
	},
	[]string{"service"},
)

// Handler は /metrics 用のGinハンドラを返す。
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
