package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/microtienda/pkg/httpclient"
	"github.com/nao1215/microtienda/pkg/metrics"
)

// 連携先の状態。
const (
	EstadoHealthy     = "healthy"
	EstadoUnhealthy   = "unhealthy"
	EstadoUnreachable = "unreachable"
)

// 集約した全体の状態。
const (
	OverallHealthy  = "healthy"
	OverallDegraded = "degraded"
)

// ServiceHealth は1つの連携先のヘルスチェック結果。リクエストごとに再計算する。
type ServiceHealth struct {
	// Estado は healthy / unhealthy / unreachable のいずれか。
	Estado string `json:"estado"`
	// URL は連携先のベースURL。
	URL string `json:"url"`
	// Codigo は応答があった場合のHTTPステータスコード。
	Codigo int `json:"codigo,omitempty"`
	// Error は到達できなかった場合のメッセージ。
	Error string `json:"error,omitempty"`
}

// HealthAggregator は連携先の GET /health を並行に呼び出して結果を集約する。
type HealthAggregator struct {
	peers []*httpclient.Client
	log   zerolog.Logger
}

// NewHealthAggregator は新しいHealthAggregatorを生成する。
// peersの各クライアントのタイムアウトが1件あたりの上限になる。
func NewHealthAggregator(peers []*httpclient.Client, log zerolog.Logger) *HealthAggregator {
	return &HealthAggregator{peers: peers, log: log}
}

// Aggregate は全連携先の状態をサービス名をキーにして返す。
// 連携先の不在はエラーではなく結果の一部として報告する。
func (a *HealthAggregator) Aggregate(ctx context.Context) map[string]ServiceHealth {
	results := make([]ServiceHealth, len(a.peers))

	var g errgroup.Group
	for i, peer := range a.peers {
		g.Go(func() error {
			results[i] = a.check(ctx, peer)
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]ServiceHealth, len(a.peers))
	for i, peer := range a.peers {
		out[peer.Service()] = results[i]

		healthy := 0.0
		if results[i].Estado == EstadoHealthy {
			healthy = 1
		}
		metrics.PeerHealth.WithLabelValues(peer.Service()).Set(healthy)
	}
	return out
}

// check は1つの連携先を分類する。
func (a *HealthAggregator) check(ctx context.Context, peer *httpclient.Client) ServiceHealth {
	resp, err := peer.Do(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		a.log.Warn().Err(err).Str("peer", peer.Service()).Msg("ヘルスチェックで到達できません")
		return ServiceHealth{Estado: EstadoUnreachable, URL: peer.BaseURL(), Error: "No se pudo conectar"}
	}
	estado := EstadoHealthy
	if resp.StatusCode != http.StatusOK {
		estado = EstadoUnhealthy
	}
	return ServiceHealth{Estado: estado, URL: peer.BaseURL(), Codigo: resp.StatusCode}
}

// OverallStatus は全連携先がhealthyの場合のみhealthy、それ以外はdegradedを返す。
func OverallStatus(services map[string]ServiceHealth) string {
	for _, h := range services {
		if h.Estado != EstadoHealthy {
			return OverallDegraded
		}
	}
	return OverallHealthy
}
