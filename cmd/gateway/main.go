// API Gatewayサービスのエントリポイント。
// 認証後に /usuarios と /pedidos を各サービスへ転送し、連携先のヘルスチェックを集約する。
// クライアントから見た唯一の入口となる。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/microtienda/internal/gateway"
	"github.com/nao1215/microtienda/pkg/config"
	"github.com/nao1215/microtienda/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.Options{Service: gateway.ServiceName})
	cfg, err := config.Load(ctx, config.DefaultGatewayPort)
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}
	log = logger.New(logger.Options{Service: gateway.ServiceName, Debug: cfg.Debug})
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := gateway.NewServer(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Gatewayサーバーの初期化に失敗")
	}

	log.Info().
		Str("usuario_service_url", cfg.Peers.UsuarioServiceURL).
		Str("pedido_service_url", cfg.Peers.PedidoServiceURL).
		Msg("連携先を設定")
	if err := server.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Gatewayサービスの起動に失敗")
	}
}
