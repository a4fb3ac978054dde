// 注文管理サービスのエントリポイント。
// インメモリのSQLiteに注文を保持し、ユーザー情報はusuario-serviceにHTTPで問い合わせる。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/microtienda/internal/pedido"
	"github.com/nao1215/microtienda/pkg/config"
	"github.com/nao1215/microtienda/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.Options{Service: pedido.ServiceName})
	cfg, err := config.Load(ctx, config.DefaultPedidoPort)
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}
	log = logger.New(logger.Options{Service: pedido.ServiceName, Debug: cfg.Debug})
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := pedido.NewServer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("注文管理サーバーの初期化に失敗")
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Error().Err(err).Msg("ストアのクローズに失敗")
		}
	}()

	log.Info().Str("usuario_service_url", cfg.Peers.UsuarioServiceURL).Msg("連携先を設定")
	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("注文管理サービスの起動に失敗")
	}
}
