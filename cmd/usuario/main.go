// ユーザー管理サービスのエントリポイント。
// インメモリのSQLiteにユーザーを保持し、CRUD APIを提供する。
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/microtienda/internal/usuario"
	"github.com/nao1215/microtienda/pkg/config"
	"github.com/nao1215/microtienda/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.Options{Service: usuario.ServiceName})
	cfg, err := config.Load(ctx, config.DefaultUsuarioPort)
	if err != nil {
		log.Fatal().Err(err).Msg("設定の読み込みに失敗")
	}
	log = logger.New(logger.Options{Service: usuario.ServiceName, Debug: cfg.Debug})
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := usuario.NewServer(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("ユーザー管理サーバーの初期化に失敗")
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Error().Err(err).Msg("ストアのクローズに失敗")
		}
	}()

	if err := server.Run(ctx); err != nil {
		log.Error().Err(err).Msg("ユーザー管理サービスの起動に失敗")
	}
}
