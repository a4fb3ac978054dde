package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/microtienda/pkg/config"
	"github.com/nao1215/microtienda/pkg/metrics"
	"github.com/nao1215/microtienda/pkg/middleware"
)

// shutdownTimeout はグレースフルシャットダウンで処理中のリクエストを待つ時間。
const shutdownTimeout = 10 * time.Second

// Server は全サービス共通のHTTPサーバー。
type Server struct {
	// name はレスポンスの "servicio" とログに使うサービス名。
	name string
	// cfg はサービス設定。
	cfg *config.Config
	// log はサービスのロガー。
	log zerolog.Logger
	// router はGinのHTTPルーター。
	router *gin.Engine
	// gate は保護対象ルートに適用する認証ゲート。
	gate *middleware.AuthGate
	// credentials は/loginで照合する管理者の資格情報。
	credentials *Credentials
}

// New は共通ミドルウェアと /login、/metrics を登録したサーバーを生成する。
func New(name string, cfg *config.Config, log zerolog.Logger) (*Server, error) {
	credentials, err := NewCredentials(cfg.AdminUser, cfg.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("管理者資格情報の初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery(log, name))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.BodyLimit(middleware.DefaultMaxBodyBytes))

	s := &Server{
		name:   name,
		cfg:    cfg,
		log:    log,
		router: router,
		gate: middleware.NewAuthGate(middleware.AuthGateConfig{
			Service:   name,
			Required:  cfg.AuthRequired,
			APIKey:    cfg.APIKey,
			JWTSecret: cfg.JWTSecret,
		}, log),
		credentials: credentials,
	}

	router.POST("/login", s.handleLogin())
	router.GET("/metrics", metrics.Handler())

	return s, nil
}

// Name はサービス名を返す。
func (s *Server) Name() string {
	return s.name
}

// Config はサービス設定を返す。
func (s *Server) Config() *config.Config {
	return s.cfg
}

// Logger はサービスのロガーを返す。
func (s *Server) Logger() *zerolog.Logger {
	return &s.log
}

// Router は公開ルートを登録するためのGinエンジンを返す。
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Protected は認証ゲートを適用したルートグループを返す。
func (s *Server) Protected() *gin.RouterGroup {
	return s.router.Group("", s.gate.Middleware())
}

// ServeHTTP はhttp.Handlerを実装する。
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまで待つ。
// キャンセル後は処理中のリクエストの完了を待ってから戻る。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().
			Str("addr", srv.Addr).
			Bool("auth_required", s.cfg.AuthRequired).
			Msg("サービスを起動します")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	s.log.Info().Msg("シャットダウンを開始します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}

// loginRequest は/loginのリクエストボディ。
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin は管理者ログインを処理し、成功時にアクセストークンを発行する。
// ユーザー名とパスワードのどちらが違うかは応答で区別しない。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Datos de login requeridos"})
			return
		}

		if !s.credentials.Verify(req.Username, req.Password) {
			s.log.Warn().Str("username", req.Username).Msg("ログインに失敗")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Credenciales inválidas"})
			return
		}

		token, err := middleware.GenerateJWT(s.cfg.JWTSecret, s.name, req.Username, middleware.TokenLifetime)
		if err != nil {
			s.log.Error().Err(err).Msg("トークンの発行に失敗")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno del servidor", "servicio": s.name})
			return
		}

		s.log.Info().Str("username", req.Username).Msg("ログインに成功")
		c.JSON(http.StatusOK, gin.H{
			"access_token": token,
			"message":      "Login exitoso",
			"servicio":     s.name,
		})
	}
}

// Timestamp はレスポンスに含める現在時刻を返す。
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
