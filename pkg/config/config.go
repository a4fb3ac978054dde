package config

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/sethvargo/go-envconfig"
)

// Config は環境変数から読み込むサービス設定。
type Config struct {
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string `env:"JWT_SECRET, default=fallback_secret_key"`
	// AppSecret はアプリケーション秘密鍵。互換性のために受け付けるが、
	// 現在どのコンポーネントも署名に使用していない。
	AppSecret string `env:"SECRET_KEY, default=fallback_secret"`
	// APIKey はX-API-Keyヘッダーで照合する事前共有キー。
	APIKey string `env:"API_KEY"`
	// AuthRequired がfalseの場合、認証ゲートは全リクエストを許可する。
	AuthRequired bool `env:"AUTH_REQUIRED, default=false"`
	// AdminUser は/loginで照合する管理者ユーザー名。
	AdminUser string `env:"ADMIN_USER, default=admin"`
	// AdminPassword は/loginで照合する管理者パスワード。
	AdminPassword string `env:"ADMIN_PASSWORD, default=admin123"`

	// Peers は連携先サービスのベースURL。
	Peers PeerConfig

	// Host はリッスンするホスト名。
	Host string `env:"HOST, default=localhost"`
	// Port はリッスンポート。0の場合はサービスごとの既定値を使う。
	Port int `env:"PORT"`
	// Debug はGinのデバッグモードとデバッグログを有効にする。
	Debug bool `env:"DEBUG, default=true"`
}

// PeerConfig は連携先サービスのURL設定。
type PeerConfig struct {
	// UsuarioServiceURL はusuario-serviceのベースURL。
	UsuarioServiceURL string `env:"USUARIO_SERVICE_URL, default=http://localhost:5004"`
	// PedidoServiceURL はpedido-serviceのベースURL。
	PedidoServiceURL string `env:"PEDIDO_SERVICE_URL, default=http://localhost:5005"`
}

// 各サービスの既定ポート。
const (
	DefaultGatewayPort = 5003
	DefaultUsuarioPort = 5004
	DefaultPedidoPort  = 5005
)

// Load は環境変数から設定を読み込む。
// PORTが未設定の場合はdefaultPortを使用する。
func Load(ctx context.Context, defaultPort int) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper(), defaultPort)
}

// LoadWith は指定したLookuperから設定を読み込む。
// テストではenvconfig.MapLookuperを渡して環境変数を汚さずに検証する。
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper, defaultPort int) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORTが範囲外です: %d", cfg.Port)
	}
	return &cfg, nil
}

// Addr はリッスンアドレスを "host:port" 形式で返す。
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
