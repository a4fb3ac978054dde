package config

import (
	"context"
	"testing"

	"github.com/sethvargo/go-envconfig"
)

// TestLoadWith はLoadWith関数を検証する。
func TestLoadWith(t *testing.T) {
	t.Parallel()

	t.Run("環境変数が未設定の場合は既定値が使われること", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}), DefaultPedidoPort)
		if err != nil {
			t.Fatalf("LoadWith()でエラーが発生: %v", err)
		}

		if cfg.JWTSecret != "fallback_secret_key" {
			t.Errorf("JWTSecret = %q, want %q", cfg.JWTSecret, "fallback_secret_key")
		}
		if cfg.AuthRequired {
			t.Error("AuthRequiredの既定値はfalseであるべき")
		}
		if cfg.AdminUser != "admin" || cfg.AdminPassword != "admin123" {
			t.Errorf("管理者資格情報 = %q/%q, want admin/admin123", cfg.AdminUser, cfg.AdminPassword)
		}
		if cfg.Peers.UsuarioServiceURL != "http://localhost:5004" {
			t.Errorf("UsuarioServiceURL = %q", cfg.Peers.UsuarioServiceURL)
		}
		if cfg.Peers.PedidoServiceURL != "http://localhost:5005" {
			t.Errorf("PedidoServiceURL = %q", cfg.Peers.PedidoServiceURL)
		}
		if cfg.Port != DefaultPedidoPort {
			t.Errorf("Port = %d, want %d", cfg.Port, DefaultPedidoPort)
		}
		if !cfg.Debug {
			t.Error("Debugの既定値はtrueであるべき")
		}
		if cfg.Addr() != "localhost:5005" {
			t.Errorf("Addr() = %q, want %q", cfg.Addr(), "localhost:5005")
		}
	})

	t.Run("環境変数の値で上書きされること", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
			"AUTH_REQUIRED":       "True",
			"API_KEY":             "clave-secreta",
			"PORT":                "9000",
			"HOST":                "0.0.0.0",
			"USUARIO_SERVICE_URL": "http://usuarios:5004",
		}), DefaultGatewayPort)
		if err != nil {
			t.Fatalf("LoadWith()でエラーが発生: %v", err)
		}

		if !cfg.AuthRequired {
			t.Error("AUTH_REQUIRED=True がtrueとして解釈されていない")
		}
		if cfg.APIKey != "clave-secreta" {
			t.Errorf("APIKey = %q, want %q", cfg.APIKey, "clave-secreta")
		}
		if cfg.Addr() != "0.0.0.0:9000" {
			t.Errorf("Addr() = %q, want %q", cfg.Addr(), "0.0.0.0:9000")
		}
		if cfg.Peers.UsuarioServiceURL != "http://usuarios:5004" {
			t.Errorf("UsuarioServiceURL = %q", cfg.Peers.UsuarioServiceURL)
		}
	})

	t.Run("不正な真偽値の場合はエラーが返ること", func(t *testing.T) {
		t.Parallel()

		_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
			"AUTH_REQUIRED": "tal-vez",
		}), DefaultUsuarioPort)
		if err == nil {
			t.Fatal("LoadWith()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("範囲外のポートはエラーになること", func(t *testing.T) {
		t.Parallel()

		_, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
			"PORT": "70000",
		}), DefaultUsuarioPort)
		if err == nil {
			t.Fatal("LoadWith()がエラーを返すべきだが、nilが返った")
		}
	})
}
