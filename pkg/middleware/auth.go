package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/microtienda/pkg/metrics"
)

// 認証方式。Decision.Methodに設定される。
const (
	AuthMethodDisabled = "disabled"
	AuthMethodAPIKey   = "api_key"
	AuthMethodJWT      = "jwt"
)

// contextKeyPrincipal はGinコンテキストに認証済み主体を格納するキー。
const contextKeyPrincipal = "principal"

// Decision はリクエストごとの認証判定結果。永続化はしない。
type Decision struct {
	// Authorized は認証に成功したかどうか。
	Authorized bool
	// Principal はJWTで認証された場合のsubject。それ以外は空文字列。
	Principal string
	// Method は認証に成功した方式。失敗時は空文字列。
	Method string
}

// AuthGateConfig は認証ゲートの設定。
type AuthGateConfig struct {
	// Service は401レスポンスとログに含めるサービス名。
	Service string
	// Required がfalseの場合は全リクエストを許可する。
	Required bool
	// APIKey はX-API-Keyヘッダーと照合する事前共有キー。空の場合はAPI Key認証を無効にする。
	APIKey string
	// JWTSecret はBearerトークンの検証に使う秘密鍵。
	JWTSecret string
}

// AuthGate はAPI KeyまたはBearerトークンでリクエストを認可する。
// 3つのサービスで同じ判定規則を共有する。
type AuthGate struct {
	cfg AuthGateConfig
	log zerolog.Logger
}

// NewAuthGate は新しい認証ゲートを生成する。
func NewAuthGate(cfg AuthGateConfig, log zerolog.Logger) *AuthGate {
	return &AuthGate{cfg: cfg, log: log}
}

// Authorize はリクエストを判定する。次の順に評価し、最初に成功したものを採用する。
//
//  1. 認証不要の設定であれば許可する（主体なし）
//  2. X-API-Keyが設定済みのキーと一致すれば許可する（主体なし）
//  3. Bearerトークンが有効であれば許可する（主体はsubject）
//  4. それ以外は拒否する
//
// 不正・期限切れのトークンはヘッダーなしと同じ扱いになり、エラーを外に出さない。
func (g *AuthGate) Authorize(r *http.Request) Decision {
	if !g.cfg.Required {
		return Decision{Authorized: true, Method: AuthMethodDisabled}
	}

	if g.matchAPIKey(r.Header.Get("X-API-Key")) {
		g.log.Debug().Msg("API Keyによる認証に成功")
		return Decision{Authorized: true, Method: AuthMethodAPIKey}
	}

	tokenString, found := bearerToken(r.Header.Get("Authorization"))
	if found {
		claims, err := ParseJWT(g.cfg.JWTSecret, tokenString)
		if err == nil {
			g.log.Debug().Str("principal", claims.Subject).Msg("JWTによる認証に成功")
			return Decision{Authorized: true, Principal: claims.Subject, Method: AuthMethodJWT}
		}
		g.log.Debug().Err(err).Msg("JWT認証でエラー")
	}

	g.log.Debug().Str("path", r.URL.Path).Msg("認証に失敗")
	return Decision{}
}

// Middleware は保護対象のルートに適用するGinミドルウェアを返す。
// 拒否した場合は固定の401レスポンスを返し、後続のハンドラを実行しない。
func (g *AuthGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := g.Authorize(c.Request)

		method := decision.Method
		if method == "" {
			method = "none"
		}
		metrics.AuthDecisionsTotal.WithLabelValues(g.cfg.Service, method).Inc()

		if !decision.Authorized {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "No autorizado",
				"mensaje":  "Se requiere autenticación válida (API Key o JWT Token)",
				"codigo":   http.StatusUnauthorized,
				"servicio": g.cfg.Service,
			})
			return
		}

		if decision.Principal != "" {
			c.Set(contextKeyPrincipal, decision.Principal)
		}
		c.Next()
	}
}

// matchAPIKey は受信したキーを定数時間で比較する。
// キーが未設定の場合は常に不一致とする。
func (g *AuthGate) matchAPIKey(received string) bool {
	if g.cfg.APIKey == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(g.cfg.APIKey)) == 1
}

// bearerToken はAuthorizationヘッダーからトークン部分を取り出す。
func bearerToken(header string) (string, bool) {
	if len(header) < len("Bearer ") || !strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[len("Bearer "):])
	return token, token != ""
}

// GetPrincipal はGinコンテキストからJWTで認証された主体を取得する。
// AuthGate.Middlewareが事前に適用されている必要がある。
func GetPrincipal(c *gin.Context) string {
	principal, _ := c.Get(contextKeyPrincipal)
	if p, ok := principal.(string); ok {
		return p
	}
	return ""
}
