package gateway

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/microtienda/pkg/config"
	"github.com/nao1215/microtienda/pkg/httpclient"
	"github.com/nao1215/microtienda/pkg/service"
)

// ServiceName はレスポンスの "servicio" に含めるサービス名。
const ServiceName = "gateway-service"

// 転送先のサービス名。
const (
	UsuarioServiceName = "usuario-service"
	PedidoServiceName  = "pedido-service"
)

//go:embed static/db.html
var dbPage []byte

// Server はAPI GatewayのHTTPサーバー。
type Server struct {
	*service.Server
	// usuarios はusuario-serviceへの転送用クライアント。
	usuarios *httpclient.Client
	// pedidos はpedido-serviceへの転送用クライアント。
	pedidos *httpclient.Client
	// health は連携先のヘルスチェック集約。
	health *HealthAggregator
}

// NewServer は新しいGatewayサーバーを生成する。
// 転送用とヘルスチェック用でタイムアウトの異なるクライアントを使い分ける。
func NewServer(cfg *config.Config, log zerolog.Logger) (*Server, error) {
	base, err := service.New(ServiceName, cfg, log)
	if err != nil {
		return nil, err
	}

	proxyOpts := []httpclient.Option{
		httpclient.WithTimeout(httpclient.ProxyTimeout),
		httpclient.WithServiceAuth(cfg.AuthRequired, cfg.APIKey),
	}
	usuarios := httpclient.New(UsuarioServiceName, cfg.Peers.UsuarioServiceURL, proxyOpts...)
	pedidos := httpclient.New(PedidoServiceName, cfg.Peers.PedidoServiceURL, proxyOpts...)

	health := NewHealthAggregator([]*httpclient.Client{
		httpclient.New(UsuarioServiceName, cfg.Peers.UsuarioServiceURL, httpclient.WithTimeout(httpclient.HealthTimeout)),
		httpclient.New(PedidoServiceName, cfg.Peers.PedidoServiceURL, httpclient.WithTimeout(httpclient.HealthTimeout)),
	}, log)

	return newServer(base, usuarios, pedidos, health), nil
}

// newServer はルーティングを設定したサーバーを組み立てる。
func newServer(base *service.Server, usuarios, pedidos *httpclient.Client, health *HealthAggregator) *Server {
	s := &Server{Server: base, usuarios: usuarios, pedidos: pedidos, health: health}
	s.setupRoutes()
	return s
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	r := s.Router()
	r.GET("/", s.handleIndex())
	r.GET("/health", s.handleHealth())
	r.GET("/db", s.handleDBPage())

	p := s.Protected()
	s.proxyResource(p.Group("/usuarios"), s.usuarios)
	s.proxyResource(p.Group("/pedidos"), s.pedidos)
}

// proxyResource はコレクションと個別リソースのCRUDルートを転送先に結びつける。
func (s *Server) proxyResource(g *gin.RouterGroup, client *httpclient.Client) {
	h := s.handleProxy(client)
	g.GET("", h)
	g.POST("", h)
	g.GET("/:id", h)
	g.PUT("/:id", h)
	g.DELETE("/:id", h)
}

// handleIndex はアーキテクチャの説明と連携先の状態を返す。
func (s *Server) handleIndex() gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := s.Config()
		c.JSON(http.StatusOK, gin.H{
			"mensaje":      "Gateway API - Arquitectura de Microservicios",
			"arquitectura": "microservicios",
			"gateway": gin.H{
				"puerto":  cfg.Port,
				"version": "1.0.0",
			},
			"microservicios": gin.H{
				UsuarioServiceName: gin.H{
					"url":         cfg.Peers.UsuarioServiceURL,
					"descripcion": "Gestión de usuarios",
					"endpoints": []string{
						"GET /usuarios - Obtener todos los usuarios",
						"GET /usuarios/{id} - Obtener usuario por ID",
						"POST /usuarios - Crear nuevo usuario",
						"PUT /usuarios/{id} - Actualizar usuario",
						"DELETE /usuarios/{id} - Eliminar usuario",
					},
				},
				PedidoServiceName: gin.H{
					"url":         cfg.Peers.PedidoServiceURL,
					"descripcion": "Gestión de pedidos",
					"endpoints": []string{
						"GET /pedidos - Obtener todos los pedidos",
						"GET /pedidos/{id} - Obtener pedido por ID",
						"POST /pedidos - Crear nuevo pedido",
						"PUT /pedidos/{id} - Actualizar pedido",
						"DELETE /pedidos/{id} - Eliminar pedido",
					},
				},
			},
			"estado_servicios":        s.health.Aggregate(c.Request.Context()),
			"autenticacion_requerida": cfg.AuthRequired,
			"autenticacion": gin.H{
				"metodos": []string{
					"API Key: Agregar header 'X-API-Key' con tu API key",
					"JWT Token: Usar el token obtenido del endpoint /login",
				},
			},
			"diferencias_monolitico": gin.H{
				"ventajas_microservicios": []string{
					"Servicios independientes y escalables",
					"Comunicación HTTP entre servicios",
					"Despliegue independiente",
					"Tecnologías diferentes por servicio",
					"Falla aislada por servicio",
				},
				"comunicacion": "HTTP REST entre microservicios",
			},
		})
	}
}

// handleHealth はGateway自身と全連携先の状態を返す。
// Gateway自身は常にhealthyで、連携先が1つでもhealthyでなければdegradedになる。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		services := s.health.Aggregate(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"gateway":        "healthy",
			"timestamp":      service.Timestamp(),
			"microservicios": services,
			"overall_status": OverallStatus(services),
		})
	}
}

// handleDBPage はデータ閲覧用のHTMLページを返す。
func (s *Server) handleDBPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", dbPage)
	}
}
