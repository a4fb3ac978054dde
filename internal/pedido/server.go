package pedido

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/microtienda/pkg/config"
	"github.com/nao1215/microtienda/pkg/httpclient"
	"github.com/nao1215/microtienda/pkg/service"
)

// ServiceName はレスポンスの "servicio" に含めるサービス名。
const ServiceName = "pedido-service"

// UsuarioServiceName は連携先のユーザー管理サービス名。
const UsuarioServiceName = "usuario-service"

// 依存先の接続状態。
const (
	dependencyConnected    = "connected"
	dependencyDisconnected = "disconnected"
)

// Server は注文管理サービスのHTTPサーバー。
type Server struct {
	*service.Server
	// store は注文のレコードストア。
	store *Store
	// users はusuario-serviceへのユーザー問い合わせ。
	users *UserLookup
	// probe はusuario-serviceのヘルスチェック用クライアント。
	probe *httpclient.Client
}

// NewServer は新しい注文管理サーバーを生成する。
// インメモリストアを開き、デモ用の注文を投入する。
func NewServer(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Server, error) {
	base, err := service.New(ServiceName, cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("ストアの初期化に失敗: %w", err)
	}
	if err := store.Seed(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	users := NewUserLookup(httpclient.New(UsuarioServiceName, cfg.Peers.UsuarioServiceURL,
		httpclient.WithTimeout(httpclient.LookupTimeout),
		httpclient.WithServiceAuth(cfg.AuthRequired, cfg.APIKey),
	), log)
	probe := httpclient.New(UsuarioServiceName, cfg.Peers.UsuarioServiceURL,
		httpclient.WithTimeout(httpclient.DependencyTimeout),
	)

	return newServer(base, store, users, probe), nil
}

// newServer はルーティングを設定したサーバーを組み立てる。
func newServer(base *service.Server, store *Store, users *UserLookup, probe *httpclient.Client) *Server {
	s := &Server{Server: base, store: store, users: users, probe: probe}
	s.setupRoutes()
	return s
}

// Close はストアを閉じる。
func (s *Server) Close() error {
	return s.store.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	r := s.Router()
	r.GET("/", s.handleIndex())
	r.GET("/health", s.handleHealth())

	pedidos := s.Protected().Group("/pedidos")
	{
		// 注文一覧取得（ユーザー名を補完）
		pedidos.GET("", s.handleList())
		// 注文詳細取得（ユーザー名を補完）
		pedidos.GET("/:id", s.handleGet())
		// 注文作成（ユーザーの存在を確認）
		pedidos.POST("", s.handleCreate())
		// 注文更新（usuario_id変更時はユーザーの存在を確認）
		pedidos.PUT("/:id", s.handleUpdate())
		// 注文削除
		pedidos.DELETE("/:id", s.handleDelete())
	}
}

// handleIndex はサービスの自己紹介を返す。
func (s *Server) handleIndex() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"servicio":    ServiceName,
			"version":     "1.0.0",
			"descripcion": "Microservicio para gestión de pedidos",
			"puerto":      s.Config().Port,
			"servicios_conectados": gin.H{
				UsuarioServiceName: s.Config().Peers.UsuarioServiceURL,
			},
			"endpoints": gin.H{
				"pedidos": []string{
					"GET /pedidos - Obtener todos los pedidos",
					"GET /pedidos/{id} - Obtener pedido por ID",
					"POST /pedidos - Crear nuevo pedido",
					"PUT /pedidos/{id} - Actualizar pedido",
					"DELETE /pedidos/{id} - Eliminar pedido",
				},
				"health": []string{
					"GET /health - Estado del servicio",
				},
			},
			"autenticacion_requerida": s.Config().AuthRequired,
		})
	}
}

// handleHealth はサービス自身の状態とusuario-serviceへの接続状態を返す。
// 依存先に到達できなくてもこのサービス自体はhealthyとして応答する。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		status := dependencyDisconnected
		resp, err := s.probe.Do(c.Request.Context(), http.MethodGet, "/health", nil, nil)
		if err == nil && resp.StatusCode == http.StatusOK {
			status = dependencyConnected
		}

		c.JSON(http.StatusOK, gin.H{
			"servicio":  ServiceName,
			"estado":    "healthy",
			"timestamp": service.Timestamp(),
			"dependencias": gin.H{
				UsuarioServiceName: status,
			},
		})
	}
}

// handleList は全注文をユーザー名付きで返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		pedidos, err := s.store.List(c.Request.Context())
		if err != nil {
			s.internalError(c, err)
			return
		}

		detalles := s.users.EnrichAll(c.Request.Context(), pedidos)
		s.Logger().Debug().Int("total", len(detalles)).Msg("注文一覧を取得")
		c.JSON(http.StatusOK, gin.H{
			"pedidos":                     detalles,
			"total":                       len(detalles),
			"servicio":                    ServiceName,
			"comunicacion_microservicios": true,
		})
	}
}

// pedidoResponse は注文詳細のレスポンス。補完済みの注文をそのまま展開する。
type pedidoResponse struct {
	PedidoDetalle
	Servicio                   string `json:"servicio"`
	ComunicacionMicroservicios bool   `json:"comunicacion_microservicios"`
}

// handleGet は指定IDの注文をユーザー名付きで返す。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := service.ParseID(c)
		if !ok {
			s.notFound(c, c.Param("id"))
			return
		}

		p, err := s.store.Get(c.Request.Context(), id)
		if errors.Is(err, ErrNotFound) {
			s.notFound(c, id)
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}

		c.JSON(http.StatusOK, pedidoResponse{
			PedidoDetalle:              s.users.Enrich(c.Request.Context(), p),
			Servicio:                   ServiceName,
			ComunicacionMicroservicios: true,
		})
	}
}

// createRequest は注文作成リクエストのJSON構造。
type createRequest struct {
	// UsuarioID は注文するユーザーのID。0は未指定と同じ扱い。
	UsuarioID int64 `json:"usuario_id" binding:"required"`
	// Producto は商品名。
	Producto string `json:"producto" binding:"required"`
	// Cantidad は数量。省略時はDefaultCantidad。
	Cantidad *int `json:"cantidad"`
	// Precio は単価。省略時はDefaultPrecio。
	Precio *float64 `json:"precio"`
	// Estado は状態。省略時はDefaultEstado。
	Estado *string `json:"estado"`
}

// handleCreate は注文を作成する。
// usuario-serviceでユーザーを確認できない場合は400を返し、何も保存しない。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		const requiredMsg = "Datos del pedido requeridos"

		raw, _, ok := service.ReadObject(c)
		if !ok {
			s.badRequest(c, requiredMsg)
			return
		}
		var req createRequest
		if err := service.BindBody(raw, &req); err != nil {
			msg, ok := service.BindingMessage(err)
			if !ok {
				msg = requiredMsg
			}
			s.badRequest(c, msg)
			return
		}

		if !s.users.Exists(c.Request.Context(), req.UsuarioID) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      "Usuario no encontrado",
				"usuario_id": req.UsuarioID,
				"mensaje":    "El usuario debe existir en el microservicio de usuarios",
				"servicio":   ServiceName,
			})
			return
		}

		p, err := s.store.Create(c.Request.Context(), NewPedido{
			UsuarioID: req.UsuarioID,
			Producto:  req.Producto,
			Cantidad:  req.Cantidad,
			Precio:    req.Precio,
			Estado:    req.Estado,
		})
		if err != nil {
			s.internalError(c, err)
			return
		}

		s.Logger().Info().Int64("id", p.ID).Int64("usuario_id", p.UsuarioID).Msg("注文を作成")
		c.JSON(http.StatusCreated, gin.H{
			"pedido":   p,
			"mensaje":  "Pedido creado exitosamente",
			"servicio": ServiceName,
		})
	}
}

// handleUpdate は指定されたフィールドのみを更新する。
// usuario_idが含まれる場合は注文の存在確認より先にユーザーを確認する。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		const requiredMsg = "Datos de actualización requeridos"

		id, ok := service.ParseID(c)
		if !ok {
			s.notFound(c, c.Param("id"))
			return
		}

		raw, fields, ok := service.ReadObject(c)
		if !ok {
			s.badRequest(c, requiredMsg)
			return
		}
		var patch Patch
		if err := service.BindBody(raw, &patch); err != nil {
			msg, ok := service.BindingMessage(err)
			if !ok {
				msg = requiredMsg
			}
			s.badRequest(c, msg)
			return
		}

		if rawUsuarioID, present := fields["usuario_id"]; present {
			if patch.UsuarioID == nil || !s.users.Exists(c.Request.Context(), *patch.UsuarioID) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":      "Usuario no encontrado",
					"usuario_id": json.RawMessage(rawUsuarioID),
					"servicio":   ServiceName,
				})
				return
			}
		}

		p, err := s.store.Update(c.Request.Context(), id, patch)
		if errors.Is(err, ErrNotFound) {
			s.notFound(c, id)
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}

		s.Logger().Info().Int64("id", id).Msg("注文を更新")
		c.JSON(http.StatusOK, gin.H{
			"pedido":   p,
			"mensaje":  "Pedido actualizado exitosamente",
			"servicio": ServiceName,
		})
	}
}

// handleDelete は指定IDの注文を削除する。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := service.ParseID(c)
		if !ok {
			s.notFound(c, c.Param("id"))
			return
		}

		p, err := s.store.Delete(c.Request.Context(), id)
		if errors.Is(err, ErrNotFound) {
			s.notFound(c, id)
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}

		s.Logger().Info().Int64("id", id).Msg("注文を削除")
		c.JSON(http.StatusOK, gin.H{
			"pedido_eliminado": p,
			"mensaje":          "Pedido eliminado exitosamente",
			"servicio":         ServiceName,
		})
	}
}

func (s *Server) notFound(c *gin.Context, idBuscado any) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":      "Pedido no encontrado",
		"id_buscado": idBuscado,
		"servicio":   ServiceName,
	})
}

func (s *Server) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":    msg,
		"servicio": ServiceName,
	})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.Logger().Error().Err(err).Str("path", c.Request.URL.Path).Msg("ストア操作に失敗")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":    "Error interno del servidor",
		"servicio": ServiceName,
	})
}
