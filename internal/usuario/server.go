package usuario

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nao1215/microtienda/pkg/config"
	"github.com/nao1215/microtienda/pkg/service"
)

// ServiceName はレスポンスの "servicio" に含めるサービス名。
const ServiceName = "usuario-service"

// Server はユーザー管理サービスのHTTPサーバー。
type Server struct {
	*service.Server
	// store はユーザーのレコードストア。
	store *Store
}

// NewServer は新しいユーザー管理サーバーを生成する。
// インメモリストアを開き、デモ用のユーザーを投入する。
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

	return newServer(base, store), nil
}

// newServer はルーティングを設定したサーバーを組み立てる。
func newServer(base *service.Server, store *Store) *Server {
	s := &Server{Server: base, store: store}
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

	usuarios := s.Protected().Group("/usuarios")
	{
		// ユーザー一覧取得
		usuarios.GET("", s.handleList())
		// ユーザー詳細取得
		usuarios.GET("/:id", s.handleGet())
		// ユーザー作成
		usuarios.POST("", s.handleCreate())
		// ユーザー更新
		usuarios.PUT("/:id", s.handleUpdate())
		// ユーザー削除
		usuarios.DELETE("/:id", s.handleDelete())
	}
}

// handleIndex はサービスの自己紹介を返す。
func (s *Server) handleIndex() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"servicio":    ServiceName,
			"version":     "1.0.0",
			"descripcion": "Microservicio para gestión de usuarios",
			"puerto":      s.Config().Port,
			"endpoints": gin.H{
				"usuarios": []string{
					"GET /usuarios - Obtener todos los usuarios",
					"GET /usuarios/{id} - Obtener usuario por ID",
					"POST /usuarios - Crear nuevo usuario",
					"PUT /usuarios/{id} - Actualizar usuario",
					"DELETE /usuarios/{id} - Eliminar usuario",
				},
				"health": []string{
					"GET /health - Estado del servicio",
				},
			},
			"autenticacion_requerida": s.Config().AuthRequired,
		})
	}
}

// handleHealth はサービス自身の状態を返す。
func (s *Server) handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"servicio":  ServiceName,
			"estado":    "healthy",
			"timestamp": service.Timestamp(),
		})
	}
}

// handleList は全ユーザーを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		usuarios, err := s.store.List(c.Request.Context())
		if err != nil {
			s.internalError(c, err)
			return
		}
		s.Logger().Debug().Int("total", len(usuarios)).Msg("ユーザー一覧を取得")
		c.JSON(http.StatusOK, gin.H{
			"usuarios": usuarios,
			"total":    len(usuarios),
			"servicio": ServiceName,
		})
	}
}

// handleGet は指定IDのユーザーを返す。
func (s *Server) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := service.ParseID(c)
		if !ok {
			s.notFound(c, c.Param("id"))
			return
		}

		u, err := s.store.Get(c.Request.Context(), id)
		if errors.Is(err, ErrNotFound) {
			s.notFound(c, id)
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"usuario":  u,
			"servicio": ServiceName,
		})
	}
}

// createRequest はユーザー作成リクエストのJSON構造。
type createRequest struct {
	// Nombre は表示名。空文字列は未指定と同じ扱い。
	Nombre string `json:"nombre" binding:"required"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Telefono は電話番号。
	Telefono string `json:"telefono"`
}

// handleCreate はユーザーを作成する。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		const requiredMsg = "El campo 'nombre' es requerido"

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

		u, err := s.store.Create(c.Request.Context(), NewUsuario{
			Nombre:   req.Nombre,
			Email:    req.Email,
			Telefono: req.Telefono,
		})
		if err != nil {
			s.internalError(c, err)
			return
		}

		s.Logger().Info().Int64("id", u.ID).Str("nombre", u.Nombre).Msg("ユーザーを作成")
		c.JSON(http.StatusCreated, gin.H{
			"usuario":  u,
			"mensaje":  "Usuario creado exitosamente",
			"servicio": ServiceName,
		})
	}
}

// handleUpdate は指定されたフィールドのみを更新する。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		const requiredMsg = "Datos de actualización requeridos"

		id, ok := service.ParseID(c)
		if !ok {
			s.notFound(c, c.Param("id"))
			return
		}

		raw, _, ok := service.ReadObject(c)
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

		u, err := s.store.Update(c.Request.Context(), id, patch)
		if errors.Is(err, ErrNotFound) {
			s.notFound(c, id)
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}

		s.Logger().Info().Int64("id", id).Msg("ユーザーを更新")
		c.JSON(http.StatusOK, gin.H{
			"usuario":  u,
			"mensaje":  "Usuario actualizado exitosamente",
			"servicio": ServiceName,
		})
	}
}

// handleDelete は指定IDのユーザーを削除する。
// このユーザーを参照する注文は削除しない。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := service.ParseID(c)
		if !ok {
			s.notFound(c, c.Param("id"))
			return
		}

		u, err := s.store.Delete(c.Request.Context(), id)
		if errors.Is(err, ErrNotFound) {
			s.notFound(c, id)
			return
		}
		if err != nil {
			s.internalError(c, err)
			return
		}

		s.Logger().Info().Int64("id", id).Msg("ユーザーを削除")
		c.JSON(http.StatusOK, gin.H{
			"usuario_eliminado": u,
			"mensaje":           "Usuario eliminado exitosamente",
			"servicio":          ServiceName,
		})
	}
}

func (s *Server) notFound(c *gin.Context, idBuscado any) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":      "Usuario no encontrado",
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
