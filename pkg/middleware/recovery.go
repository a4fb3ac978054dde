package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Recovery はパニックからの回復を行うGinミドルウェアを返す。
// パニック発生時にログを出力し、500エラーを返す。プロセスは停止しない。
func Recovery(log zerolog.Logger, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("method", c.Request.Method).
					Str("path", c.Request.URL.Path).
					Interface("panic", r).
					Msg("パニックから回復")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":    "Error interno del servidor",
					"servicio": service,
				})
			}
		}()
		c.Next()
	}
}
