package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DefaultMaxBodyBytes はリクエストボディの既定の上限（1MiB）。
const DefaultMaxBodyBytes int64 = 1 << 20

// BodyLimit はリクエストボディの読み込みをlimitバイトまでに制限するGinミドルウェアを返す。
// 上限を超えた読み込みはエラーになり、各ハンドラの不正ボディとして扱われる。
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
