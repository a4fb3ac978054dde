package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/microtienda/pkg/httpclient"
)

// forwardedHeaders は転送先にそのまま渡すリクエストヘッダー。
var forwardedHeaders = []string{"Content-Type", "Authorization"}

// handleProxy はリクエストをclientの連携先へ転送するハンドラを返す。
// メソッド、パス、クエリ、ボディはそのまま転送する。
func (s *Server) handleProxy(client *httpclient.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No se pudo leer la solicitud", "gateway": true})
			return
		}

		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path += "?" + c.Request.URL.RawQuery
		}

		header := http.Header{}
		for _, key := range forwardedHeaders {
			if v := c.GetHeader(key); v != "" {
				header.Set(key, v)
			}
		}

		method := c.Request.Method
		resp, err := client.Do(c.Request.Context(), method, path, body, header)
		if err != nil {
			s.Logger().Warn().Err(err).Str("method", method).Str("path", path).Msg("転送に失敗")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Error comunicándose con " + client.Service(),
				"gateway": true,
			})
			return
		}

		s.Logger().Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Str("service", client.Service()).
			Msg("転送が完了")

		if method != http.MethodGet || resp.StatusCode == http.StatusOK {
			if annotated, ok := annotate(resp.Body, client.Service()); ok {
				c.Data(resp.StatusCode, "application/json; charset=utf-8", annotated)
				return
			}
		}

		contentType := resp.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/json"
		}
		c.Data(resp.StatusCode, contentType, resp.Body)
	}
}

// annotate はJSONオブジェクトのボディに gateway と microservicio_original を追加する。
// ボディがJSONオブジェクトでない場合はfalseを返す。
func annotate(body []byte, service string) ([]byte, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return nil, false
	}
	obj["gateway"] = json.RawMessage("true")
	origin, err := json.Marshal(service)
	if err != nil {
		return nil, false
	}
	obj["microservicio_original"] = origin

	out, err := json.Marshal(obj)
	if err != nil {
		return nil, false
	}
	return out, true
}
