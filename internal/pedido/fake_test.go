package pedido

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeUsuarios はusuario-serviceのテスト用代替。
// GET /usuarios/{id} と GET /health だけを実装する。
type fakeUsuarios struct {
	mu           sync.Mutex
	users        map[int64]string
	calls        map[int64]int
	apiKeys      []string
	healthStatus int
}

// newFakeUsuarios は指定したユーザーを持つ代替サービスを起動する。
func newFakeUsuarios(t *testing.T, users map[int64]string) (*fakeUsuarios, *httptest.Server) {
	t.Helper()

	f := &fakeUsuarios{
		users:        users,
		calls:        map[int64]int{},
		healthStatus: http.StatusOK,
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeUsuarios) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/health" {
		f.mu.Lock()
		status := f.healthStatus
		f.mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"estado":"healthy"}`))
		return
	}

	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/usuarios/"), 10, 64)
	if r.Method != http.MethodGet || err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	f.mu.Lock()
	f.calls[id]++
	f.apiKeys = append(f.apiKeys, r.Header.Get("X-API-Key"))
	nombre, ok := f.users[id]
	f.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "Usuario no encontrado", "id_buscado": id})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"usuario":  map[string]any{"id": id, "nombre": nombre},
		"servicio": "usuario-service",
	})
}

// callCount は指定IDへの問い合わせ回数を返す。
func (f *fakeUsuarios) callCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

// receivedAPIKeys は受信したX-API-Keyの一覧を返す。
func (f *fakeUsuarios) receivedAPIKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.apiKeys...)
}

// setHealthStatus は/healthの応答ステータスを変更する。
func (f *fakeUsuarios) setHealthStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthStatus = status
}

// closedServerURL は接続が拒否されるURLを返す。
func closedServerURL(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}
