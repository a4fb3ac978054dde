package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testRequest はテストサーバーが受け取ったリクエスト情報を保持する構造体。
type testRequest struct {
	// Method はHTTPメソッド。
	Method string
	// Path はリクエストパス。
	Path string
	// Query はクエリ文字列。
	Query string
	// Body はリクエストボディ。
	Body []byte
	// Headers はリクエストヘッダー。
	Headers http.Header
}

// recordingServer は受信したリクエストを記録して固定レスポンスを返すテストサーバーを生成する。
// 返り値の関数で最後に受信したリクエストを取得する。
func recordingServer(t *testing.T, status int, body string) (*httptest.Server, func() testRequest) {
	t.Helper()

	var (
		mu       sync.Mutex
		received testRequest
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		received = testRequest{
			Method:  r.Method,
			Path:    r.URL.Path,
			Query:   r.URL.RawQuery,
			Body:    b,
			Headers: r.Header.Clone(),
		}
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, func() testRequest {
		mu.Lock()
		defer mu.Unlock()
		return received
	}
}

// closedServerURL は接続を拒否するURLを返す。
func closedServerURL(t *testing.T) string {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := ts.URL
	ts.Close()
	return url
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("usuario-service", "http://localhost:5004")
		if client.Service() != "usuario-service" {
			t.Errorf("Service() = %q, want %q", client.Service(), "usuario-service")
		}
		if client.BaseURL() != "http://localhost:5004" {
			t.Errorf("BaseURL() = %q, want %q", client.BaseURL(), "http://localhost:5004")
		}
	})

	t.Run("既定のタイムアウトが10秒であること", func(t *testing.T) {
		t.Parallel()

		client := New("usuario-service", "http://localhost:5004")
		if client.httpClient.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, want 10s", client.httpClient.Timeout)
		}
	})

	t.Run("WithTimeoutでタイムアウトを変更できること", func(t *testing.T) {
		t.Parallel()

		client := New("usuario-service", "http://localhost:5004", WithTimeout(LookupTimeout))
		if client.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", client.httpClient.Timeout)
		}
	})
}

// TestDo はDo関数を検証する。
func TestDo(t *testing.T) {
	t.Parallel()

	t.Run("メソッド・パス・ボディがそのまま転送されること", func(t *testing.T) {
		t.Parallel()

		ts, lastRequest := recordingServer(t, http.StatusCreated, `{"usuario":{"id":4}}`)
		client := New("usuario-service", ts.URL)

		resp, err := client.Do(context.Background(), http.MethodPost, "/usuarios?orden=desc", []byte(`{"nombre":"Ana"}`), nil)
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}

		received := lastRequest()
		if received.Method != http.MethodPost {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodPost)
		}
		if received.Path != "/usuarios" {
			t.Errorf("Path = %q, want %q", received.Path, "/usuarios")
		}
		if received.Query != "orden=desc" {
			t.Errorf("Query = %q, want %q", received.Query, "orden=desc")
		}
		if string(received.Body) != `{"nombre":"Ana"}` {
			t.Errorf("Body = %q", received.Body)
		}
		if got := received.Headers.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}

		if resp.StatusCode != http.StatusCreated {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
		if string(resp.Body) != `{"usuario":{"id":4}}` {
			t.Errorf("Body = %q", resp.Body)
		}
	})

	t.Run("エラーステータスもレスポンスとして返ること", func(t *testing.T) {
		t.Parallel()

		ts, _ := recordingServer(t, http.StatusNotFound, `{"error":"Usuario no encontrado"}`)
		client := New("usuario-service", ts.URL)

		resp, err := client.Do(context.Background(), http.MethodGet, "/usuarios/99", nil, nil)
		if err != nil {
			t.Fatalf("Do()がエラーを返すべきではない: %v", err)
		}
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("ボディがない場合はContent-Typeを付与しないこと", func(t *testing.T) {
		t.Parallel()

		ts, lastRequest := recordingServer(t, http.StatusOK, `{}`)
		client := New("usuario-service", ts.URL)

		if _, err := client.Do(context.Background(), http.MethodDelete, "/usuarios/1", nil, nil); err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		received := lastRequest()
		if len(received.Body) != 0 {
			t.Errorf("Body = %q, want empty", received.Body)
		}
		if got := received.Headers.Get("Content-Type"); got != "" {
			t.Errorf("Content-Type = %q, want empty", got)
		}
	})

	t.Run("指定したヘッダーが転送されること", func(t *testing.T) {
		t.Parallel()

		ts, lastRequest := recordingServer(t, http.StatusOK, `{}`)
		client := New("pedido-service", ts.URL)

		header := http.Header{}
		header.Set("Authorization", "Bearer abc")
		if _, err := client.Do(context.Background(), http.MethodGet, "/pedidos", nil, header); err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		received := lastRequest()
		if got := received.Headers.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer abc")
		}
	})

	t.Run("接続できないサーバーに対してTransportErrorが返ること", func(t *testing.T) {
		t.Parallel()

		client := New("usuario-service", closedServerURL(t))

		resp, err := client.Do(context.Background(), http.MethodGet, "/usuarios", nil, nil)
		if err == nil {
			t.Fatal("Do()がエラーを返すべきだが、nilが返った")
		}
		if resp != nil {
			t.Errorf("resp = %+v, want nil", resp)
		}

		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("エラーの型 = %T, want *TransportError", err)
		}
		if te.Service != "usuario-service" {
			t.Errorf("Service = %q, want %q", te.Service, "usuario-service")
		}
	})

	t.Run("タイムアウトした場合にTransportErrorが返ること", func(t *testing.T) {
		t.Parallel()

		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(func() {
			close(release)
			ts.Close()
		})

		client := New("usuario-service", ts.URL, WithTimeout(50*time.Millisecond))

		_, err := client.Do(context.Background(), http.MethodGet, "/health", nil, nil)
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("エラーの型 = %T, want *TransportError", err)
		}
	})

	t.Run("キャンセルされたコンテキストでTransportErrorが返ること", func(t *testing.T) {
		t.Parallel()

		ts, _ := recordingServer(t, http.StatusOK, `{}`)
		client := New("usuario-service", ts.URL)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := client.Do(ctx, http.MethodGet, "/usuarios", nil, nil)
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("エラーの型 = %T, want *TransportError", err)
		}
		if !errors.Is(err, context.Canceled) {
			t.Errorf("context.Canceledでラップされていない: %v", err)
		}
	})

	t.Run("リトライせず1回だけ送信すること", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(ts.Close)

		client := New("usuario-service", ts.URL)
		resp, err := client.Do(context.Background(), http.MethodGet, "/usuarios", nil, nil)
		if err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("StatusCode = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("呼び出し回数 = %d, want 1", got)
		}
	})
}

// TestWithServiceAuth はX-API-Keyヘッダーの付与条件を検証する。
func TestWithServiceAuth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		authRequired bool
		apiKey       string
		want         string
	}{
		{name: "認証必須かつキー設定ありの場合は付与されること", authRequired: true, apiKey: "clave", want: "clave"},
		{name: "認証不要の場合は付与されないこと", authRequired: false, apiKey: "clave", want: ""},
		{name: "キー未設定の場合は付与されないこと", authRequired: true, apiKey: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ts, lastRequest := recordingServer(t, http.StatusOK, `{}`)
			client := New("usuario-service", ts.URL, WithServiceAuth(tt.authRequired, tt.apiKey))

			if _, err := client.Do(context.Background(), http.MethodGet, "/usuarios", nil, nil); err != nil {
				t.Fatalf("Do()でエラーが発生: %v", err)
			}
			received := lastRequest()
			if got := received.Headers.Get(HeaderAPIKey); got != tt.want {
				t.Errorf("X-API-Key = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	type usuarioEnvelope struct {
		Usuario struct {
			ID     int64  `json:"id"`
			Nombre string `json:"nombre"`
		} `json:"usuario"`
	}

	t.Run("200の場合にレスポンスがデシリアライズされること", func(t *testing.T) {
		t.Parallel()

		ts, lastRequest := recordingServer(t, http.StatusOK, `{"usuario":{"id":1,"nombre":"Ever"}}`)
		client := New("usuario-service", ts.URL)

		var result usuarioEnvelope
		status, err := client.GetJSON(context.Background(), "/usuarios/1", &result)
		if err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if status != http.StatusOK {
			t.Errorf("status = %d, want %d", status, http.StatusOK)
		}
		received := lastRequest()
		if received.Method != http.MethodGet {
			t.Errorf("Method = %q, want %q", received.Method, http.MethodGet)
		}
		if result.Usuario.Nombre != "Ever" {
			t.Errorf("Nombre = %q, want %q", result.Usuario.Nombre, "Ever")
		}
	})

	t.Run("200以外の場合はデシリアライズせずステータスを返すこと", func(t *testing.T) {
		t.Parallel()

		ts, _ := recordingServer(t, http.StatusNotFound, `{"error":"Usuario no encontrado"}`)
		client := New("usuario-service", ts.URL)

		var result usuarioEnvelope
		status, err := client.GetJSON(context.Background(), "/usuarios/999", &result)
		if err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if status != http.StatusNotFound {
			t.Errorf("status = %d, want %d", status, http.StatusNotFound)
		}
		if result.Usuario.ID != 0 {
			t.Errorf("resultが変更された: %+v", result)
		}
	})

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts, _ := recordingServer(t, http.StatusOK, `not-json`)
		client := New("usuario-service", ts.URL)

		var result usuarioEnvelope
		if _, err := client.GetJSON(context.Background(), "/usuarios/1", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestRequestIDPropagation はリクエストIDの伝播を検証する。
func TestRequestIDPropagation(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストにリクエストIDを設定して伝播できること", func(t *testing.T) {
		t.Parallel()

		ts, lastRequest := recordingServer(t, http.StatusOK, `{}`)
		client := New("usuario-service", ts.URL)

		ctx := WithRequestID(context.Background(), "req-123")
		if _, err := client.Do(ctx, http.MethodGet, "/usuarios", nil, nil); err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		received := lastRequest()
		if got := received.Headers.Get(HeaderRequestID); got != "req-123" {
			t.Errorf("X-Request-ID = %q, want %q", got, "req-123")
		}
	})

	t.Run("空のリクエストIDは伝播しないこと", func(t *testing.T) {
		t.Parallel()

		ts, lastRequest := recordingServer(t, http.StatusOK, `{}`)
		client := New("usuario-service", ts.URL)

		ctx := WithRequestID(context.Background(), "")
		if _, err := client.Do(ctx, http.MethodGet, "/usuarios", nil, nil); err != nil {
			t.Fatalf("Do()でエラーが発生: %v", err)
		}
		received := lastRequest()
		if got := received.Headers.Get(HeaderRequestID); got != "" {
			t.Errorf("X-Request-ID = %q, want empty", got)
		}
	})
}

// TestTransportErrorMessage はTransportErrorのメッセージを検証する。
func TestTransportErrorMessage(t *testing.T) {
	t.Parallel()

	err := &TransportError{Service: "pedido-service", URL: "http://x/pedidos", Err: errors.New("connection refused")}
	var target *TransportError
	if !errors.As(error(err), &target) {
		t.Fatal("errors.Asで取り出せない")
	}
	if got := err.Error(); got == "" {
		t.Error("Error()が空文字列を返した")
	}
	if errors.Unwrap(err).Error() != "connection refused" {
		t.Errorf("Unwrap() = %v", errors.Unwrap(err))
	}
}
