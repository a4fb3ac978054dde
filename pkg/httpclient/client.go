package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nao1215/microtienda/pkg/metrics"
)

// 呼び出し元ごとの固定タイムアウト。
const (
	// ProxyTimeout はgatewayからバックエンドへのプロキシ呼び出しのタイムアウト。
	ProxyTimeout = 10 * time.Second
	// LookupTimeout はpedido-serviceからのユーザー照会のタイムアウト。
	LookupTimeout = 5 * time.Second
	// HealthTimeout はgatewayのヘルスチェックのタイムアウト。
	HealthTimeout = 5 * time.Second
	// DependencyTimeout はpedido-serviceの依存先ヘルスチェックのタイムアウト。
	DependencyTimeout = 3 * time.Second
)

// HeaderAPIKey は事前共有キーを送るHTTPヘッダー。
const HeaderAPIKey = "X-API-Key"

// HeaderRequestID はリクエストIDを伝播するHTTPヘッダー。
const HeaderRequestID = "X-Request-ID"

// Client はサービス間通信用のHTTPクライアント。
// 1つの連携先サービスと1つのタイムアウトに束縛される。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// service は接続先サービス名（メトリクスとエラーに使用）。
	service string
	// baseURL は接続先サービスのベースURL。
	baseURL string
	// apiKey は空でなければX-API-Keyヘッダーとして付与する。
	apiKey string
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithTimeout は1回の呼び出し全体のタイムアウトを設定する。
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithServiceAuth は認証必須かつキーが設定されている場合にのみ、
// 送信するリクエストへX-API-Keyを付与する。
func WithServiceAuth(authRequired bool, apiKey string) Option {
	return func(c *Client) {
		if authRequired && apiKey != "" {
			c.apiKey = apiKey
		}
	}
}

// WithTransport は内部のhttp.RoundTripperを差し替える。
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// New は新しいサービス間通信用HTTPクライアントを生成する。
// serviceには接続先サービス名（例: "usuario-service"）、baseURLには
// ベースURL（例: "http://localhost:5004"）を指定する。既定のタイムアウトはProxyTimeout。
func New(service, baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: ProxyTimeout,
		},
		service: service,
		baseURL: baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service は接続先サービス名を返す。
func (c *Client) Service() string {
	return c.service
}

// BaseURL は接続先サービスのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Response は連携先から受信したHTTPレスポンス。
// ステータスコードは解釈せずにそのまま保持する。
type Response struct {
	// StatusCode はHTTPステータスコード。
	StatusCode int
	// Header はレスポンスヘッダー。
	Header http.Header
	// Body はレスポンスボディ全体。
	Body []byte
}

// TransportError は連携先に到達できなかったことを表すエラー。
// 境界では常に503にマッピングされる。
type TransportError struct {
	// Service は接続先サービス名。
	Service string
	// URL はリクエスト先URL。
	URL string
	// Err は原因となったエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *TransportError) Error() string {
	return fmt.Sprintf("%sとの通信に失敗: url=%s: %v", e.Service, e.URL, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Do は baseURL + path に対してリクエストを1回だけ送信する。
// HTTPレスポンスを受信した場合はステータスコードに関わらず*Responseを返し、
// 通信自体に失敗した場合は*TransportErrorを返す。
func (c *Client) Do(ctx context.Context, method, path string, body []byte, header http.Header) (*Response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, &TransportError{Service: c.service, URL: url, Err: err}
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if len(body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(HeaderAPIKey, c.apiKey)
	}
	if requestID, ok := RequestIDFrom(ctx); ok {
		req.Header.Set(HeaderRequestID, requestID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(metrics.OutcomeTransportFailure, start)
		return nil, &TransportError{Service: c.service, URL: url, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		// ボディの途中でタイムアウトした場合も通信失敗として扱う
		c.observe(metrics.OutcomeTransportFailure, start)
		return nil, &TransportError{Service: c.service, URL: url, Err: fmt.Errorf("レスポンスの読み取りに失敗: %w", err)}
	}
	c.observe(metrics.OutcomeResponse, start)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// GetJSON は指定パスにGETリクエストを送信し、ステータスコードを返す。
// ステータスが200の場合のみレスポンスボディをresultにデシリアライズする。
func (c *Client) GetJSON(ctx context.Context, path string, result any) (int, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK || result == nil {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return resp.StatusCode, fmt.Errorf("レスポンスボディのデシリアライズに失敗: %w", err)
	}
	return resp.StatusCode, nil
}

// observe は呼び出し結果をメトリクスに記録する。
func (c *Client) observe(outcome string, start time.Time) {
	metrics.UpstreamRequestsTotal.WithLabelValues(c.service, outcome).Inc()
	metrics.UpstreamRequestDuration.WithLabelValues(c.service).Observe(time.Since(start).Seconds())
}

// contextKey はコンテキストキーの型。
type contextKey string

// contextKeyRequestID はコンテキストにリクエストIDを格納するためのキー。
const contextKeyRequestID contextKey = "request_id"

// WithRequestID はコンテキストにリクエストIDを設定する。
// サービス間通信時にリクエストIDを伝播するために使用する。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, requestID)
}

// RequestIDFrom はコンテキストからリクエストIDを取り出す。
func RequestIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKeyRequestID).(string)
	return id, ok && id != ""
}
