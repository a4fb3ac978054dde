// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// gatewayからバックエンドへのプロキシ、pedido-serviceからusuario-serviceへの
// ユーザー照会、ヘルスチェックなど、サービス間の通信パターンを統一する。
// 受信したHTTPレスポンスはステータスコードに関わらず成功として返し、
// 接続拒否・名前解決失敗・タイムアウトなどの通信失敗のみを
// TransportErrorとして返す。リトライは行わない。
package httpclient
