// Package gateway はAPI Gatewayサービス（gateway-service）の内部実装を提供する。
//
// /usuarios と /pedidos 配下のリクエストを認証後にそれぞれのサービスへ転送し、
// 連携先のヘルスチェックを集約する。転送先に到達できない場合は503を返すが、
// 到達できた場合の応答（エラーを含む）はステータスを変えずに返す。
package gateway
