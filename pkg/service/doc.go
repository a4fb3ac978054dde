// Package service は3つのサービスが共有するHTTPサーバーの骨格を提供する。
//
// Ginエンジンの共通ミドルウェア（Recovery、リクエストID、アクセスログ）、
// 認証ゲート、/login、/metrics、グレースフルシャットダウン付きの起動処理をまとめ、
// 各サービスは自分のルートだけを登録する。
package service
