// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// API Key / JWTによる認証ゲート、JWTの発行と検証、リクエストID、
// 構造化リクエストログ、ボディサイズの制限、パニックリカバリなど、全サービスで共通して
// 使用するミドルウェアを含む。
package middleware
