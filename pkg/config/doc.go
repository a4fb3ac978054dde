// Package config は全サービス共通の環境変数設定を提供する。
//
// 3つのサービス（usuario / pedido / gateway）は同じ設定キーを共有し、
// 既定ポートのみがサービスごとに異なる。認識する設定キーはConfigの
// フィールドに列挙したものだけである。
package config
