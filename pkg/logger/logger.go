// Package logger はzerologベースの構造化ロガーを生成する。
//
// 各サービスは起動時にNewで1つのロガーを作り、Serverに注入する。
// グローバルなシングルトンは持たない。
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options はロガー生成時の設定。
type Options struct {
	// Service はすべてのログに付与するサービス名。
	Service string
	// Debug がtrueの場合はデバッグレベルまで出力し、コンソール形式で整形する。
	Debug bool
	// Output はログの出力先。nilの場合は標準出力。
	Output io.Writer
	// NoColor がtrueの場合はコンソール形式でも色付けしない。
	NoColor bool
}

// New はサービス用のロガーを生成する。
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := zerolog.InfoLevel
	if opts.Debug {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: opts.NoColor}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", opts.Service).
		Logger()
}

// Nop は何も出力しないロガーを返す。テスト用。
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
