// Package database はサービスごとのインメモリSQLiteと、その上の共通のテーブル操作を提供する。
// プロセス終了とともにデータは失われる。
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/rs/zerolog"
	// SQLiteドライバ（CGO不要）
	_ "modernc.org/sqlite"

	"github.com/nao1215/microtienda/pkg/migration"
)

// OpenMemory はインメモリSQLiteを開き、fsysのdir配下のマイグレーションを適用する。
// インメモリDBは接続ごとに別のデータベースになるため、接続数は1に固定する。
func OpenMemory(ctx context.Context, fsys fs.FS, dir string, log zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	applied, err := migration.Run(ctx, db, fsys, dir, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	log.Debug().Int("applied", len(applied)).Msg("インメモリDBを初期化")
	return db, nil
}
