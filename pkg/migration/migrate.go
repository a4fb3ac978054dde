// Package migration はサービスのSQLiteスキーマを埋め込みSQLから構築する。
//
// ファイル名は 000001_description.up.sql の形式で、バージョン番号の昇順に
// 1ファイルずつトランザクション内で適用する。適用済みのバージョンは
// schema_migrations テーブルに記録し、再実行時にはスキップする。
package migration

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const upSuffix = ".up.sql"

// Migration は1つのマイグレーションファイル。
type Migration struct {
	// Version はファイル名先頭の番号。
	Version int
	// Name はバージョン番号と拡張子を除いた説明部分。
	Name string

	file string
}

// Load はdir配下のマイグレーションをバージョン順に返す。
// 形式に合わないファイルは無視し、同じバージョンが複数ある場合はエラーにする。
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションディレクトリの読み込みに失敗: %w", err)
	}

	var found []Migration
	for _, entry := range entries {
		m, ok := parseName(entry.Name())
		if !ok || entry.IsDir() {
			continue
		}
		m.file = path.Join(dir, entry.Name())
		found = append(found, m)
	}

	slices.SortFunc(found, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	for i := 1; i < len(found); i++ {
		if found[i].Version == found[i-1].Version {
			return nil, fmt.Errorf("バージョン %06d が重複しています: %s, %s", found[i].Version, found[i-1].Name, found[i].Name)
		}
	}
	return found, nil
}

// parseName は 000001_description.up.sql を解釈する。
func parseName(filename string) (Migration, bool) {
	base, ok := strings.CutSuffix(filename, upSuffix)
	if !ok {
		return Migration{}, false
	}
	prefix, name, ok := strings.Cut(base, "_")
	if !ok {
		return Migration{}, false
	}
	version, err := strconv.Atoi(prefix)
	if err != nil || version <= 0 {
		return Migration{}, false
	}
	return Migration{Version: version, Name: name}, true
}

// Run は未適用のマイグレーションを適用し、今回適用したものを順に返す。
// 途中で失敗した場合は、それまでに適用したものとエラーを返す。
func Run(ctx context.Context, db *sql.DB, fsys fs.FS, dir string, log zerolog.Logger) ([]Migration, error) {
	migrations, err := Load(fsys, dir)
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	)`); err != nil {
		return nil, fmt.Errorf("schema_migrationsの作成に失敗: %w", err)
	}

	done, err := appliedSet(ctx, db)
	if err != nil {
		return nil, err
	}

	var applied []Migration
	for _, m := range migrations {
		if _, ok := done[m.Version]; ok {
			continue
		}
		if err := apply(ctx, db, fsys, m); err != nil {
			return applied, fmt.Errorf("マイグレーション %06d_%s の適用に失敗: %w", m.Version, m.Name, err)
		}
		log.Debug().Int("version", m.Version).Str("name", m.Name).Msg("マイグレーションを適用")
		applied = append(applied, m)
	}
	return applied, nil
}

func appliedSet(ctx context.Context, db *sql.DB) (map[int]struct{}, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("適用済みバージョンの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	done := make(map[int]struct{})
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("適用済みバージョンの読み取りに失敗: %w", err)
		}
		done[v] = struct{}{}
	}
	return done, rows.Err()
}

// apply はSQLの実行とバージョンの記録を同じトランザクションで行う。
func apply(ctx context.Context, db *sql.DB, fsys fs.FS, m Migration) error {
	script, err := fs.ReadFile(fsys, m.file)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
		return err
	}
	return tx.Commit()
}
