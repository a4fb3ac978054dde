package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNoRow は指定したIDの行が存在しないことを表す。
var ErrNoRow = errors.New("行が存在しません")

// Scanner は*sql.Rowと*sql.Rowsに共通する読み取り操作。
type Scanner interface {
	Scan(dest ...any) error
}

// rowQueryer は*sql.DBと*sql.Txに共通する1行取得操作。
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Assignments は INSERT / UPDATE で設定する列と値の組。追加した順序を保つ。
// 列名はコード内の定数のみを渡すこと。
type Assignments struct {
	columns []string
	values  []any
}

// Set は列に値を設定する。
func (a *Assignments) Set(column string, value any) {
	a.columns = append(a.columns, column)
	a.values = append(a.values, value)
}

// SetIf はvalueがnilでない場合のみ列に値を設定する。部分更新に使う。
func SetIf[V any](a *Assignments, column string, value *V) {
	if value != nil {
		a.Set(column, *value)
	}
}

// Table は AUTOINCREMENT の id 列を主キーに持つ1テーブルへのCRUD操作。
// Tは1行を表す型で、scanはselectColumnsの順に読み取る。
type Table[T any] struct {
	db            *sql.DB
	name          string
	selectColumns string
	scan          func(Scanner) (T, error)
}

// NewTable は新しいTableを生成する。
func NewTable[T any](db *sql.DB, name, selectColumns string, scan func(Scanner) (T, error)) *Table[T] {
	return &Table[T]{db: db, name: name, selectColumns: selectColumns, scan: scan}
}

func (t *Table[T]) selectSQL() string {
	return "SELECT " + t.selectColumns + " FROM " + t.name
}

// List は全行をid順に返す。0件の場合は空のスライスを返す。
func (t *Table[T]) List(ctx context.Context) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, t.selectSQL()+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%sの一覧取得に失敗: %w", t.name, err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]T, 0)
	for rows.Next() {
		item, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%sの行の読み取りに失敗: %w", t.name, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get は指定idの行を返す。存在しない場合はErrNoRow。
func (t *Table[T]) Get(ctx context.Context, id int64) (T, error) {
	return t.get(ctx, t.db, id)
}

func (t *Table[T]) get(ctx context.Context, q rowQueryer, id int64) (T, error) {
	item, err := t.scan(q.QueryRowContext(ctx, t.selectSQL()+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		var zero T
		return zero, ErrNoRow
	}
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%sの取得に失敗: id=%d: %w", t.name, id, err)
	}
	return item, nil
}

// Insert は1行を挿入し、採番されたidを返す。
// 採番はINSERT自体で行われるため、同時に挿入されてもidは重複しない。
func (t *Table[T]) Insert(ctx context.Context, a Assignments) (int64, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(a.columns)), ", ")
	query := "INSERT INTO " + t.name + " (" + strings.Join(a.columns, ", ") + ") VALUES (" + placeholders + ")"

	res, err := t.db.ExecContext(ctx, query, a.values...)
	if err != nil {
		return 0, fmt.Errorf("%sへの挿入に失敗: %w", t.name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("採番IDの取得に失敗: %w", err)
	}
	return id, nil
}

// Update は指定idの行に列を設定し、更新後の行を返す。
// 更新と再取得は同じトランザクションで行う。存在しない場合はErrNoRow。
func (t *Table[T]) Update(ctx context.Context, id int64, a Assignments) (T, error) {
	var zero T
	if len(a.columns) == 0 {
		return t.Get(ctx, id)
	}

	sets := make([]string, len(a.columns))
	for i, column := range a.columns {
		sets[i] = column + " = ?"
	}
	args := append(append([]any{}, a.values...), id)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "UPDATE "+t.name+" SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return zero, fmt.Errorf("%sの更新に失敗: id=%d: %w", t.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return zero, fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if n == 0 {
		return zero, ErrNoRow
	}

	item, err := t.get(ctx, tx, id)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("コミットに失敗: %w", err)
	}
	return item, nil
}

// Delete は指定idの行を削除し、削除前の行を返す。存在しない場合はErrNoRow。
func (t *Table[T]) Delete(ctx context.Context, id int64) (T, error) {
	var zero T

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return zero, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	item, err := t.get(ctx, tx, id)
	if err != nil {
		return zero, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ?", id); err != nil {
		return zero, fmt.Errorf("%sの削除に失敗: id=%d: %w", t.name, id, err)
	}
	if err := tx.Commit(); err != nil {
		return zero, fmt.Errorf("コミットに失敗: %w", err)
	}
	return item, nil
}
