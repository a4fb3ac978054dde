package usuario

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/microtienda/pkg/database"
)

// ErrNotFound は指定したIDのユーザーが存在しないことを表す。
var ErrNotFound = errors.New("usuario no encontrado")

// Usuario はユーザーのレコード。
type Usuario struct {
	// ID は作成時に採番される一意識別子。削除後も再利用されない。
	ID int64 `json:"id"`
	// Nombre は表示名。
	Nombre string `json:"nombre"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// Telefono は電話番号。
	Telefono string `json:"telefono"`
	// FechaCreacion は作成日時。
	FechaCreacion string `json:"fecha_creacion"`
	// FechaActualizacion は最終更新日時。一度も更新されていない場合は省略される。
	FechaActualizacion string `json:"fecha_actualizacion,omitempty"`
}

// NewUsuario はユーザー作成時の入力。
type NewUsuario struct {
	Nombre   string
	Email    string
	Telefono string
}

// Patch は部分更新の入力。nilのフィールドは変更しない。
type Patch struct {
	Nombre   *string `json:"nombre"`
	Email    *string `json:"email"`
	Telefono *string `json:"telefono"`
}

// Store はユーザーのレコードストア。
// 単一接続のSQLiteに対して、書き込みは1文または1トランザクションで行う。
type Store struct {
	db    *sql.DB
	table *database.Table[Usuario]
	now   func() time.Time
}

const usuarioColumns = `id, nombre, email, telefono, fecha_creacion, COALESCE(fecha_actualizacion, '')`

// NewStore はマイグレーション済みのDBからストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:    db,
		table: database.NewTable(db, "usuarios", usuarioColumns, scanUsuario),
		now:   time.Now,
	}
}

// Close はDB接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

func scanUsuario(row database.Scanner) (Usuario, error) {
	var u Usuario
	err := row.Scan(&u.ID, &u.Nombre, &u.Email, &u.Telefono, &u.FechaCreacion, &u.FechaActualizacion)
	return u, err
}

// notFound は行が存在しないエラーをErrNotFoundに置き換える。
func notFound(err error) error {
	if errors.Is(err, database.ErrNoRow) {
		return ErrNotFound
	}
	return err
}

// List は全ユーザーをID順に返す。
func (s *Store) List(ctx context.Context) ([]Usuario, error) {
	return s.table.List(ctx)
}

// Get は指定IDのユーザーを返す。存在しない場合はErrNotFound。
func (s *Store) Get(ctx context.Context, id int64) (Usuario, error) {
	u, err := s.table.Get(ctx, id)
	return u, notFound(err)
}

// Create はユーザーを作成し、採番されたIDを含むレコードを返す。
func (s *Store) Create(ctx context.Context, in NewUsuario) (Usuario, error) {
	u := Usuario{
		Nombre:        in.Nombre,
		Email:         in.Email,
		Telefono:      in.Telefono,
		FechaCreacion: s.timestamp(),
	}

	var a database.Assignments
	a.Set("nombre", u.Nombre)
	a.Set("email", u.Email)
	a.Set("telefono", u.Telefono)
	a.Set("fecha_creacion", u.FechaCreacion)

	id, err := s.table.Insert(ctx, a)
	if err != nil {
		return Usuario{}, err
	}
	u.ID = id
	return u, nil
}

// Update は指定されたフィールドのみを更新し、fecha_actualizacionを設定する。
// 存在しない場合はErrNotFound。
func (s *Store) Update(ctx context.Context, id int64, p Patch) (Usuario, error) {
	var a database.Assignments
	a.Set("fecha_actualizacion", s.timestamp())
	database.SetIf(&a, "nombre", p.Nombre)
	database.SetIf(&a, "email", p.Email)
	database.SetIf(&a, "telefono", p.Telefono)

	u, err := s.table.Update(ctx, id, a)
	return u, notFound(err)
}

// Delete は指定IDのユーザーを削除し、削除したレコードを返す。
// 存在しない場合はErrNotFound。
func (s *Store) Delete(ctx context.Context, id int64) (Usuario, error) {
	u, err := s.table.Delete(ctx, id)
	return u, notFound(err)
}

// seedUsuarios は起動時に投入するデモ用ユーザー。
var seedUsuarios = []NewUsuario{
	{Nombre: "Ever", Email: "ever@example.com", Telefono: "123-456-7890"},
	{Nombre: "Cristian", Email: "cristian@example.com", Telefono: "098-765-4321"},
	{Nombre: "Hervin", Email: "hervin@example.com", Telefono: "555-123-4567"},
}

// Seed はデモ用のユーザーを投入する。
func (s *Store) Seed(ctx context.Context) error {
	for _, in := range seedUsuarios {
		if _, err := s.Create(ctx, in); err != nil {
			return fmt.Errorf("初期ユーザーの投入に失敗: %w", err)
		}
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
