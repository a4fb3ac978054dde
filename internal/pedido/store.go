package pedido

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/microtienda/pkg/database"
)

// ErrNotFound は指定したIDの注文が存在しないことを表す。
var ErrNotFound = errors.New("pedido no encontrado")

// 作成時に省略されたフィールドの既定値。
const (
	DefaultCantidad = 1
	DefaultPrecio   = 0.0
	DefaultEstado   = "pendiente"
)

// Pedido は注文のレコード。
type Pedido struct {
	// ID は作成時に採番される一意識別子。削除後も再利用されない。
	ID int64 `json:"id"`
	// UsuarioID は注文したユーザーのID。
	UsuarioID int64 `json:"usuario_id"`
	// Producto は商品名。
	Producto string `json:"producto"`
	// Cantidad は数量。
	Cantidad int `json:"cantidad"`
	// Precio は単価。
	Precio float64 `json:"precio"`
	// Estado は注文の状態。
	Estado string `json:"estado"`
	// FechaCreacion は作成日時。
	FechaCreacion string `json:"fecha_creacion"`
	// FechaActualizacion は最終更新日時。一度も更新されていない場合は省略される。
	FechaActualizacion string `json:"fecha_actualizacion,omitempty"`
}

// NewPedido は注文作成時の入力。nilのフィールドには既定値が使われる。
type NewPedido struct {
	UsuarioID int64
	Producto  string
	Cantidad  *int
	Precio    *float64
	Estado    *string
}

// Patch は部分更新の入力。nilのフィールドは変更しない。
type Patch struct {
	UsuarioID *int64   `json:"usuario_id"`
	Producto  *string  `json:"producto"`
	Cantidad  *int     `json:"cantidad"`
	Precio    *float64 `json:"precio"`
	Estado    *string  `json:"estado"`
}

// Store は注文のレコードストア。
// 単一接続のSQLiteに対して、書き込みは1文または1トランザクションで行う。
type Store struct {
	db    *sql.DB
	table *database.Table[Pedido]
	now   func() time.Time
}

const pedidoColumns = `id, usuario_id, producto, cantidad, precio, estado, fecha_creacion, COALESCE(fecha_actualizacion, '')`

// NewStore はマイグレーション済みのDBからストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:    db,
		table: database.NewTable(db, "pedidos", pedidoColumns, scanPedido),
		now:   time.Now,
	}
}

// Close はDB接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}

func scanPedido(row database.Scanner) (Pedido, error) {
	var p Pedido
	err := row.Scan(&p.ID, &p.UsuarioID, &p.Producto, &p.Cantidad, &p.Precio, &p.Estado, &p.FechaCreacion, &p.FechaActualizacion)
	return p, err
}

func notFound(err error) error {
	if errors.Is(err, database.ErrNoRow) {
		return ErrNotFound
	}
	return err
}

// List は全注文をID順に返す。
func (s *Store) List(ctx context.Context) ([]Pedido, error) {
	return s.table.List(ctx)
}

// Get は指定IDの注文を返す。存在しない場合はErrNotFound。
func (s *Store) Get(ctx context.Context, id int64) (Pedido, error) {
	p, err := s.table.Get(ctx, id)
	return p, notFound(err)
}

// Create は注文を作成し、採番されたIDを含むレコードを返す。
// ユーザーの存在確認は呼び出し側の責務。
func (s *Store) Create(ctx context.Context, in NewPedido) (Pedido, error) {
	p := Pedido{
		UsuarioID:     in.UsuarioID,
		Producto:      in.Producto,
		Cantidad:      DefaultCantidad,
		Precio:        DefaultPrecio,
		Estado:        DefaultEstado,
		FechaCreacion: s.timestamp(),
	}
	if in.Cantidad != nil {
		p.Cantidad = *in.Cantidad
	}
	if in.Precio != nil {
		p.Precio = *in.Precio
	}
	if in.Estado != nil {
		p.Estado = *in.Estado
	}

	var a database.Assignments
	a.Set("usuario_id", p.UsuarioID)
	a.Set("producto", p.Producto)
	a.Set("cantidad", p.Cantidad)
	a.Set("precio", p.Precio)
	a.Set("estado", p.Estado)
	a.Set("fecha_creacion", p.FechaCreacion)

	id, err := s.table.Insert(ctx, a)
	if err != nil {
		return Pedido{}, err
	}
	p.ID = id
	return p, nil
}

// Update は指定されたフィールドのみを更新し、fecha_actualizacionを設定する。
// 存在しない場合はErrNotFound。
func (s *Store) Update(ctx context.Context, id int64, p Patch) (Pedido, error) {
	var a database.Assignments
	a.Set("fecha_actualizacion", s.timestamp())
	database.SetIf(&a, "usuario_id", p.UsuarioID)
	database.SetIf(&a, "producto", p.Producto)
	database.SetIf(&a, "cantidad", p.Cantidad)
	database.SetIf(&a, "precio", p.Precio)
	database.SetIf(&a, "estado", p.Estado)

	updated, err := s.table.Update(ctx, id, a)
	return updated, notFound(err)
}

// Delete は指定IDの注文を削除し、削除したレコードを返す。
// 存在しない場合はErrNotFound。
func (s *Store) Delete(ctx context.Context, id int64) (Pedido, error) {
	p, err := s.table.Delete(ctx, id)
	return p, notFound(err)
}

func ptr[T any](v T) *T { return &v }

// seedPedidos は起動時に投入するデモ用の注文。
var seedPedidos = []NewPedido{
	{UsuarioID: 1, Producto: "Laptop", Cantidad: ptr(1), Precio: ptr(1200.00), Estado: ptr("pendiente")},
	{UsuarioID: 2, Producto: "Mouse", Cantidad: ptr(2), Precio: ptr(25.50), Estado: ptr("pendiente")},
	{UsuarioID: 3, Producto: "Teclado", Cantidad: ptr(1), Precio: ptr(75.00), Estado: ptr("completado")},
}

// Seed はデモ用の注文を投入する。ユーザーの存在確認は行わない。
func (s *Store) Seed(ctx context.Context) error {
	for _, in := range seedPedidos {
		if _, err := s.Create(ctx, in); err != nil {
			return fmt.Errorf("初期注文の投入に失敗: %w", err)
		}
	}
	return nil
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}
