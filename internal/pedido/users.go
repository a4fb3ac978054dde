package pedido

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/microtienda/pkg/httpclient"
)

// ErrUserNotFound はusuario-serviceでユーザーを確認できなかったことを表す。
// 200以外の応答の場合に返す。通信失敗は*httpclient.TransportErrorになるが、
// 呼び出し側はどちらも同じ「見つからない」として扱う。
var ErrUserNotFound = errors.New("usuario-serviceでユーザーを確認できません")

// 補完結果の固定文字列。
const (
	// PlaceholderUsuario はユーザー名を取得できなかった場合の表示名。
	PlaceholderUsuario = "Usuario no encontrado"
	// ServicioUsuarioOK はユーザー名をusuario-serviceから取得できたことを表す。
	ServicioUsuarioOK = "usuario-service"
	// ServicioUsuarioError はユーザー名を取得できなかったことを表す。
	ServicioUsuarioError = "error"
)

// maxConcurrentLookups は一覧の補完で同時に行う問い合わせの上限。
const maxConcurrentLookups = 8

// UserInfo はusuario-serviceから取得するユーザー情報のうち注文に必要な部分。
type UserInfo struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
}

// UserLookup はusuario-serviceに対するユーザーの問い合わせ。
type UserLookup struct {
	client *httpclient.Client
	log    zerolog.Logger
}

// NewUserLookup は新しいUserLookupを生成する。
func NewUserLookup(client *httpclient.Client, log zerolog.Logger) *UserLookup {
	return &UserLookup{client: client, log: log}
}

// Lookup はGET /usuarios/{id}でユーザーを取得する。
// 200以外の応答はErrUserNotFound、通信失敗は*httpclient.TransportErrorを返す。
func (l *UserLookup) Lookup(ctx context.Context, id int64) (UserInfo, error) {
	var envelope struct {
		Usuario *UserInfo `json:"usuario"`
	}
	status, err := l.client.GetJSON(ctx, fmt.Sprintf("/usuarios/%d", id), &envelope)
	if err != nil {
		l.log.Warn().Err(err).Int64("usuario_id", id).Msg("usuario-serviceとの通信に失敗")
		return UserInfo{}, err
	}
	if envelope.Usuario == nil {
		l.log.Debug().Int("status", status).Int64("usuario_id", id).Msg("ユーザーを取得できません")
		return UserInfo{}, fmt.Errorf("%w: id=%d status=%d", ErrUserNotFound, id, status)
	}
	return *envelope.Usuario, nil
}

// Exists はユーザーが存在するかを返す。
// 通信失敗と200以外の応答はどちらもfalseになる。
func (l *UserLookup) Exists(ctx context.Context, id int64) bool {
	_, err := l.Lookup(ctx, id)
	return err == nil
}

// PedidoDetalle はユーザー名を補完した注文。
type PedidoDetalle struct {
	Pedido
	// Usuario はユーザー名。取得できない場合はPlaceholderUsuario。
	Usuario string `json:"usuario"`
	// ServicioUsuario は取得できた場合はServicioUsuarioOK、できない場合はServicioUsuarioError。
	ServicioUsuario string `json:"servicio_usuario"`
}

// detalle は問い合わせ結果から補完済みの注文を組み立てる。
func detalle(p Pedido, info UserInfo, err error) PedidoDetalle {
	if err != nil {
		return PedidoDetalle{Pedido: p, Usuario: PlaceholderUsuario, ServicioUsuario: ServicioUsuarioError}
	}
	return PedidoDetalle{Pedido: p, Usuario: info.Nombre, ServicioUsuario: ServicioUsuarioOK}
}

// Enrich は1件の注文にユーザー名を補完する。問い合わせの失敗はプレースホルダーになる。
func (l *UserLookup) Enrich(ctx context.Context, p Pedido) PedidoDetalle {
	info, err := l.Lookup(ctx, p.UsuarioID)
	return detalle(p, info, err)
}

// EnrichAll は注文の一覧にユーザー名を補完する。
// 問い合わせはユーザーIDごとに1回にまとめ、並行して実行する。
// 結果の順序は入力と同じで、1件の失敗が他の注文に影響することはない。
func (l *UserLookup) EnrichAll(ctx context.Context, pedidos []Pedido) []PedidoDetalle {
	type result struct {
		info UserInfo
		err  error
	}

	var (
		mu      sync.Mutex
		results = make(map[int64]result, len(pedidos))
		g       errgroup.Group
	)
	g.SetLimit(maxConcurrentLookups)

	seen := make(map[int64]bool, len(pedidos))
	for _, p := range pedidos {
		if seen[p.UsuarioID] {
			continue
		}
		seen[p.UsuarioID] = true

		id := p.UsuarioID
		g.Go(func() error {
			info, err := l.Lookup(ctx, id)
			mu.Lock()
			results[id] = result{info: info, err: err}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	detalles := make([]PedidoDetalle, 0, len(pedidos))
	for _, p := range pedidos {
		r := results[p.UsuarioID]
		detalles = append(detalles, detalle(p, r.info, r.err))
	}
	return detalles
}
