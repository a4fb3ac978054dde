// Package pedido は注文管理サービス（pedido-service）を実装する。
//
// 注文の作成と usuario_id の変更時には usuario-service にユーザーの存在を問い合わせ、
// 存在が確認できない場合は保存しない。読み取り時には各注文にユーザー名を補完するが、
// 問い合わせの失敗は注文ごとのプレースホルダーとして扱い、読み取り自体は失敗させない。
//
// 通信失敗と200以外の応答はどちらも「ユーザーが見つからない」として同じに扱う。
package pedido
