// Package usuario はユーザー管理サービス（usuario-service）を実装する。
//
// ユーザーはプロセス内のインメモリSQLiteに保存され、再起動で失われる。
// /usuarios 配下のCRUDはすべて認証ゲートの内側にあり、
// pedido-serviceは注文の検証と補完のためにGET /usuarios/{id}を呼び出す。
package usuario
