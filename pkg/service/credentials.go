package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credentials は/loginで照合する管理者の資格情報。
// パスワードは平文で保持せず、起動時に計算したbcryptハッシュのみを持つ。
type Credentials struct {
	username string
	hash     []byte
}

// NewCredentials は管理者ユーザー名とパスワードから資格情報を生成する。
// ユーザー名が空の場合はどの入力とも一致しない資格情報になる。
func NewCredentials(username, password string) (*Credentials, error) {
	hash, err := bcrypt.GenerateFromPassword(passwordDigest(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗: %w", err)
	}
	return &Credentials{username: username, hash: hash}, nil
}

// Verify はユーザー名とパスワードが一致するかを返す。
// どちらが不一致かで処理時間が変わらないよう、常に両方を検証する。
func (c *Credentials) Verify(username, password string) bool {
	userOK := c.username != "" &&
		subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(c.hash, passwordDigest(password))
	return userOK && passErr == nil
}

// passwordDigest はパスワードをbcryptの入力上限（72バイト）に収まる固定長に変換する。
// 長さに関わらず全バイトが照合結果に反映される。
func passwordDigest(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(hex.EncodeToString(sum[:]))
}
