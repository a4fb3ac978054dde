package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	// 検証エラーのフィールド名をGoの構造体名ではなくJSONキーで報告させる
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

// jsonFieldName はjsonタグからフィールド名を取り出す。
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

// BindingMessage はリクエストボディのバインドエラーを利用者向けのメッセージに変換する。
// 必須項目の欠落と型の不一致のみを変換し、それ以外（JSONとして不正など）はfalseを返す。
func BindingMessage(err error) (string, bool) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		if fe.Tag() == "required" {
			return fmt.Sprintf("El campo '%s' es requerido", fe.Field()), true
		}
		return fmt.Sprintf("El campo '%s' no es válido", fe.Field()), true
	}

	var te *json.UnmarshalTypeError
	if errors.As(err, &te) && te.Field != "" {
		return fmt.Sprintf("El campo '%s' no es válido", te.Field), true
	}
	return "", false
}

// ReadObject はリクエストボディをJSONオブジェクトとして読み込む。
// ボディが空、JSONオブジェクトでない、またはキーが1つもない場合はokがfalseになる。
// 返したrawはBindBodyで構造体へ再バインドできる。
func ReadObject(c *gin.Context) (raw []byte, fields map[string]json.RawMessage, ok bool) {
	raw, err := c.GetRawData()
	if err != nil || len(raw) == 0 {
		return nil, nil, false
	}
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) == 0 {
		return nil, nil, false
	}
	return raw, fields, true
}

// BindBody はReadObjectで読み込んだボディを構造体へバインドし、binding タグを検証する。
func BindBody(raw []byte, obj any) error {
	return binding.JSON.BindBody(raw, obj)
}

// ParseID はパスパラメータ :id を正の整数として解釈する。
func ParseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
