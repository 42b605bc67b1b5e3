package codec

import (
	"encoding/json"

	gjson "github.com/favbox/gust/common/json"
)

var jsonContentType = "application/json; charset=utf-8"
var jsonMarshalFunc JSONMarshaler

// JSONMarshaler 自定义 json.Marshal。
type JSONMarshaler func(v any) ([]byte, error)

func init() {
	ResetJSONMarshal(gjson.Marshal)
}

// ResetStdJSONMarshal 重置 JSON 编码函数为标准库实现。
func ResetStdJSONMarshal() {
	ResetJSONMarshal(json.Marshal)
}

// ResetJSONMarshal 重置 JSON 编码函数为给定的 fn。
func ResetJSONMarshal(fn JSONMarshaler) {
	jsonMarshalFunc = fn
}

// JSON 表示默认的 JSON 编解码器。
type JSON struct{}

func (JSON) Name() string {
	return gjson.Name
}

func (JSON) ContentType() string {
	return jsonContentType
}

func (JSON) Marshal(v any) ([]byte, error) {
	return jsonMarshalFunc(v)
}

func (JSON) Unmarshal(b []byte, v any) error {
	return gjson.Unmarshal(b, v)
}
