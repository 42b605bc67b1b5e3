package codec

import (
	"github.com/favbox/gust/common/errors"
	"github.com/favbox/gust/internal/bytesconv"
)

var octetStreamContentType = "application/octet-stream"

// Bytes 表示原样透传的字节编解码器。支持 []byte 和 string。
type Bytes struct{}

func (Bytes) Name() string {
	return "bytes"
}

func (Bytes) ContentType() string {
	return octetStreamContentType
}

func (Bytes) Marshal(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return bytesconv.S2b(b), nil
	}
	return nil, errors.NewPrivatef("字节编码器不支持类型 %T", v)
}

func (Bytes) Unmarshal(b []byte, v any) error {
	switch dst := v.(type) {
	case *[]byte:
		*dst = b
		return nil
	case *string:
		*dst = string(b)
		return nil
	}
	return errors.NewPrivatef("字节解码器不支持类型 %T", v)
}
