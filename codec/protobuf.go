package codec

import (
	"google.golang.org/protobuf/proto"

	"github.com/favbox/gust/common/errors"
)

var protobufContentType = "application/x-protobuf"

// ProtoBuf 表示 protobuf 编解码器。值必须实现 proto.Message。
type ProtoBuf struct{}

func (ProtoBuf) Name() string {
	return "protobuf"
}

func (ProtoBuf) ContentType() string {
	return protobufContentType
}

func (ProtoBuf) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, errors.NewPrivatef("protobuf 编码器不支持类型 %T", v)
	}
	return proto.Marshal(m)
}

func (ProtoBuf) Unmarshal(b []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return errors.NewPrivatef("protobuf 解码器不支持类型 %T", v)
	}
	return proto.Unmarshal(b, m)
}
