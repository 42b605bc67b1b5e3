// Package codec 定义块与实体的序列化编解码器。
//
// 编解码器是核心与外部编组层之间的窄接口：给定一个类型化的值，
// 编码为一段字节；给定按块切分好的字节，解码回类型化的值。
package codec

// Codec 将单个类型化的值与其字节表示互转。
type Codec interface {
	// Name 返回编解码器名称。
	Name() string
	// ContentType 返回对应的媒体类型。
	ContentType() string
	// Marshal 将 v 编码为字节。
	Marshal(v any) ([]byte, error)
	// Unmarshal 将一个完整块的字节解码到 v。
	Unmarshal(b []byte, v any) error
}

var (
	_ Codec = JSON{}
	_ Codec = ProtoBuf{}
	_ Codec = Bytes{}
)
