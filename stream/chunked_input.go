package stream

import (
	"io"

	"github.com/favbox/gust/codec"
	"github.com/favbox/gust/network"
)

// ChunkedInput 是块输入流：消费原始字节流，应用成帧器恢复块边界，
// 暴露阻塞式的拉取接口。
//
// 产出的块序列是惰性、单向、不可重读的；单读者使用。
type ChunkedInput struct {
	reader network.Reader
	framer Framer
	codec  codec.Codec
	eof    bool
}

// NewChunkedInput 创建一个块输入流。framer 为 nil 时使用默认的
// CRLF 定界成帧器。
func NewChunkedInput(r network.Reader, f Framer, c codec.Codec) *ChunkedInput {
	if f == nil {
		f = NewDelimitedFramer()
	}
	return &ChunkedInput{
		reader: r,
		framer: f,
		codec:  c,
	}
}

// Read 阻塞至成帧器能从底层字节流中提取一个完整块，并解码到 v。
//
// 流干净结束时返回 io.EOF；此后每次调用都立即返回 io.EOF，不再阻塞。
// 连接在块中途关闭返回 io.ErrUnexpectedEOF，不算干净结束。
func (ci *ChunkedInput) Read(v any) error {
	b, err := ci.Next()
	if err != nil {
		return err
	}
	return ci.codec.Unmarshal(b, v)
}

// Next 返回下一个块的原始字节，不经解码。
func (ci *ChunkedInput) Next() ([]byte, error) {
	if ci.eof {
		return nil, io.EOF
	}
	defer ci.reader.Release()

	b, err := ci.framer.ReadChunk(ci.reader)
	if err == io.EOF {
		// 终态幂等：之后的读取不再触碰底层连接。
		ci.eof = true
	}
	return b, err
}
