package stream

import (
	"io"
	"testing"

	"github.com/favbox/gust/codec"
	"github.com/favbox/gust/common/mock"
	"github.com/stretchr/testify/assert"
)

func TestChunkedInputDelimited(t *testing.T) {
	in := NewChunkedInput(mock.NewConn("hello\r\nworld\r\n"), nil, codec.Bytes{})

	var s string
	assert.Nil(t, in.Read(&s))
	assert.Equal(t, "hello", s)
	assert.Nil(t, in.Read(&s))
	assert.Equal(t, "world", s)

	// 连接在块边界关闭即干净结束，且终态幂等。
	assert.Equal(t, io.EOF, in.Read(&s))
	assert.Equal(t, io.EOF, in.Read(&s))
	_, err := in.Next()
	assert.Equal(t, io.EOF, err)
}

func TestChunkedInputMidChunkClose(t *testing.T) {
	// 连接在块中途关闭不算干净结束。
	in := NewChunkedInput(mock.NewConn("partial"), nil, codec.Bytes{})
	var s string
	assert.Equal(t, io.ErrUnexpectedEOF, in.Read(&s))
}

func TestChunkedInputLengthFramer(t *testing.T) {
	in := NewChunkedInput(mock.NewConn("5\r\nhello\r\n0\r\n\r\n"), &LengthFramer{}, codec.Bytes{})

	var s string
	assert.Nil(t, in.Read(&s))
	assert.Equal(t, "hello", s)
	assert.Equal(t, io.EOF, in.Read(&s))
	assert.Equal(t, io.EOF, in.Read(&s))
}

func TestChunkedInputLengthFramerMidChunk(t *testing.T) {
	in := NewChunkedInput(mock.NewConn("5\r\nhel"), &LengthFramer{}, codec.Bytes{})
	var s string
	assert.Equal(t, io.ErrUnexpectedEOF, in.Read(&s))
}

func TestChunkedInputJSON(t *testing.T) {
	type item struct {
		Name string `json:"name"`
	}
	in := NewChunkedInput(mock.NewConn("{\"name\":\"gust\"}\r\n"), nil, codec.JSON{})

	var v item
	assert.Nil(t, in.Read(&v))
	assert.Equal(t, "gust", v.Name)
	assert.Equal(t, io.EOF, in.Read(&v))
}

func TestChunkedInputBoundaryTransportError(t *testing.T) {
	// 块边界上的传输错误不是干净结束，不得折叠成 io.EOF。
	in := NewChunkedInput(mock.NewBrokenConn(""), nil, codec.Bytes{})
	_, err := in.Next()
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	// 非干净结束不进入幂等终态，错误原样保留。
	_, err = in.Next()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestChunkedInputEmptySource(t *testing.T) {
	in := NewChunkedInput(mock.NewConn(""), nil, codec.Bytes{})
	_, err := in.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDelimitedFramerDelimSpansReads(t *testing.T) {
	// 单块跨多次 Peek 增长仍能恢复边界。
	in := NewChunkedInput(mock.NewConn("abcdefghij\r\n"), nil, codec.Bytes{})
	b, err := in.Next()
	assert.Nil(t, err)
	assert.Equal(t, "abcdefghij", string(b))
}

func TestLengthFramerBrokenTrailer(t *testing.T) {
	// 负载后缺少 CRLF 的帧是坏块。
	in := NewChunkedInput(mock.NewConn("5\r\nhelloxx"), &LengthFramer{}, codec.Bytes{})
	_, err := in.Next()
	assert.NotNil(t, err)
}
