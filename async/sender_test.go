package async

import (
	"testing"

	"github.com/favbox/gust/codec"
	"github.com/favbox/gust/common/config"
	errs "github.com/favbox/gust/common/errors"
	"github.com/favbox/gust/common/mock"
	"github.com/favbox/gust/network"
	"github.com/favbox/gust/stream"
	"github.com/stretchr/testify/assert"
)

type sinkRecorder struct {
	conn  *mock.Conn
	calls int
	size  int
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{conn: mock.NewConn(""), size: -100}
}

func (s *sinkRecorder) provider() stream.StreamProvider {
	return func(size int) (network.Writer, error) {
		s.calls++
		s.size = size
		return s.conn, nil
	}
}

func (s *sinkRecorder) written() string {
	rec := s.conn.WriterRecorder()
	out, _ := rec.ReadBinary(rec.WroteLen())
	return string(out)
}

func TestSenderEntity(t *testing.T) {
	rec := newSinkRecorder()
	s := NewSender(rec.provider())

	assert.Nil(t, s.Send(map[string]string{"name": "gust"}))
	// 实体装入缓冲区：提供者拿到精确大小。
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, `{"name":"gust"}`, rec.written())
	assert.Equal(t, len(`{"name":"gust"}`), rec.size)
}

func TestSenderEntityNoBuffering(t *testing.T) {
	rec := newSinkRecorder()
	s := NewSender(rec.provider(), config.WithCommitBufferSize(0))

	assert.Nil(t, s.Send("raw"))
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, -1, rec.size)
}

func TestSenderChunked(t *testing.T) {
	rec := newSinkRecorder()
	s := NewSender(rec.provider())
	s.Codec = codec.Bytes{}

	co := stream.NewChunkedOutput()
	assert.Nil(t, co.Write("alpha"))
	assert.Nil(t, co.Write("beta"))
	assert.Nil(t, co.Close())

	assert.Nil(t, s.Send(co))
	// 块路径大小未知，提交参数为 -1，每块独立成帧。
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, -1, rec.size)
	assert.Equal(t, "alpha\r\nbeta\r\n", rec.written())
}

func TestSenderChunkedLengthFramer(t *testing.T) {
	rec := newSinkRecorder()
	s := NewSender(rec.provider())
	s.Codec = codec.Bytes{}
	s.Framer = &stream.LengthFramer{}

	co := stream.NewChunkedOutput()
	assert.Nil(t, co.Write("hi"))
	assert.Nil(t, co.Close())

	assert.Nil(t, s.Send(co))
	assert.Equal(t, "2\r\nhi\r\n0\r\n\r\n", rec.written())
}

func TestSenderSendError(t *testing.T) {
	rec := newSinkRecorder()
	s := NewSender(rec.provider())

	assert.Nil(t, s.SendError(errs.NewPublic("服务繁忙")))
	assert.Equal(t, 1, rec.calls)
	assert.Contains(t, rec.written(), "服务繁忙")
}

func TestSenderImplementsResultSender(t *testing.T) {
	rec := newSinkRecorder()
	r := NewResponse(NewSender(rec.provider()))
	assert.Nil(t, r.Suspend())
	assert.Nil(t, r.Resume(map[string]int{"n": 1}))
	assert.Equal(t, `{"n":1}`, rec.written())
}
