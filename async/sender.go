package async

import (
	"github.com/favbox/gust/codec"
	"github.com/favbox/gust/common/config"
	errs "github.com/favbox/gust/common/errors"
	"github.com/favbox/gust/stream"
)

var _ ResultSender = (*Sender)(nil)

// Sender 是默认的响应发送路径。
//
// 普通实体经编解码器整体序列化后，通过启用缓冲的提交流写出，
// 以便容器按实体是否装入缓冲区来决定定长还是流式传输。
// 结果若是 *stream.ChunkedOutput，则禁用缓冲逐块排出：
// 每个块序列化后立即上线。
type Sender struct {
	Provider stream.StreamProvider
	Codec    codec.Codec
	Framer   stream.Framer

	// BufferSize 是实体缓冲区大小，小于等于 0 则禁用缓冲。
	BufferSize int
}

// NewSender 创建默认发送器：JSON 编解码、CRLF 定界成帧。
func NewSender(provider stream.StreamProvider, opts ...config.Option) *Sender {
	o := config.NewOptions(opts)
	return &Sender{
		Provider:   provider,
		Codec:      codec.JSON{},
		Framer:     stream.NewDelimitedFramer(),
		BufferSize: o.CommitBufferSize,
	}
}

// Send 写出决议结果值。块输出流走排出路径，其余值走实体路径。
func (s *Sender) Send(v any) error {
	if co, ok := v.(*stream.ChunkedOutput); ok {
		return s.sendChunked(co)
	}
	b, err := s.Codec.Marshal(v)
	if err != nil {
		return err
	}
	return s.sendEntity(b)
}

// SendError 将失败原因作为实体写出，保持同一套提交协议。
func (s *Sender) SendError(err error) error {
	var payload any
	if e, ok := err.(*errs.Error); ok {
		payload = e.JSON()
	} else {
		payload = map[string]any{"error": err.Error()}
	}
	b, merr := s.Codec.Marshal(payload)
	if merr != nil {
		return merr
	}
	return s.sendEntity(b)
}

func (s *Sender) sendEntity(b []byte) error {
	cs := stream.NewCommittingStream()
	if err := cs.SetStreamProvider(s.Provider); err != nil {
		return err
	}
	if s.BufferSize > 0 {
		if err := cs.EnableBuffering(s.BufferSize); err != nil {
			return err
		}
	}
	if _, err := cs.Write(b); err != nil {
		cs.Close()
		return err
	}
	return cs.Close()
}

// 排出路径：禁用缓冲，首次提交即以 -1 告知大小未知，
// 随后每个块经成帧器落到决议出的输出槽并即时刷新，
// 仅在流结束标记排出后才终结底层输出。
func (s *Sender) sendChunked(co *stream.ChunkedOutput) error {
	cs := stream.NewCommittingStream()
	if err := cs.SetStreamProvider(s.Provider); err != nil {
		return err
	}
	if err := cs.Commit(); err != nil {
		return err
	}
	if err := co.CopyTo(cs.Sink(), s.Codec, s.Framer); err != nil {
		cs.Close()
		return err
	}
	return cs.Close()
}
