package stream

import (
	"io"

	"github.com/favbox/gust/common/bytebufferpool"
	errs "github.com/favbox/gust/common/errors"
	"github.com/favbox/gust/common/glog"
	"github.com/favbox/gust/internal/nocopy"
	"github.com/favbox/gust/network"
)

// DefaultBufferSize 是未指定用户尺寸时使用的缓冲区大小。
const DefaultBufferSize = 8192

// StreamProvider 提供真正的输出槽，每条提交流至多被回调一次。
//
// size >= 0 表示实体的精确字节数已测得；-1 表示大小未知
// （未启用缓冲，或缓冲区在得知最终大小前已溢出）。
type StreamProvider func(size int) (network.Writer, error)

var errProviderNotSet = errs.NewPrivate("提交流的提供者未设置")

var _ network.ExtWriter = (*CommittingStream)(nil)

// 空槽提供者。未配置提供者即关闭时使用，保证 Close 不因缺配置而失败。
var nullStreamProvider StreamProvider = func(size int) (network.Writer, error) {
	return network.NewWriter(io.Discard), nil
}

// CommittingStream 是带可选实体缓冲的提交流，可用于测量实体大小。
//
// 启用缓冲后，写入的字节先进入内部缓冲区。全部写完后调用 Commit，
// 以实测的实体大小回调 StreamProvider；实体装不下缓冲区时，
// 流在溢出的一刻自动提交，回调参数 size 为 -1。
//
// 据此，上层可以在不强制整个响应走内存拷贝的前提下，
// 决定采用定长还是流式的传输方式。
type CommittingStream struct {
	noCopy nocopy.NoCopy

	provider StreamProvider
	sink     network.Writer // 提交后的真实输出

	buffer     *bytebufferpool.ByteBuffer
	bufferSize int

	directWrite bool // true 则绕过缓冲直接写入
	committed   bool
	closed      bool
}

// NewCommittingStream 创建一个未启用缓冲的提交流。
// 写入首字节前需通过 SetStreamProvider 完成初始化。
func NewCommittingStream() *CommittingStream {
	return &CommittingStream{directWrite: true}
}

// SetStreamProvider 设置输出槽提供者。必须在写入首字节前调用。
func (s *CommittingStream) SetStreamProvider(provider StreamProvider) error {
	if s.closed {
		return errs.ErrOutputClosed
	}
	if provider == nil {
		return errProviderNotSet
	}
	if s.provider != nil {
		glog.SystemLogger().Warn("提交流的提供者已初始化，将被替换")
	}
	s.provider = provider
	return nil
}

// EnableBuffering 启用实体缓冲。size 小于等于 0 则禁用缓冲，
// 提交时将以 -1 回调提供者。已提交或已缓冲数据后不可再调用。
func (s *CommittingStream) EnableBuffering(size int) error {
	if s.committed || (s.buffer != nil && s.buffer.Len() > 0) {
		return errs.ErrBufferingEnabled
	}
	s.bufferSize = size
	if size <= 0 {
		s.directWrite = true
		s.releaseBuffer()
	} else {
		s.directWrite = false
		if s.buffer == nil {
			s.buffer = bytebufferpool.Get()
		}
	}
	return nil
}

// EnableDefaultBuffering 以 DefaultBufferSize 启用实体缓冲。
func (s *CommittingStream) EnableDefaultBuffering() error {
	return s.EnableBuffering(DefaultBufferSize)
}

// Sink 返回提交后决议出的真实输出槽；未提交时为 nil。
func (s *CommittingStream) Sink() network.Writer {
	return s.sink
}

// IsCommitted 报告提交流是否已提交。
func (s *CommittingStream) IsCommitted() bool {
	return s.committed
}

// IsClosed 报告提交流是否已关闭。
func (s *CommittingStream) IsClosed() bool {
	return s.closed
}

// 提交的一次性决策点：以 size 回调提供者并切换为直写。
func (s *CommittingStream) commitStream(size int) error {
	if s.committed {
		return nil
	}
	if s.provider == nil {
		return errProviderNotSet
	}
	sink, err := s.provider(size)
	if err != nil {
		return err
	}
	if sink == nil {
		sink = network.NewWriter(io.Discard)
	}
	s.sink = sink
	s.directWrite = true
	s.committed = true
	return nil
}

// Write 写入 p。
//
// 缓冲模式下 p 追加到缓冲区；若追加将超出容量，则先以 -1 提交并清空
// 缓冲，再将 p 直写到真实输出。直写模式下首次写入即提交。
func (s *CommittingStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errs.ErrOutputClosed
	}
	if s.directWrite {
		if err := s.commitStream(-1); err != nil {
			return 0, err
		}
		return s.sink.WriteBinary(p)
	}
	if len(p)+s.buffer.Len() > s.bufferSize {
		if err := s.flushBuffer(false); err != nil {
			return 0, err
		}
		return s.sink.WriteBinary(p)
	}
	return s.buffer.Write(p)
}

// WriteByte 写入单个字节，遵循与 Write 相同的溢出规则。
func (s *CommittingStream) WriteByte(c byte) error {
	if s.closed {
		return errs.ErrOutputClosed
	}
	if s.directWrite {
		if err := s.commitStream(-1); err != nil {
			return err
		}
		_, err := s.sink.WriteBinary([]byte{c})
		return err
	}
	if s.buffer.Len()+1 > s.bufferSize {
		if err := s.flushBuffer(false); err != nil {
			return err
		}
		_, err := s.sink.WriteBinary([]byte{c})
		return err
	}
	return s.buffer.WriteByte(c)
}

// Commit 显式提交提交流。
//
// 缓冲区尚未溢出时，以缓冲的精确字节数回调提供者；否则为 -1。
// 首次提交后再次调用是空操作。
func (s *CommittingStream) Commit() error {
	if err := s.flushBuffer(true); err != nil {
		return err
	}
	return s.commitStream(-1)
}

// Flush 在已提交后将数据刷新至对端；提交前是空操作。
func (s *CommittingStream) Flush() error {
	if s.committed {
		return s.sink.Flush()
	}
	return nil
}

// Close 关闭提交流，等价于先 Commit 再关闭已决议的输出槽。幂等。
//
// 从未设置提供者时回退到空槽提供者，因此 Close 不会仅因缺少配置而失败。
func (s *CommittingStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.provider == nil {
		s.provider = nullStreamProvider
	}
	err := s.Commit()
	if err == nil {
		err = s.sink.Flush()
	}
	s.releaseBuffer()
	return err
}

// Finalize 实现 network.ExtWriter，多次调用是安全的。
func (s *CommittingStream) Finalize() error {
	return s.Close()
}

// 将缓冲的字节移交真实输出。endOfStream 为 true 表示实体已写完，
// 此时以精确大小提交；否则以 -1 提交（溢出路径）。
func (s *CommittingStream) flushBuffer(endOfStream bool) error {
	if s.directWrite {
		return nil
	}
	size := -1
	if endOfStream {
		size = 0
		if s.buffer != nil {
			size = s.buffer.Len()
		}
	}
	if err := s.commitStream(size); err != nil {
		return err
	}
	if s.buffer != nil && s.buffer.Len() > 0 {
		if _, err := s.sink.WriteBinary(s.buffer.B); err != nil {
			return err
		}
		// WriteBinary 要求切片在刷新前保持有效，先落盘再复用缓冲区。
		if err := s.sink.Flush(); err != nil {
			return err
		}
		s.buffer.Reset()
	}
	return nil
}

func (s *CommittingStream) releaseBuffer() {
	if s.buffer != nil {
		bytebufferpool.Put(s.buffer)
		s.buffer = nil
	}
}
