package stream

import (
	"bytes"
	"io"

	errs "github.com/favbox/gust/common/errors"
	"github.com/favbox/gust/internal/bytesconv"
	"github.com/favbox/gust/internal/bytestr"
	"github.com/favbox/gust/network"
)

// Framer 负责从原始字节流中恢复块边界，以及按边界写入块。
//
// ReadChunk 在流干净结束时返回 io.EOF；连接在块中途关闭视为失败，
// 返回 io.ErrUnexpectedEOF 而非干净结束。
type Framer interface {
	// WriteChunk 将一个完整块写入 w。
	WriteChunk(w network.Writer, b []byte) error
	// WriteEnd 写入流结束标记。
	WriteEnd(w network.Writer) error
	// ReadChunk 读出下一个完整块。阻塞至块完整或流结束。
	ReadChunk(r network.Reader) ([]byte, error)
}

var (
	_ Framer = (*DelimitedFramer)(nil)
	_ Framer = (*LengthFramer)(nil)
)

// DelimitedFramer 以固定定界符切分块，是默认成帧器。
//
// 负载中不得出现定界符序列，适用于行式协议。流的干净结束
// 由底层连接在块边界处关闭来表达。
type DelimitedFramer struct {
	Delim []byte
}

// NewDelimitedFramer 返回以 CRLF 为定界符的成帧器。
func NewDelimitedFramer() *DelimitedFramer {
	return &DelimitedFramer{Delim: bytestr.StrCRLF}
}

func (f *DelimitedFramer) WriteChunk(w network.Writer, b []byte) error {
	if bytes.Contains(b, f.Delim) {
		return errs.NewPrivatef("块负载包含定界符 %q", f.Delim)
	}
	if _, err := w.WriteBinary(b); err != nil {
		return err
	}
	_, err := w.WriteBinary(f.Delim)
	return err
}

// WriteEnd 是空操作：定界成帧的流结束由连接关闭表达。
func (f *DelimitedFramer) WriteEnd(w network.Writer) error {
	return nil
}

func (f *DelimitedFramer) ReadChunk(r network.Reader) ([]byte, error) {
	avail := r.Len()
	for {
		if avail == 0 {
			// 在块边界上探测：EOF 即干净结束，其他传输错误原样上抛。
			if _, err := r.Peek(1); err != nil {
				if err == io.EOF {
					return nil, io.EOF
				}
				return nil, err
			}
			avail = r.Len()
		}

		buf, err := r.Peek(avail)
		if err != nil {
			return nil, err
		}
		if idx := bytes.Index(buf, f.Delim); idx >= 0 {
			chunk := make([]byte, idx)
			copy(chunk, buf[:idx])
			r.Skip(idx + len(f.Delim))
			return chunk, nil
		}

		// 已有数据不含定界符，强制从底层再取一个字节。
		if _, err = r.Peek(avail + 1); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		avail = r.Len()
	}
}

// LengthFramer 以十六进制长度前缀成帧，语法同 HTTP 分块传输编码：
// 长度行、CRLF、负载、CRLF；零长度块表示流结束。
type LengthFramer struct{}

func (f *LengthFramer) WriteChunk(w network.Writer, b []byte) error {
	return writeChunk(w, b)
}

func (f *LengthFramer) WriteEnd(w network.Writer) error {
	return writeChunk(w, nil)
}

func (f *LengthFramer) ReadChunk(r network.Reader) ([]byte, error) {
	chunkSize, err := parseChunkSize(r)
	if err != nil {
		return nil, err
	}
	if chunkSize == 0 {
		// 零长度块即流结束标记，消费其结尾的 CRLF。
		if err = skipCRLF(r); err != nil && err != io.EOF {
			return nil, err
		}
		return nil, io.EOF
	}

	buf, err := r.Peek(chunkSize)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	chunk := make([]byte, chunkSize)
	copy(chunk, buf)
	r.Skip(chunkSize)

	if err = skipCRLF(r); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return chunk, nil
}

// 将数据 b 分块写入 w。零长度的 b 作为流结束标记。
func writeChunk(w network.Writer, b []byte) (err error) {
	n := len(b)
	if err = bytesconv.WriteHexInt(w, n); err != nil {
		return err
	}

	w.WriteBinary(bytestr.StrCRLF)
	if _, err = w.WriteBinary(b); err != nil {
		return err
	}
	w.WriteBinary(bytestr.StrCRLF)
	return nil
}

// 解析 r 的块大小。
func parseChunkSize(r network.Reader) (int, error) {
	n, err := bytesconv.ReadHexInt(r)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return -1, err
	}
	for {
		c, err := r.ReadByte()
		if err != nil {
			return -1, errs.NewPublicf("无法在块大小的后面读到 '\r': %s", err)
		}
		// 跳过块大小后尾随的所有空白
		if c == ' ' {
			continue
		}
		if c != '\r' {
			return -1, errs.NewPublicf("块大小的后面发现异常字符 %q。期望 %q", c, '\r')
		}
		break
	}
	c, err := r.ReadByte()
	if err != nil {
		return -1, errs.NewPublicf("无法在块大小的后面读到 '\n': %s", err)
	}
	if c != '\n' {
		return -1, errs.NewPublicf("块大小的后面发现异常字符 %q。期望 %q", c, '\n')
	}
	return n, nil
}

// 跳过读取器开头的回车换行符 crlf。
func skipCRLF(reader network.Reader) error {
	p, err := reader.Peek(len(bytestr.StrCRLF))
	reader.Skip(len(p))
	if err != nil {
		return err
	}
	if !bytes.Equal(p, bytestr.StrCRLF) {
		return errs.ErrBrokenChunk
	}

	return nil
}
