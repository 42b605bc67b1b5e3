package mock

import (
	"bytes"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cloudwego/netpoll"
	errs "github.com/favbox/gust/common/errors"
	"github.com/favbox/gust/network"
)

// Recorder 可回读已写入连接的数据，用于断言线上输出。
type Recorder interface {
	network.Reader
	WroteLen() int
}

type recorder struct {
	c *Conn
	network.Reader
}

func (r *recorder) WroteLen() int {
	return r.c.wroteLen
}

var (
	_ network.Conn = (*Conn)(nil)
	_ network.Conn = (*BrokenConn)(nil)
)

// Conn 是基于内存缓冲区的连接，读端由 source 预填充，写端可回读。
type Conn struct {
	readTimeout time.Duration
	zr          network.Reader
	zw          network.ReadWriter
	wroteLen    int
}

// --- 实现 network.Conn ---

func (m *Conn) SetReadTimeout(t time.Duration) error {
	m.readTimeout = t
	return nil
}

func (m *Conn) SetWriteTimeout(t time.Duration) error {
	return nil
}

// --- 实现 network.Reader ---

// Peek 返回 n 个字节。数据不足时统一返回 io.EOF，便于对流结束断言。
func (m *Conn) Peek(n int) ([]byte, error) {
	b, err := m.zr.Peek(n)
	if err != nil || len(b) != n {
		return nil, io.EOF
	}
	return b, nil
}

func (m *Conn) Skip(n int) error {
	return m.zr.Skip(n)
}

func (m *Conn) Release() error {
	return nil
}

func (m *Conn) Len() int {
	return m.zr.Len()
}

func (m *Conn) ReadByte() (byte, error) {
	return m.zr.ReadByte()
}

func (m *Conn) ReadBinary(n int) (p []byte, err error) {
	return m.zr.(netpoll.Reader).ReadBinary(n)
}

// --- 实现 network.Writer ---

func (m *Conn) Malloc(n int) (buf []byte, err error) {
	m.wroteLen += n
	return m.zw.Malloc(n)
}

func (m *Conn) WriteBinary(b []byte) (n int, err error) {
	n, err = m.zw.WriteBinary(b)
	m.wroteLen += n
	return n, err
}

func (m *Conn) Flush() error {
	return m.zw.Flush()
}

// --- 实现 net.Conn ---

func (m *Conn) Read(b []byte) (n int, err error) {
	return netpoll.NewIOReader(m.zr.(netpoll.Reader)).Read(b)
}

func (m *Conn) Write(b []byte) (n int, err error) {
	n, err = netpoll.NewIOWriter(m.zw.(netpoll.ReadWriter)).Write(b)
	m.wroteLen += n
	return n, err
}

func (m *Conn) Close() error {
	return nil
}

func (m *Conn) LocalAddr() net.Addr {
	return nil
}

func (m *Conn) RemoteAddr() net.Addr {
	return nil
}

func (m *Conn) SetDeadline(t time.Time) error {
	panic("待实现")
}

func (m *Conn) SetReadDeadline(t time.Time) error {
	m.readTimeout = -time.Since(t)
	return nil
}

func (m *Conn) SetWriteDeadline(t time.Time) error {
	panic("待实现")
}

// --- 其他扩展 ---

func (m *Conn) WriterRecorder() Recorder {
	return &recorder{
		c:      m,
		Reader: m.zw,
	}
}

func (m *Conn) GetReadTimeout() time.Duration {
	return m.readTimeout
}

// NewConn 创建指定原始数据的连接。
func NewConn(source string) *Conn {
	zr := netpoll.NewReader(strings.NewReader(source))
	zw := netpoll.NewReadWriter(&bytes.Buffer{})

	return &Conn{
		zr: zr,
		zw: zw,
	}
}

// BrokenConn 模拟中途断开的连接：读即半途 EOF，刷新即失败。
type BrokenConn struct {
	*Conn
}

func (c *BrokenConn) Peek(n int) ([]byte, error) {
	return nil, io.ErrUnexpectedEOF
}

func (c *BrokenConn) Read(b []byte) (n int, err error) {
	return 0, io.ErrUnexpectedEOF
}

func (c *BrokenConn) Flush() error {
	return errs.ErrConnectionClosed
}

func NewBrokenConn(source string) *BrokenConn {
	return &BrokenConn{NewConn(source)}
}
