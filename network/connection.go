package network

import (
	"net"
	"time"
)

// Reader 用于缓冲读取。
type Reader interface {
	// Len 返回可读数据总长度。
	Len() int

	// Peek 返回 n 个字节，但不移动指针。
	Peek(n int) ([]byte, error)

	// Skip 跳过 n 个字节。
	Skip(n int) error

	// ReadByte 读取 1 个字节，并移动指针。
	ReadByte() (byte, error)

	// ReadBinary 读取 n 个字节，并移动指针。
	ReadBinary(n int) (p []byte, err error)

	// Release 释放所有读取切片占用的内存。
	//
	// 在确认先前读取的数据不再使用后，需要主动执行该方法来回收内存。
	//
	// 调用 Release 后，通过 Peek 等方法获取的切片将成为无效地址，无法再使用。
	Release() error
}

// Writer 用于缓冲写入。
type Writer interface {
	// Malloc 分配一块 n 字节的内存缓冲区来暂存数据。
	Malloc(n int) (buf []byte, err error)

	// WriteBinary 向用户缓冲区写入字节切片。注意：在成功刷新之前，b 应有效。
	WriteBinary(b []byte) (n int, err error)

	// Flush 向对端发送数据。
	Flush() error
}

// ReadWriter 适用于缓冲读取器和写入器。
type ReadWriter interface {
	Reader
	Writer
}

// Conn 表示普通读写的连接。
type Conn interface {
	net.Conn
	Reader
	Writer

	// SetReadTimeout 设置每个连接读取进程的超时时长
	SetReadTimeout(t time.Duration) error
	// SetWriteTimeout 设置每个连接写入进程的超时时长
	SetWriteTimeout(t time.Duration) error
}
