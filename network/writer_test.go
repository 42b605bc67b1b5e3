package network

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingWriter struct {
	wrote int
	fail  error
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	if cw.fail != nil {
		return 0, cw.fail
	}
	cw.wrote += len(p)
	return len(p), nil
}

func TestWriterMallocReuse(t *testing.T) {
	cw := &countingWriter{}
	w := NewWriter(cw)
	nw := w.(*networkWriter)

	buf, err := w.Malloc(1024)
	assert.Nil(t, err)
	assert.Equal(t, 1024, len(buf))
	assert.Equal(t, 1, len(nw.caches))

	assert.Nil(t, w.Flush())
	assert.Equal(t, 1024, cw.wrote)
	// 刷新后节点回池，切片保留容量以复用。
	assert.Equal(t, 0, len(nw.caches))
	assert.Equal(t, 1, cap(nw.caches))

	// 上个节点有余量时在原节点上续分配，不新建节点。
	w.Malloc(1025)
	assert.Equal(t, 1, len(nw.caches))
	w.Malloc(512)
	assert.Equal(t, 1, len(nw.caches))
	assert.Equal(t, 1025+512, len(nw.caches[0].data))

	// 余量不足则挂新节点。
	w.Malloc(512)
	assert.Equal(t, 2, len(nw.caches))

	assert.Nil(t, w.Flush())
	assert.Equal(t, 1024+1025+512+512, cw.wrote)
}

func TestWriterWriteBinary(t *testing.T) {
	cw := &countingWriter{}
	w := NewWriter(cw)
	nw := w.(*networkWriter)

	// 小切片拷贝进 mcache 节点。
	small := make([]byte, 128)
	n, err := w.WriteBinary(small)
	assert.Nil(t, err)
	assert.Equal(t, 128, n)
	assert.False(t, nw.caches[len(nw.caches)-1].readOnly)

	// 大切片零拷贝挂为只读节点，刷新前须保持有效。
	big := make([]byte, size4K)
	n, err = w.WriteBinary(big)
	assert.Nil(t, err)
	assert.Equal(t, size4K, n)
	assert.True(t, nw.caches[len(nw.caches)-1].readOnly)

	assert.Nil(t, w.Flush())
	assert.Equal(t, 128+size4K, cw.wrote)
}

func TestWriterFlushError(t *testing.T) {
	boom := errors.New("写入失败")
	cw := &countingWriter{fail: boom}
	w := NewWriter(cw)

	w.WriteBinary([]byte("data"))
	assert.Equal(t, boom, w.Flush())
	// 出错后缓存同样被释放，不会重复写出旧数据。
	cw.fail = nil
	assert.Nil(t, w.Flush())
	assert.Equal(t, 0, cw.wrote)
}
