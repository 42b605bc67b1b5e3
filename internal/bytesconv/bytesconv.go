package bytesconv

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/favbox/gust/network"
)

const (
	lowerHex = "0123456789abcdef" // 小写的十六进制字符

	// maxHexIntChars 是 int 的最大十六进制位数。
	maxHexIntChars = 15
)

var hexIntBufPool sync.Pool

// Hex2intTable 将十六进制字符映射为数值，非法字符映射为 16。
var Hex2intTable = func() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		c := byte(16)
		switch {
		case i >= '0' && i <= '9':
			c = byte(i) - '0'
		case i >= 'a' && i <= 'f':
			c = byte(i) - 'a' + 10
		case i >= 'A' && i <= 'F':
			c = byte(i) - 'A' + 10
		}
		t[i] = c
	}
	return t
}()

// B2s 将字节切片转为字符串，且不分配内存。
//
// 注意：如果字符串或切片的标头在未来的go版本中更改，该方法可能会出错。
func B2s(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// S2b 将字符串转为字节切片，且不分配内存。
//
// 注意：如果字符串或切片的标头在未来的go版本中更改，该方法可能会出错。
func S2b(s string) (b []byte) {
	bh := (*reflect.SliceHeader)(unsafe.Pointer(&b))
	sh := (*reflect.StringHeader)(unsafe.Pointer(&s))
	bh.Data = sh.Data
	bh.Len = sh.Len
	bh.Cap = sh.Len
	return b
}

// WriteHexInt 将正整数 n 以十六进制写入 w。
func WriteHexInt(w network.Writer, n int) error {
	if n < 0 {
		panic("BUG: int 必须为正整数")
	}

	v := hexIntBufPool.Get()
	if v == nil {
		v = make([]byte, maxHexIntChars+1)
	}
	buf := v.([]byte)

	i := len(buf) - 1
	for {
		buf[i] = lowerHex[n&0xf]
		n >>= 4
		if n == 0 {
			break
		}
		i--
	}
	safeBuf, err := w.Malloc(maxHexIntChars + 1 - i)
	copy(safeBuf, buf[i:])
	hexIntBufPool.Put(v)
	return err
}

// ReadHexInt 从 r 读取一个十六进制整数。
func ReadHexInt(r network.Reader) (int, error) {
	n := 0
	i := 0
	var k int
	for {
		buf, err := r.Peek(1)
		if err != nil {
			r.Skip(1)

			if i > 0 {
				return n, nil
			}
			return -1, err
		}

		c := buf[0]
		k = int(Hex2intTable[c])
		if k == 16 {
			if i == 0 {
				r.Skip(1)
				return -1, errEmptyHexNum
			}
			return n, nil
		}
		if i >= maxHexIntChars {
			r.Skip(1)
			return -1, errTooLargeHexNum
		}

		r.Skip(1)
		n = (n << 4) | k
		i++
	}
}
