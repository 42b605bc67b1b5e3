package bytebufferpool

import (
	"bytes"
	"fmt"
	"testing"
)

func TestByteBufferReadFrom(t *testing.T) {
	prefix := "foobar"
	expectedS := "asadfsdafsadfasdfisdsdfa"
	prefixLen := int64(len(prefix))
	expectedN := int64(len(expectedS))

	var bb ByteBuffer
	bb.WriteString(prefix)

	rf := (*bytes.Buffer)(nil)
	for i := 0; i < 20; i++ {
		rf = bytes.NewBufferString(expectedS)
		n, err := bb.ReadFrom(rf)
		if n != expectedN {
			t.Fatalf("异常的读取字节数 %d。期望 %d。循环 %d", n, expectedN, i)
		}
		if err != nil {
			t.Fatalf("异常错误：%s", err)
		}
		bbLen := int64(bb.Len())
		expectedLen := prefixLen + int64(i+1)*expectedN
		if bbLen != expectedLen {
			t.Fatalf("异常的缓冲区长度 %d。期望 %d", bbLen, expectedLen)
		}
		for j := 0; j < i; j++ {
			start := prefixLen + int64(j)*expectedN
			b := bb.B[start : start+expectedN]
			if string(b) != expectedS {
				t.Fatalf("异常的数据 %q。期望 %q", b, expectedS)
			}
		}
	}
}

func TestByteBufferWriteTo(t *testing.T) {
	expectedS := "foobarbaz"
	var bb ByteBuffer
	bb.WriteString(expectedS[:3])
	bb.WriteString(expectedS[3:])

	wt := &bytes.Buffer{}
	for i := 0; i < 10; i++ {
		n, err := bb.WriteTo(wt)
		if n != int64(len(expectedS)) {
			t.Fatalf("异常的写入字节数 %d。期望 %d。循环 %d", n, len(expectedS), i)
		}
		if err != nil {
			t.Fatalf("异常错误：%s", err)
		}
		s := wt.String()
		if s != expectedS {
			t.Fatalf("异常的数据 %q。期望 %q", s, expectedS)
		}
		wt.Reset()
	}
}

func TestByteBufferGetPutSerial(t *testing.T) {
	testByteBufferGetPut(t)
}

func TestByteBufferGetPutConcurrent(t *testing.T) {
	concurrency := 10
	ch := make(chan struct{}, concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			testByteBufferGetPut(t)
			ch <- struct{}{}
		}()
	}
	for i := 0; i < concurrency; i++ {
		<-ch
	}
}

func testByteBufferGetPut(t *testing.T) {
	for i := 0; i < 10; i++ {
		expectedS := fmt.Sprintf("num %d", i)
		b := Get()
		b.B = append(b.B, "num "...)
		b.B = append(b.B, fmt.Sprintf("%d", i)...)
		if string(b.B) != expectedS {
			t.Fatalf("异常的缓冲区内容 %q。期望 %q", b.B, expectedS)
		}
		Put(b)
	}
}

func TestByteBufferSetString(t *testing.T) {
	var bb ByteBuffer
	bb.SetString("foo")
	if bb.String() != "foo" {
		t.Fatalf("异常的缓冲区内容 %q。期望 %q", bb.String(), "foo")
	}
	bb.Set([]byte("bar"))
	if string(bb.Bytes()) != "bar" {
		t.Fatalf("异常的缓冲区内容 %q。期望 %q", bb.Bytes(), "bar")
	}
	bb.Reset()
	if bb.Len() != 0 {
		t.Fatalf("重置后长度应为 0，实际 %d", bb.Len())
	}
}
