// Package bytestr 定义跨包共享的字节常量。
package bytestr

var (
	// StrCRLF 是块与块之间的默认定界符。
	StrCRLF = []byte("\r\n")
)
