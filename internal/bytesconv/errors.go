package bytesconv

import "errors"

var (
	errEmptyHexNum    = errors.New("十六进制数为空")
	errTooLargeHexNum = errors.New("十六进制数过大")
)
