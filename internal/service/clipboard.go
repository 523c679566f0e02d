package service

import (
	"errors"

	"github.com/atotto/clipboard"
)

// ErrClipboardUnavailable 当前环境没有可用的剪贴板工具
var ErrClipboardUnavailable = errors.New("clipboard unavailable")

// Clipboard 系统剪贴板
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard 使用系统剪贴板（Linux 需要 xclip/xsel/wl-copy）
type SystemClipboard struct{}

// WriteAll 写入文本
func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return ErrClipboardUnavailable
	}
	return clipboard.WriteAll(text)
}
