package view

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"tempmail/client/internal/domain"
	"tempmail/client/internal/security"
)

// ErrInvalidAttachment 附件内容无法解码
var ErrInvalidAttachment = errors.New("invalid attachment payload")

var inspector = security.NewInspector()

// AttachmentInfo 附件列表项
type AttachmentInfo struct {
	Index     int    `json:"index"`
	Filename  string `json:"filename"`
	Size      int64  `json:"size"`
	HumanSize string `json:"humanSize"`
	Risky     bool   `json:"risky"`
}

// Attachments 生成附件列表
func Attachments(msg domain.Message) []AttachmentInfo {
	out := make([]AttachmentInfo, 0, len(msg.Attachments))
	for i, a := range msg.Attachments {
		size := a.Size()
		name := attachmentName(a, i)
		out = append(out, AttachmentInfo{
			Index:     i,
			Filename:  name,
			Size:      size,
			HumanSize: HumanSize(size),
			Risky:     riskyAttachment(a, name),
		})
	}
	return out
}

// HumanSize 把字节数格式化为可读形式
func HumanSize(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	units := []string{"KB", "MB", "GB", "TB"}
	value := float64(n) / 1024
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", value, units[i])
}

// DecodedAttachment 解码后的附件，用于下载
type DecodedAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
	Risky       bool
}

// DecodeAttachment 解码 base64 载荷并推断内容类型
//
// 载荷可以是 data URL；不做完整性校验。可执行附件一律按二进制流下载。
func DecodeAttachment(a domain.Attachment, index int) (*DecodedAttachment, error) {
	declaredType, data, err := decodePayload(a.Data.Base64)
	if err != nil {
		return nil, err
	}

	name := attachmentName(a, index)
	contentType := declaredType
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	risky := inspector.RiskyAttachment(name, data)
	if risky {
		contentType = "application/octet-stream"
	}

	return &DecodedAttachment{
		Filename:    name,
		ContentType: contentType,
		Data:        data,
		Risky:       risky,
	}, nil
}

// decodePayload 解码 base64 或 data URL 载荷，返回 data URL 声明的类型
func decodePayload(raw string) (string, []byte, error) {
	payload := strings.TrimSpace(raw)
	declaredType := ""
	if strings.HasPrefix(payload, "data:") {
		comma := strings.Index(payload, ",")
		if comma < 0 {
			return "", nil, ErrInvalidAttachment
		}
		meta := payload[len("data:"):comma]
		declaredType = strings.TrimSuffix(meta, ";base64")
		payload = payload[comma+1:]
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidAttachment, err)
	}
	return declaredType, data, nil
}

// decodeBase64 兼容标准、无填充与 URL 安全编码，忽略换行
func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// riskyAttachment 与下载使用同一判断；载荷无法解码时只看文件名
func riskyAttachment(a domain.Attachment, name string) bool {
	_, data, err := decodePayload(a.Data.Base64)
	if err != nil {
		return inspector.DangerousName(name)
	}
	return inspector.RiskyAttachment(name, data)
}

func attachmentName(a domain.Attachment, index int) string {
	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(a.Filename, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return fmt.Sprintf("attachment-%d", index+1)
	}
	return name
}
