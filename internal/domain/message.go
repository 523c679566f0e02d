package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Message 表示后端返回的一封邮件；客户端只读，过期由后端负责
type Message struct {
	ID          string       `json:"id"`
	Sender      string       `json:"sender"`
	Receiver    string       `json:"receiver"`
	Subject     string       `json:"subject"`
	Message     string       `json:"message"`
	Date        Timestamp    `json:"date"`
	CreatedAt   Timestamp    `json:"created_at"`
	UpdatedAt   Timestamp    `json:"updated_at"`
	Attachments []Attachment `json:"attachments"`
}

// UnmarshalJSON 宽松解析 id：接受字符串、数字或 null，其他类型按缺失处理
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.ID = parseMessageID(aux.ID)
	return nil
}

func parseMessageID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return ""
	}
	return n.String()
}

// SortTime 返回排序使用的时间：优先 Date，其次 CreatedAt
func (m Message) SortTime() time.Time {
	if !m.Date.IsZero() {
		return m.Date.Time
	}
	return m.CreatedAt.Time
}

// Attachment 表示邮件附件，内容为 base64 编码，不做完整性校验
type Attachment struct {
	Filename string         `json:"filename"`
	Data     AttachmentData `json:"data"`
}

// AttachmentData 附件载荷
type AttachmentData struct {
	Base64 string `json:"base64"`
}

// Size 根据 base64 长度估算解码后的字节数
func (a Attachment) Size() int64 {
	s := strings.TrimSpace(a.Data.Base64)
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	n := int64(len(s))
	if n == 0 {
		return 0
	}
	padding := int64(strings.Count(s[max(0, len(s)-2):], "="))
	return n*3/4 - padding
}

// Timestamp 宽松的时间字段：接受 RFC3339 字符串、常见日期格式、Unix 秒/毫秒或 null
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02",
}

// UnmarshalJSON 实现 json.Unmarshaler；无法识别的格式按零值处理
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] != '"' {
		n, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			t.Time = time.Time{}
			return nil
		}
		t.Time = fromUnix(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	t.Time = ParseTimestamp(s)
	return nil
}

// MarshalJSON 零值输出 null，其他输出 RFC3339
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// ParseTimestamp 解析时间字符串，失败返回零值
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC()
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromUnix(n)
	}
	return time.Time{}
}

// fromUnix 大于 1e12 的数值视为毫秒
func fromUnix(n int64) time.Time {
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
