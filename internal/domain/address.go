package domain

import (
	"strings"
)

// Address 表示一个临时邮箱地址，整体替换，不做局部修改
type Address struct {
	Username string `json:"username"`
	Domain   string `json:"domain"`
}

// NewAddress 构造地址，用户名与域名统一转为小写
func NewAddress(username, domain string) Address {
	return Address{
		Username: NormalizeUsername(username),
		Domain:   strings.ToLower(strings.TrimSpace(domain)),
	}
}

// ParseAddress 解析 "username@domain" 形式的地址
func ParseAddress(s string) (Address, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.LastIndex(s, "@")
	if at <= 0 || at == len(s)-1 {
		return Address{}, ErrInvalidAddress
	}
	addr := Address{Username: s[:at], Domain: s[at+1:]}
	if strings.Contains(addr.Username, "@") {
		return Address{}, ErrInvalidAddress
	}
	return addr, nil
}

// String 返回完整邮箱地址
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return a.Username + "@" + a.Domain
}

// IsZero 判断是否为空地址
func (a Address) IsZero() bool {
	return a.Username == "" && a.Domain == ""
}

// Equal 地址比较（大小写不敏感）
func (a Address) Equal(other Address) bool {
	return strings.EqualFold(a.Username, other.Username) && strings.EqualFold(a.Domain, other.Domain)
}

// UsernameKind 用户名来源
type UsernameKind string

const (
	UsernameGenerated UsernameKind = "generated" // 由后端或本地随机生成
	UsernameCustom    UsernameKind = "custom"    // 用户自定义
)

// Username 用户名的标记变体：Generated 或 Custom(text)
type Username struct {
	kind UsernameKind
	text string
}

// GeneratedUsername 返回“服务端分配”变体
func GeneratedUsername() Username {
	return Username{kind: UsernameGenerated}
}

// CustomUsername 返回自定义用户名变体
func CustomUsername(text string) Username {
	return Username{kind: UsernameCustom, text: text}
}

// Kind 返回变体类型，零值视为 Generated
func (u Username) Kind() UsernameKind {
	if u.kind == "" {
		return UsernameGenerated
	}
	return u.kind
}

// Custom 返回自定义文本；非 Custom 变体返回 false
func (u Username) Custom() (string, bool) {
	if u.Kind() != UsernameCustom {
		return "", false
	}
	return u.text, true
}
