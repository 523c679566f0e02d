package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

// 验证相关的错误定义
var (
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrEmailTooLong     = errors.New("email address too long")
	ErrLocalPartTooLong = errors.New("local part too long (max 64 chars)")
	ErrDomainTooLong    = errors.New("domain too long (max 253 chars)")
	ErrInvalidUsername  = errors.New("invalid username format")
	ErrInvalidDomain    = errors.New("invalid domain format")
)

// 验证常量（RFC 5322 长度限制）
const (
	MaxEmailLength     = 254
	MaxLocalPartLength = 64
	MaxDomainLength    = 253

	// DefaultMinUsernameLength 用户名长度提示阈值，低于该值只给出警告
	DefaultMinUsernameLength = 4
)

var (
	// 用户名只允许小写字母、数字和 . _ -，且首尾必须是字母或数字
	usernameRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9._-]*[a-z0-9])?$`)

	domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)
)

// UsernameWarning 软性校验结果，不阻止提交
type UsernameWarning struct {
	Length int
	Min    int
}

func (w *UsernameWarning) Error() string {
	return fmt.Sprintf("username is shorter than %d characters (%d), address may be easy to guess", w.Min, w.Length)
}

// EmailValidator 邮箱地址验证器
type EmailValidator struct {
	minUsernameLength int
}

// NewEmailValidator 创建验证器，minUsernameLength <= 0 时使用默认提示阈值
func NewEmailValidator(minUsernameLength int) *EmailValidator {
	if minUsernameLength <= 0 {
		minUsernameLength = DefaultMinUsernameLength
	}
	return &EmailValidator{minUsernameLength: minUsernameLength}
}

// NormalizeUsername 去除空白并转为小写
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateUsername 执行硬性校验（非空、长度上限、字符集）
func (v *EmailValidator) ValidateUsername(username string) error {
	username = NormalizeUsername(username)
	if username == "" {
		return ErrInvalidUsername
	}
	if len(username) > MaxLocalPartLength {
		return ErrLocalPartTooLong
	}
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	if strings.Contains(username, "..") {
		return ErrInvalidUsername
	}
	return nil
}

// CheckUsername 返回软性警告；长度不足只提示，不作为提交条件
func (v *EmailValidator) CheckUsername(username string) *UsernameWarning {
	n := len(NormalizeUsername(username))
	if n < v.minUsernameLength {
		return &UsernameWarning{Length: n, Min: v.minUsernameLength}
	}
	return nil
}

// ValidateDomain 验证域名
func (v *EmailValidator) ValidateDomain(domain string) error {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ErrInvalidDomain
	}
	if len(domain) > MaxDomainLength {
		return ErrDomainTooLong
	}
	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}
	return nil
}

// ValidateEmail 完整验证邮箱地址
func (v *EmailValidator) ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ErrInvalidEmail
	}
	if err := v.ValidateUsername(parts[0]); err != nil {
		return err
	}
	return v.ValidateDomain(parts[1])
}
