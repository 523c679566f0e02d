package domain

import (
	"errors"
	"strings"
)

// 业务错误定义
var (
	ErrInvalidAddress     = errors.New("invalid email address")
	ErrDomainNotAllowed   = errors.New("domain not allowed")
	ErrLookupFull         = errors.New("lookup list is full")
	ErrLookupDuplicate    = errors.New("address already in lookup list")
	ErrLookupNotFound     = errors.New("address not in lookup list")
	ErrInvalidPreferences = errors.New("invalid sync preferences")

	// ErrUnavailable 后端暂时不可用（网络错误、5xx、429），由下一次轮询自动重试
	ErrUnavailable = errors.New("service temporarily unavailable")
	// ErrRateLimited 辅助服务限流，调用方应静默降级
	ErrRateLimited = errors.New("rate limited")
	// ErrPushUnavailable 宿主环境无法注册推送通道，通知功能降级为关闭
	ErrPushUnavailable = errors.New("push channel unavailable")
	// ErrInactive 用户长时间无操作，轮询已暂停
	ErrInactive = errors.New("polling paused due to inactivity")
)

// ValidationError 表单校验错误，列出缺失或无效的字段
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, ", ")
}

// IsValidation 判断是否为表单校验错误
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
