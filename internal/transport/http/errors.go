package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tempmail/client/internal/domain"
	"tempmail/client/internal/mailapi"
	"tempmail/client/internal/service"
	"tempmail/client/internal/view"
)

type errorMapping struct {
	status int
	msg    string
}

// 错误映射表（业务错误 -> HTTP 状态码与中文消息），按顺序用 errors.Is 匹配
var errorTable = []struct {
	err error
	errorMapping
}{
	{domain.ErrInvalidAddress, errorMapping{http.StatusBadRequest, "邮箱地址无效"}},
	{domain.ErrInvalidUsername, errorMapping{http.StatusBadRequest, "用户名只能包含字母、数字、点、下划线和连字符"}},
	{domain.ErrLocalPartTooLong, errorMapping{http.StatusBadRequest, "用户名过长"}},
	{domain.ErrInvalidDomain, errorMapping{http.StatusBadRequest, "域名格式无效"}},
	{domain.ErrDomainNotAllowed, errorMapping{http.StatusBadRequest, "域名不在允许列表中"}},
	{domain.ErrInvalidPreferences, errorMapping{http.StatusBadRequest, "同步偏好取值无效"}},
	{domain.ErrLookupFull, errorMapping{http.StatusConflict, "监控列表已满"}},
	{domain.ErrLookupDuplicate, errorMapping{http.StatusConflict, "地址已在监控列表中"}},
	{domain.ErrLookupNotFound, errorMapping{http.StatusNotFound, "地址不在监控列表中"}},
	{domain.ErrInactive, errorMapping{http.StatusConflict, "长时间无操作，自动刷新已暂停"}},
	{domain.ErrRateLimited, errorMapping{http.StatusTooManyRequests, "请求过于频繁，请稍后重试"}},
	{domain.ErrUnavailable, errorMapping{http.StatusServiceUnavailable, "邮件服务暂时不可用，请稍后重试"}},
	{domain.ErrPushUnavailable, errorMapping{http.StatusServiceUnavailable, "通知推送不可用"}},
	{service.ErrClipboardUnavailable, errorMapping{http.StatusServiceUnavailable, "剪贴板不可用"}},
	{view.ErrInvalidAttachment, errorMapping{http.StatusUnprocessableEntity, "附件内容无法解码"}},
}

// 通用错误消息
const (
	MsgInvalidRequest     = "请求参数格式错误"
	MsgValidationFailed   = "表单字段缺失或无效"
	MsgMessageNotFound    = "邮件不存在"
	MsgAttachmentNotFound = "附件不存在"
	MsgNoAddress          = "尚未生成邮箱地址"
	MsgRenderFailed       = "邮件渲染失败"
	MsgInternalError      = "服务器内部错误，请稍后重试"
)

// mapError 把错误转换为状态码与中文消息，未知错误返回 500
func mapError(err error) (int, string) {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return e.status, e.msg
		}
	}

	var apiErr *mailapi.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return http.StatusNotFound, MsgMessageNotFound
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return http.StatusBadRequest, MsgInvalidRequest
		}
		return http.StatusBadGateway, "邮件服务返回错误"
	}

	return http.StatusInternalServerError, MsgInternalError
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	_, msg := mapError(err)
	return msg
}

// respondError 统一错误响应；表单校验错误附带字段列表
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		ErrorWithData(c, http.StatusBadRequest, MsgValidationFailed, gin.H{"fields": verr.Fields})
		return
	}

	status, msg := mapError(err)
	Error(c, status, msg)
}
