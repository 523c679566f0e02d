package httptransport

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/client/internal/counter"
	"tempmail/client/internal/domain"
	"tempmail/client/internal/service"
)

type updatePreferencesRequest struct {
	SyncFrequencyMinutes *int                  `json:"syncFrequencyMinutes"`
	ThemeOverride        *domain.ThemeOverride `json:"themeOverride"`
}

// getConfig 前端需要的客户端配置
func (h *Handler) getConfig(c *gin.Context) {
	domains := h.identity.Domains()
	defaultDomain := ""
	if len(domains) > 0 {
		defaultDomain = domains[0]
	}

	Success(c, gin.H{
		"domains":                  domains,
		"defaultDomain":            defaultDomain,
		"pollIntervalSeconds":      h.cfg.Mailbox.PollInterval.Seconds(),
		"inactivityTimeoutSeconds": h.cfg.Mailbox.InactivityTimeout.Seconds(),
		"pageSize":                 h.cfg.Mailbox.PageSize,
		"minUsernameLength":        h.cfg.Mailbox.MinUsernameLength,
		"maxLookupEntries":         domain.MaxLookupEntries,
		"syncFrequencies":          domain.AllowedSyncFrequencies,
		"features": gin.H{
			"visitorCounter": h.counter != nil && h.counter.Enabled(),
			"contact":        h.contact != nil,
			"contactRelay":   h.contact != nil && h.contact.Enabled(),
			"notifications":  h.lookup.NotificationsEnabled(),
		},
	})
}

// getPreferences 同步偏好
func (h *Handler) getPreferences(c *gin.Context) {
	Success(c, h.settings.Get())
}

// updatePreferences 修改同步偏好，未提供的字段保持不变
func (h *Handler) updatePreferences(c *gin.Context) {
	var req updatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	prefs, err := h.settings.Update(func(p *domain.SyncPreferences) {
		if req.SyncFrequencyMinutes != nil {
			p.SyncFrequencyMinutes = *req.SyncFrequencyMinutes
		}
		if req.ThemeOverride != nil {
			p.ThemeOverride = *req.ThemeOverride
		}
	})
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, prefs)
}

// getVisitors 读取访客计数
func (h *Handler) getVisitors(c *gin.Context) {
	if h.counter == nil {
		Success(c, counter.Result{})
		return
	}
	h.visitorResult(c, h.counter.Get)
}

// incrementVisitors 访客计数加一
func (h *Handler) incrementVisitors(c *gin.Context) {
	if h.counter == nil {
		Success(c, counter.Result{})
		return
	}
	h.visitorResult(c, h.counter.Increment)
}

// visitorResult 计数失败或被限流时静默降级为不可用
func (h *Handler) visitorResult(c *gin.Context, op func(context.Context) (counter.Result, error)) {
	res, err := op(c.Request.Context())
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			h.metrics.RecordRateLimitBlock("visitor_counter")
		} else {
			h.logger.Warn("visitor counter failed", zap.Error(err))
		}
		res = counter.Result{}
	}
	Success(c, res)
}

// submitContact 提交联系表单
func (h *Handler) submitContact(c *gin.Context) {
	if h.contact == nil {
		Error(c, CodeServiceUnavailable, "联系表单未启用")
		return
	}

	var form service.ContactForm
	if err := c.ShouldBindJSON(&form); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.contact.Submit(c.Request.Context(), form); err != nil {
		respondError(c, err)
		return
	}
	SuccessWithMsg(c, "感谢您的反馈", nil)
}
