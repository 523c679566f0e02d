package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/client/internal/service"
)

type setUsernameRequest struct {
	Username string `json:"username" binding:"required"`
}

type selectDomainRequest struct {
	Domain string `json:"domain" binding:"required"`
}

type usernameWarning struct {
	Length int `json:"length"`
	Min    int `json:"min"`
}

type identityResponse struct {
	service.IdentityState
	Warning *usernameWarning `json:"warning,omitempty"`
}

// getIdentity 当前邮箱身份
func (h *Handler) getIdentity(c *gin.Context) {
	Success(c, h.identity.State())
}

// generateEmail 生成新地址；失败时保留原地址并返回错误
func (h *Handler) generateEmail(c *gin.Context) {
	addr, err := h.identity.GenerateNewEmail(c.Request.Context())
	if err != nil {
		h.logger.Warn("generate email failed", zap.Error(err))
		respondError(c, err)
		return
	}

	SuccessWithMsg(c, "已生成新地址 "+addr.String(), h.identity.State())
}

// setUsername 设置自定义用户名，短用户名只返回警告
func (h *Handler) setUsername(c *gin.Context) {
	var req setUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	warning, err := h.identity.SetCustomUsername(req.Username)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := identityResponse{IdentityState: h.identity.State()}
	if warning != nil {
		resp.Warning = &usernameWarning{Length: warning.Length, Min: warning.Min}
		SuccessWithMsg(c, "用户名较短，容易被他人猜到", resp)
		return
	}
	Success(c, resp)
}

// resetUsername 下次生成使用随机用户名
func (h *Handler) resetUsername(c *gin.Context) {
	h.identity.ResetToAPIMode()
	Success(c, h.identity.State())
}

// selectDomain 选择下次生成使用的域名
func (h *Handler) selectDomain(c *gin.Context) {
	var req selectDomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.identity.SelectDomain(req.Domain); err != nil {
		respondError(c, err)
		return
	}
	Success(c, h.identity.State())
}

// copyEmail 复制当前地址到系统剪贴板
func (h *Handler) copyEmail(c *gin.Context) {
	if err := h.identity.CopyEmailToClipboard(); err != nil {
		respondError(c, err)
		return
	}
	SuccessWithMsg(c, "已复制到剪贴板", gin.H{"address": h.identity.Current().String()})
}
