package httptransport

import (
	"github.com/gin-gonic/gin"

	"tempmail/client/internal/domain"
)

type addLookupRequest struct {
	Address string `json:"address" binding:"required"`
}

func (h *Handler) lookupPayload() gin.H {
	return gin.H{
		"items":                h.lookup.List(),
		"max":                  domain.MaxLookupEntries,
		"intervalSeconds":      h.lookup.Interval().Seconds(),
		"notificationsEnabled": h.lookup.NotificationsEnabled(),
	}
}

// listLookup 监控列表
func (h *Handler) listLookup(c *gin.Context) {
	Success(c, h.lookupPayload())
}

// addLookup 加入监控列表；已满或重复时返回 409，列表保持不变
func (h *Handler) addLookup(c *gin.Context) {
	var req addLookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	addr, err := domain.ParseAddress(req.Address)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.lookup.Add(addr); err != nil {
		respondError(c, err)
		return
	}
	Created(c, h.lookupPayload())
}

// removeLookup 从监控列表移除，地址不存在时同样返回成功
func (h *Handler) removeLookup(c *gin.Context) {
	addr, err := domain.ParseAddress(c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.lookup.Remove(addr); err != nil {
		respondError(c, err)
		return
	}
	SuccessWithMsg(c, "删除成功", h.lookupPayload())
}

// markLookupRead 把地址当前所有邮件标记为已读
func (h *Handler) markLookupRead(c *gin.Context) {
	addr, err := domain.ParseAddress(c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.lookup.MarkRead(c.Request.Context(), addr); err != nil {
		respondError(c, err)
		return
	}
	Success(c, h.lookupPayload())
}
