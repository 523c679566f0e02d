package httptransport

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/client/internal/service"
	"tempmail/client/internal/view"
)

type inboxResponse struct {
	view.Page
	Sort   view.Direction      `json:"sort"`
	Status service.InboxStatus `json:"status"`
}

// listInbox 当前收件箱，按时间排序后分页
//
// 查询参数: page（从 1 开始，超出范围时夹到有效页）、sort（asc|desc，默认 desc）
func (h *Handler) listInbox(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}
	dir := view.ParseDirection(c.Query("sort"))

	msgs := view.SortMessages(h.inbox.Messages(), dir)
	Success(c, inboxResponse{
		Page:   view.Paginate(msgs, page, h.cfg.Mailbox.PageSize),
		Sort:   dir,
		Status: h.inbox.Status(),
	})
}

// refreshInbox 手动刷新；长时间无操作时不执行
func (h *Handler) refreshInbox(c *gin.Context) {
	if err := h.inbox.Refresh(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	Success(c, h.inbox.Status())
}

// recordActivity 前端上报的用户操作（点击、按键、触摸、滚动）
func (h *Handler) recordActivity(c *gin.Context) {
	h.inbox.Touch()
	Success(c, h.inbox.Status())
}

// getMessage 邮件详情，包含三种格式的正文和附件列表
func (h *Handler) getMessage(c *gin.Context) {
	msg, err := h.inbox.Message(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	v, err := h.renderer.RenderMessage(*msg)
	if err != nil {
		h.logger.Error("failed to render message", zap.String("id", msg.ID), zap.Error(err))
		InternalError(c, MsgRenderFailed)
		return
	}
	Success(c, v)
}

// deleteMessage 删除邮件
func (h *Handler) deleteMessage(c *gin.Context) {
	if err := h.inbox.DeleteMessage(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	SuccessWithMsg(c, "删除成功", nil)
}

// downloadAttachment 解码并下载附件
func (h *Handler) downloadAttachment(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	msg, err := h.inbox.Message(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if index >= len(msg.Attachments) {
		NotFound(c, MsgAttachmentNotFound)
		return
	}

	decoded, err := view.DecodeAttachment(msg.Attachments[index], index)
	if err != nil {
		h.logger.Warn("failed to decode attachment", zap.String("id", msg.ID), zap.Int("index", index), zap.Error(err))
		respondError(c, err)
		return
	}

	if decoded.Risky {
		h.logger.Info("serving risky attachment as binary", zap.String("id", msg.ID), zap.String("filename", decoded.Filename))
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q; filename*=UTF-8''%s",
		decoded.Filename, url.PathEscape(decoded.Filename)))
	c.Data(http.StatusOK, decoded.ContentType, decoded.Data)
}
