package notify

import (
	"context"

	"tempmail/client/internal/domain"
	"tempmail/client/internal/websocket"
)

// Publisher 向前端推送消息的最小接口
type Publisher interface {
	Publish(msgType websocket.MessageType, payload interface{}) bool
	ClientCount() int
}

// HubNotifier 通过 WebSocket 推送到已打开的页面
type HubNotifier struct {
	hub Publisher
}

// NewHubNotifier 创建页面推送通知器
func NewHubNotifier(hub Publisher) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// Register hub 为空时推送不可用
func (h *HubNotifier) Register(ctx context.Context) error {
	if h.hub == nil {
		return domain.ErrPushUnavailable
	}
	return nil
}

// Notify 没有页面连接或队列已满时返回 ErrPushUnavailable
func (h *HubNotifier) Notify(ctx context.Context, n Notification) error {
	if h.hub == nil || h.hub.ClientCount() == 0 {
		return domain.ErrPushUnavailable
	}
	if !h.hub.Publish(websocket.MessageTypeLookupNotification, n) {
		return domain.ErrPushUnavailable
	}
	return nil
}
