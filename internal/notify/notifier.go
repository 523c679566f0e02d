package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tempmail/client/internal/domain"
)

// Notification 监控地址未读数增加时产生的通知
type Notification struct {
	Address   string    `json:"address"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewNotification 构造通知
func NewNotification(addr domain.Address, count int) Notification {
	return Notification{
		Address:   addr.String(),
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

// Notifier 推送通道
//
// Register 在启动时调用一次；返回 domain.ErrPushUnavailable 表示宿主环境不支持推送，
// 调用方应完全关闭通知功能。
type Notifier interface {
	Register(ctx context.Context) error
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier 只写日志的通知器
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Register 总是成功
func (n *LogNotifier) Register(ctx context.Context) error { return nil }

// Notify 记录一条日志
func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	n.logger.Info("new mail in watched address",
		zap.String("address", notification.Address),
		zap.Int("unread", notification.Count))
	return nil
}

// Multi 组合多个通知器
//
// 只要有一个通道注册成功即视为可用；通知发送到所有注册成功的通道。
type Multi struct {
	notifiers []Notifier
	active    []Notifier
	logger    *zap.Logger
}

// NewMulti 创建组合通知器
func NewMulti(logger *zap.Logger, notifiers ...Notifier) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{notifiers: notifiers, logger: logger}
}

// Register 依次注册各通道
func (m *Multi) Register(ctx context.Context) error {
	m.active = m.active[:0]
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Register(ctx); err != nil {
			lastErr = err
			continue
		}
		m.active = append(m.active, n)
	}
	if len(m.active) == 0 {
		if lastErr == nil || errors.Is(lastErr, domain.ErrPushUnavailable) {
			return domain.ErrPushUnavailable
		}
		return lastErr
	}
	return nil
}

// Notify 发送到所有可用通道，全部失败时返回最后一个错误
func (m *Multi) Notify(ctx context.Context, notification Notification) error {
	var lastErr error
	delivered := 0
	for _, n := range m.active {
		if err := n.Notify(ctx, notification); err != nil {
			if !errors.Is(err, domain.ErrPushUnavailable) {
				m.logger.Warn("notification delivery failed", zap.Error(err))
			}
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 && lastErr != nil {
		return lastErr
	}
	return nil
}
