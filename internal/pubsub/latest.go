package pubsub

import "sync"

// Latest 只保留最新值的广播器
//
// 每个订阅通道缓冲为 1，发布时丢弃未消费的旧值，慢订阅者不会阻塞发布方。
type Latest[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
}

// NewLatest 创建广播器
func NewLatest[T any]() *Latest[T] {
	return &Latest[T]{subs: make(map[int]chan T)}
}

// Subscribe 订阅；cancel 取消订阅并关闭通道，可重复调用
func (l *Latest[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)

	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = ch
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
			close(ch)
		})
	}
}

// Publish 向所有订阅者发送 v
func (l *Latest[T]) Publish(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ch := range l.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Len 当前订阅者数量
func (l *Latest[T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}
