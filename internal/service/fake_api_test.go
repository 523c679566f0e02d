package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"tempmail/client/internal/domain"
)

// fakeAPI 内存中的后端
type fakeAPI struct {
	mu        sync.Mutex
	created   []domain.Address
	messages  map[string][]domain.Message
	createErr error
	listErr   error
	username  string
	domains   []string

	// block 非 nil 时 ListMessages 阻塞到通道关闭
	block     chan struct{}
	listCalls int32
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{messages: make(map[string][]domain.Message)}
}

func (f *fakeAPI) setMessages(addr domain.Address, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := make([]domain.Message, len(ids))
	for i, id := range ids {
		msgs[i] = domain.Message{ID: id, Receiver: addr.String()}
	}
	f.messages[strings.ToLower(addr.String())] = msgs
}

func (f *fakeAPI) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

func (f *fakeAPI) CreateMailbox(ctx context.Context, addr domain.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, addr)
	return nil
}

func (f *fakeAPI) ListMessages(ctx context.Context, addr domain.Address) ([]domain.Message, error) {
	atomic.AddInt32(&f.listCalls, 1)
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Message(nil), f.messages[strings.ToLower(addr.String())]...), nil
}

func (f *fakeAPI) GetMessage(ctx context.Context, addr domain.Address, id string) (*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages[strings.ToLower(addr.String())] {
		if m.ID == id {
			msg := m
			return &msg, nil
		}
	}
	return nil, domain.ErrInvalidAddress
}

func (f *fakeAPI) DeleteMessage(ctx context.Context, addr domain.Address, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(addr.String())
	kept := f.messages[key][:0:0]
	for _, m := range f.messages[key] {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	f.messages[key] = kept
	return nil
}

func (f *fakeAPI) ListDomains(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.domains == nil {
		return nil, domain.ErrUnavailable
	}
	return f.domains, nil
}

func (f *fakeAPI) RandomUsername(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.username == "" {
		return "", domain.ErrUnavailable
	}
	return f.username, nil
}

func (f *fakeAPI) calls() int {
	return int(atomic.LoadInt32(&f.listCalls))
}

// fakeClipboard 记录写入的文本
type fakeClipboard struct {
	text string
}

func (c *fakeClipboard) WriteAll(text string) error {
	c.text = text
	return nil
}
