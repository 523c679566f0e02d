package service

import (
	"context"

	"tempmail/client/internal/domain"
)

// MailAPI 服务层依赖的后端接口，由 mailapi.Client 实现
type MailAPI interface {
	CreateMailbox(ctx context.Context, addr domain.Address) error
	ListMessages(ctx context.Context, addr domain.Address) ([]domain.Message, error)
	GetMessage(ctx context.Context, addr domain.Address, id string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, addr domain.Address, id string) error
	ListDomains(ctx context.Context) ([]string, error)
	RandomUsername(ctx context.Context) (string, error)
}

// messageIDs 提取邮件 ID
func messageIDs(msgs []domain.Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
