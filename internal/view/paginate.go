package view

import "tempmail/client/internal/domain"

// DefaultPageSize 每页邮件数
const DefaultPageSize = 10

// Page 一页邮件
type Page struct {
	Items      []domain.Message `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
	Total      int              `json:"total"`
}

// Paginate 取第 page 页（从 1 开始），超出范围时夹到有效页
//
// 重新抓取后页码不会重置，邮件在固定页码下移动是可接受的。
func Paginate(msgs []domain.Message, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}

	total := len(msgs)
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * size
	end := start + size
	if end > total {
		end = total
	}

	items := make([]domain.Message, 0, end-start)
	if start < end {
		items = append(items, msgs[start:end]...)
	}

	return Page{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
		Total:      total,
	}
}
