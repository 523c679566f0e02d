package view

import (
	"sort"
	"strings"

	"tempmail/client/internal/domain"
)

// Direction 排序方向
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection 解析排序参数，无法识别时默认新邮件在前
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Asc)) {
		return Asc
	}
	return Desc
}

// Toggle 切换排序方向
func (d Direction) Toggle() Direction {
	if d == Asc {
		return Desc
	}
	return Asc
}

// SortMessages 按日期稳定排序，返回新切片
//
// 时间相同的邮件保持抓取时的顺序。
func SortMessages(msgs []domain.Message, dir Direction) []domain.Message {
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].SortTime(), out[j].SortTime()
		if dir == Asc {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})
	return out
}
