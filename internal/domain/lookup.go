package domain

import (
	"sort"
	"time"
)

// MaxLookupEntries 监控列表最大条目数
const MaxLookupEntries = 5

// LookupEntry 监控列表中的一个地址及其未读状态
type LookupEntry struct {
	Address        Address             `json:"address"`
	UnreadCount    int                 `json:"unreadCount"`
	LastCheckedAt  time.Time           `json:"lastCheckedAt"`
	ReadMessageIDs map[string]struct{} `json:"-"`
}

// NewLookupEntry 创建空的监控条目
func NewLookupEntry(addr Address) *LookupEntry {
	return &LookupEntry{
		Address:        addr,
		ReadMessageIDs: make(map[string]struct{}),
	}
}

// CountUnread 统计不在已读集合中的邮件数
func (e *LookupEntry) CountUnread(ids []string) int {
	unread := 0
	for _, id := range ids {
		if _, ok := e.ReadMessageIDs[id]; !ok {
			unread++
		}
	}
	return unread
}

// MarkRead 把给定 ID 全部加入已读集合并清零未读数
func (e *LookupEntry) MarkRead(ids []string) {
	if e.ReadMessageIDs == nil {
		e.ReadMessageIDs = make(map[string]struct{}, len(ids))
	}
	for _, id := range ids {
		e.ReadMessageIDs[id] = struct{}{}
	}
	e.UnreadCount = 0
}

// ReadIDs 返回排序后的已读 ID 列表（用于持久化）
func (e *LookupEntry) ReadIDs() []string {
	ids := make([]string, 0, len(e.ReadMessageIDs))
	for id := range e.ReadMessageIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone 深拷贝条目，避免调用方修改内部状态
func (e *LookupEntry) Clone() *LookupEntry {
	c := *e
	c.ReadMessageIDs = make(map[string]struct{}, len(e.ReadMessageIDs))
	for id := range e.ReadMessageIDs {
		c.ReadMessageIDs[id] = struct{}{}
	}
	return &c
}
