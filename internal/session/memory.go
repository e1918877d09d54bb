package session

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore 进程内会话存储，单实例部署使用
type MemoryStore struct {
	items sync.Map
	ttl   time.Duration
	now   func() time.Time
}

// item 内部结构，包含值和过期时间
type item struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore ttl <= 0 时默认 10 分钟，足够完成授权流程
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &MemoryStore{ttl: ttl, now: time.Now}
}

func compositeKey(sessionID, key string) string {
	return sessionID + "\x00" + key
}

func (m *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	m.items.Store(compositeKey(sessionID, key), item{
		value:     value,
		expiresAt: m.now().Add(m.ttl),
	})
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	if sessionID == "" {
		return "", false, ErrNoSession
	}
	ck := compositeKey(sessionID, key)
	val, ok := m.items.Load(ck)
	if !ok {
		return "", false, nil
	}
	it := val.(item)
	if m.now().After(it.expiresAt) {
		m.items.Delete(ck) // 懒删除
		return "", false, nil
	}
	return it.value, true, nil
}

// Take 用完即焚，LoadAndDelete 保证并发下只有一个调用方拿到值
func (m *MemoryStore) Take(_ context.Context, sessionID, key string) (string, bool, error) {
	if sessionID == "" {
		return "", false, ErrNoSession
	}
	val, ok := m.items.LoadAndDelete(compositeKey(sessionID, key))
	if !ok {
		return "", false, nil
	}
	it := val.(item)
	if m.now().After(it.expiresAt) {
		return "", false, nil
	}
	return it.value, true, nil
}

func (m *MemoryStore) Invalidate(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	prefix := sessionID + "\x00"
	m.items.Range(func(k, _ any) bool {
		if strings.HasPrefix(k.(string), prefix) {
			m.items.Delete(k)
		}
		return true
	})
	return nil
}

// Sweep 清理过期条目，由定时任务调用
func (m *MemoryStore) Sweep() int {
	now := m.now()
	removed := 0
	m.items.Range(func(k, v any) bool {
		if now.After(v.(item).expiresAt) {
			m.items.Delete(k)
			removed++
		}
		return true
	})
	return removed
}
