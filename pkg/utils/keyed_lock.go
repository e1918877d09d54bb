package utils

import (
	"sync"
)

// KeyedLock 按业务键 (如 shopID) 提供互斥
// 不同 key 之间互不阻塞，同一 key 同一时刻只有一个持有者
type KeyedLock struct {
	mu    sync.Mutex
	locks map[int64]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedLock() *KeyedLock {
	return &KeyedLock{locks: make(map[int64]*keyedEntry)}
}

// Lock 阻塞直到拿到 key 的锁，返回释放函数
func (k *KeyedLock) Lock(key int64) func() {
	e := k.acquire(key)
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.release(key)
	}
}

// TryLock 非阻塞获取，已被占用时返回 false
func (k *KeyedLock) TryLock(key int64) (func(), bool) {
	e := k.acquire(key)
	if !e.mu.TryLock() {
		k.release(key)
		return nil, false
	}
	return func() {
		e.mu.Unlock()
		k.release(key)
	}, true
}

// Held 当前是否有人持有 key (仅用于状态展示)
func (k *KeyedLock) Held(key int64) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, ok := k.locks[key]
	return ok
}

func (k *KeyedLock) acquire(key int64) *keyedEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	return e
}

// release 引用计数归零时回收条目，避免 map 无限增长
func (k *KeyedLock) release(key int64) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}
