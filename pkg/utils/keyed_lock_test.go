package utils

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLock_TryLock(t *testing.T) {
	kl := NewKeyedLock()

	unlock, ok := kl.TryLock(1)
	require.True(t, ok)

	_, ok = kl.TryLock(1)
	assert.False(t, ok, "same key must not be acquired twice")

	unlock2, ok := kl.TryLock(2)
	assert.True(t, ok, "different keys are independent")
	unlock2()

	unlock()
	assert.False(t, kl.Held(1))

	unlock, ok = kl.TryLock(1)
	assert.True(t, ok)
	unlock()
}

func TestKeyedLock_Serializes(t *testing.T) {
	kl := NewKeyedLock()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := kl.Lock(7)
			defer unlock()

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.False(t, kl.Held(7))
}
