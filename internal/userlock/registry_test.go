package userlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockForReturnsSameHandle(t *testing.T) {
	registry := NewRegistry()

	first := registry.LockFor(42)
	second := registry.LockFor(42)
	other := registry.LockFor(7)

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
}

func TestConcurrentCallersAgreeOnHandle(t *testing.T) {
	registry := NewRegistry()

	handles := make([]*sync.Mutex, 32)
	var wg sync.WaitGroup
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = registry.LockFor(99)
		}(i)
	}
	wg.Wait()

	for _, handle := range handles[1:] {
		assert.Same(t, handles[0], handle)
	}
}

func TestLockSerializesCriticalSections(t *testing.T) {
	registry := NewRegistry()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mu := registry.LockFor(1)
			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 64, counter)
}
