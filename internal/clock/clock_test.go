package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeq_Monotonic(t *testing.T) {
	s := NewSeq()
	assert.Equal(t, int64(0), s.Current())
	assert.Equal(t, int64(1), s.Next())
	assert.Equal(t, int64(2), s.Next())
	assert.Equal(t, int64(2), s.Current())
}

func TestSeq_StartAt(t *testing.T) {
	s := NewSeqAt(41)
	assert.Equal(t, int64(42), s.Next())
}

func TestSeq_ConcurrentUnique(t *testing.T) {
	s := NewSeq()
	const goroutines, perGoroutine = 8, 200

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				v := s.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines*perGoroutine)
	assert.Equal(t, int64(goroutines*perGoroutine), s.Current())
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real{}.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestReal_Stop(t *testing.T) {
	fired := make(chan struct{}, 1)
	timer := Real{}.AfterFunc(time.Hour, func() { fired <- struct{}{} })
	require.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")
}
