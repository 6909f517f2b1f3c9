package manager

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIsPerMaker(t *testing.T) {
	m := NewNonceManager()
	assert.Equal(t, uint64(1), m.Next("maker-1"))
	assert.Equal(t, uint64(2), m.Next("maker-1"))
	assert.Equal(t, uint64(1), m.Next("maker-2"))
	assert.Equal(t, uint64(3), m.Next("maker-1"))
}

func TestNextIsUniqueUnderContention(t *testing.T) {
	m := NewNonceManager()
	const n = 100
	seen := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- m.Next("maker")
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint64]bool)
	for v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, n)
	assert.True(t, unique[1])
	assert.True(t, unique[n])
	assert.Equal(t, uint64(n+1), m.Next("maker"))
}
