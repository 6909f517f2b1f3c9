package manager

import "sync"

// NonceManager hands out guardrail nonces per maker. Each offer a maker posts
// gets the next nonce, so two documents from the same maker never collide
// even when their other fields are identical.
type NonceManager struct {
	mu     sync.Mutex
	nonces map[string]uint64
}

func NewNonceManager() *NonceManager {
	return &NonceManager{nonces: make(map[string]uint64)}
}

// Next reserves and returns the maker's next nonce. The first nonce is 1.
func (m *NonceManager) Next(maker string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces[maker]++
	return m.nonces[maker]
}
