package receipt

import (
	"context"
	"sync"

	"remitflow/pkg/platform/sentinel"
)

// InMemoryStore keeps receipts in process.
type InMemoryStore struct {
	mu       sync.RWMutex
	receipts map[string]Receipt
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{receipts: make(map[string]Receipt)}
}

// Save stores r unless a receipt with the same reference exists. It reports
// whether r was written.
func (s *InMemoryStore) Save(_ context.Context, r Receipt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[r.Reference]; ok {
		return false, nil
	}
	s.receipts[r.Reference] = r
	return true, nil
}

func (s *InMemoryStore) FindByReference(_ context.Context, reference string) (Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[reference]
	if !ok {
		return Receipt{}, sentinel.ErrNotFound
	}
	return r, nil
}
