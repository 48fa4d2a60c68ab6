package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
)

// MemoryStore is an in-process domain.TransactionStore with the same contract
// as the PostgreSQL repository. It backs STORE_DRIVER=memory and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.TransactionRecord
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*domain.TransactionRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Find returns a copy of the record, or nil when absent.
func (s *MemoryStore) Find(_ context.Context, key string) (*domain.TransactionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

// Create stores a copy of record unless the key already exists.
func (s *MemoryStore) Create(_ context.Context, record *domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.IdempotencyKey]; ok {
		return fmt.Errorf("create transaction %s: %w", record.IdempotencyKey, domain.ErrDuplicateKey)
	}
	s.records[record.IdempotencyKey] = record.Clone()
	return nil
}

// Update applies update to the stored record.
func (s *MemoryStore) Update(_ context.Context, key string, update domain.RecordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return fmt.Errorf("update transaction %s: %w", key, domain.ErrNotFound)
	}
	if record.Status.IsTerminal() {
		return fmt.Errorf("update transaction %s: %w", key, domain.ErrRecordCompleted)
	}
	record.Apply(update, s.now())
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
