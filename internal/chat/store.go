package chat

import "sync"

// Store is the conversation log the session appends to and the assembler
// reads from.
type Store interface {
	// Append adds a turn to the end of the log.
	Append(turn Turn) error

	// Recent returns the most recent n turns in chronological order.
	// n <= 0 returns the whole log.
	Recent(n int) ([]Turn, error)

	// Len returns the number of stored turns.
	Len() (int, error)
}

// MemoryStore is an in-memory Store. It backs tests and ephemeral sessions.
type MemoryStore struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a turn to the log.
func (s *MemoryStore) Append(turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return nil
}

// Recent returns the most recent n turns in chronological order.
func (s *MemoryStore) Recent(n int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && len(s.turns) > n {
		start = len(s.turns) - n
	}
	out := make([]Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out, nil
}

// Len returns the number of stored turns.
func (s *MemoryStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns), nil
}
