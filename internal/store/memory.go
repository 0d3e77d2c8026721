package store

import (
	"context"
	"sync"

	"optionflow/internal/change"
	"optionflow/models"
)

// Memory keeps the reference in process. It is what tests and single-shot
// runs use.
type Memory struct {
	mu       sync.Mutex
	current  *change.Reference
	revision int64
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) ReadCurrent(ctx context.Context) (*change.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil
	}
	ref := *m.current
	return &ref, nil
}

func (m *Memory) CompareAndSwap(ctx context.Context, expected int64, next *models.FutureQuote) (*change.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var actual int64
	if m.current != nil {
		actual = m.current.Revision
	}
	if actual != expected {
		return nil, conflict(expected, actual)
	}

	if next == nil {
		m.current = nil
		return nil, nil
	}
	m.revision++
	m.current = &change.Reference{Future: *next, Revision: m.revision}
	ref := *m.current
	return &ref, nil
}
