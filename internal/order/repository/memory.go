package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/example/curvedesk/internal/order/domain"
)

// MemoryRepository holds orders in memory for the lifetime of the process.
// The collection is append-only: orders are never mutated or deleted.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders []domain.Order
}

// NewMemoryRepository constructs an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// CreateOrder appends the order and returns it.
func (m *MemoryRepository) CreateOrder(_ context.Context, order domain.Order) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, order)
	return order, nil
}

// ListOrders returns one page sorted by CreatedAt descending plus the total
// collection size. A page past the end yields an empty slice, not an error.
func (m *MemoryRepository) ListOrders(_ context.Context, page, limit int) ([]domain.Order, int, error) {
	m.mu.RLock()
	sorted := append([]domain.Order(nil), m.orders...)
	m.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	total := len(sorted)
	start := (page - 1) * limit
	if start >= total {
		return []domain.Order{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return sorted[start:end], total, nil
}
