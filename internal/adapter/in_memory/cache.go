package in_memory

import (
	"context"
	"sync"

	"simexchange/internal/domain"
	"simexchange/internal/port"
)

type Cache struct {
	mu    sync.Mutex
	store map[string]*domain.DepthSnapshot
}

var _ port.Cache = (*Cache)(nil)

func NewCache() *Cache {
	return &Cache{store: make(map[string]*domain.DepthSnapshot)}
}

func (c *Cache) SetDepth(ctx context.Context, symbol string, snap *domain.DepthSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[symbol] = cloneSnapshot(snap)
	return nil
}

func (c *Cache) GetDepth(ctx context.Context, symbol string) (*domain.DepthSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.store[symbol]
	if !ok {
		return nil, nil
	}
	return cloneSnapshot(snap), nil
}

// cloneSnapshot copies the level slices so stored snapshots are insulated
// from caller mutation in both directions.
func cloneSnapshot(snap *domain.DepthSnapshot) *domain.DepthSnapshot {
	cp := *snap
	cp.Bids = append([]domain.PriceLevel(nil), snap.Bids...)
	cp.Asks = append([]domain.PriceLevel(nil), snap.Asks...)
	return &cp
}
