package port

import (
	"context"

	"simexchange/internal/domain"
)

// Cache distributes aggregated depth snapshots. The engine publishes after
// every mutating call; the gateway reads.
type Cache interface {
	SetDepth(ctx context.Context, symbol string, snap *domain.DepthSnapshot) error
	GetDepth(ctx context.Context, symbol string) (*domain.DepthSnapshot, error)
}
