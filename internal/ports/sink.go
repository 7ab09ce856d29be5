package ports

import (
	"context"

	"github.com/ghalamif/SlopeGuard/internal/domain"
)

type Sink interface {
	WriteBatch(ctx context.Context, frames []*domain.ScoredFrame) error
	Name() string
}
