package interfaces

import (
	"context"

	"spot-trader/internal/types"
)

// Recommender exposes the latest cached analysis snapshot per symbol.
type Recommender interface {
	Latest(ctx context.Context, symbol string) (types.Rec, bool)
}
