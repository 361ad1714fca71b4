package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/paintroom/paintroom/internal/model"
)

// DrawingRepository persists named canvas composites.
type DrawingRepository interface {
	// Save inserts a drawing row.
	Save(ctx context.Context, d *model.Drawing) error
	// ListByUser returns drawing metadata (no image payload) newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Drawing, error)
}

// MarketplaceRepository reads the immutable item catalog.
type MarketplaceRepository interface {
	// List returns the full catalog in display order.
	List(ctx context.Context) ([]model.MarketplaceItem, error)
}
