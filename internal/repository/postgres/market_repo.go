package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
)

// MarketRepo implements MarketplaceRepository using PostgreSQL.
type MarketRepo struct{ db *DB }

// NewMarketRepo constructs a marketplace repository.
func NewMarketRepo(db *DB) *MarketRepo { return &MarketRepo{db: db} }

// List returns the full catalog in display order.
func (r *MarketRepo) List(ctx context.Context) ([]model.MarketplaceItem, error) {
	const q = `
SELECT id, name, price, effect, effect_arg, ord
FROM marketplace ORDER BY ord`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	defer rows.Close()

	var out []model.MarketplaceItem
	for rows.Next() {
		var (
			it     model.MarketplaceItem
			effect string
			arg    int64
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Price, &effect, &arg, &it.Ord); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
		}
		it.Effect = decodeEffect(effect, arg)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return out, nil
}

// decodeEffect maps the stored (tag, argument) pair onto the closed variant.
// effect_arg is milliseconds for golden_power_up and brush pixels for
// brush_size_grant.
func decodeEffect(tag string, arg int64) model.Effect {
	switch model.EffectKind(tag) {
	case model.EffectGoldenPowerUp:
		return model.Effect{Kind: model.EffectGoldenPowerUp, Duration: time.Duration(arg) * time.Millisecond}
	case model.EffectBrushSizeGrant:
		return model.Effect{Kind: model.EffectBrushSizeGrant, BrushSize: float64(arg)}
	case model.EffectClearActiveLayer:
		return model.Effect{Kind: model.EffectClearActiveLayer}
	case model.EffectAddLayer:
		return model.Effect{Kind: model.EffectAddLayer}
	default:
		return model.Effect{Kind: model.EffectKind(tag)}
	}
}
