package postgres

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
)

// DrawingRepo implements DrawingRepository using PostgreSQL.
type DrawingRepo struct{ db *DB }

// NewDrawingRepo constructs a drawing repository.
func NewDrawingRepo(db *DB) *DrawingRepo { return &DrawingRepo{db: db} }

// Save inserts a drawing row.
func (r *DrawingRepo) Save(ctx context.Context, d *model.Drawing) error {
	const q = `
INSERT INTO drawings (id, user_id, title, image)
VALUES ($1, $2, $3, $4)`
	_, err := r.db.Pool.Exec(ctx, q, d.ID, d.UserID, d.Title, d.Image)
	if isUniqueViolation(err) {
		return errs.ErrDuplicateIdentity
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return nil
}

// ListByUser returns drawing metadata newest first, image payload omitted.
func (r *DrawingRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Drawing, error) {
	const q = `
SELECT id, user_id, title, created_at
FROM drawings WHERE user_id=$1
ORDER BY created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	defer rows.Close()

	var out []model.Drawing
	for rows.Next() {
		var d model.Drawing
		if err := rows.Scan(&d.ID, &d.UserID, &d.Title, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPersistence, err)
	}
	return out, nil
}
