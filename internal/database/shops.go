package database

import (
	"context"

	"github.com/google/uuid"
)

const createShop = `
INSERT INTO shops (name, slug)
VALUES ($1, $2)
RETURNING id, name, slug, created_at
`

type CreateShopParams struct {
	Name string
	Slug string
}

func (q *Queries) CreateShop(ctx context.Context, arg CreateShopParams) (Shop, error) {
	var s Shop
	err := q.db.QueryRow(ctx, createShop, arg.Name, arg.Slug).
		Scan(&s.ID, &s.Name, &s.Slug, &s.CreatedAt)
	return s, err
}

const getShop = `
SELECT id, name, slug, created_at
FROM shops
WHERE id = $1
`

func (q *Queries) GetShop(ctx context.Context, id uuid.UUID) (Shop, error) {
	var s Shop
	err := q.db.QueryRow(ctx, getShop, id).
		Scan(&s.ID, &s.Name, &s.Slug, &s.CreatedAt)
	return s, err
}
