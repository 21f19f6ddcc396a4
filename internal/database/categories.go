package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, shop_id, name, description, sort_order, is_active, created_at`

func scanCategory(row interface{ Scan(...any) error }) (MenuCategory, error) {
	var c MenuCategory
	err := row.Scan(&c.ID, &c.ShopID, &c.Name, &c.Description, &c.SortOrder, &c.IsActive, &c.CreatedAt)
	return c, err
}

const listCategoriesByShop = `
SELECT ` + categoryColumns + `
FROM menu_categories
WHERE shop_id = $1 AND is_active = TRUE
ORDER BY sort_order, name
`

func (q *Queries) ListCategoriesByShop(ctx context.Context, shopID uuid.UUID) ([]MenuCategory, error) {
	rows, err := q.db.Query(ctx, listCategoriesByShop, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []MenuCategory
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const createCategory = `
INSERT INTO menu_categories (shop_id, name, description, sort_order)
VALUES ($1, $2, $3, $4)
RETURNING ` + categoryColumns + `
`

type CreateCategoryParams struct {
	ShopID      uuid.UUID
	Name        string
	Description pgtype.Text
	SortOrder   int32
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (MenuCategory, error) {
	return scanCategory(q.db.QueryRow(ctx, createCategory,
		arg.ShopID, arg.Name, arg.Description, arg.SortOrder))
}

const updateCategory = `
UPDATE menu_categories
SET name = $3, description = $4, sort_order = $5
WHERE id = $1 AND shop_id = $2 AND is_active = TRUE
RETURNING ` + categoryColumns + `
`

type UpdateCategoryParams struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	Name        string
	Description pgtype.Text
	SortOrder   int32
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (MenuCategory, error) {
	return scanCategory(q.db.QueryRow(ctx, updateCategory,
		arg.ID, arg.ShopID, arg.Name, arg.Description, arg.SortOrder))
}

const softDeleteCategory = `
UPDATE menu_categories
SET is_active = FALSE
WHERE id = $1 AND shop_id = $2 AND is_active = TRUE
RETURNING id
`

type SoftDeleteCategoryParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) SoftDeleteCategory(ctx context.Context, arg SoftDeleteCategoryParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteCategory, arg.ID, arg.ShopID).Scan(&id)
	return id, err
}
