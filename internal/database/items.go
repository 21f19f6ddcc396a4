package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, shop_id, category_id, name, description, price, is_available, image_url, created_at, updated_at`

func scanMenuItem(row interface{ Scan(...any) error }) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.ShopID, &m.CategoryID, &m.Name, &m.Description,
		&m.Price, &m.IsAvailable, &m.ImageURL, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const listMenuItemsByShop = `
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE shop_id = $1 AND ($2::uuid IS NULL OR category_id = $2)
ORDER BY name
`

type ListMenuItemsByShopParams struct {
	ShopID     uuid.UUID
	CategoryID pgtype.UUID
}

func (q *Queries) ListMenuItemsByShop(ctx context.Context, arg ListMenuItemsByShopParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByShop, arg.ShopID, arg.CategoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const getMenuItem = `
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE id = $1 AND shop_id = $2
`

type GetMenuItemParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, arg.ID, arg.ShopID))
}

const getMenuItemForOrder = `
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE id = $1 AND shop_id = $2 AND is_available = TRUE
`

type GetMenuItemForOrderParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

// GetMenuItemForOrder only returns available items; an unavailable item is
// indistinguishable from a missing one at pricing time.
func (q *Queries) GetMenuItemForOrder(ctx context.Context, arg GetMenuItemForOrderParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItemForOrder, arg.ID, arg.ShopID))
}

const createMenuItem = `
INSERT INTO menu_items (shop_id, category_id, name, description, price, is_available, image_url)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + menuItemColumns + `
`

type CreateMenuItemParams struct {
	ShopID      uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	IsAvailable bool
	ImageURL    pgtype.Text
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, createMenuItem,
		arg.ShopID, arg.CategoryID, arg.Name, arg.Description, arg.Price, arg.IsAvailable, arg.ImageURL))
}

const updateMenuItem = `
UPDATE menu_items
SET category_id = $3, name = $4, description = $5, price = $6, is_available = $7, image_url = $8, updated_at = NOW()
WHERE id = $1 AND shop_id = $2
RETURNING ` + menuItemColumns + `
`

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	IsAvailable bool
	ImageURL    pgtype.Text
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, updateMenuItem,
		arg.ID, arg.ShopID, arg.CategoryID, arg.Name, arg.Description, arg.Price, arg.IsAvailable, arg.ImageURL))
}

const setMenuItemAvailability = `
UPDATE menu_items
SET is_available = $3, updated_at = NOW()
WHERE id = $1 AND shop_id = $2
RETURNING ` + menuItemColumns + `
`

type SetMenuItemAvailabilityParams struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	IsAvailable bool
}

func (q *Queries) SetMenuItemAvailability(ctx context.Context, arg SetMenuItemAvailabilityParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, setMenuItemAvailability, arg.ID, arg.ShopID, arg.IsAvailable))
}

const deleteMenuItem = `
DELETE FROM menu_items
WHERE id = $1 AND shop_id = $2
RETURNING id
`

type DeleteMenuItemParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) DeleteMenuItem(ctx context.Context, arg DeleteMenuItemParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, deleteMenuItem, arg.ID, arg.ShopID).Scan(&id)
	return id, err
}
