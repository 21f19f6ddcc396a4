package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const discountColumns = `id, shop_id, code, type, value, min_order_amount, max_discount, usage_limit, usage_count, valid_from, valid_until, is_active, created_at`

func scanDiscount(row interface{ Scan(...any) error }) (Discount, error) {
	var d Discount
	err := row.Scan(&d.ID, &d.ShopID, &d.Code, &d.Type, &d.Value, &d.MinOrderAmount,
		&d.MaxDiscount, &d.UsageLimit, &d.UsageCount, &d.ValidFrom, &d.ValidUntil,
		&d.IsActive, &d.CreatedAt)
	return d, err
}

const getDiscountByCode = `
SELECT ` + discountColumns + `
FROM discounts
WHERE shop_id = $1 AND code = $2
`

type GetDiscountByCodeParams struct {
	ShopID uuid.UUID
	Code   string
}

func (q *Queries) GetDiscountByCode(ctx context.Context, arg GetDiscountByCodeParams) (Discount, error) {
	return scanDiscount(q.db.QueryRow(ctx, getDiscountByCode, arg.ShopID, arg.Code))
}

const listDiscountsByShop = `
SELECT ` + discountColumns + `
FROM discounts
WHERE shop_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListDiscountsByShop(ctx context.Context, shopID uuid.UUID) ([]Discount, error) {
	rows, err := q.db.Query(ctx, listDiscountsByShop, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, d)
	}
	return discounts, rows.Err()
}

const createDiscount = `
INSERT INTO discounts (shop_id, code, type, value, min_order_amount, max_discount, usage_limit, valid_from, valid_until, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + discountColumns + `
`

type CreateDiscountParams struct {
	ShopID         uuid.UUID
	Code           string
	Type           string
	Value          pgtype.Numeric
	MinOrderAmount pgtype.Numeric
	MaxDiscount    pgtype.Numeric
	UsageLimit     pgtype.Int4
	ValidFrom      pgtype.Timestamptz
	ValidUntil     pgtype.Timestamptz
	IsActive       bool
}

func (q *Queries) CreateDiscount(ctx context.Context, arg CreateDiscountParams) (Discount, error) {
	return scanDiscount(q.db.QueryRow(ctx, createDiscount,
		arg.ShopID, arg.Code, arg.Type, arg.Value, arg.MinOrderAmount, arg.MaxDiscount,
		arg.UsageLimit, arg.ValidFrom, arg.ValidUntil, arg.IsActive))
}

const updateDiscount = `
UPDATE discounts
SET type = $3, value = $4, min_order_amount = $5, max_discount = $6, usage_limit = $7, valid_from = $8, valid_until = $9, is_active = $10
WHERE id = $1 AND shop_id = $2
RETURNING ` + discountColumns + `
`

type UpdateDiscountParams struct {
	ID             uuid.UUID
	ShopID         uuid.UUID
	Type           string
	Value          pgtype.Numeric
	MinOrderAmount pgtype.Numeric
	MaxDiscount    pgtype.Numeric
	UsageLimit     pgtype.Int4
	ValidFrom      pgtype.Timestamptz
	ValidUntil     pgtype.Timestamptz
	IsActive       bool
}

func (q *Queries) UpdateDiscount(ctx context.Context, arg UpdateDiscountParams) (Discount, error) {
	return scanDiscount(q.db.QueryRow(ctx, updateDiscount,
		arg.ID, arg.ShopID, arg.Type, arg.Value, arg.MinOrderAmount, arg.MaxDiscount,
		arg.UsageLimit, arg.ValidFrom, arg.ValidUntil, arg.IsActive))
}

const deleteDiscount = `
DELETE FROM discounts
WHERE id = $1 AND shop_id = $2
RETURNING id
`

type DeleteDiscountParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) DeleteDiscount(ctx context.Context, arg DeleteDiscountParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, deleteDiscount, arg.ID, arg.ShopID).Scan(&id)
	return id, err
}

const redeemDiscount = `
UPDATE discounts
SET usage_count = usage_count + 1
WHERE id = $1
  AND is_active = TRUE
  AND (usage_limit IS NULL OR usage_count < usage_limit)
RETURNING ` + discountColumns + `
`

// RedeemDiscount increments the usage counter with the limit check folded
// into the UPDATE itself. Two concurrent redemptions at the limit cannot
// both succeed: the loser sees pgx.ErrNoRows.
func (q *Queries) RedeemDiscount(ctx context.Context, id uuid.UUID) (Discount, error) {
	return scanDiscount(q.db.QueryRow(ctx, redeemDiscount, id))
}
