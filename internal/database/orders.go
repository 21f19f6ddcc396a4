package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, shop_id, short_code, customer_name, status, channel, subtotal, discount_code, discount_amount, total_amount, payment_method, payment_status, paid_at, table_number, notes, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.ShopID, &o.ShortCode, &o.CustomerName, &o.Status,
		&o.Channel, &o.Subtotal, &o.DiscountCode, &o.DiscountAmount, &o.TotalAmount,
		&o.PaymentMethod, &o.PaymentStatus, &o.PaidAt, &o.TableNumber, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const createOrder = `
INSERT INTO orders (shop_id, short_code, customer_name, status, channel, subtotal, discount_code, discount_amount, total_amount, payment_method, payment_status, paid_at, table_number, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING ` + orderColumns + `
`

type CreateOrderParams struct {
	ShopID         uuid.UUID
	ShortCode      string
	CustomerName   pgtype.Text
	Status         string
	Channel        string
	Subtotal       pgtype.Numeric
	DiscountCode   pgtype.Text
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
	PaymentMethod  string
	PaymentStatus  string
	PaidAt         pgtype.Timestamptz
	TableNumber    pgtype.Text
	Notes          pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.ShopID, arg.ShortCode, arg.CustomerName, arg.Status, arg.Channel,
		arg.Subtotal, arg.DiscountCode, arg.DiscountAmount, arg.TotalAmount,
		arg.PaymentMethod, arg.PaymentStatus, arg.PaidAt, arg.TableNumber, arg.Notes))
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND shop_id = $2
`

type GetOrderParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, arg.ID, arg.ShopID))
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE shop_id = $1 AND ($2::text[] IS NULL OR status = ANY($2))
ORDER BY created_at
`

type ListOrdersParams struct {
	ShopID   uuid.UUID
	Statuses []string
}

// ListOrders returns orders for a shop, oldest first. A nil status set
// means all statuses.
func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.ShopID, arg.Statuses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const updateOrderStatus = `
UPDATE orders
SET status = $3, updated_at = NOW()
WHERE id = $1 AND shop_id = $2
RETURNING ` + orderColumns + `
`

type UpdateOrderStatusParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
	Status string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.ShopID, arg.Status))
}

const cancelOrder = `
UPDATE orders
SET status = 'CANCELLED', notes = $3, updated_at = NOW()
WHERE id = $1 AND shop_id = $2
RETURNING ` + orderColumns + `
`

type CancelOrderParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
	Notes  pgtype.Text
}

func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, cancelOrder, arg.ID, arg.ShopID, arg.Notes))
}

const holdOrder = `
UPDATE orders
SET status = 'HELD', table_number = COALESCE($3, table_number), updated_at = NOW()
WHERE id = $1 AND shop_id = $2
RETURNING ` + orderColumns + `
`

type HoldOrderParams struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	TableNumber pgtype.Text
}

func (q *Queries) HoldOrder(ctx context.Context, arg HoldOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, holdOrder, arg.ID, arg.ShopID, arg.TableNumber))
}

const updateOrderTotals = `
UPDATE orders
SET subtotal = $3, discount_code = NULL, discount_amount = 0, total_amount = $4, updated_at = NOW()
WHERE id = $1 AND shop_id = $2
RETURNING ` + orderColumns + `
`

type UpdateOrderTotalsParams struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	Subtotal    pgtype.Numeric
	TotalAmount pgtype.Numeric
}

// UpdateOrderTotals rewrites the money columns after a line modification.
// Any previously recorded discount is cleared: lines changed, so the old
// computed amount no longer describes this order.
func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTotals, arg.ID, arg.ShopID, arg.Subtotal, arg.TotalAmount))
}

const deleteOrder = `
DELETE FROM orders
WHERE id = $1 AND shop_id = $2
RETURNING id
`

type DeleteOrderParams struct {
	ID     uuid.UUID
	ShopID uuid.UUID
}

func (q *Queries) DeleteOrder(ctx context.Context, arg DeleteOrderParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, deleteOrder, arg.ID, arg.ShopID).Scan(&id)
	return id, err
}

// --- Order items ---

const orderItemColumns = `id, order_id, menu_item_id, item_name, quantity, unit_price, subtotal`

func scanOrderItem(row interface{ Scan(...any) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.ItemName, &it.Quantity, &it.UnitPrice, &it.Subtotal)
	return it, err
}

const createOrderItem = `
INSERT INTO order_items (order_id, menu_item_id, item_name, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + orderItemColumns + `
`

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	ItemName   string
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Subtotal   pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.MenuItemID, arg.ItemName, arg.Quantity, arg.UnitPrice, arg.Subtotal))
}

const listOrderItemsByOrder = `
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = $1
ORDER BY id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const deleteOrderItems = `
DELETE FROM order_items
WHERE order_id = $1
`

func (q *Queries) DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteOrderItems, orderID)
	return err
}
