package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/cafeos/api/internal/database"
	"github.com/cafeos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const maxShortCodeRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyCart             = errors.New("items are required")
	ErrInvalidChannel        = errors.New("invalid channel")
	ErrInvalidPaymentMethod  = errors.New("invalid payment_method")
	ErrInvalidQuantity       = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID     = errors.New("invalid menu_item_id")
	ErrMenuItemNotFound      = errors.New("menu item not found in shop")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrOrderNotModifiable    = errors.New("order can no longer be modified")
	ErrDiscountNotRedeemable = errors.New("discount code is not redeemable")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order lifecycle.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetMenuItemForOrder(ctx context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error)
	GetDiscountByCode(ctx context.Context, arg database.GetDiscountByCodeParams) (database.Discount, error)
	RedeemDiscount(ctx context.Context, id uuid.UUID) (database.Discount, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	HoldOrder(ctx context.Context, arg database.HoldOrderParams) (database.Order, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	DeleteOrderItems(ctx context.Context, orderID uuid.UUID) error
	DeleteOrder(ctx context.Context, arg database.DeleteOrderParams) (uuid.UUID, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// Notifier fans order lifecycle events out to real-time subscribers.
// Delivery is best effort: errors are logged by the service and never
// surfaced to callers, because the order is already committed by the
// time any event is emitted.
type Notifier interface {
	OrderCreated(shopID uuid.UUID, order *OrderResult) error
	OrderStatusChanged(shopID uuid.UUID, order *OrderResult) error
	OrderCompleted(shopID, orderID uuid.UUID) error
	SoundAlert(shopID uuid.UUID, category string) error
}

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	ShopID        uuid.UUID
	Channel       string
	PaymentMethod string
	DiscountCode  string
	TableNumber   string
	CustomerName  string
	Notes         string
	Lines         []OrderLineRequest
}

// OrderLineRequest is a single cart line.
type OrderLineRequest struct {
	MenuItemID string
	Quantity   int32
}

// OrderResult is an order with its lines.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService orchestrates pricing, persistence, and notification for
// all order state changes.
type OrderService struct {
	pool     TxBeginner
	store    OrderStore
	newStore NewOrderStore
	notifier Notifier

	// dropUnknownItems skips cart lines whose menu item cannot be priced
	// instead of failing the order. An order whose every line was dropped
	// is rejected either way.
	dropUnknownItems bool
}

// NewOrderService creates a new OrderService. store runs non-transactional
// reads and updates; newStore builds tx-scoped stores for order creation
// and line modification.
func NewOrderService(pool TxBeginner, store OrderStore, newStore NewOrderStore, notifier Notifier, dropUnknownItems bool) *OrderService {
	return &OrderService{
		pool:             pool,
		store:            store,
		newStore:         newStore,
		notifier:         notifier,
		dropUnknownItems: dropUnknownItems,
	}
}

// pricedLine holds a prepared order line.
type pricedLine struct {
	menuItemID uuid.UUID
	itemName   string
	quantity   int32
	unitPrice  decimal.Decimal
	subtotal   decimal.Decimal
}

// CreateOrder validates, prices, and creates an order atomically, then
// broadcasts order-created and a new-order sound alert to the shop room.
// Retries up to maxShortCodeRetries times when the random short code
// collides with an existing order of the same shop.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	if !isValidChannel(req.Channel) {
		return nil, ErrInvalidChannel
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	for i, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if _, err := uuid.Parse(line.MenuItemID); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}
	}

	// Retry loop: handles short code unique constraint collisions.
	var result *OrderResult
	var lastErr error
	for attempt := 0; attempt < maxShortCodeRetries; attempt++ {
		r, err := s.createOrderTx(ctx, req)
		if err == nil {
			result = r
			break
		}
		if isShortCodeConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	if result == nil {
		return nil, lastErr
	}

	s.notifyCreated(req.ShopID, result)
	return result, nil
}

// isShortCodeConflict checks if the error is a unique constraint violation
// on the per-shop short code (pgconn error code 23505).
func isShortCodeConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_shop_id_short_code_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction,
// including the discount redemption so the usage counter can never drift
// from the orders that consumed it.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	lines, subtotal, err := s.priceLines(ctx, store, req.ShopID, req.Lines)
	if err != nil {
		return nil, err
	}

	discountCode := pgtype.Text{}
	discountAmount := decimal.Zero
	if req.DiscountCode != "" {
		code := NormalizeDiscountCode(req.DiscountCode)
		amount, err := s.redeemDiscount(ctx, store, req.ShopID, code, subtotal)
		if err != nil {
			return nil, err
		}
		discountCode = pgtype.Text{String: code, Valid: true}
		discountAmount = amount
	}

	total := subtotal.Sub(discountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		ShopID:         req.ShopID,
		ShortCode:      generateShortCode(),
		CustomerName:   textOrNull(req.CustomerName),
		Status:         enum.OrderStatusPending,
		Channel:        req.Channel,
		Subtotal:       decimalToNumeric(subtotal),
		DiscountCode:   discountCode,
		DiscountAmount: decimalToNumeric(discountAmount),
		TotalAmount:    decimalToNumeric(total),
		PaymentMethod:  req.PaymentMethod,
		// Counter sales settle at creation.
		PaymentStatus: enum.PaymentStatusPaid,
		PaidAt:        pgtype.Timestamptz{Time: time.Now(), Valid: true},
		TableNumber:   textOrNull(req.TableNumber),
		Notes:         textOrNull(req.Notes),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items, err := insertLines(ctx, store, order.ID, lines)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: order, Items: items}, nil
}

// priceLines resolves each cart line against the current menu, snapshotting
// name and unit price. Unpriceable lines either fail the order or are
// dropped, per the configured policy.
func (s *OrderService) priceLines(ctx context.Context, store OrderStore, shopID uuid.UUID, reqLines []OrderLineRequest) ([]pricedLine, decimal.Decimal, error) {
	subtotal := decimal.Zero
	var lines []pricedLine

	for i, line := range reqLines {
		itemID, err := uuid.Parse(line.MenuItemID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrInvalidMenuItemID)
		}

		item, err := store.GetMenuItemForOrder(ctx, database.GetMenuItemForOrderParams{
			ID:     itemID,
			ShopID: shopID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				if s.dropUnknownItems {
					continue
				}
				return nil, decimal.Zero, fmt.Errorf("items[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("items[%d]: get menu item: %w", i, err)
		}

		unitPrice := numericToDecimal(item.Price)
		lineSubtotal := unitPrice.Mul(decimal.NewFromInt32(line.Quantity))
		subtotal = subtotal.Add(lineSubtotal)

		lines = append(lines, pricedLine{
			menuItemID: itemID,
			itemName:   item.Name,
			quantity:   line.Quantity,
			unitPrice:  unitPrice,
			subtotal:   lineSubtotal,
		})
	}

	if len(lines) == 0 {
		return nil, decimal.Zero, ErrEmptyCart
	}
	return lines, subtotal, nil
}

// redeemDiscount validates the code against the order subtotal and claims
// one use. The guarded UPDATE in RedeemDiscount makes the usage increment
// atomic with the order insert sharing its transaction.
func (s *OrderService) redeemDiscount(ctx context.Context, store OrderStore, shopID uuid.UUID, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	d, err := store.GetDiscountByCode(ctx, database.GetDiscountByCodeParams{
		ShopID: shopID,
		Code:   code,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: code not found", ErrDiscountNotRedeemable)
		}
		return decimal.Zero, fmt.Errorf("get discount: %w", err)
	}

	if reason := redeemRejection(d, subtotal, time.Now()); reason != "" {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrDiscountNotRedeemable, reason)
	}

	if _, err := store.RedeemDiscount(ctx, d.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race to the last available use.
			return decimal.Zero, fmt.Errorf("%w: usage limit reached", ErrDiscountNotRedeemable)
		}
		return decimal.Zero, fmt.Errorf("redeem discount: %w", err)
	}

	return computeDiscountAmount(d, subtotal), nil
}

func insertLines(ctx context.Context, store OrderStore, orderID uuid.UUID, lines []pricedLine) ([]database.OrderItem, error) {
	var items []database.OrderItem
	for _, line := range lines {
		item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:    orderID,
			MenuItemID: line.menuItemID,
			ItemName:   line.itemName,
			Quantity:   line.quantity,
			UnitPrice:  decimalToNumeric(line.unitPrice),
			Subtotal:   decimalToNumeric(line.subtotal),
		})
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// UpdateStatus moves an order to newStatus and broadcasts the change.
// Any known status may follow any other: kitchen flows move backwards in
// practice (a remake sends READY back to PREPARING), so no transition
// table is enforced.
func (s *OrderService) UpdateStatus(ctx context.Context, shopID, orderID uuid.UUID, newStatus string) (*OrderResult, error) {
	if !isValidOrderStatus(newStatus) {
		return nil, ErrInvalidStatus
	}

	order, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     orderID,
		ShopID: shopID,
		Status: newStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	result, err := s.withItems(ctx, order)
	if err != nil {
		return nil, err
	}

	s.notifyStatusChanged(shopID, result)
	if newStatus == enum.OrderStatusCompleted {
		s.notifyCompleted(shopID, orderID)
	}
	return result, nil
}

// Cancel marks the order CANCELLED and records the reason on its notes.
// The reason is appended so any prior notes survive.
func (s *OrderService) Cancel(ctx context.Context, shopID, orderID uuid.UUID, reason, actor string) (*OrderResult, error) {
	current, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, ShopID: shopID})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	note := "Cancelled: " + reason
	if actor != "" {
		note += " (by " + actor + ")"
	}
	if current.Notes.Valid && current.Notes.String != "" {
		note = current.Notes.String + " | " + note
	}

	order, err := s.store.CancelOrder(ctx, database.CancelOrderParams{
		ID:     orderID,
		ShopID: shopID,
		Notes:  pgtype.Text{String: note, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	result, err := s.withItems(ctx, order)
	if err != nil {
		return nil, err
	}

	s.notifyStatusChanged(shopID, result)
	s.notifyCompleted(shopID, orderID)
	return result, nil
}

// Hold parks a dine-in order without removing it from persistence.
func (s *OrderService) Hold(ctx context.Context, shopID, orderID uuid.UUID, tableNumber string) (*OrderResult, error) {
	order, err := s.store.HoldOrder(ctx, database.HoldOrderParams{
		ID:          orderID,
		ShopID:      shopID,
		TableNumber: textOrNull(tableNumber),
	})
	if err != nil {
		return nil, fmt.Errorf("hold order: %w", err)
	}

	result, err := s.withItems(ctx, order)
	if err != nil {
		return nil, err
	}

	s.notifyStatusChanged(shopID, result)
	return result, nil
}

// Resume returns a held order to PENDING and re-announces it as if newly
// created so kitchen displays pick it back up.
func (s *OrderService) Resume(ctx context.Context, shopID, orderID uuid.UUID) (*OrderResult, error) {
	order, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     orderID,
		ShopID: shopID,
		Status: enum.OrderStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("resume order: %w", err)
	}

	result, err := s.withItems(ctx, order)
	if err != nil {
		return nil, err
	}

	s.notifyCreated(shopID, result)
	return result, nil
}

// ModifyLines replaces the order's lines wholesale and reprices it from
// current menu prices. Permitted only while the order is PENDING or HELD.
// Any recorded discount is cleared along with the old lines.
func (s *OrderService) ModifyLines(ctx context.Context, shopID, orderID uuid.UUID, reqLines []OrderLineRequest) (*OrderResult, error) {
	if len(reqLines) == 0 {
		return nil, ErrEmptyCart
	}
	for i, line := range reqLines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := store.GetOrder(ctx, database.GetOrderParams{ID: orderID, ShopID: shopID})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if current.Status != enum.OrderStatusPending && current.Status != enum.OrderStatusHeld {
		return nil, ErrOrderNotModifiable
	}

	lines, subtotal, err := s.priceLines(ctx, store, shopID, reqLines)
	if err != nil {
		return nil, err
	}

	if err := store.DeleteOrderItems(ctx, orderID); err != nil {
		return nil, fmt.Errorf("delete order items: %w", err)
	}

	items, err := insertLines(ctx, store, orderID, lines)
	if err != nil {
		return nil, err
	}

	order, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:          orderID,
		ShopID:      shopID,
		Subtotal:    decimalToNumeric(subtotal),
		TotalAmount: decimalToNumeric(subtotal),
	})
	if err != nil {
		return nil, fmt.Errorf("update order totals: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	result := &OrderResult{Order: order, Items: items}
	s.notifyStatusChanged(shopID, result)
	return result, nil
}

// ListOrders returns orders for a shop. view selects the status subset:
// "kitchen" for the kitchen display set, "held" for parked orders, empty
// for all.
func (s *OrderService) ListOrders(ctx context.Context, shopID uuid.UUID, view string) ([]database.Order, error) {
	var statuses []string
	switch view {
	case "kitchen":
		statuses = enum.KitchenStatuses
	case "held":
		statuses = []string{enum.OrderStatusHeld}
	}

	orders, err := s.store.ListOrders(ctx, database.ListOrdersParams{
		ShopID:   shopID,
		Statuses: statuses,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// GetOrder fetches a single order with its lines.
func (s *OrderService) GetOrder(ctx context.Context, shopID, orderID uuid.UUID) (*OrderResult, error) {
	order, err := s.store.GetOrder(ctx, database.GetOrderParams{ID: orderID, ShopID: shopID})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return s.withItems(ctx, order)
}

// Delete removes an order outright. Lines go with it (ON DELETE CASCADE).
func (s *OrderService) Delete(ctx context.Context, shopID, orderID uuid.UUID) error {
	if _, err := s.store.DeleteOrder(ctx, database.DeleteOrderParams{ID: orderID, ShopID: shopID}); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (s *OrderService) withItems(ctx context.Context, order database.Order) (*OrderResult, error) {
	items, err := s.store.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &OrderResult{Order: order, Items: items}, nil
}

// --- Notifications (fire-and-forget) ---

func (s *OrderService) notifyCreated(shopID uuid.UUID, result *OrderResult) {
	if err := s.notifier.OrderCreated(shopID, result); err != nil {
		log.Printf("ERROR: broadcast order created: %v", err)
	}
	if err := s.notifier.SoundAlert(shopID, enum.SoundNewOrder); err != nil {
		log.Printf("ERROR: broadcast sound alert: %v", err)
	}
}

func (s *OrderService) notifyStatusChanged(shopID uuid.UUID, result *OrderResult) {
	if err := s.notifier.OrderStatusChanged(shopID, result); err != nil {
		log.Printf("ERROR: broadcast status changed: %v", err)
	}
}

func (s *OrderService) notifyCompleted(shopID, orderID uuid.UUID) {
	if err := s.notifier.OrderCompleted(shopID, orderID); err != nil {
		log.Printf("ERROR: broadcast order completed: %v", err)
	}
}

// --- Helpers ---

// generateShortCode returns the 4-digit code shown on kitchen tickets.
// Uniqueness per shop is enforced by the DB constraint; CreateOrder retries
// on collision.
func generateShortCode() string {
	return fmt.Sprintf("%04d", rand.Intn(10000))
}

func isValidChannel(s string) bool {
	switch s {
	case enum.ChannelCounter, enum.ChannelTableQR, enum.ChannelPickupQR,
		enum.ChannelDelivery, enum.ChannelMiniApp:
		return true
	}
	return false
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodQRIS,
		enum.PaymentMethodCard, enum.PaymentMethodTransfer:
		return true
	}
	return false
}

func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusConfirmed, enum.OrderStatusPreparing,
		enum.OrderStatusReady, enum.OrderStatusCompleted, enum.OrderStatusCancelled,
		enum.OrderStatusHeld:
		return true
	}
	return false
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
