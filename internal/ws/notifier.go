package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cafeos/api/internal/service"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// OrderNotifier adapts the hub to the order service's Notifier interface.
// Marshaling is the only thing that can fail here; hub delivery itself is
// fire-and-forget.
type OrderNotifier struct {
	hub *Hub
}

// NewOrderNotifier creates a new OrderNotifier.
func NewOrderNotifier(hub *Hub) *OrderNotifier {
	return &OrderNotifier{hub: hub}
}

// orderPayload is the wire shape of an order on the socket.
type orderPayload struct {
	ID             uuid.UUID          `json:"id"`
	ShopID         uuid.UUID          `json:"shop_id"`
	ShortCode      string             `json:"short_code"`
	CustomerName   *string            `json:"customer_name"`
	Status         string             `json:"status"`
	Channel        string             `json:"channel"`
	Subtotal       string             `json:"subtotal"`
	DiscountCode   *string            `json:"discount_code"`
	DiscountAmount string             `json:"discount_amount"`
	TotalAmount    string             `json:"total_amount"`
	PaymentMethod  string             `json:"payment_method"`
	PaymentStatus  string             `json:"payment_status"`
	TableNumber    *string            `json:"table_number"`
	Notes          *string            `json:"notes"`
	CreatedAt      time.Time          `json:"created_at"`
	Items          []orderItemPayload `json:"items"`
}

type orderItemPayload struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	ItemName   string    `json:"item_name"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	Subtotal   string    `json:"subtotal"`
}

type statusChangedPayload struct {
	OrderID uuid.UUID    `json:"order_id"`
	Status  string       `json:"status"`
	Order   orderPayload `json:"order"`
}

type completedPayload struct {
	OrderID uuid.UUID `json:"order_id"`
}

type soundAlertPayload struct {
	Category string `json:"category"`
}

// OrderCreated emits order.created with the full order to the shop room.
func (n *OrderNotifier) OrderCreated(shopID uuid.UUID, order *service.OrderResult) error {
	return n.emit(shopID, EventOrderCreated, toOrderPayload(order))
}

// OrderStatusChanged emits order.status_changed carrying the order id, the
// new status, and the full updated order.
func (n *OrderNotifier) OrderStatusChanged(shopID uuid.UUID, order *service.OrderResult) error {
	return n.emit(shopID, EventOrderStatusChanged, statusChangedPayload{
		OrderID: order.Order.ID,
		Status:  order.Order.Status,
		Order:   toOrderPayload(order),
	})
}

// OrderCompleted emits order.completed with just the order id, signaling
// removal from active kitchen views.
func (n *OrderNotifier) OrderCompleted(shopID, orderID uuid.UUID) error {
	return n.emit(shopID, EventOrderCompleted, completedPayload{OrderID: orderID})
}

// SoundAlert emits sound.alert so a client can play audio without
// re-rendering state.
func (n *OrderNotifier) SoundAlert(shopID uuid.UUID, category string) error {
	return n.emit(shopID, EventSoundAlert, soundAlertPayload{Category: category})
}

func (n *OrderNotifier) emit(shopID uuid.UUID, eventType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	n.hub.BroadcastToShop(shopID, Event{Type: eventType, Payload: raw})
	return nil
}

func toOrderPayload(result *service.OrderResult) orderPayload {
	o := result.Order
	p := orderPayload{
		ID:             o.ID,
		ShopID:         o.ShopID,
		ShortCode:      o.ShortCode,
		Status:         o.Status,
		Channel:        o.Channel,
		Subtotal:       numericString(o.Subtotal),
		DiscountAmount: numericString(o.DiscountAmount),
		TotalAmount:    numericString(o.TotalAmount),
		PaymentMethod:  o.PaymentMethod,
		PaymentStatus:  o.PaymentStatus,
		CreatedAt:      o.CreatedAt,
	}
	if o.CustomerName.Valid {
		p.CustomerName = &o.CustomerName.String
	}
	if o.DiscountCode.Valid {
		p.DiscountCode = &o.DiscountCode.String
	}
	if o.TableNumber.Valid {
		p.TableNumber = &o.TableNumber.String
	}
	if o.Notes.Valid {
		p.Notes = &o.Notes.String
	}

	p.Items = make([]orderItemPayload, len(result.Items))
	for i, item := range result.Items {
		p.Items[i] = orderItemPayload{
			ID:         item.ID,
			MenuItemID: item.MenuItemID,
			ItemName:   item.ItemName,
			Quantity:   item.Quantity,
			UnitPrice:  numericString(item.UnitPrice),
			Subtotal:   numericString(item.Subtotal),
		}
	}
	return p
}

func numericString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
