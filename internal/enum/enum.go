package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusHeld      = "HELD"
)

// KitchenStatuses is the subset of statuses shown on kitchen displays.
var KitchenStatuses = []string{OrderStatusPending, OrderStatusPreparing, OrderStatusReady}

const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusRefunded = "REFUNDED"
)

// ── Entry channels ──

const (
	ChannelCounter  = "COUNTER"
	ChannelTableQR  = "TABLE_QR"
	ChannelPickupQR = "PICKUP_QR"
	ChannelDelivery = "DELIVERY"
	ChannelMiniApp  = "MINI_APP"
)

// ── Roles (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleKitchen = "KITCHEN"
)

// ── Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodQRIS     = "QRIS"
	PaymentMethodCard     = "CARD"
	PaymentMethodTransfer = "TRANSFER"
)

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED_AMOUNT"
	DiscountTypeFreeItem   = "FREE_ITEM"
)

const (
	SoundNewOrder = "NEW_ORDER"
	SoundRush     = "RUSH"
)
