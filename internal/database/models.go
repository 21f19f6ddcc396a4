package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Shop struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	CreatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	ShopID         uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Pin            pgtype.Text
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type MenuCategory struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	Name        string
	Description pgtype.Text
	SortOrder   int32
	IsActive    bool
	CreatedAt   time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	IsAvailable bool
	ImageURL    pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Discount struct {
	ID             uuid.UUID
	ShopID         uuid.UUID
	Code           string
	Type           string
	Value          pgtype.Numeric
	MinOrderAmount pgtype.Numeric
	MaxDiscount    pgtype.Numeric
	UsageLimit     pgtype.Int4
	UsageCount     int32
	ValidFrom      pgtype.Timestamptz
	ValidUntil     pgtype.Timestamptz
	IsActive       bool
	CreatedAt      time.Time
}

type Order struct {
	ID             uuid.UUID
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
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	ItemName   string
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Subtotal   pgtype.Numeric
}
