package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cafeos/api/internal/database"
	"github.com/cafeos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// DiscountStore defines the DB methods needed to validate discount codes.
// Satisfied by *database.Queries.
type DiscountStore interface {
	GetDiscountByCode(ctx context.Context, arg database.GetDiscountByCodeParams) (database.Discount, error)
}

// DiscountEvaluator answers whether a code is currently redeemable and what
// it would take off a given order total. It never touches the usage
// counter: only order creation redeems a use. That asymmetry is deliberate;
// pre-checkout validation must be free to call repeatedly.
type DiscountEvaluator struct {
	store DiscountStore
	now   func() time.Time
}

// NewDiscountEvaluator creates a new DiscountEvaluator.
func NewDiscountEvaluator(store DiscountStore) *DiscountEvaluator {
	return &DiscountEvaluator{store: store, now: time.Now}
}

// ValidationResult is the outcome of a standalone discount check.
type ValidationResult struct {
	Valid          bool
	Reason         string
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
}

// Validate checks a code against an order total. Codes are matched
// case-insensitively; the canonical form is uppercase.
func (e *DiscountEvaluator) Validate(ctx context.Context, shopID uuid.UUID, code string, orderTotal decimal.Decimal) (ValidationResult, error) {
	d, err := e.store.GetDiscountByCode(ctx, database.GetDiscountByCodeParams{
		ShopID: shopID,
		Code:   NormalizeDiscountCode(code),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ValidationResult{Reason: "code not found"}, nil
		}
		return ValidationResult{}, fmt.Errorf("get discount: %w", err)
	}

	if reason := redeemRejection(d, orderTotal, e.now()); reason != "" {
		return ValidationResult{Reason: reason}, nil
	}

	amount := computeDiscountAmount(d, orderTotal)
	return ValidationResult{
		Valid:          true,
		DiscountAmount: amount,
		FinalAmount:    orderTotal.Sub(amount),
	}, nil
}

// NormalizeDiscountCode returns the canonical (uppercase, trimmed) form of
// a discount code, as stored.
func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// redeemRejection returns a human-readable reason the discount cannot be
// redeemed right now, or "" if it can.
func redeemRejection(d database.Discount, orderTotal decimal.Decimal, now time.Time) string {
	if !d.IsActive {
		return "code is inactive"
	}
	if d.Type == enum.DiscountTypeFreeItem {
		// Modeled in the data but with no pricing defined; refuse rather
		// than guess which line would be free.
		return "free-item codes cannot be redeemed"
	}
	if d.ValidFrom.Valid && now.Before(d.ValidFrom.Time) {
		return "code is not valid yet"
	}
	if d.ValidUntil.Valid && now.After(d.ValidUntil.Time) {
		return "code has expired"
	}
	if d.UsageLimit.Valid && d.UsageCount >= d.UsageLimit.Int32 {
		return "usage limit reached"
	}
	if d.MinOrderAmount.Valid && orderTotal.LessThan(numericToDecimal(d.MinOrderAmount)) {
		return "order total below minimum"
	}
	return ""
}

// computeDiscountAmount computes the effect of a redeemable discount on an
// order total. Percentage discounts are capped by max_discount when set;
// no discount ever exceeds the total itself.
func computeDiscountAmount(d database.Discount, orderTotal decimal.Decimal) decimal.Decimal {
	value := numericToDecimal(d.Value)

	var amount decimal.Decimal
	switch d.Type {
	case enum.DiscountTypePercentage:
		amount = orderTotal.Mul(value).Div(decimal.NewFromInt(100))
		if d.MaxDiscount.Valid {
			if maxD := numericToDecimal(d.MaxDiscount); amount.GreaterThan(maxD) {
				amount = maxD
			}
		}
	case enum.DiscountTypeFixed:
		amount = value
	default:
		return decimal.Zero
	}

	if amount.GreaterThan(orderTotal) {
		amount = orderTotal
	}
	return amount
}
