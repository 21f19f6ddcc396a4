package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/cafeos/api/internal/database"
	"github.com/cafeos/api/internal/enum"
	"github.com/cafeos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// DiscountStore defines the database methods needed by discount handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type DiscountStore interface {
	ListDiscountsByShop(ctx context.Context, shopID uuid.UUID) ([]database.Discount, error)
	CreateDiscount(ctx context.Context, arg database.CreateDiscountParams) (database.Discount, error)
	UpdateDiscount(ctx context.Context, arg database.UpdateDiscountParams) (database.Discount, error)
	DeleteDiscount(ctx context.Context, arg database.DeleteDiscountParams) (uuid.UUID, error)
}

// DiscountValidator answers pre-checkout discount checks.
// Satisfied by *service.DiscountEvaluator.
type DiscountValidator interface {
	Validate(ctx context.Context, shopID uuid.UUID, code string, orderTotal decimal.Decimal) (service.ValidationResult, error)
}

// DiscountHandler handles discount CRUD and validation endpoints.
type DiscountHandler struct {
	store     DiscountStore
	validator DiscountValidator
}

// NewDiscountHandler creates a new DiscountHandler.
func NewDiscountHandler(store DiscountStore, validator DiscountValidator) *DiscountHandler {
	return &DiscountHandler{store: store, validator: validator}
}

// RegisterRoutes registers discount endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/discounts
func (h *DiscountHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/validate", h.Validate)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type discountRequest struct {
	Code           string `json:"code"`
	Type           string `json:"type"`
	Value          string `json:"value"`
	MinOrderAmount string `json:"min_order_amount"`
	MaxDiscount    string `json:"max_discount"`
	UsageLimit     *int32 `json:"usage_limit"`
	ValidFrom      string `json:"valid_from"`
	ValidUntil     string `json:"valid_until"`
	IsActive       *bool  `json:"is_active"`
}

type validateDiscountRequest struct {
	Code       string `json:"code"`
	OrderTotal string `json:"order_total"`
}

type discountResponse struct {
	ID             uuid.UUID  `json:"id"`
	ShopID         uuid.UUID  `json:"shop_id"`
	Code           string     `json:"code"`
	Type           string     `json:"type"`
	Value          string     `json:"value"`
	MinOrderAmount *string    `json:"min_order_amount"`
	MaxDiscount    *string    `json:"max_discount"`
	UsageLimit     *int32     `json:"usage_limit"`
	UsageCount     int32      `json:"usage_count"`
	ValidFrom      *time.Time `json:"valid_from"`
	ValidUntil     *time.Time `json:"valid_until"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
}

type validateDiscountResponse struct {
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason,omitempty"`
	DiscountAmount string `json:"discount_amount"`
	FinalAmount    string `json:"final_amount"`
}

func toDiscountResponse(d database.Discount) discountResponse {
	resp := discountResponse{
		ID:         d.ID,
		ShopID:     d.ShopID,
		Code:       d.Code,
		Type:       d.Type,
		Value:      numericString(d.Value),
		UsageCount: d.UsageCount,
		IsActive:   d.IsActive,
		CreatedAt:  d.CreatedAt,
	}
	if d.MinOrderAmount.Valid {
		s := numericString(d.MinOrderAmount)
		resp.MinOrderAmount = &s
	}
	if d.MaxDiscount.Valid {
		s := numericString(d.MaxDiscount)
		resp.MaxDiscount = &s
	}
	if d.UsageLimit.Valid {
		resp.UsageLimit = &d.UsageLimit.Int32
	}
	if d.ValidFrom.Valid {
		resp.ValidFrom = &d.ValidFrom.Time
	}
	if d.ValidUntil.Valid {
		resp.ValidUntil = &d.ValidUntil.Time
	}
	return resp
}

// parseDiscountFields validates the shared create/update payload. Codes are
// stored uppercase so redemption can match case-insensitively.
func parseDiscountFields(req discountRequest) (value, minOrder, maxDiscount pgtype.Numeric, usageLimit pgtype.Int4, validFrom, validUntil pgtype.Timestamptz, errMsg string) {
	if !isValidDiscountType(req.Type) {
		errMsg = "invalid type"
		return
	}

	valueDec, err := decimal.NewFromString(req.Value)
	if err != nil || valueDec.IsNegative() {
		errMsg = "value must be a non-negative decimal"
		return
	}
	if req.Type == enum.DiscountTypePercentage && valueDec.GreaterThan(decimal.NewFromInt(100)) {
		errMsg = "percentage value cannot exceed 100"
		return
	}
	_ = value.Scan(valueDec.StringFixed(2))

	if req.MinOrderAmount != "" {
		d, err := decimal.NewFromString(req.MinOrderAmount)
		if err != nil || d.IsNegative() {
			errMsg = "min_order_amount must be a non-negative decimal"
			return
		}
		_ = minOrder.Scan(d.StringFixed(2))
	}
	if req.MaxDiscount != "" {
		d, err := decimal.NewFromString(req.MaxDiscount)
		if err != nil || d.IsNegative() {
			errMsg = "max_discount must be a non-negative decimal"
			return
		}
		_ = maxDiscount.Scan(d.StringFixed(2))
	}
	if req.UsageLimit != nil {
		if *req.UsageLimit <= 0 {
			errMsg = "usage_limit must be > 0"
			return
		}
		usageLimit = pgtype.Int4{Int32: *req.UsageLimit, Valid: true}
	}
	if req.ValidFrom != "" {
		t, err := time.Parse(time.RFC3339, req.ValidFrom)
		if err != nil {
			errMsg = "invalid valid_from, use RFC 3339"
			return
		}
		validFrom = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if req.ValidUntil != "" {
		t, err := time.Parse(time.RFC3339, req.ValidUntil)
		if err != nil {
			errMsg = "invalid valid_until, use RFC 3339"
			return
		}
		validUntil = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if validFrom.Valid && validUntil.Valid && validUntil.Time.Before(validFrom.Time) {
		errMsg = "valid_until must not precede valid_from"
		return
	}
	return
}

func isValidDiscountType(t string) bool {
	switch t {
	case enum.DiscountTypePercentage, enum.DiscountTypeFixed, enum.DiscountTypeFreeItem:
		return true
	}
	return false
}

// --- Handlers ---

// List returns all discounts for the given shop.
func (h *DiscountHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	discounts, err := h.store.ListDiscountsByShop(r.Context(), shopID)
	if err != nil {
		log.Printf("ERROR: list discounts: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]discountResponse, len(discounts))
	for i, d := range discounts {
		resp[i] = toDiscountResponse(d)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create adds a new discount code to the given shop.
func (h *DiscountHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	code := service.NormalizeDiscountCode(req.Code)
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}

	value, minOrder, maxDiscount, usageLimit, validFrom, validUntil, errMsg := parseDiscountFields(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	discount, err := h.store.CreateDiscount(r.Context(), database.CreateDiscountParams{
		ShopID:         shopID,
		Code:           code,
		Type:           req.Type,
		Value:          value,
		MinOrderAmount: minOrder,
		MaxDiscount:    maxDiscount,
		UsageLimit:     usageLimit,
		ValidFrom:      validFrom,
		ValidUntil:     validUntil,
		IsActive:       isActive,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "code already exists"})
			return
		}
		log.Printf("ERROR: create discount: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toDiscountResponse(discount))
}

// Validate handles POST /shops/{sid}/discounts/validate. It reports whether
// a code would apply to the given order total without consuming a use.
func (h *DiscountHandler) Validate(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	var req validateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}

	orderTotal, err := decimal.NewFromString(req.OrderTotal)
	if err != nil || orderTotal.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_total must be a non-negative decimal"})
		return
	}

	result, err := h.validator.Validate(r.Context(), shopID, req.Code, orderTotal)
	if err != nil {
		log.Printf("ERROR: validate discount: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, validateDiscountResponse{
		Valid:          result.Valid,
		Reason:         result.Reason,
		DiscountAmount: result.DiscountAmount.StringFixed(2),
		FinalAmount:    result.FinalAmount.StringFixed(2),
	})
}

// Update modifies an existing discount. The code itself is immutable once
// created; only terms change.
func (h *DiscountHandler) Update(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	discountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount ID"})
		return
	}

	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	value, minOrder, maxDiscount, usageLimit, validFrom, validUntil, errMsg := parseDiscountFields(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	discount, err := h.store.UpdateDiscount(r.Context(), database.UpdateDiscountParams{
		ID:             discountID,
		ShopID:         shopID,
		Type:           req.Type,
		Value:          value,
		MinOrderAmount: minOrder,
		MaxDiscount:    maxDiscount,
		UsageLimit:     usageLimit,
		ValidFrom:      validFrom,
		ValidUntil:     validUntil,
		IsActive:       isActive,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "discount not found"})
			return
		}
		log.Printf("ERROR: update discount: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toDiscountResponse(discount))
}

// Delete removes a discount code.
func (h *DiscountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	discountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid discount ID"})
		return
	}

	_, err = h.store.DeleteDiscount(r.Context(), database.DeleteDiscountParams{
		ID:     discountID,
		ShopID: shopID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "discount not found"})
			return
		}
		log.Printf("ERROR: delete discount: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
