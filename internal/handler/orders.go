package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/cafeos/api/internal/database"
	"github.com/cafeos/api/internal/middleware"
	"github.com/cafeos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	UpdateStatus(ctx context.Context, shopID, orderID uuid.UUID, newStatus string) (*service.OrderResult, error)
	Cancel(ctx context.Context, shopID, orderID uuid.UUID, reason, actor string) (*service.OrderResult, error)
	Hold(ctx context.Context, shopID, orderID uuid.UUID, tableNumber string) (*service.OrderResult, error)
	Resume(ctx context.Context, shopID, orderID uuid.UUID) (*service.OrderResult, error)
	ModifyLines(ctx context.Context, shopID, orderID uuid.UUID, lines []service.OrderLineRequest) (*service.OrderResult, error)
	ListOrders(ctx context.Context, shopID uuid.UUID, view string) ([]database.Order, error)
	GetOrder(ctx context.Context, shopID, orderID uuid.UUID) (*service.OrderResult, error)
	Delete(ctx context.Context, shopID, orderID uuid.UUID) error
}

// OrderHandler handles order lifecycle endpoints.
type OrderHandler struct {
	svc OrderServicer
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer) *OrderHandler {
	return &OrderHandler{svc: svc}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a shop-scoped subrouter: /shops/{sid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/cancel", h.Cancel)
	r.Post("/{id}/hold", h.Hold)
	r.Post("/{id}/resume", h.Resume)
	r.Put("/{id}/items", h.ModifyLines)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Channel       string                 `json:"channel"`
	PaymentMethod string                 `json:"payment_method"`
	DiscountCode  string                 `json:"discount_code"`
	TableNumber   string                 `json:"table_number"`
	CustomerName  string                 `json:"customer_name"`
	Notes         string                 `json:"notes"`
	Items         []orderItemLineRequest `json:"items"`
}

type orderItemLineRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type holdOrderRequest struct {
	TableNumber string `json:"table_number"`
}

type modifyLinesRequest struct {
	Items []orderItemLineRequest `json:"items"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	ShopID         uuid.UUID           `json:"shop_id"`
	ShortCode      string              `json:"short_code"`
	CustomerName   *string             `json:"customer_name"`
	Status         string              `json:"status"`
	Channel        string              `json:"channel"`
	Subtotal       string              `json:"subtotal"`
	DiscountCode   *string             `json:"discount_code"`
	DiscountAmount string              `json:"discount_amount"`
	TotalAmount    string              `json:"total_amount"`
	PaymentMethod  string              `json:"payment_method"`
	PaymentStatus  string              `json:"payment_status"`
	PaidAt         *time.Time          `json:"paid_at"`
	TableNumber    *string             `json:"table_number"`
	Notes          *string             `json:"notes"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Items          []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	ItemName   string    `json:"item_name"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	Subtotal   string    `json:"subtotal"`
}

func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
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
		UpdatedAt:      o.UpdatedAt,
	}
	if o.CustomerName.Valid {
		resp.CustomerName = &o.CustomerName.String
	}
	if o.DiscountCode.Valid {
		resp.DiscountCode = &o.DiscountCode.String
	}
	if o.PaidAt.Valid {
		resp.PaidAt = &o.PaidAt.Time
	}
	if o.TableNumber.Valid {
		resp.TableNumber = &o.TableNumber.String
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	return resp
}

func toOrderResponse(result *service.OrderResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = orderItemResponse{
			ID:         item.ID,
			MenuItemID: item.MenuItemID,
			ItemName:   item.ItemName,
			Quantity:   item.Quantity,
			UnitPrice:  numericString(item.UnitPrice),
			Subtotal:   numericString(item.Subtotal),
		}
	}
	return resp
}

// --- Handlers ---

// Create handles POST /shops/{sid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	lines := make([]service.OrderLineRequest, len(req.Items))
	for i, item := range req.Items {
		lines[i] = service.OrderLineRequest{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		ShopID:        shopID,
		Channel:       req.Channel,
		PaymentMethod: req.PaymentMethod,
		DiscountCode:  req.DiscountCode,
		TableNumber:   req.TableNumber,
		CustomerName:  req.CustomerName,
		Notes:         req.Notes,
		Lines:         lines,
	})
	if err != nil {
		writeOrderServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result))
}

// List handles GET /shops/{sid}/orders. The optional ?view= query selects a
// status subset: "kitchen" (PENDING/PREPARING/READY) or "held".
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return
	}

	view := r.URL.Query().Get("view")
	switch view {
	case "", "kitchen", "held":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid view, use kitchen or held"})
		return
	}

	orders, err := h.svc.ListOrders(r.Context(), shopID, view)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /shops/{sid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	shopID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	result, err := h.svc.GetOrder(r.Context(), shopID, orderID)
	if err != nil {
		writeOrderServiceError(w, "get order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// UpdateStatus handles PATCH /shops/{sid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	shopID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	result, err := h.svc.UpdateStatus(r.Context(), shopID, orderID, req.Status)
	if err != nil {
		writeOrderServiceError(w, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Cancel handles POST /shops/{sid}/orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	shopID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Reason == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reason is required"})
		return
	}

	actor := ""
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		actor = claims.UserID.String()
	}

	result, err := h.svc.Cancel(r.Context(), shopID, orderID, req.Reason, actor)
	if err != nil {
		writeOrderServiceError(w, "cancel order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Hold handles POST /shops/{sid}/orders/{id}/hold. Used to park a dine-in
// tab; an optional table_number re-tags the order.
func (h *OrderHandler) Hold(w http.ResponseWriter, r *http.Request) {
	shopID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	var req holdOrderRequest
	if r.Body != nil {
		// Body is optional for hold.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.svc.Hold(r.Context(), shopID, orderID, req.TableNumber)
	if err != nil {
		writeOrderServiceError(w, "hold order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Resume handles POST /shops/{sid}/orders/{id}/resume.
func (h *OrderHandler) Resume(w http.ResponseWriter, r *http.Request) {
	shopID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Resume(r.Context(), shopID, orderID)
	if err != nil {
		writeOrderServiceError(w, "resume order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// ModifyLines handles PUT /shops/{sid}/orders/{id}/items. Replaces the
// order's lines wholesale.
func (h *OrderHandler) ModifyLines(w http.ResponseWriter, r *http.Request) {
	shopID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	var req modifyLinesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	lines := make([]service.OrderLineRequest, len(req.Items))
	for i, item := range req.Items {
		lines[i] = service.OrderLineRequest{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
		}
	}

	result, err := h.svc.ModifyLines(r.Context(), shopID, orderID, lines)
	if err != nil {
		writeOrderServiceError(w, "modify order lines", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

// Delete handles DELETE /shops/{sid}/orders/{id}.
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	shopID, orderID, ok := parseOrderPath(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), shopID, orderID); err != nil {
		writeOrderServiceError(w, "delete order", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func parseOrderPath(w http.ResponseWriter, r *http.Request) (shopID, orderID uuid.UUID, ok bool) {
	shopID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid shop ID"})
		return uuid.Nil, uuid.Nil, false
	}
	orderID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return uuid.Nil, uuid.Nil, false
	}
	return shopID, orderID, true
}

// writeOrderServiceError maps service errors onto HTTP status codes:
// validation failures are 400, state conflicts 409, missing rows 404.
func writeOrderServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case isValidationError(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOrderNotModifiable),
		errors.Is(err, service.ErrDiscountNotRedeemable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, pgx.ErrNoRows):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyCart) ||
		errors.Is(err, service.ErrInvalidChannel) ||
		errors.Is(err, service.ErrInvalidPaymentMethod) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidMenuItemID) ||
		errors.Is(err, service.ErrMenuItemNotFound) ||
		errors.Is(err, service.ErrInvalidStatus)
}

// numericString renders a pgtype.Numeric as a fixed two-decimal string for
// JSON money fields.
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
