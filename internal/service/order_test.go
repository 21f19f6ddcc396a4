package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cafeos/api/internal/database"
	"github.com/cafeos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commitErr   error
	rollbackErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error          { return m.commitErr }
func (m *mockTx) Rollback(ctx context.Context) error        { return m.rollbackErr }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// mockOrderStore is a stateful in-memory OrderStore.
type mockOrderStore struct {
	menuItems map[uuid.UUID]database.MenuItem
	discounts map[string]database.Discount // keyed by code
	orders    map[uuid.UUID]database.Order
	items     map[uuid.UUID][]database.OrderItem // keyed by order ID

	// createOrderErrs is consumed one per CreateOrder call before the
	// insert succeeds; used to simulate short code collisions.
	createOrderErrs []error
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		menuItems: make(map[uuid.UUID]database.MenuItem),
		discounts: make(map[string]database.Discount),
		orders:    make(map[uuid.UUID]database.Order),
		items:     make(map[uuid.UUID][]database.OrderItem),
	}
}

func (m *mockOrderStore) GetMenuItemForOrder(_ context.Context, arg database.GetMenuItemForOrderParams) (database.MenuItem, error) {
	item, ok := m.menuItems[arg.ID]
	if !ok || item.ShopID != arg.ShopID || !item.IsAvailable {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	return item, nil
}

func (m *mockOrderStore) GetDiscountByCode(_ context.Context, arg database.GetDiscountByCodeParams) (database.Discount, error) {
	d, ok := m.discounts[arg.Code]
	if !ok || d.ShopID != arg.ShopID {
		return database.Discount{}, pgx.ErrNoRows
	}
	return d, nil
}

func (m *mockOrderStore) RedeemDiscount(_ context.Context, id uuid.UUID) (database.Discount, error) {
	for code, d := range m.discounts {
		if d.ID == id {
			if !d.IsActive || (d.UsageLimit.Valid && d.UsageCount >= d.UsageLimit.Int32) {
				return database.Discount{}, pgx.ErrNoRows
			}
			d.UsageCount++
			m.discounts[code] = d
			return d, nil
		}
	}
	return database.Discount{}, pgx.ErrNoRows
}

func (m *mockOrderStore) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if len(m.createOrderErrs) > 0 {
		err := m.createOrderErrs[0]
		m.createOrderErrs = m.createOrderErrs[1:]
		return database.Order{}, err
	}
	o := database.Order{
		ID:             uuid.New(),
		ShopID:         arg.ShopID,
		ShortCode:      arg.ShortCode,
		CustomerName:   arg.CustomerName,
		Status:         arg.Status,
		Channel:        arg.Channel,
		Subtotal:       arg.Subtotal,
		DiscountCode:   arg.DiscountCode,
		DiscountAmount: arg.DiscountAmount,
		TotalAmount:    arg.TotalAmount,
		PaymentMethod:  arg.PaymentMethod,
		PaymentStatus:  arg.PaymentStatus,
		PaidAt:         arg.PaidAt,
		TableNumber:    arg.TableNumber,
		Notes:          arg.Notes,
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *mockOrderStore) CreateOrderItem(_ context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	it := database.OrderItem{
		ID:         uuid.New(),
		OrderID:    arg.OrderID,
		MenuItemID: arg.MenuItemID,
		ItemName:   arg.ItemName,
		Quantity:   arg.Quantity,
		UnitPrice:  arg.UnitPrice,
		Subtotal:   arg.Subtotal,
	}
	m.items[arg.OrderID] = append(m.items[arg.OrderID], it)
	return it, nil
}

func (m *mockOrderStore) GetOrder(_ context.Context, arg database.GetOrderParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok || o.ShopID != arg.ShopID {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockOrderStore) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	var result []database.Order
	for _, o := range m.orders {
		if o.ShopID != arg.ShopID {
			continue
		}
		if arg.Statuses != nil {
			match := false
			for _, s := range arg.Statuses {
				if o.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		result = append(result, o)
	}
	return result, nil
}

func (m *mockOrderStore) ListOrderItemsByOrder(_ context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockOrderStore) UpdateOrderStatus(_ context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok || o.ShopID != arg.ShopID {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	m.orders[arg.ID] = o
	return o, nil
}

func (m *mockOrderStore) CancelOrder(_ context.Context, arg database.CancelOrderParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok || o.ShopID != arg.ShopID {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = enum.OrderStatusCancelled
	o.Notes = arg.Notes
	m.orders[arg.ID] = o
	return o, nil
}

func (m *mockOrderStore) HoldOrder(_ context.Context, arg database.HoldOrderParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok || o.ShopID != arg.ShopID {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = enum.OrderStatusHeld
	if arg.TableNumber.Valid {
		o.TableNumber = arg.TableNumber
	}
	m.orders[arg.ID] = o
	return o, nil
}

func (m *mockOrderStore) UpdateOrderTotals(_ context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
	o, ok := m.orders[arg.ID]
	if !ok || o.ShopID != arg.ShopID {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Subtotal = arg.Subtotal
	o.DiscountCode = pgtype.Text{}
	o.DiscountAmount = makeNumeric("0")
	o.TotalAmount = arg.TotalAmount
	m.orders[arg.ID] = o
	return o, nil
}

func (m *mockOrderStore) DeleteOrderItems(_ context.Context, orderID uuid.UUID) error {
	delete(m.items, orderID)
	return nil
}

func (m *mockOrderStore) DeleteOrder(_ context.Context, arg database.DeleteOrderParams) (uuid.UUID, error) {
	o, ok := m.orders[arg.ID]
	if !ok || o.ShopID != arg.ShopID {
		return uuid.Nil, pgx.ErrNoRows
	}
	delete(m.orders, arg.ID)
	delete(m.items, arg.ID)
	return o.ID, nil
}

// mockNotifier records emitted events; set failAll to make every method
// return an error.
type mockNotifier struct {
	events  []string
	failAll bool
}

func (m *mockNotifier) record(name string) error {
	m.events = append(m.events, name)
	if m.failAll {
		return errors.New("broadcast failed")
	}
	return nil
}

func (m *mockNotifier) OrderCreated(shopID uuid.UUID, order *OrderResult) error {
	return m.record("created")
}
func (m *mockNotifier) OrderStatusChanged(shopID uuid.UUID, order *OrderResult) error {
	return m.record("status_changed")
}
func (m *mockNotifier) OrderCompleted(shopID, orderID uuid.UUID) error {
	return m.record("completed")
}
func (m *mockNotifier) SoundAlert(shopID uuid.UUID, category string) error {
	return m.record("sound:" + category)
}

// --- Test helpers ---

func makeNumeric(val string) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(val)
	return n
}

func numericEquals(n pgtype.Numeric, expected string) bool {
	d := numericToDecimal(n)
	exp, _ := decimal.NewFromString(expected)
	return d.Equal(exp)
}

// newTestService creates an OrderService backed by the given mock store.
func newTestService(store *mockOrderStore, notifier *mockNotifier) *OrderService {
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) OrderStore { return store }
	return NewOrderService(pool, store, newStore, notifier, false)
}

func addMenuItem(store *mockOrderStore, shopID uuid.UUID, name, price string) uuid.UUID {
	id := uuid.New()
	store.menuItems[id] = database.MenuItem{
		ID:          id,
		ShopID:      shopID,
		Name:        name,
		Price:       makeNumeric(price),
		IsAvailable: true,
	}
	return id
}

// espressoCart seeds the standard two-line cart: 2x Espresso @150 and
// 1x Croissant @120, subtotal 420.
func espressoCart(store *mockOrderStore, shopID uuid.UUID) []OrderLineRequest {
	espresso := addMenuItem(store, shopID, "Espresso", "150")
	croissant := addMenuItem(store, shopID, "Croissant", "120")
	return []OrderLineRequest{
		{MenuItemID: espresso.String(), Quantity: 2},
		{MenuItemID: croissant.String(), Quantity: 1},
	}
}

func baseRequest(shopID uuid.UUID, lines []OrderLineRequest) CreateOrderRequest {
	return CreateOrderRequest{
		ShopID:        shopID,
		Channel:       enum.ChannelCounter,
		PaymentMethod: enum.PaymentMethodCash,
		Lines:         lines,
	}
}

// --- Create tests ---

func TestCreateOrder_PricesCart(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier)
	shopID := uuid.New()

	result, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if !numericEquals(result.Order.Subtotal, "420") {
		t.Errorf("subtotal: got %s, want 420", numericToDecimal(result.Order.Subtotal))
	}
	if !numericEquals(result.Order.TotalAmount, "420") {
		t.Errorf("total: got %s, want 420", numericToDecimal(result.Order.TotalAmount))
	}
	if result.Order.Status != enum.OrderStatusPending {
		t.Errorf("status: got %s, want PENDING", result.Order.Status)
	}
	if result.Order.PaymentStatus != enum.PaymentStatusPaid {
		t.Errorf("payment status: got %s, want PAID", result.Order.PaymentStatus)
	}
	if len(result.Items) != 2 {
		t.Fatalf("items: got %d, want 2", len(result.Items))
	}
	if len(result.Order.ShortCode) != 4 {
		t.Errorf("short code: got %q, want 4 digits", result.Order.ShortCode)
	}
}

func TestCreateOrder_EmitsCreatedAndSoundAlert(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier)
	shopID := uuid.New()

	if _, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID))); err != nil {
		t.Fatalf("create order: %v", err)
	}

	want := []string{"created", "sound:NEW_ORDER"}
	if len(notifier.events) != len(want) {
		t.Fatalf("events: got %v, want %v", notifier.events, want)
	}
	for i := range want {
		if notifier.events[i] != want[i] {
			t.Errorf("events[%d]: got %s, want %s", i, notifier.events[i], want[i])
		}
	}
}

func TestCreateOrder_PercentageDiscountCapped(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier)
	shopID := uuid.New()
	lines := espressoCart(store, shopID)

	store.discounts["WELCOME10"] = database.Discount{
		ID:          uuid.New(),
		ShopID:      shopID,
		Code:        "WELCOME10",
		Type:        enum.DiscountTypePercentage,
		Value:       makeNumeric("10"),
		MaxDiscount: makeNumeric("30"),
		IsActive:    true,
	}

	req := baseRequest(shopID, lines)
	req.DiscountCode = "welcome10" // case-insensitive
	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// 10% of 420 is 42, capped at 30.
	if !numericEquals(result.Order.DiscountAmount, "30") {
		t.Errorf("discount: got %s, want 30", numericToDecimal(result.Order.DiscountAmount))
	}
	if !numericEquals(result.Order.TotalAmount, "390") {
		t.Errorf("total: got %s, want 390", numericToDecimal(result.Order.TotalAmount))
	}
	if got := store.discounts["WELCOME10"].UsageCount; got != 1 {
		t.Errorf("usage count: got %d, want 1", got)
	}
}

func TestCreateOrder_FixedDiscountFlooredAtZero(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier)
	shopID := uuid.New()
	lines := espressoCart(store, shopID)

	store.discounts["BIGOFF"] = database.Discount{
		ID:       uuid.New(),
		ShopID:   shopID,
		Code:     "BIGOFF",
		Type:     enum.DiscountTypeFixed,
		Value:    makeNumeric("1000"),
		IsActive: true,
	}

	req := baseRequest(shopID, lines)
	req.DiscountCode = "BIGOFF"
	result, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// Fixed 1000 on a 420 order is capped at the subtotal.
	if !numericEquals(result.Order.DiscountAmount, "420") {
		t.Errorf("discount: got %s, want 420", numericToDecimal(result.Order.DiscountAmount))
	}
	if !numericEquals(result.Order.TotalAmount, "0") {
		t.Errorf("total: got %s, want 0", numericToDecimal(result.Order.TotalAmount))
	}
}

func TestCreateOrder_DiscountUsageLimitReached(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier)
	shopID := uuid.New()
	lines := espressoCart(store, shopID)

	store.discounts["ONCE"] = database.Discount{
		ID:         uuid.New(),
		ShopID:     shopID,
		Code:       "ONCE",
		Type:       enum.DiscountTypeFixed,
		Value:      makeNumeric("10"),
		UsageLimit: pgtype.Int4{Int32: 1, Valid: true},
		UsageCount: 1,
		IsActive:   true,
	}

	req := baseRequest(shopID, lines)
	req.DiscountCode = "ONCE"
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrDiscountNotRedeemable) {
		t.Fatalf("expected ErrDiscountNotRedeemable, got %v", err)
	}
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})

	_, err := svc.CreateOrder(context.Background(), baseRequest(uuid.New(), nil))
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCreateOrder_InvalidQuantity(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})
	shopID := uuid.New()

	req := baseRequest(shopID, []OrderLineRequest{{MenuItemID: uuid.New().String(), Quantity: 0}})
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestCreateOrder_UnknownItemRejected(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})
	shopID := uuid.New()

	req := baseRequest(shopID, []OrderLineRequest{{MenuItemID: uuid.New().String(), Quantity: 1}})
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("expected ErrMenuItemNotFound, got %v", err)
	}
}

func TestCreateOrder_UnknownItemDroppedWhenConfigured(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{}
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) OrderStore { return store }
	svc := NewOrderService(pool, store, newStore, notifier, true)
	shopID := uuid.New()

	espresso := addMenuItem(store, shopID, "Espresso", "150")
	lines := []OrderLineRequest{
		{MenuItemID: espresso.String(), Quantity: 2},
		{MenuItemID: uuid.New().String(), Quantity: 1}, // unknown, dropped
	}

	result, err := svc.CreateOrder(context.Background(), baseRequest(shopID, lines))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("items: got %d, want 1", len(result.Items))
	}
	if !numericEquals(result.Order.TotalAmount, "300") {
		t.Errorf("total: got %s, want 300", numericToDecimal(result.Order.TotalAmount))
	}
}

func TestCreateOrder_AllLinesDroppedRejected(t *testing.T) {
	store := newMockOrderStore()
	pool := &mockTxBeginner{tx: &mockTx{}}
	newStore := func(db database.DBTX) OrderStore { return store }
	svc := NewOrderService(pool, store, newStore, &mockNotifier{}, true)
	shopID := uuid.New()

	lines := []OrderLineRequest{{MenuItemID: uuid.New().String(), Quantity: 1}}
	_, err := svc.CreateOrder(context.Background(), baseRequest(shopID, lines))
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCreateOrder_NotifierFailureDoesNotFailCreate(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{failAll: true}
	svc := newTestService(store, notifier)
	shopID := uuid.New()

	result, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order should succeed despite broadcast failure: %v", err)
	}

	// Order must be persisted and queryable afterward.
	got, err := svc.GetOrder(context.Background(), shopID, result.Order.ID)
	if err != nil {
		t.Fatalf("get order after failed broadcast: %v", err)
	}
	if !numericEquals(got.Order.TotalAmount, "420") {
		t.Errorf("total: got %s, want 420", numericToDecimal(got.Order.TotalAmount))
	}
}

func TestCreateOrder_RetriesOnShortCodeCollision(t *testing.T) {
	store := newMockOrderStore()
	store.createOrderErrs = []error{
		&pgconn.PgError{Code: "23505", ConstraintName: "orders_shop_id_short_code_key"},
	}
	svc := newTestService(store, &mockNotifier{})
	shopID := uuid.New()

	result, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order should retry past the collision: %v", err)
	}
	if result == nil || len(result.Order.ShortCode) != 4 {
		t.Fatal("expected order with a short code after retry")
	}
}

func TestCreateOrder_GivesUpAfterRepeatedCollisions(t *testing.T) {
	store := newMockOrderStore()
	conflict := &pgconn.PgError{Code: "23505", ConstraintName: "orders_shop_id_short_code_key"}
	store.createOrderErrs = []error{conflict, conflict, conflict}
	svc := newTestService(store, &mockNotifier{})
	shopID := uuid.New()

	_, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestCreateOrder_InvalidChannel(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})

	req := baseRequest(uuid.New(), []OrderLineRequest{{MenuItemID: uuid.New().String(), Quantity: 1}})
	req.Channel = "DRIVE_THRU"
	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
}

// --- Status transition tests ---

func TestUpdateStatus_InvalidStatusRejected(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})

	_, err := svc.UpdateStatus(context.Background(), uuid.New(), uuid.New(), "EATEN")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateStatus_CompletedEmitsCompletedEvent(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier)
	shopID := uuid.New()

	created, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	notifier.events = nil

	updated, err := svc.UpdateStatus(context.Background(), shopID, created.Order.ID, enum.OrderStatusCompleted)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Order.Status != enum.OrderStatusCompleted {
		t.Errorf("status: got %s, want COMPLETED", updated.Order.Status)
	}

	want := []string{"status_changed", "completed"}
	if len(notifier.events) != len(want) {
		t.Fatalf("events: got %v, want %v", notifier.events, want)
	}
	for i := range want {
		if notifier.events[i] != want[i] {
			t.Errorf("events[%d]: got %s, want %s", i, notifier.events[i], want[i])
		}
	}
}

func TestUpdateStatus_AnyTransitionAllowed(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})
	shopID := uuid.New()

	created, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// READY back to PREPARING (a remake) is a legal move.
	if _, err := svc.UpdateStatus(context.Background(), shopID, created.Order.ID, enum.OrderStatusReady); err != nil {
		t.Fatalf("to READY: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), shopID, created.Order.ID, enum.OrderStatusPreparing); err != nil {
		t.Fatalf("READY back to PREPARING: %v", err)
	}
}

// --- Cancel tests ---

func TestCancel_RecordsReasonInNotes(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier)
	shopID := uuid.New()

	created, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	notifier.events = nil

	cancelled, err := svc.Cancel(context.Background(), shopID, created.Order.ID, "customer no-show", "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Order.Status != enum.OrderStatusCancelled {
		t.Errorf("status: got %s, want CANCELLED", cancelled.Order.Status)
	}
	if !cancelled.Order.Notes.Valid || cancelled.Order.Notes.String != "Cancelled: customer no-show" {
		t.Errorf("notes: got %q, want %q", cancelled.Order.Notes.String, "Cancelled: customer no-show")
	}

	want := []string{"status_changed", "completed"}
	if len(notifier.events) != len(want) {
		t.Fatalf("events: got %v, want %v", notifier.events, want)
	}
}

func TestCancel_AppendsToExistingNotes(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})
	shopID := uuid.New()

	req := baseRequest(shopID, espressoCart(store, shopID))
	req.Notes = "no sugar"
	created, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), shopID, created.Order.ID, "out of stock", "barista")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	want := "no sugar | Cancelled: out of stock (by barista)"
	if cancelled.Order.Notes.String != want {
		t.Errorf("notes: got %q, want %q", cancelled.Order.Notes.String, want)
	}
}

// --- Hold / Resume tests ---

func TestHoldResume_RoundTrip(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier)
	shopID := uuid.New()

	created, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	held, err := svc.Hold(context.Background(), shopID, created.Order.ID, "T5")
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if held.Order.Status != enum.OrderStatusHeld {
		t.Errorf("status after hold: got %s, want HELD", held.Order.Status)
	}
	if !held.Order.TableNumber.Valid || held.Order.TableNumber.String != "T5" {
		t.Errorf("table: got %q, want T5", held.Order.TableNumber.String)
	}

	notifier.events = nil
	resumed, err := svc.Resume(context.Background(), shopID, created.Order.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Order.Status != enum.OrderStatusPending {
		t.Errorf("status after resume: got %s, want PENDING", resumed.Order.Status)
	}
	if !numericEquals(resumed.Order.TotalAmount, "420") {
		t.Errorf("total after resume: got %s, want 420", numericToDecimal(resumed.Order.TotalAmount))
	}
	if len(resumed.Items) != len(created.Items) {
		t.Errorf("items after resume: got %d, want %d", len(resumed.Items), len(created.Items))
	}

	// Resume re-announces the order like a new one.
	want := []string{"created", "sound:NEW_ORDER"}
	if len(notifier.events) != len(want) {
		t.Fatalf("events: got %v, want %v", notifier.events, want)
	}
}

// --- ModifyLines tests ---

func TestModifyLines_RejectedOncePreparing(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})
	shopID := uuid.New()

	created, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), shopID, created.Order.ID, enum.OrderStatusPreparing); err != nil {
		t.Fatalf("update status: %v", err)
	}

	newItem := addMenuItem(store, shopID, "Latte", "180")
	_, err = svc.ModifyLines(context.Background(), shopID, created.Order.ID, []OrderLineRequest{
		{MenuItemID: newItem.String(), Quantity: 1},
	})
	if !errors.Is(err, ErrOrderNotModifiable) {
		t.Fatalf("expected ErrOrderNotModifiable, got %v", err)
	}

	// Existing lines and total must be untouched.
	got, err := svc.GetOrder(context.Background(), shopID, created.Order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Items) != 2 {
		t.Errorf("items: got %d, want 2", len(got.Items))
	}
	if !numericEquals(got.Order.TotalAmount, "420") {
		t.Errorf("total: got %s, want 420", numericToDecimal(got.Order.TotalAmount))
	}
}

func TestModifyLines_RepricesFromCurrentMenu(t *testing.T) {
	store := newMockOrderStore()
	notifier := &mockNotifier{}
	svc := newTestService(store, notifier)
	shopID := uuid.New()

	created, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	notifier.events = nil

	latte := addMenuItem(store, shopID, "Latte", "180")
	modified, err := svc.ModifyLines(context.Background(), shopID, created.Order.ID, []OrderLineRequest{
		{MenuItemID: latte.String(), Quantity: 2},
	})
	if err != nil {
		t.Fatalf("modify lines: %v", err)
	}

	if len(modified.Items) != 1 {
		t.Fatalf("items: got %d, want 1", len(modified.Items))
	}
	if !numericEquals(modified.Order.TotalAmount, "360") {
		t.Errorf("total: got %s, want 360", numericToDecimal(modified.Order.TotalAmount))
	}
	if len(notifier.events) != 1 || notifier.events[0] != "status_changed" {
		t.Errorf("events: got %v, want [status_changed]", notifier.events)
	}
}

func TestModifyLines_ClearsRecordedDiscount(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})
	shopID := uuid.New()
	lines := espressoCart(store, shopID)

	store.discounts["TEN"] = database.Discount{
		ID:       uuid.New(),
		ShopID:   shopID,
		Code:     "TEN",
		Type:     enum.DiscountTypeFixed,
		Value:    makeNumeric("10"),
		IsActive: true,
	}
	req := baseRequest(shopID, lines)
	req.DiscountCode = "TEN"
	created, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if !numericEquals(created.Order.TotalAmount, "410") {
		t.Fatalf("total: got %s, want 410", numericToDecimal(created.Order.TotalAmount))
	}

	modified, err := svc.ModifyLines(context.Background(), shopID, created.Order.ID, []OrderLineRequest{
		lines[0], // 2x Espresso only
	})
	if err != nil {
		t.Fatalf("modify lines: %v", err)
	}
	if modified.Order.DiscountCode.Valid {
		t.Error("discount code should be cleared after line modification")
	}
	if !numericEquals(modified.Order.TotalAmount, "300") {
		t.Errorf("total: got %s, want 300", numericToDecimal(modified.Order.TotalAmount))
	}
}

// --- Query tests ---

func TestListOrders_KitchenView(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})
	shopID := uuid.New()

	first, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	second, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := svc.Hold(context.Background(), shopID, second.Order.ID, ""); err != nil {
		t.Fatalf("hold: %v", err)
	}

	kitchen, err := svc.ListOrders(context.Background(), shopID, "kitchen")
	if err != nil {
		t.Fatalf("list kitchen: %v", err)
	}
	if len(kitchen) != 1 || kitchen[0].ID != first.Order.ID {
		t.Errorf("kitchen view: got %d orders, want only the pending one", len(kitchen))
	}

	held, err := svc.ListOrders(context.Background(), shopID, "held")
	if err != nil {
		t.Fatalf("list held: %v", err)
	}
	if len(held) != 1 || held[0].ID != second.Order.ID {
		t.Errorf("held view: got %d orders, want only the held one", len(held))
	}

	all, err := svc.ListOrders(context.Background(), shopID, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all view: got %d orders, want 2", len(all))
	}
}

func TestDeleteOrder_RemovesOrderAndLines(t *testing.T) {
	store := newMockOrderStore()
	svc := newTestService(store, &mockNotifier{})
	shopID := uuid.New()

	created, err := svc.CreateOrder(context.Background(), baseRequest(shopID, espressoCart(store, shopID)))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := svc.Delete(context.Background(), shopID, created.Order.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetOrder(context.Background(), shopID, created.Order.ID); err == nil {
		t.Fatal("expected error fetching deleted order")
	}
}
