package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/cafeos/api/internal/auth"
	"github.com/cafeos/api/internal/database"
	"github.com/cafeos/api/internal/enum"
	"github.com/cafeos/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// --- Mock store ---

type mockAuthStore struct {
	userByEmail   map[string]database.User
	userByShopPin map[string]database.User // key: "shopID:pin"
	userByID      map[uuid.UUID]database.User
}

func newMockAuthStore() *mockAuthStore {
	return &mockAuthStore{
		userByEmail:   make(map[string]database.User),
		userByShopPin: make(map[string]database.User),
		userByID:      make(map[uuid.UUID]database.User),
	}
}

func (m *mockAuthStore) addUser(u database.User) {
	m.userByEmail[u.Email] = u
	m.userByID[u.ID] = u
	if u.Pin.Valid {
		key := u.ShopID.String() + ":" + u.Pin.String
		m.userByShopPin[key] = u
	}
}

func (m *mockAuthStore) GetUserByEmail(_ context.Context, email string) (database.User, error) {
	u, ok := m.userByEmail[email]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) GetUserByShopAndPin(_ context.Context, arg database.GetUserByShopAndPinParams) (database.User, error) {
	key := arg.ShopID.String() + ":" + arg.Pin.String
	u, ok := m.userByShopPin[key]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.userByID[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

// --- Helpers ---

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func makeTestUser(t *testing.T) database.User {
	t.Helper()
	return database.User{
		ID:             uuid.New(),
		ShopID:         uuid.New(),
		Email:          "cashier@test.com",
		HashedPassword: hashPassword(t, "correct-password"),
		FullName:       "Test Cashier",
		Role:           enum.UserRoleCashier,
		Pin:            pgtype.Text{String: "1234", Valid: true},
		IsActive:       true,
	}
}

func setupAuthRouter(store *mockAuthStore) *chi.Mux {
	h := handler.NewAuthHandler(store, testSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)
	r := setupAuthRouter(store)

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "cashier@test.com",
		"password": "correct-password",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeObject(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}

	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["email"] != "cashier@test.com" {
		t.Errorf("user email: got %v, want cashier@test.com", userResp["email"])
	}
	if userResp["role"] != enum.UserRoleCashier {
		t.Errorf("user role: got %v, want CASHIER", userResp["role"])
	}
	if userResp["shop_id"] != user.ShopID.String() {
		t.Errorf("user shop_id: got %v, want %s", userResp["shop_id"], user.ShopID)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	store := newMockAuthStore()
	store.addUser(makeTestUser(t))
	r := setupAuthRouter(store)

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "cashier@test.com",
		"password": "wrong-password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_UserNotFound(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email":    "nobody@test.com",
		"password": "password",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"email": "cashier@test.com",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- PIN login tests ---

func TestPinLogin_ValidCredentials(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)
	r := setupAuthRouter(store)

	rr := doRequest(t, r, "POST", "/auth/pin-login", map[string]string{
		"shop_id": user.ShopID.String(),
		"pin":     "1234",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeObject(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}

	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["role"] != enum.UserRoleCashier {
		t.Errorf("user role: got %v, want CASHIER", userResp["role"])
	}
}

func TestPinLogin_WrongPin(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)
	r := setupAuthRouter(store)

	rr := doRequest(t, r, "POST", "/auth/pin-login", map[string]string{
		"shop_id": user.ShopID.String(),
		"pin":     "9999",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestPinLogin_InvalidShopID(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, r, "POST", "/auth/pin-login", map[string]string{
		"shop_id": "not-a-uuid",
		"pin":     "1234",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Refresh tests ---

func TestRefresh_ValidToken(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)
	r := setupAuthRouter(store)

	refreshToken, err := auth.GenerateRefreshToken(testSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeObject(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
}

func TestRefresh_InvalidToken(t *testing.T) {
	r := setupAuthRouter(newMockAuthStore())

	rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{
		"refresh_token": "garbage.token.here",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	store := newMockAuthStore()
	user := makeTestUser(t)
	store.addUser(user)
	r := setupAuthRouter(store)

	// An access token uses custom claims without Subject; the refresh
	// endpoint must not accept it.
	accessToken, err := auth.GenerateToken(testSecret, user.ID, user.ShopID, user.Role)
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}

	rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{
		"refresh_token": accessToken,
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
