package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cafeos/api/internal/database"
	"github.com/cafeos/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// --- Mock store ---

type mockCategoryStore struct {
	categories map[uuid.UUID]database.MenuCategory // keyed by category ID
}

func newMockCategoryStore() *mockCategoryStore {
	return &mockCategoryStore{categories: make(map[uuid.UUID]database.MenuCategory)}
}

func (m *mockCategoryStore) ListCategoriesByShop(_ context.Context, shopID uuid.UUID) ([]database.MenuCategory, error) {
	var result []database.MenuCategory
	for _, c := range m.categories {
		if c.ShopID == shopID && c.IsActive {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *mockCategoryStore) CreateCategory(_ context.Context, arg database.CreateCategoryParams) (database.MenuCategory, error) {
	c := database.MenuCategory{
		ID:          uuid.New(),
		ShopID:      arg.ShopID,
		Name:        arg.Name,
		Description: arg.Description,
		SortOrder:   arg.SortOrder,
		IsActive:    true,
		CreatedAt:   time.Now(),
	}
	m.categories[c.ID] = c
	return c, nil
}

func (m *mockCategoryStore) UpdateCategory(_ context.Context, arg database.UpdateCategoryParams) (database.MenuCategory, error) {
	c, ok := m.categories[arg.ID]
	if !ok || c.ShopID != arg.ShopID || !c.IsActive {
		return database.MenuCategory{}, pgx.ErrNoRows
	}
	c.Name = arg.Name
	c.Description = arg.Description
	c.SortOrder = arg.SortOrder
	m.categories[c.ID] = c
	return c, nil
}

func (m *mockCategoryStore) SoftDeleteCategory(_ context.Context, arg database.SoftDeleteCategoryParams) (uuid.UUID, error) {
	c, ok := m.categories[arg.ID]
	if !ok || c.ShopID != arg.ShopID || !c.IsActive {
		return uuid.Nil, pgx.ErrNoRows
	}
	c.IsActive = false
	m.categories[c.ID] = c
	return c.ID, nil
}

// --- Helpers ---

func setupCategoryRouter(store *mockCategoryStore) *chi.Mux {
	h := handler.NewCategoryHandler(store)
	r := chi.NewRouter()
	r.Route("/shops/{sid}/categories", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestCategoryList_Empty(t *testing.T) {
	store := newMockCategoryStore()
	router := setupCategoryRouter(store)
	shopID := uuid.New()

	rr := doRequest(t, router, "GET", "/shops/"+shopID.String()+"/categories", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeList(t, rr)
	if len(resp) != 0 {
		t.Errorf("expected empty list, got %d items", len(resp))
	}
}

func TestCategoryList_ScopedToShop(t *testing.T) {
	store := newMockCategoryStore()
	shopID := uuid.New()
	otherShopID := uuid.New()

	catID1 := uuid.New()
	catID2 := uuid.New()
	store.categories[catID1] = database.MenuCategory{
		ID: catID1, ShopID: shopID, Name: "Coffee",
		SortOrder: 1, IsActive: true, CreatedAt: time.Now(),
	}
	store.categories[catID2] = database.MenuCategory{
		ID: catID2, ShopID: otherShopID, Name: "Pastries",
		SortOrder: 1, IsActive: true, CreatedAt: time.Now(),
	}

	router := setupCategoryRouter(store)
	rr := doRequest(t, router, "GET", "/shops/"+shopID.String()+"/categories", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeList(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 category, got %d", len(resp))
	}
	if resp[0]["name"] != "Coffee" {
		t.Errorf("name: got %v, want Coffee", resp[0]["name"])
	}
}

func TestCategoryCreate_Success(t *testing.T) {
	store := newMockCategoryStore()
	router := setupCategoryRouter(store)
	shopID := uuid.New()

	rr := doRequest(t, router, "POST", "/shops/"+shopID.String()+"/categories", map[string]interface{}{
		"name":        "Coffee",
		"description": "Hot and iced",
		"sort_order":  1,
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeObject(t, rr)
	if resp["name"] != "Coffee" {
		t.Errorf("name: got %v", resp["name"])
	}
	if resp["description"] != "Hot and iced" {
		t.Errorf("description: got %v", resp["description"])
	}
}

func TestCategoryCreate_MissingName(t *testing.T) {
	store := newMockCategoryStore()
	router := setupCategoryRouter(store)
	shopID := uuid.New()

	rr := doRequest(t, router, "POST", "/shops/"+shopID.String()+"/categories", map[string]interface{}{
		"sort_order": 1,
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCategoryUpdate_NotFound(t *testing.T) {
	store := newMockCategoryStore()
	router := setupCategoryRouter(store)
	shopID := uuid.New()

	rr := doRequest(t, router, "PUT", "/shops/"+shopID.String()+"/categories/"+uuid.New().String(), map[string]interface{}{
		"name": "Renamed",
	})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestCategoryDelete_SoftDeletes(t *testing.T) {
	store := newMockCategoryStore()
	shopID := uuid.New()

	catID := uuid.New()
	store.categories[catID] = database.MenuCategory{
		ID: catID, ShopID: shopID, Name: "Coffee",
		SortOrder: 1, IsActive: true, CreatedAt: time.Now(),
	}

	router := setupCategoryRouter(store)
	rr := doRequest(t, router, "DELETE", "/shops/"+shopID.String()+"/categories/"+catID.String(), nil)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if store.categories[catID].IsActive {
		t.Error("category should be inactive after delete")
	}
}
