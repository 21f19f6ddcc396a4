package router

import (
	"log"
	"net/http"

	"github.com/cafeos/api/internal/config"
	"github.com/cafeos/api/internal/database"
	"github.com/cafeos/api/internal/enum"
	"github.com/cafeos/api/internal/handler"
	mw "github.com/cafeos/api/internal/middleware"
	"github.com/cafeos/api/internal/service"
	"github.com/cafeos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, shop scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, // admin/POS dev server
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/shops/{sid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Shared services
	evaluator := service.NewDiscountEvaluator(queries)
	orderService := service.NewOrderService(
		pool,
		queries,
		func(db database.DBTX) service.OrderStore {
			return database.New(db)
		},
		ws.NewOrderNotifier(hub),
		cfg.CartItemPolicy == config.CartItemDrop,
	)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Shop-scoped routes
		r.Route("/shops/{sid}", func(r chi.Router) {
			r.Use(mw.RequireShop)

			// Users (management roles only)
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager))
				userHandler := handler.NewUserHandler(queries)
				r.Route("/users", userHandler.RegisterRoutes)
			})

			// Categories
			categoryHandler := handler.NewCategoryHandler(queries)
			r.Route("/categories", categoryHandler.RegisterRoutes)

			// Menu items
			itemHandler := handler.NewMenuItemHandler(queries)
			r.Route("/items", itemHandler.RegisterRoutes)

			// Discounts. Cashiers need list and validate at checkout;
			// mutations are limited to management roles.
			discountHandler := handler.NewDiscountHandler(queries, evaluator)
			r.Route("/discounts", func(r chi.Router) {
				r.Get("/", discountHandler.List)
				r.Post("/validate", discountHandler.Validate)

				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager))
					r.Post("/", discountHandler.Create)
					r.Put("/{id}", discountHandler.Update)
					r.Delete("/{id}", discountHandler.Delete)
				})
			})

			// Orders
			orderHandler := handler.NewOrderHandler(orderService)
			r.Route("/orders", orderHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
